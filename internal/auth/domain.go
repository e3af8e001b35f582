package auth

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/cases"

	"github.com/inkpress/inkpress/internal/token"
)

// MaxFailedLogins is the number of consecutive wrong passwords after which an
// account is locked until an administrator resets it.
const MaxFailedLogins = 5

// Role is one of the closed set of account roles.
type Role string

const (
	RoleManager        Role = "manager"
	RoleRegisteredUser Role = "registered_user"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleManager || r == RoleRegisteredUser
}

// User represents an account as seen by the credential store.
type User struct {
	ID               int64
	Name             string
	Lastname         string
	Email            string
	PasswordHash     string
	Role             Role
	IsActive         bool
	FailedLoginCount int
	LastLoginAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Locked reports whether the account reached the failed login limit.
func (u *User) Locked() bool {
	return u.FailedLoginCount >= MaxFailedLogins
}

// Identity returns the claim subset embedded in issued tokens.
func (u *User) Identity() token.Identity {
	return token.Identity{UserID: u.ID, Role: string(u.Role), Email: u.Email}
}

// ClientInfo is the optional client metadata captured with a session.
type ClientInfo struct {
	IPAddress *string
	UserAgent *string
	Country   *string
	City      *string
	Latitude  *float64
	Longitude *float64
}

// Session is the append-only audit record written on every successful login.
type Session struct {
	ID        uuid.UUID
	UserID    int64
	Client    ClientInfo
	CreatedAt time.Time
}

// NewUser carries the fields needed to create an account.
type NewUser struct {
	Name         string
	Lastname     string
	Email        string
	PasswordHash string
	Role         Role
}

// NormalizeEmail trims and case-folds an email address so lookups and the
// unique index agree.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}
