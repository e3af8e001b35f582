package users

import (
	"time"

	"github.com/inkpress/inkpress/internal/auth"
	"github.com/inkpress/inkpress/internal/shared"
)

// User represents a user account for management. The password hash and
// failed login counter are never exposed.
type User struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Lastname    string     `json:"lastname"`
	Email       string     `json:"email"`
	Role        auth.Role  `json:"role"`
	IsActive    bool       `json:"is_active"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ListFilter narrows a user listing.
type ListFilter struct {
	// Search matches name, lastname or email, case-insensitively.
	Search string
	shared.PageRequest
}

// UpdateInput holds the optional fields of a user update. Nil fields are
// left unchanged.
type UpdateInput struct {
	Name     *string
	Lastname *string
	Email    *string
	Password *string
	IsActive *bool
	Role     *auth.Role
}

// Changes is the persisted form of UpdateInput.
type Changes struct {
	Name         *string
	Lastname     *string
	Email        *string
	PasswordHash *string
	IsActive     *bool
	Role         *auth.Role
}

// Empty reports whether no field is set.
func (c Changes) Empty() bool {
	return c.Name == nil && c.Lastname == nil && c.Email == nil &&
		c.PasswordHash == nil && c.IsActive == nil && c.Role == nil
}

// auditFields lists the changed field names. Values are omitted so hashes
// and emails never reach the audit trail.
func (c Changes) auditFields() map[string]any {
	var fields []string
	if c.Name != nil {
		fields = append(fields, "name")
	}
	if c.Lastname != nil {
		fields = append(fields, "lastname")
	}
	if c.Email != nil {
		fields = append(fields, "email")
	}
	if c.PasswordHash != nil {
		fields = append(fields, "password")
	}
	if c.IsActive != nil {
		fields = append(fields, "is_active")
	}
	if c.Role != nil {
		fields = append(fields, "role")
	}
	return map[string]any{"fields": fields}
}
