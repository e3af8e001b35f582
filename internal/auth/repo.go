package auth

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkpress/inkpress/internal/platform/db"
	"github.com/inkpress/inkpress/internal/shared"
)

// Repository defines the credential store used by the auth service.
type Repository interface {
	// WithTx runs fn in one transaction. Changes made through the
	// TxRepository are committed only when fn returns nil.
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	FindByID(ctx context.Context, id int64) (*User, error)
	CreateUser(ctx context.Context, in NewUser) (*User, error)
}

// TxRepository is the transactional view used by the login sequence.
type TxRepository interface {
	// LockUserByEmail loads the user and holds its row lock until the
	// transaction ends, serialising concurrent logins for the same account.
	LockUserByEmail(ctx context.Context, email string) (*User, error)
	// IncrementFailedLogins adds one failed attempt and returns the new count.
	IncrementFailedLogins(ctx context.Context, userID int64) (int, error)
	// RecordSuccessfulLogin resets the failed counter and stamps last_login_at.
	RecordSuccessfulLogin(ctx context.Context, userID int64, at time.Time) error
	CreateSession(ctx context.Context, sess Session) error
}

const userColumns = `id, name, lastname, email, password_hash, role, is_active, failed_login_count, last_login_at, created_at, updated_at`

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
	db   db.DBTX
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool, db: pool}
}

// WithTx implements Repository.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &PGRepository{pool: r.pool, db: tx})
	})
}

// FindByID fetches a user by primary key.
func (r *PGRepository) FindByID(ctx context.Context, id int64) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// LockUserByEmail fetches a user by email with FOR UPDATE.
func (r *PGRepository) LockUserByEmail(ctx context.Context, email string) (*User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1 FOR UPDATE`, email)
	return scanUser(row)
}

// IncrementFailedLogins bumps the counter atomically.
func (r *PGRepository) IncrementFailedLogins(ctx context.Context, userID int64) (int, error) {
	var count int32
	err := r.db.QueryRow(ctx, `UPDATE users SET failed_login_count = failed_login_count + 1, updated_at = NOW() WHERE id = $1 RETURNING failed_login_count`, userID).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, shared.ErrNotFound
	}
	return int(count), err
}

// RecordSuccessfulLogin resets the counter and records the login time.
func (r *PGRepository) RecordSuccessfulLogin(ctx context.Context, userID int64, at time.Time) error {
	tag, err := r.db.Exec(ctx, `UPDATE users SET failed_login_count = 0, last_login_at = $2, updated_at = NOW() WHERE id = $1`, userID, pgtype.Timestamptz{Time: at.UTC(), Valid: true})
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// CreateSession appends a login audit record.
func (r *PGRepository) CreateSession(ctx context.Context, sess Session) error {
	c := sess.Client
	_, err := r.db.Exec(ctx, `INSERT INTO sessions (id, user_id, ip_address, user_agent, country, city, latitude, longitude, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		sess.ID, sess.UserID, c.IPAddress, c.UserAgent, c.Country, c.City, c.Latitude, c.Longitude,
		pgtype.Timestamptz{Time: sess.CreatedAt.UTC(), Valid: true})
	return err
}

// CreateUser inserts an active account with a zero failed login counter.
func (r *PGRepository) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO users (name, lastname, email, password_hash, role, is_active, failed_login_count)
		VALUES ($1, $2, $3, $4, $5, TRUE, 0)
		RETURNING `+userColumns, in.Name, in.Lastname, in.Email, in.PasswordHash, string(in.Role))
	user, err := scanUser(row)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, shared.ErrConflict
		}
		return nil, err
	}
	return user, nil
}

func scanUser(row pgx.Row) (*User, error) {
	var (
		u         User
		role      string
		failed    int32
		lastLogin pgtype.Timestamptz
		createdAt pgtype.Timestamptz
		updatedAt pgtype.Timestamptz
	)
	err := row.Scan(&u.ID, &u.Name, &u.Lastname, &u.Email, &u.PasswordHash, &role, &u.IsActive, &failed, &lastLogin, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	u.Role = Role(role)
	u.FailedLoginCount = int(failed)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	u.CreatedAt = createdAt.Time
	u.UpdatedAt = updatedAt.Time
	return &u, nil
}

var (
	_ Repository   = (*PGRepository)(nil)
	_ TxRepository = (*PGRepository)(nil)
)
