package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/inkpress/inkpress/internal/auth"
	"github.com/inkpress/inkpress/internal/platform/db"
	"github.com/inkpress/inkpress/internal/shared"
)

const selectUser = `SELECT id, name, lastname, email, role, is_active, last_login_at, created_at, updated_at FROM users`

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListUsers returns one page of users matching filter plus the total count.
func (r *Repository) ListUsers(ctx context.Context, filter ListFilter) ([]User, int, error) {
	where, args := searchClause(filter.Search)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit(), filter.Offset())
	query := fmt.Sprintf(`%s%s ORDER BY id LIMIT $%d OFFSET $%d`, selectUser, where, len(args)-1, len(args))
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// GetUser fetches one user.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	return scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE id = $1`, id))
}

// UpdateUser applies the non-nil fields of changes and returns the new row.
func (r *Repository) UpdateUser(ctx context.Context, id int64, changes Changes) (User, error) {
	sets := make([]string, 0, 7)
	args := make([]any, 0, 7)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if changes.Name != nil {
		add("name", *changes.Name)
	}
	if changes.Lastname != nil {
		add("lastname", *changes.Lastname)
	}
	if changes.Email != nil {
		add("email", *changes.Email)
	}
	if changes.PasswordHash != nil {
		add("password_hash", *changes.PasswordHash)
	}
	if changes.IsActive != nil {
		add("is_active", *changes.IsActive)
	}
	if changes.Role != nil {
		add("role", string(*changes.Role))
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE users SET %s WHERE id = $%d RETURNING id, name, lastname, email, role, is_active, last_login_at, created_at, updated_at`,
		strings.Join(sets, ", "), len(args))
	user, err := scanUser(r.pool.QueryRow(ctx, query, args...))
	if err != nil && db.IsUniqueViolation(err) {
		return User{}, shared.ErrConflict
	}
	return user, err
}

// DeactivateUser soft deletes a user.
func (r *Repository) DeactivateUser(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE users SET is_active = FALSE, updated_at = NOW() WHERE id = $1`, id)
}

// ResetFailedLogins clears the lockout counter.
func (r *Repository) ResetFailedLogins(ctx context.Context, id int64) error {
	return r.exec(ctx, `UPDATE users SET failed_login_count = 0, updated_at = NOW() WHERE id = $1`, id)
}

func (r *Repository) exec(ctx context.Context, query string, args ...any) error {
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func searchClause(search string) (string, []any) {
	search = strings.TrimSpace(search)
	if search == "" {
		return "", nil
	}
	return ` WHERE name ILIKE $1 OR lastname ILIKE $1 OR email ILIKE $1`, []any{"%" + search + "%"}
}

func scanUser(row pgx.Row) (User, error) {
	var (
		user      User
		role      string
		lastLogin pgtype.Timestamptz
	)
	err := row.Scan(&user.ID, &user.Name, &user.Lastname, &user.Email, &role, &user.IsActive, &lastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, shared.ErrNotFound
		}
		return User{}, err
	}
	user.Role = auth.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return user, nil
}
