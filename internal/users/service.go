package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/inkpress/inkpress/internal/auth"
	"github.com/inkpress/inkpress/internal/shared"
)

// ErrEmailTaken is returned when an update would duplicate an email.
var ErrEmailTaken = errors.New("users: email is already registered")

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filter ListFilter) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	UpdateUser(ctx context.Context, id int64, changes Changes) (User, error)
	DeactivateUser(ctx context.Context, id int64) error
	ResetFailedLogins(ctx context.Context, id int64) error
}

// AuditRecorder stores management actions.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles user business logic.
type Service struct {
	repo   RepositoryPort
	hasher auth.PasswordHasher
	audit  AuditRecorder
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, hasher auth.PasswordHasher) *Service {
	return &Service{repo: repo, hasher: hasher, logger: slog.Default()}
}

// WithAudit records every successful mutation through rec. Audit failures
// are logged and never fail the request.
func (s *Service) WithAudit(rec AuditRecorder, logger *slog.Logger) *Service {
	s.audit = rec
	if logger != nil {
		s.logger = logger
	}
	return s
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditLog{Action: action, Entity: "user", EntityID: strconv.FormatInt(id, 10), Meta: meta}
	if p, ok := shared.PrincipalFromContext(ctx); ok {
		entry.ActorID = p.UserID
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.WarnContext(ctx, "audit record failed", slog.String("action", action), slog.Int64("user_id", id), slog.Any("error", err))
	}
}

// ListUsers returns one page of users.
func (s *Service) ListUsers(ctx context.Context, filter ListFilter) (shared.Page[User], error) {
	users, total, err := s.repo.ListUsers(ctx, filter)
	if err != nil {
		return shared.Page[User]{}, err
	}
	return shared.NewPage(users, filter.PageRequest, total), nil
}

// GetUser returns one user or shared.ErrNotFound.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// UpdateUser applies in. A new password is hashed before it is stored and
// the email is normalised like at signup.
//
// Callers may edit their own profile. Changing role or is_active, or editing
// another account, requires the manager role.
func (s *Service) UpdateUser(ctx context.Context, id int64, in UpdateInput) (User, error) {
	changes := Changes{
		Name:     in.Name,
		Lastname: in.Lastname,
		IsActive: in.IsActive,
		Role:     in.Role,
	}
	if in.Role != nil && !in.Role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, *in.Role)
	}
	if in.Role != nil || in.IsActive != nil {
		if err := requireManager(ctx, "change role or status"); err != nil {
			return User{}, err
		}
	} else if err := requireSelfOrManager(ctx, id); err != nil {
		return User{}, err
	}
	if in.Email != nil {
		email := auth.NormalizeEmail(*in.Email)
		changes.Email = &email
	}
	if in.Password != nil {
		hash, err := s.hasher.Hash(*in.Password)
		if err != nil {
			return User{}, fmt.Errorf("users: hash password: %w", err)
		}
		changes.PasswordHash = &hash
	}
	if changes.Empty() {
		return s.repo.GetUser(ctx, id)
	}
	user, err := s.repo.UpdateUser(ctx, id, changes)
	if errors.Is(err, shared.ErrConflict) {
		return User{}, ErrEmailTaken
	}
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "user.update", id, changes.auditFields())
	return user, nil
}

// DeactivateUser marks the account inactive. Users may deactivate their own
// account; managers may deactivate any.
func (s *Service) DeactivateUser(ctx context.Context, id int64) error {
	if err := requireSelfOrManager(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeactivateUser(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "user.deactivate", id, nil)
	return nil
}

// UnlockUser resets the failed login counter of a locked account. Only
// managers may unlock.
func (s *Service) UnlockUser(ctx context.Context, id int64) error {
	if err := requireManager(ctx, "unlock accounts"); err != nil {
		return err
	}
	if err := s.repo.ResetFailedLogins(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "user.unlock", id, nil)
	return nil
}

func requireManager(ctx context.Context, action string) error {
	p, ok := shared.PrincipalFromContext(ctx)
	if !ok || p.Role != string(auth.RoleManager) {
		return fmt.Errorf("%w: only managers may %s", shared.ErrForbidden, action)
	}
	return nil
}

func requireSelfOrManager(ctx context.Context, id int64) error {
	p, ok := shared.PrincipalFromContext(ctx)
	if !ok {
		return fmt.Errorf("%w: no authenticated caller", shared.ErrForbidden)
	}
	if p.UserID == id || p.Role == string(auth.RoleManager) {
		return nil
	}
	return fmt.Errorf("%w: cannot modify another account", shared.ErrForbidden)
}
