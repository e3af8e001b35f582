package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/inkpress/inkpress/internal/shared"
	"github.com/inkpress/inkpress/internal/token"
)

// Login outcomes reported to the LoginRecorder.
const (
	OutcomeSuccess          = "success"
	OutcomeUserNotFound     = "user_not_found"
	OutcomeAccountInactive  = "account_inactive"
	OutcomeAccountLocked    = "account_locked"
	OutcomeWrongCredentials = "wrong_credentials"
	OutcomeStoreError       = "store_error"
)

// LockoutNotifier is told when an account reaches the failed login limit.
type LockoutNotifier interface {
	AccountLocked(ctx context.Context, userID int64, email string) error
}

// LoginRecorder counts login outcomes.
type LoginRecorder interface {
	ObserveLogin(outcome string)
}

// ServiceConfig holds the optional collaborators of Service.
type ServiceConfig struct {
	Logger   *slog.Logger
	Notifier LockoutNotifier
	Metrics  LoginRecorder
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	codec    *token.Codec
	hasher   PasswordHasher
	logger   *slog.Logger
	notifier LockoutNotifier
	metrics  LoginRecorder
	now      func() time.Time
}

// NewService constructs a new Service.
func NewService(repo Repository, codec *token.Codec, hasher PasswordHasher, cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		codec:    codec,
		hasher:   hasher,
		logger:   logger,
		notifier: cfg.Notifier,
		metrics:  cfg.Metrics,
		now:      time.Now,
	}
}

// Login verifies credentials and issues a token pair.
//
// The whole sequence runs in one transaction holding the user's row lock, so
// concurrent attempts for the same account are serialised. A wrong password
// still commits the incremented counter; only store failures roll back.
func (s *Service) Login(ctx context.Context, email, password string, client ClientInfo) (token.Pair, error) {
	var (
		pair     token.Pair
		denied   error
		issueErr error
		outcome  string
		locked   *User
	)
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		user, err := tx.LockUserByEmail(ctx, NormalizeEmail(email))
		if errors.Is(err, shared.ErrNotFound) {
			denied, outcome = ErrUserNotFound, OutcomeUserNotFound
			return nil
		}
		if err != nil {
			return storeError("find user", err)
		}
		if !user.IsActive {
			denied, outcome = ErrAccountInactive, OutcomeAccountInactive
			return nil
		}
		if user.Locked() {
			denied, outcome = ErrAccountLocked, OutcomeAccountLocked
			return nil
		}

		// Any compare error counts as a mismatch, including a corrupt hash.
		if s.hasher.Compare(user.PasswordHash, password) != nil {
			count, err := tx.IncrementFailedLogins(ctx, user.ID)
			if err != nil {
				return storeError("increment failed logins", err)
			}
			denied = &WrongCredentialsError{AttemptsLeft: max(0, MaxFailedLogins-count)}
			outcome = OutcomeWrongCredentials
			if count == MaxFailedLogins {
				locked = user
			}
			return nil
		}

		now := s.now()
		if err := tx.RecordSuccessfulLogin(ctx, user.ID, now); err != nil {
			return storeError("record login", err)
		}
		if err := tx.CreateSession(ctx, Session{
			ID:        uuid.New(),
			UserID:    user.ID,
			Client:    client,
			CreatedAt: now,
		}); err != nil {
			return storeError("create session", err)
		}
		pair, issueErr = s.codec.IssuePair(user.Identity())
		if issueErr != nil {
			return fmt.Errorf("auth: issue tokens: %w", issueErr)
		}
		outcome = OutcomeSuccess
		return nil
	})
	if err != nil {
		if issueErr == nil {
			err = storeError("commit login", err)
			s.observe(OutcomeStoreError)
		}
		s.logger.Error("login failed", slog.Any("error", err))
		return token.Pair{}, err
	}
	s.observe(outcome)
	if locked != nil {
		s.notifyLocked(ctx, locked)
	}
	if denied != nil {
		return token.Pair{}, denied
	}
	return pair, nil
}

// Refresh exchanges a refresh token for a new access token built from the
// user's current state. Refresh tokens are not rotated.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (string, error) {
	claims, err := s.codec.Decode(rawRefresh, token.KindRefresh)
	if err != nil {
		if errors.Is(err, token.ErrInvalidSignature) && s.decodes(rawRefresh, token.KindAccess) {
			return "", ErrWrongTokenType
		}
		return "", fmt.Errorf("%w: %w", ErrInvalidRefreshToken, err)
	}
	if claims.Type != token.KindRefresh {
		return "", ErrWrongTokenType
	}

	user, err := s.repo.FindByID(ctx, claims.UserID)
	if errors.Is(err, shared.ErrNotFound) {
		return "", ErrUserNotFound
	}
	if err != nil {
		return "", storeError("find user", err)
	}
	if !user.IsActive {
		return "", ErrAccountInactive
	}
	return s.codec.Encode(user.Identity(), token.KindAccess, s.codec.TTL(token.KindAccess))
}

// ValidateAccessToken decodes an access token. Codec failures are reported
// as *UnauthorizedError; a refresh token yields ErrWrongTokenType.
func (s *Service) ValidateAccessToken(rawAccess string) (*token.Claims, error) {
	claims, err := s.codec.Decode(rawAccess, token.KindAccess)
	if err != nil {
		if errors.Is(err, token.ErrInvalidSignature) && s.decodes(rawAccess, token.KindRefresh) {
			return nil, ErrWrongTokenType
		}
		return nil, &UnauthorizedError{Cause: err}
	}
	if claims.Type != token.KindAccess {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// RegisterInput carries the fields of a signup request.
type RegisterInput struct {
	Name     string
	Lastname string
	Email    string
	Password string
	Role     Role
}

// Register creates an active account with a hashed password. The role
// defaults to registered_user.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*User, error) {
	role := in.Role
	if role == "" {
		role = RoleRegisteredUser
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", shared.ErrValidation, role)
	}
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("auth: hash password: %w", err)
	}
	user, err := s.repo.CreateUser(ctx, NewUser{
		Name:         in.Name,
		Lastname:     in.Lastname,
		Email:        NormalizeEmail(in.Email),
		PasswordHash: hash,
		Role:         role,
	})
	if errors.Is(err, shared.ErrConflict) {
		return nil, ErrEmailTaken
	}
	if err != nil {
		return nil, storeError("create user", err)
	}
	return user, nil
}

func (s *Service) decodes(raw string, kind token.Kind) bool {
	_, err := s.codec.Decode(raw, kind)
	return err == nil
}

func (s *Service) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveLogin(outcome)
	}
}

func (s *Service) notifyLocked(ctx context.Context, user *User) {
	s.logger.Warn("account locked", slog.Int64("user_id", user.ID))
	if s.notifier == nil {
		return
	}
	if err := s.notifier.AccountLocked(ctx, user.ID, user.Email); err != nil {
		s.logger.Error("notify account locked", slog.Int64("user_id", user.ID), slog.Any("error", err))
	}
}
