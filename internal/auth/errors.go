package auth

import (
	"errors"
	"fmt"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrAccountInactive     = errors.New("account is inactive")
	ErrAccountLocked       = errors.New("account is locked after too many failed login attempts")
	ErrWrongCredentials    = errors.New("invalid credentials")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
	ErrWrongTokenType      = errors.New("wrong token type")
	ErrUnauthenticated     = errors.New("invalid or missing authorization header")
	ErrUnauthorized        = errors.New("invalid or expired token")
	ErrEmailTaken          = errors.New("email is already registered")
	// ErrStore marks credential store failures. Match with errors.Is and
	// unwrap *StoreError for the cause.
	ErrStore = errors.New("credential store failure")
)

// WrongCredentialsError is returned when the password does not match. The
// remaining attempt count is informational only.
type WrongCredentialsError struct {
	AttemptsLeft int
}

func (e *WrongCredentialsError) Error() string {
	return fmt.Sprintf("%s: %d attempts left", ErrWrongCredentials, e.AttemptsLeft)
}

// Is matches ErrWrongCredentials.
func (e *WrongCredentialsError) Is(target error) bool {
	return target == ErrWrongCredentials
}

// StoreError wraps a credential store failure with the failing operation.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrStore, e.Op, e.Err)
}

// Is matches ErrStore.
func (e *StoreError) Is(target error) bool {
	return target == ErrStore
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeError(op string, err error) error {
	var se *StoreError
	if errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}

// UnauthorizedError carries the reason a presented access token was rejected.
type UnauthorizedError struct {
	Cause error
}

func (e *UnauthorizedError) Error() string {
	if e.Cause == nil {
		return ErrUnauthorized.Error()
	}
	return fmt.Sprintf("%s: %v", ErrUnauthorized, e.Cause)
}

// Is matches ErrUnauthorized.
func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

func (e *UnauthorizedError) Unwrap() error {
	return e.Cause
}
