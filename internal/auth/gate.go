package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/inkpress/inkpress/internal/platform/httpx"
	"github.com/inkpress/inkpress/internal/shared"
	"github.com/inkpress/inkpress/internal/token"
)

// BearerPrefix is the literal scheme prefix expected in the Authorization
// header. The comparison is case-sensitive.
const BearerPrefix = "bearer "

// AccessTokenValidator validates access tokens.
type AccessTokenValidator interface {
	ValidateAccessToken(raw string) (*token.Claims, error)
}

// Gate authenticates requests to protected routes.
type Gate struct {
	validator AccessTokenValidator
}

// NewGate constructs a Gate.
func NewGate(validator AccessTokenValidator) *Gate {
	return &Gate{validator: validator}
}

// Authenticate checks an Authorization header value. It returns
// ErrUnauthenticated when the header is missing or lacks the bearer prefix,
// and an error matching ErrUnauthorized when the token is rejected.
func (g *Gate) Authenticate(header string) (shared.Principal, error) {
	if !strings.HasPrefix(header, BearerPrefix) {
		return shared.Principal{}, ErrUnauthenticated
	}
	claims, err := g.validator.ValidateAccessToken(strings.TrimPrefix(header, BearerPrefix))
	if err != nil {
		if !errors.Is(err, ErrUnauthorized) {
			err = &UnauthorizedError{Cause: err}
		}
		return shared.Principal{}, err
	}
	return shared.Principal{
		UserID: claims.UserID,
		Role:   claims.Role,
		Email:  claims.Email,
	}, nil
}

// Middleware rejects unauthenticated requests and stores the principal in
// the request context.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := g.Authenticate(r.Header.Get("Authorization"))
		if err != nil {
			if errors.Is(err, ErrUnauthenticated) {
				httpx.Fail(w, http.StatusUnauthorized, "not_authenticated", "Invalid or missing authorization header")
				return
			}
			httpx.Fail(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token: "+unauthorizedCause(err))
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

func unauthorizedCause(err error) string {
	var ue *UnauthorizedError
	if errors.As(err, &ue) && ue.Cause != nil {
		return ue.Cause.Error()
	}
	return err.Error()
}
