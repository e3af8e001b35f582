// Package token encodes and verifies the signed bearer tokens issued to
// authenticated users. Access and refresh tokens are signed with independent
// HMAC secrets so one kind can never be decoded as the other.
package token

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Kind identifies the token class and selects the signing secret.
type Kind string

const (
	// KindAccess marks short-lived tokens that authorize individual calls.
	KindAccess Kind = "access"
	// KindRefresh marks long-lived tokens used only to obtain new access tokens.
	KindRefresh Kind = "refresh"
)

// Default lifetimes.
const (
	DefaultAccessTTL  = time.Hour
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

var (
	// ErrInvalidSignature indicates the MAC did not verify under the kind's secret.
	ErrInvalidSignature = errors.New("token: invalid signature")
	// ErrExpired indicates the token is past its expiry.
	ErrExpired = errors.New("token: expired")
	// ErrMalformed indicates the token could not be parsed into the claim set.
	ErrMalformed = errors.New("token: malformed")
	// ErrUnknownKind is returned for kinds other than access and refresh.
	ErrUnknownKind = errors.New("token: unknown kind")
)

// Identity is the caller-supplied part of the claim set.
type Identity struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	Email  string `json:"email"`
}

// Claims is the full payload carried by a token.
type Claims struct {
	Identity
	Type Kind `json:"type"`
	jwt.RegisteredClaims
}

// IssuedAt returns the iat claim, or the zero time when absent.
func (c *Claims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.IssuedAt.Time
}

// ExpiresAt returns the exp claim, or the zero time when absent.
func (c *Claims) ExpiresAt() time.Time {
	if c.RegisteredClaims.ExpiresAt == nil {
		return time.Time{}
	}
	return c.RegisteredClaims.ExpiresAt.Time
}

// Pair bundles the tokens returned on login.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Config is the immutable signing configuration fixed at startup.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Codec signs and verifies tokens. It holds no mutable state and is safe for
// concurrent use.
type Codec struct {
	secrets map[Kind][]byte
	ttls    map[Kind]time.Duration
	issuer  string
	now     func() time.Time
}

// NewCodec validates cfg and builds a Codec. The secrets are copied so later
// mutation of cfg has no effect.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 {
		return nil, errors.New("token: access secret is required")
	}
	if len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("token: refresh secret is required")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("token: access and refresh secrets must differ")
	}
	accessTTL := cfg.AccessTTL
	if accessTTL == 0 {
		accessTTL = DefaultAccessTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL == 0 {
		refreshTTL = DefaultRefreshTTL
	}
	if accessTTL < 0 || refreshTTL < 0 {
		return nil, errors.New("token: ttl must be positive")
	}
	return &Codec{
		secrets: map[Kind][]byte{
			KindAccess:  append([]byte(nil), cfg.AccessSecret...),
			KindRefresh: append([]byte(nil), cfg.RefreshSecret...),
		},
		ttls: map[Kind]time.Duration{
			KindAccess:  accessTTL,
			KindRefresh: refreshTTL,
		},
		issuer: cfg.Issuer,
		now:    time.Now,
	}, nil
}

// WithClock returns a copy of the codec reading time from now. Used by tests
// and by callers that need a fixed issuance instant.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	clone := *c
	clone.now = now
	return &clone
}

// TTL reports the configured lifetime for kind.
func (c *Codec) TTL(kind Kind) time.Duration {
	return c.ttls[kind]
}

// Encode signs identity as a token of the given kind valid for ttl.
func (c *Codec) Encode(identity Identity, kind Kind, ttl time.Duration) (string, error) {
	secret, ok := c.secrets[kind]
	if !ok {
		return "", ErrUnknownKind
	}
	if ttl <= 0 {
		return "", fmt.Errorf("token: ttl must be positive, got %s", ttl)
	}
	// Truncated so a decoded token compares equal to what was signed.
	issuedAt := c.now().Truncate(time.Second)
	claims := &Claims{
		Identity: identity,
		Type:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("token: sign %s: %w", kind, err)
	}
	return signed, nil
}

// Decode verifies raw with the secret bound to kind and returns its claims.
// Errors are always one of ErrInvalidSignature, ErrExpired, ErrMalformed or
// ErrUnknownKind.
func (c *Codec) Decode(raw string, kind Kind) (*Claims, error) {
	secret, ok := c.secrets[kind]
	if !ok {
		return nil, ErrUnknownKind
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	}, opts...)
	if err != nil {
		return nil, classify(err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}
	return claims, nil
}

// IssuePair encodes one access and one refresh token for identity using the
// configured lifetimes.
func (c *Codec) IssuePair(identity Identity) (Pair, error) {
	access, err := c.Encode(identity, KindAccess, c.ttls[KindAccess])
	if err != nil {
		return Pair{}, err
	}
	refresh, err := c.Encode(identity, KindRefresh, c.ttls[KindRefresh])
	if err != nil {
		return Pair{}, err
	}
	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
