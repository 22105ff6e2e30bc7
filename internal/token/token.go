// Package token issues and validates the signed credentials used by the
// session subsystem: access, refresh and password-reset tokens.
//
// Tokens are stateless JWTs signed with HS256. Validity derives purely from
// the signature, the configured issuer/audience and the time window; the
// kind claim is carried but deliberately not enforced here, callers assert
// the kind acceptable for their endpoint.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Kind discriminates the three token variants via the "typ" claim.
type Kind string

const (
	KindAccess        Kind = "AccessToken"
	KindRefresh       Kind = "RefreshToken"
	KindPasswordReset Kind = "PasswordResetToken"
)

var (
	// ErrInvalidToken indicates the token failed validation. No further
	// detail is exposed to callers.
	ErrInvalidToken = errors.New("token: invalid token")

	// ErrResetIdentifierMissing indicates a password-reset token was
	// requested before the reset identifier was generated. This is a bug
	// in the calling code, not a user error.
	ErrResetIdentifierMissing = errors.New("token: password reset identifier must be set before issuing a reset token")

	// ErrConfiguration indicates missing or malformed signing settings.
	// Fatal at startup-adjacent call sites, never retried.
	ErrConfiguration = errors.New("token: configuration error")
)

// Claims is the flat claim set shared by all token kinds. Kind-specific
// fields are optional members, discriminated by Typ.
type Claims struct {
	Name              string `json:"name,omitempty"`
	Email             string `json:"email,omitempty"`
	Role              string `json:"role,omitempty"`
	Typ               Kind   `json:"typ"`
	PasswordResetGUID string `json:"passwordResetGuid,omitempty"`
	jwt.RegisteredClaims
}

// Subject carries the principal fields that end up in claims.
type Subject struct {
	ID              string
	FirstName       string
	LastName        string
	Email           string
	Role            string
	ResetIdentifier string
}

// Config holds signing parameters supplied by the configuration layer.
type Config struct {
	SigningKey []byte
	Issuer     string
	Audience   string
	ClockSkew  time.Duration
	TTLs       map[Kind]time.Duration
}

// Service signs and verifies tokens. Stateless and safe for concurrent use.
type Service struct {
	cfg Config
	now func() time.Time
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService validates the signing configuration and constructs a Service.
func NewService(cfg Config, opts ...Option) (*Service, error) {
	if len(cfg.SigningKey) == 0 {
		return nil, fmt.Errorf("%w: signing key is empty", ErrConfiguration)
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, fmt.Errorf("%w: issuer is empty", ErrConfiguration)
	}
	if strings.TrimSpace(cfg.Audience) == "" {
		return nil, fmt.Errorf("%w: audience is empty", ErrConfiguration)
	}
	s := &Service{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Issue signs a token of the given kind for the subject. The expiry window
// is kind-specific; a missing window is a configuration error. Issuing a
// password-reset token requires the subject's reset identifier to already
// be generated and persisted.
func (s *Service) Issue(kind Kind, sub Subject) (string, error) {
	switch kind {
	case KindAccess, KindRefresh, KindPasswordReset:
	default:
		return "", fmt.Errorf("%w: unsupported token kind %q", ErrConfiguration, kind)
	}
	ttl, ok := s.cfg.TTLs[kind]
	if !ok || ttl <= 0 {
		return "", fmt.Errorf("%w: expiration for token kind %q is not configured", ErrConfiguration, kind)
	}

	now := s.now().UTC()
	claims := Claims{
		Name:  strings.TrimSpace(sub.FirstName + " " + sub.LastName),
		Email: sub.Email,
		Role:  sub.Role,
		Typ:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Audience:  jwt.ClaimStrings{s.cfg.Audience},
			Subject:   sub.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	if kind == KindPasswordReset {
		if strings.TrimSpace(sub.ResetIdentifier) == "" {
			return "", ErrResetIdentifierMissing
		}
		claims.PasswordResetGUID = sub.ResetIdentifier
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SigningKey)
	if err != nil {
		return "", fmt.Errorf("token: sign: %w", err)
	}
	return signed, nil
}

// Validate verifies signature, issuer, audience and time window (with the
// configured clock skew) and returns the decoded claims. It does not check
// the kind claim; callers decide which kinds they accept.
func (s *Service) Validate(raw string) (*Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return s.cfg.SigningKey, nil
	},
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithAudience(s.cfg.Audience),
		jwt.WithLeeway(s.cfg.ClockSkew),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.Typ == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// IsExpired reports whether a raw token is unusable due to its time window.
// A token that does not parse at all counts as expired.
func (s *Service) IsExpired(raw string) bool {
	_, err := s.Validate(raw)
	return err != nil
}
