package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/GogiGunia/Toolidol/internal/obs"
	"github.com/GogiGunia/Toolidol/internal/password"
	"github.com/GogiGunia/Toolidol/internal/token"
)

const resetIdentifierTTL = time.Hour

// LoginResult maps expected login failures to explicit outcomes instead of
// errors; infrastructure failures are still reported through the error.
type LoginResult int

const (
	LoginOK LoginResult = iota
	LoginUserNotFound
	LoginInvalidCredentials
)

// TokenPair is the credential bundle handed to a client on authentication
// or refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Service implements principal lifecycle operations on top of a Store.
type Service struct {
	store  Store
	tokens *token.Service
	now    func() time.Time
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

// NewService constructs the user service.
func NewService(store Store, tokens *token.Service, opts ...Option) *Service {
	s := &Service{store: store, tokens: tokens, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register creates a new principal with a hashed password.
func (s *Service) Register(ctx context.Context, email, firstName, lastName, plain string, role Role) (*User, error) {
	email = strings.TrimSpace(email)
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if email == "" || firstName == "" || lastName == "" || plain == "" {
		return nil, ErrInvalidInput
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	exists, err := s.store.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrAlreadyExists
	}

	hash, err := password.Hash(plain)
	if err != nil {
		return nil, err
	}
	u := &User{
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.store.Create(ctx, u); err != nil {
		return nil, err
	}
	obs.LogEvent("info", "user.registered", map[string]any{"user_id": u.ID, "role": string(u.Role)})
	return u, nil
}

// Login verifies credentials. A matching password hashed under outdated
// parameters is rehashed and persisted before the login is reported
// successful; the upgrade is part of the login, not optional housekeeping.
func (s *Service) Login(ctx context.Context, email, plain string) (*User, LoginResult, error) {
	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			obs.LoginFailed()
			return nil, LoginUserNotFound, nil
		}
		return nil, LoginInvalidCredentials, err
	}

	switch password.Verify(plain, u.PasswordHash) {
	case password.Failed:
		obs.LoginFailed()
		return nil, LoginInvalidCredentials, nil
	case password.SuccessRehashNeeded:
		newHash, err := password.Hash(plain)
		if err != nil {
			return nil, LoginInvalidCredentials, err
		}
		if err := s.store.UpdatePasswordHash(ctx, u.ID, newHash); err != nil {
			return nil, LoginInvalidCredentials, err
		}
		u.PasswordHash = newHash
		obs.LogEvent("info", "user.password_rehashed", map[string]any{"user_id": u.ID})
	}
	return u, LoginOK, nil
}

// IssuePair mints a fresh access/refresh token pair for the principal.
func (s *Service) IssuePair(u *User) (TokenPair, error) {
	sub := u.TokenSubject()
	access, err := s.tokens.Issue(token.KindAccess, sub)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := s.tokens.Issue(token.KindRefresh, sub)
	if err != nil {
		return TokenPair{}, err
	}
	obs.TokenIssued(string(token.KindAccess))
	obs.TokenIssued(string(token.KindRefresh))
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// RefreshPair rotates the session for the holder of a validated refresh
// token. The principal is re-read so a role change since login lands in the
// new pair.
func (s *Service) RefreshPair(ctx context.Context, claims *token.Claims) (*User, TokenPair, error) {
	if claims == nil || claims.Typ != token.KindRefresh {
		return nil, TokenPair{}, token.ErrInvalidToken
	}
	u, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.IssuePair(u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return u, pair, nil
}

// BeginPasswordReset generates and persists a single-use reset identifier,
// then issues a reset token bound to it. The identifier must be stored
// before the token is created; the token service enforces this ordering.
func (s *Service) BeginPasswordReset(ctx context.Context, email string) (string, error) {
	u, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	identifier := strings.ReplaceAll(uuid.NewString(), "-", "")
	expiry := s.now().UTC().Add(resetIdentifierTTL)
	if err := s.store.SetResetIdentifier(ctx, u.ID, identifier, expiry); err != nil {
		return "", err
	}
	u.ResetIdentifier = identifier
	u.ResetExpiry = &expiry

	raw, err := s.tokens.Issue(token.KindPasswordReset, u.TokenSubject())
	if err != nil {
		return "", err
	}
	obs.TokenIssued(string(token.KindPasswordReset))
	obs.LogEvent("info", "user.password_reset_started", map[string]any{"user_id": u.ID})
	return raw, nil
}

// CompletePasswordReset consumes a validated reset token: the bound
// identifier must match the one on record and be within its expiry window.
// On success the password is rehashed and the identifier cleared, making the
// token single-use.
func (s *Service) CompletePasswordReset(ctx context.Context, claims *token.Claims, newPassword string) error {
	if claims == nil || claims.Typ != token.KindPasswordReset {
		return token.ErrInvalidToken
	}
	if newPassword == "" {
		return ErrInvalidInput
	}

	u, err := s.store.FindByID(ctx, claims.Subject)
	if err != nil {
		return err
	}
	if u.ResetIdentifier == "" || u.ResetIdentifier != claims.PasswordResetGUID {
		return ErrResetInvalid
	}
	if u.ResetExpiry == nil || s.now().UTC().After(*u.ResetExpiry) {
		return ErrResetInvalid
	}

	hash, err := password.Hash(newPassword)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}
	if err := s.store.ClearResetIdentifier(ctx, u.ID); err != nil {
		return err
	}
	obs.LogEvent("info", "user.password_reset_completed", map[string]any{"user_id": u.ID})
	return nil
}

// EnsureInitialAdmin bootstraps the very first admin account with a
// generated password when the user table is empty. The password is printed
// to the log once; it cannot be recovered later.
func (s *Service) EnsureInitialAdmin(ctx context.Context, email string) error {
	hasAny, err := s.store.HasAny(ctx)
	if err != nil {
		return err
	}
	if hasAny {
		return nil
	}

	plain, err := password.Generate(password.GenerateOptions{
		Length:           16,
		PunctuationCount: 2,
		Lowercase:        true,
		Uppercase:        true,
		Digit:            true,
	})
	if err != nil {
		return err
	}
	u, err := s.Register(ctx, email, "Global", "Admin", plain, RoleAdmin)
	if err != nil {
		return err
	}
	obs.LogEvent("warn", "user.initial_admin_created", map[string]any{
		"user_id":          u.ID,
		"email":            email,
		"initial_password": plain,
	})
	return nil
}
