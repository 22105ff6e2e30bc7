package user

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/GogiGunia/Toolidol/internal/ids"
	"github.com/GogiGunia/Toolidol/internal/token"
)

// fakeStore is an in-memory Store for service tests.
type fakeStore struct {
	users map[string]*User // keyed by id
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: make(map[string]*User)}
}

func (f *fakeStore) Create(_ context.Context, u *User) error {
	if u.ID == "" {
		u.ID = ids.New()
	}
	cp := *u
	f.users[u.ID] = &cp
	return nil
}

func (f *fakeStore) FindByID(_ context.Context, id string) (*User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) FindByEmail(_ context.Context, email string) (*User, error) {
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fakeStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := f.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (f *fakeStore) HasAny(_ context.Context) (bool, error) {
	return len(f.users) > 0, nil
}

func (f *fakeStore) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	u, ok := f.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (f *fakeStore) SetResetIdentifier(_ context.Context, userID, identifier string, expiry time.Time) error {
	u, ok := f.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.ResetIdentifier = identifier
	u.ResetExpiry = &expiry
	return nil
}

func (f *fakeStore) ClearResetIdentifier(_ context.Context, userID string) error {
	u, ok := f.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.ResetIdentifier = ""
	u.ResetExpiry = nil
	return nil
}

func testTokenService(t *testing.T) *token.Service {
	t.Helper()
	svc, err := token.NewService(token.Config{
		SigningKey: []byte("0123456789abcdef0123456789abcdef"),
		Issuer:     "toolidol-test",
		Audience:   "toolidol-web",
		ClockSkew:  5 * time.Second,
		TTLs: map[token.Kind]time.Duration{
			token.KindAccess:        15 * time.Minute,
			token.KindRefresh:       24 * time.Hour,
			token.KindPasswordReset: time.Hour,
		},
	})
	if err != nil {
		t.Fatalf("token.NewService: %v", err)
	}
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, testTokenService(t))
	ctx := context.Background()

	u, err := svc.Register(ctx, "a@b.com", "Ada", "Lovelace", "open-sesame-1!", RoleAdmin)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.ID == "" || u.PasswordHash == "open-sesame-1!" {
		t.Fatalf("registration did not hash the password: %+v", u)
	}

	got, result, err := svc.Login(ctx, "A@B.COM", "open-sesame-1!")
	if err != nil || result != LoginOK {
		t.Fatalf("Login: result=%v err=%v", result, err)
	}
	if got.ID != u.ID {
		t.Fatalf("unexpected principal: %+v", got)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, testTokenService(t))
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@b.com", "Ada", "Lovelace", "pw-123456!", RoleClientUser); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, "a@b.com", "Other", "Person", "pw-123456!", RoleClientUser); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestLoginOutcomes(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, testTokenService(t))
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@b.com", "Ada", "Lovelace", "correct-pw-1!", RoleClientUser); err != nil {
		t.Fatalf("Register: %v", err)
	}

	_, result, err := svc.Login(ctx, "missing@b.com", "whatever")
	if err != nil || result != LoginUserNotFound {
		t.Fatalf("expected LoginUserNotFound, got result=%v err=%v", result, err)
	}

	_, result, err = svc.Login(ctx, "a@b.com", "wrong-pw")
	if err != nil || result != LoginInvalidCredentials {
		t.Fatalf("expected LoginInvalidCredentials, got result=%v err=%v", result, err)
	}
}

func TestLoginRehashesOutdatedHash(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, testTokenService(t))
	ctx := context.Background()

	low, err := bcrypt.GenerateFromPassword([]byte("legacy-pw-9!"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	u := &User{Email: "a@b.com", FirstName: "Ada", LastName: "Lovelace", PasswordHash: string(low), Role: RoleClientUser}
	if err := store.Create(ctx, u); err != nil {
		t.Fatalf("store.Create: %v", err)
	}

	got, result, err := svc.Login(ctx, "a@b.com", "legacy-pw-9!")
	if err != nil || result != LoginOK {
		t.Fatalf("Login: result=%v err=%v", result, err)
	}
	if got.PasswordHash == string(low) {
		t.Fatalf("expected hash to be upgraded during login")
	}
	stored, _ := store.FindByID(ctx, u.ID)
	if stored.PasswordHash == string(low) {
		t.Fatalf("upgraded hash was not persisted")
	}
	cost, err := bcrypt.Cost([]byte(stored.PasswordHash))
	if err != nil || cost < bcrypt.DefaultCost {
		t.Fatalf("persisted hash has cost %d (err=%v)", cost, err)
	}
}

func TestIssuePair(t *testing.T) {
	store := newFakeStore()
	tokens := testTokenService(t)
	svc := NewService(store, tokens)
	ctx := context.Background()

	u, err := svc.Register(ctx, "a@b.com", "Ada", "Lovelace", "pw-123456!", RoleBusinessUser)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	pair, err := svc.IssuePair(u)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	access, err := tokens.Validate(pair.AccessToken)
	if err != nil || access.Typ != token.KindAccess {
		t.Fatalf("access token invalid: typ=%v err=%v", access, err)
	}
	refresh, err := tokens.Validate(pair.RefreshToken)
	if err != nil || refresh.Typ != token.KindRefresh {
		t.Fatalf("refresh token invalid: typ=%v err=%v", refresh, err)
	}
	if access.Subject != u.ID || refresh.Subject != u.ID {
		t.Fatalf("token subjects do not match principal")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	store := newFakeStore()
	tokens := testTokenService(t)
	svc := NewService(store, tokens)
	ctx := context.Background()

	u, err := svc.Register(ctx, "a@b.com", "Ada", "Lovelace", "old-pw-123!", RoleClientUser)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	raw, err := svc.BeginPasswordReset(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("BeginPasswordReset: %v", err)
	}
	claims, err := tokens.Validate(raw)
	if err != nil {
		t.Fatalf("Validate reset token: %v", err)
	}
	if claims.Typ != token.KindPasswordReset || claims.PasswordResetGUID == "" {
		t.Fatalf("unexpected reset claims: %+v", claims)
	}

	if err := svc.CompletePasswordReset(ctx, claims, "new-pw-456!"); err != nil {
		t.Fatalf("CompletePasswordReset: %v", err)
	}

	// New password works, old one does not.
	if _, result, _ := svc.Login(ctx, "a@b.com", "new-pw-456!"); result != LoginOK {
		t.Fatalf("expected login with new password, got %v", result)
	}
	if _, result, _ := svc.Login(ctx, "a@b.com", "old-pw-123!"); result != LoginInvalidCredentials {
		t.Fatalf("expected old password rejected, got %v", result)
	}

	// The identifier is single-use: replaying the token fails.
	if err := svc.CompletePasswordReset(ctx, claims, "again-789!"); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("expected ErrResetInvalid on replay, got %v", err)
	}
	_ = u
}

func TestPasswordResetExpiredIdentifier(t *testing.T) {
	store := newFakeStore()
	tokens := testTokenService(t)

	base := time.Now()
	clock := base
	svc := NewService(store, tokens, WithClock(func() time.Time { return clock }))
	ctx := context.Background()

	if _, err := svc.Register(ctx, "a@b.com", "Ada", "Lovelace", "old-pw-123!", RoleClientUser); err != nil {
		t.Fatalf("Register: %v", err)
	}
	raw, err := svc.BeginPasswordReset(ctx, "a@b.com")
	if err != nil {
		t.Fatalf("BeginPasswordReset: %v", err)
	}
	claims, err := tokens.Validate(raw)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}

	clock = base.Add(2 * time.Hour)
	if err := svc.CompletePasswordReset(ctx, claims, "new-pw-456!"); !errors.Is(err, ErrResetInvalid) {
		t.Fatalf("expected ErrResetInvalid for expired identifier, got %v", err)
	}
}

func TestEnsureInitialAdmin(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, testTokenService(t))
	ctx := context.Background()

	if err := svc.EnsureInitialAdmin(ctx, "admin@toolidol.com"); err != nil {
		t.Fatalf("EnsureInitialAdmin: %v", err)
	}
	u, err := store.FindByEmail(ctx, "admin@toolidol.com")
	if err != nil {
		t.Fatalf("admin not created: %v", err)
	}
	if u.Role != RoleAdmin {
		t.Fatalf("expected Admin role, got %s", u.Role)
	}

	// Idempotent once any user exists.
	if err := svc.EnsureInitialAdmin(ctx, "admin@toolidol.com"); err != nil {
		t.Fatalf("second EnsureInitialAdmin: %v", err)
	}
	if len(store.users) != 1 {
		t.Fatalf("expected exactly one user, got %d", len(store.users))
	}
}

func TestRefreshPair(t *testing.T) {
	store := newFakeStore()
	tokens := testTokenService(t)
	svc := NewService(store, tokens)
	ctx := context.Background()

	u, err := svc.Register(ctx, "a@b.com", "Ada", "Lovelace", "open-sesame-1!", RoleBusinessUser)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	pair, err := svc.IssuePair(u)
	if err != nil {
		t.Fatalf("IssuePair: %v", err)
	}

	refreshClaims, err := tokens.Validate(pair.RefreshToken)
	if err != nil {
		t.Fatalf("Validate refresh: %v", err)
	}
	got, newPair, err := svc.RefreshPair(ctx, refreshClaims)
	if err != nil {
		t.Fatalf("RefreshPair: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("unexpected principal: %+v", got)
	}
	if newPair.AccessToken == "" || newPair.RefreshToken == "" {
		t.Fatal("expected a full new pair")
	}

	// An access token must not rotate the session.
	accessClaims, err := tokens.Validate(pair.AccessToken)
	if err != nil {
		t.Fatalf("Validate access: %v", err)
	}
	if _, _, err := svc.RefreshPair(ctx, accessClaims); !errors.Is(err, token.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for access-kind claims, got %v", err)
	}
}
