package user

import (
	"context"
	"time"
)

// Store describes persistence operations required by the user subsystem.
type Store interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	HasAny(ctx context.Context) (bool, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
	SetResetIdentifier(ctx context.Context, userID, identifier string, expiry time.Time) error
	ClearResetIdentifier(ctx context.Context, userID string) error
}
