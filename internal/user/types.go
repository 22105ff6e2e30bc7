// Package user manages principals: registration, credential verification
// and the password-reset lifecycle.
package user

import (
	"errors"
	"fmt"
	"time"

	"github.com/GogiGunia/Toolidol/internal/token"
)

// Role is the principal's immutable role, assigned at registration.
type Role string

const (
	RoleAdmin        Role = "Admin"
	RoleBusinessUser Role = "BusinessUser"
	RoleClientUser   Role = "ClientUser"
)

// ParseRole validates a role string against the closed set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleBusinessUser, RoleClientUser:
		return Role(s), nil
	default:
		return "", fmt.Errorf("user: unknown role %q", s)
	}
}

// User is a principal record. PasswordHash mutates on password change or
// rehash-on-verify; the reset identifier is set when a reset flow begins and
// cleared when it is consumed.
type User struct {
	ID              string
	Email           string
	FirstName       string
	LastName        string
	PasswordHash    string
	ResetIdentifier string
	ResetExpiry     *time.Time
	Role            Role
	CreatedAt       time.Time
}

// TokenSubject maps the principal onto the claim fields the token service
// embeds.
func (u User) TokenSubject() token.Subject {
	return token.Subject{
		ID:              u.ID,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Email:           u.Email,
		Role:            string(u.Role),
		ResetIdentifier: u.ResetIdentifier,
	}
}

var (
	ErrNotFound      = errors.New("user: not found")
	ErrAlreadyExists = errors.New("user: already exists")
	ErrInvalidInput  = errors.New("user: invalid input")

	// ErrResetInvalid covers every way a password-reset attempt can be
	// stale: no identifier on record, mismatch, or expired window.
	ErrResetInvalid = errors.New("user: password reset identifier is invalid or expired")
)
