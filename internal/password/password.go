// Package password hashes and verifies user passwords and generates random
// passwords honoring character-class constraints.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// VerifyResult reports the outcome of a password verification.
type VerifyResult int

const (
	// Failed means the password does not match the stored hash.
	Failed VerifyResult = iota
	// Success means the password matches and the hash is current.
	Success
	// SuccessRehashNeeded means the password matches but the hash was
	// produced with outdated parameters. The caller must rehash and
	// persist the new hash before the upgrade is durable.
	SuccessRehashNeeded
)

const hashCost = bcrypt.DefaultCost

// Hash returns the bcrypt hash of a plaintext password.
func Hash(plain string) (string, error) {
	if len(plain) == 0 {
		return "", errors.New("password: plaintext is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), hashCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Verify compares a plaintext password against a stored hash.
func Verify(plain, hash string) VerifyResult {
	if plain == "" || hash == "" {
		return Failed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)); err != nil {
		return Failed
	}
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil || cost < hashCost {
		return SuccessRehashNeeded
	}
	return Success
}
