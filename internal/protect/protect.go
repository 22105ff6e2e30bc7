// Package protect provides purpose-scoped envelope encryption for secrets
// persisted at rest, such as provider access tokens.
//
// A protector derives its working key from the master key and a purpose
// string via HKDF-SHA256, so ciphertext produced under one purpose is opaque
// to protectors created for any other purpose.
package protect

import (
	crand "crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const keyLen = chacha20poly1305.KeySize

// ErrDecrypt indicates the ciphertext could not be opened: wrong key, wrong
// purpose, truncated or tampered data.
var ErrDecrypt = errors.New("protect: cannot decrypt")

// Protector encrypts and decrypts secrets under one purpose-scoped key.
type Protector struct {
	key []byte
}

// New derives a purpose-scoped protector from the master key.
func New(masterKey []byte, purpose string) (*Protector, error) {
	if len(masterKey) == 0 {
		return nil, errors.New("protect: master key is empty")
	}
	if purpose == "" {
		return nil, errors.New("protect: purpose is empty")
	}
	key := make([]byte, keyLen)
	r := hkdf.New(sha256.New, masterKey, nil, []byte(purpose))
	if _, err := r.Read(key); err != nil {
		return nil, fmt.Errorf("protect: derive key: %w", err)
	}
	return &Protector{key: key}, nil
}

// Encrypt seals the plaintext with XChaCha20-Poly1305 and a random nonce and
// returns an opaque base64 string suitable for a text column.
func (p *Protector) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(p.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := crand.Read(nonce); err != nil {
		return "", fmt.Errorf("protect: read nonce: %w", err)
	}
	out := make([]byte, 0, len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, nonce...)
	out = append(out, aead.Seal(nil, nonce, []byte(plaintext), nil)...)
	return base64.RawStdEncoding.EncodeToString(out), nil
}

// Decrypt opens a ciphertext produced by Encrypt under the same purpose.
func (p *Protector) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.RawStdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrDecrypt
	}
	if len(raw) < chacha20poly1305.NonceSizeX {
		return "", ErrDecrypt
	}
	aead, err := chacha20poly1305.NewX(p.key)
	if err != nil {
		return "", err
	}
	nonce := raw[:chacha20poly1305.NonceSizeX]
	ct := raw[chacha20poly1305.NonceSizeX:]
	plain, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", ErrDecrypt
	}
	return string(plain), nil
}
