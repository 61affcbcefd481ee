// Package cryptox holds the password KDF and secure random helpers.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize   = 16
	KeySize    = 32
	Iterations = 100_000
)

// RandomBytes returns n bytes from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("random bytes: %w", err)
	}
	return b, nil
}

// PasswordHasher derives PBKDF2-HMAC-SHA256 password hashes.
type PasswordHasher struct {
	iterations int
}

func NewPasswordHasher() *PasswordHasher {
	return &PasswordHasher{iterations: Iterations}
}

func (h *PasswordHasher) derive(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, h.iterations, KeySize, sha256.New)
}

// Hash returns the base64 encoded key and the fresh salt it was derived with.
func (h *PasswordHasher) Hash(password string) (string, []byte, error) {
	salt, err := RandomBytes(SaltSize)
	if err != nil {
		return "", nil, err
	}
	return base64.StdEncoding.EncodeToString(h.derive(password, salt)), salt, nil
}

// Verify re-derives the key for candidate and compares it in constant time.
// A hash that is not valid base64 is reported as an error, not a mismatch.
func (h *PasswordHasher) Verify(hash, candidate string, salt []byte) (bool, error) {
	stored, err := base64.StdEncoding.DecodeString(hash)
	if err != nil {
		return false, fmt.Errorf("decode password hash: %w", err)
	}
	derived := h.derive(candidate, salt)
	return subtle.ConstantTimeCompare(stored, derived) == 1, nil
}
