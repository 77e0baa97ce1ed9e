// Package security hashes credentials and issues the signed session tokens.
//
// Tokens are signed with a single shared secret and only provide session continuity for the
// browser that holds them. They are verified on every request by this server, which is the only
// holder of the secret.
package security

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// DefaultCost is the bcrypt work factor used when none is configured.
const DefaultCost = 12

// Hasher turns plaintext passwords into self-describing bcrypt hashes.
type Hasher struct {
	cost int
}

// NewHasher returns a Hasher with the given cost. Out of range values fall back to DefaultCost.
func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash salts and hashes plaintext. Every call uses a fresh salt.
func (h *Hasher) Hash(plaintext string) (string, error) {
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("security: password too long: %w", err)
		}
		return "", fmt.Errorf("security: hash: %w", err)
	}
	return string(out), nil
}

// Verify reports whether plaintext matches hash. Malformed or empty hashes never match.
func (h *Hasher) Verify(plaintext, hash string) bool {
	if hash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
