// Package cryptox implements the credential capability: bcrypt password
// hashing with constant-time compare, and generation of random secrets used
// for confirmation hashes and provider shadow passwords.
package cryptox

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// BcryptHasher hashes passwords with bcrypt.
type BcryptHasher struct {
	// Cost overrides bcrypt.DefaultCost when > 0. Tests lower it.
	Cost int
}

// NewBcryptHasher returns a hasher at the default cost.
func NewBcryptHasher() *BcryptHasher {
	return &BcryptHasher{}
}

func (h *BcryptHasher) cost() int {
	if h.Cost > 0 {
		return h.Cost
	}
	return bcrypt.DefaultCost
}

// Hash returns the bcrypt digest of secret.
func (h *BcryptHasher) Hash(secret string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(secret), h.cost())
	if err != nil {
		return "", fmt.Errorf("failed to hash secret: %w", err)
	}
	return string(digest), nil
}

// Compare reports whether secret matches digest. bcrypt's comparison is
// constant time.
func (h *BcryptHasher) Compare(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}

// RandomToken returns an unguessable random string. Used for the shadow
// password of provider-created accounts, which the user only ever sees via
// the generated-password mail.
func (h *BcryptHasher) RandomToken() string {
	return uuid.NewString()
}
