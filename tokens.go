package kumoridisk

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// ConfirmationHashTTL bounds the lifetime of an email-confirmation hash.
const ConfirmationHashTTL = 3600 * time.Second

// TokenKind distinguishes the two halves of a TokenPair.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenPair is a signed access/refresh token pair. Both tokens are stateless
// and independently verifiable; the payload is the subject user id.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// TokenIssuer creates and verifies the signed session tokens.
type TokenIssuer interface {
	// Issue signs a token of the given kind for the subject user id.
	Issue(subject string, kind TokenKind) (string, error)

	// IssuePair signs an access/refresh pair for the subject user id.
	IssuePair(subject string) (*TokenPair, error)

	// Verify checks signature, expiry and kind, returning the subject.
	Verify(token string, kind TokenKind) (string, error)
}

// GenerateConfirmationHash returns a 256-bit random hash, hex encoded.
func GenerateConfirmationHash() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate confirmation hash: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// ConfirmationToken is the ephemeral record proving a pending email
// confirmation. It has no table of its own: it lives in the TokenCache and
// expires there, but it is a first-class type so its single-use and TTL
// semantics are testable apart from whatever backs the cache.
type ConfirmationToken struct {
	Hash   string
	UserID string
}

// ConfirmationStore issues and consumes confirmation tokens on top of a
// TokenCache.
type ConfirmationStore struct {
	cache TokenCache
	ttl   time.Duration
}

// NewConfirmationStore creates a store with the default TTL.
func NewConfirmationStore(cache TokenCache) *ConfirmationStore {
	return &ConfirmationStore{cache: cache, ttl: ConfirmationHashTTL}
}

// NewConfirmationStoreTTL creates a store with an explicit TTL.
func NewConfirmationStoreTTL(cache TokenCache, ttl time.Duration) *ConfirmationStore {
	return &ConfirmationStore{cache: cache, ttl: ttl}
}

// Issue generates a fresh token for the user and stores it with the TTL.
func (s *ConfirmationStore) Issue(ctx context.Context, userID string) (*ConfirmationToken, error) {
	hash, err := GenerateConfirmationHash()
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, hash, userID, s.ttl); err != nil {
		return nil, fmt.Errorf("failed to store confirmation hash: %w", err)
	}
	return &ConfirmationToken{Hash: hash, UserID: userID}, nil
}

// Consume resolves a hash to its token and deletes it immediately, before
// the caller validates anything else. A concurrent duplicate request must
// observe the miss; that is what makes confirmation at-most-once.
func (s *ConfirmationStore) Consume(ctx context.Context, hash string) (*ConfirmationToken, error) {
	userID, err := s.cache.Get(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to look up confirmation hash: %w", err)
	}
	if userID == "" {
		return nil, ErrInvalidConfirmationHash
	}
	if err := s.cache.Delete(ctx, hash); err != nil {
		return nil, fmt.Errorf("failed to consume confirmation hash: %w", err)
	}
	return &ConfirmationToken{Hash: hash, UserID: userID}, nil
}
