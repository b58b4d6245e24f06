package order

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/delivery/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// IdempotencyKey remembers which order a client token produced so a
// retried checkout returns the first order instead of creating another.
type IdempotencyKey struct {
	Key         string
	OrderID     uuid.UUID
	RequestHash string
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// NewIdempotencyKey creates a key bound to an order and a request fingerprint
func NewIdempotencyKey(key string, orderID uuid.UUID, requestHash string, ttl time.Duration) (*IdempotencyKey, error) {
	key = strings.TrimSpace(key)
	if key == "" || len(key) > 128 {
		return nil, shared.NewDomainError("INVALID_IDEMPOTENCY_KEY", "Idempotency key must be 1 to 128 characters")
	}
	now := time.Now()
	return &IdempotencyKey{
		Key:         key,
		OrderID:     orderID,
		RequestHash: requestHash,
		ExpiresAt:   now.Add(ttl),
		CreatedAt:   now,
	}, nil
}

// IsExpired reports whether the key may be reused
func (k *IdempotencyKey) IsExpired(now time.Time) bool {
	return !now.Before(k.ExpiresAt)
}

// Matches reports whether a replayed request carries the same payload
func (k *IdempotencyKey) Matches(requestHash string) bool {
	return k.RequestHash == "" || k.RequestHash == requestHash
}

// HashRequest fingerprints a canonical request body
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}
