package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist revokes tokens before they expire. Single tokens are
// revoked by JTI (logout, one-shot driver login links); a whole subject is
// revoked by a cut-off time when a driver is deleted or deactivated.
type TokenBlacklist interface {
	// Revoke rejects jti for ttl, which should be the token's remaining life
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// Consume revokes jti and reports whether this call did it first
	Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error)

	// RevokeSubject rejects every token of subject issued up to now
	RevokeSubject(ctx context.Context, subject string, ttl time.Duration) error
	SubjectRevoked(ctx context.Context, subject string, issuedAt time.Time) (bool, error)
}

// RedisTokenBlacklist shares revocations between API instances.
//
//	delivery:token:jti:<jti>      "1"
//	delivery:token:user:<subject> unix seconds of the cut-off
type RedisTokenBlacklist struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisTokenBlacklist(client *redis.Client) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{rdb: client, prefix: "delivery:token:"}
}

func (b *RedisTokenBlacklist) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := b.rdb.Set(ctx, b.prefix+"jti:"+jti, "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (b *RedisTokenBlacklist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := b.rdb.Exists(ctx, b.prefix+"jti:"+jti).Result()
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return n == 1, nil
}

// Consume relies on SETNX, so concurrent exchanges of one link race on a
// single key
func (b *RedisTokenBlacklist) Consume(ctx context.Context, jti string, ttl time.Duration) (bool, error) {
	first, err := b.rdb.SetNX(ctx, b.prefix+"jti:"+jti, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("consume token: %w", err)
	}
	return first, nil
}

func (b *RedisTokenBlacklist) RevokeSubject(ctx context.Context, subject string, ttl time.Duration) error {
	cutoff := strconv.FormatInt(time.Now().Unix(), 10)
	if err := b.rdb.Set(ctx, b.prefix+"user:"+subject, cutoff, ttl).Err(); err != nil {
		return fmt.Errorf("revoke subject %s: %w", subject, err)
	}
	return nil
}

func (b *RedisTokenBlacklist) SubjectRevoked(ctx context.Context, subject string, issuedAt time.Time) (bool, error) {
	cutoff, err := b.rdb.Get(ctx, b.prefix+"user:"+subject).Int64()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check revoked subject %s: %w", subject, err)
	}
	// iat has second precision, so a token minted in the cut-off second is revoked too
	return issuedAt.Unix() <= cutoff, nil
}

// InMemoryTokenBlacklist keeps revocations in process, for single-instance
// deployments without Redis and for tests
type InMemoryTokenBlacklist struct {
	mu       sync.Mutex
	expiry   map[string]time.Time
	cutoffAt map[string]time.Time
	now      func() time.Time
}

func NewInMemoryTokenBlacklist() *InMemoryTokenBlacklist {
	return &InMemoryTokenBlacklist{
		expiry:   make(map[string]time.Time),
		cutoffAt: make(map[string]time.Time),
		now:      time.Now,
	}
}

func (b *InMemoryTokenBlacklist) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	b.mu.Lock()
	b.expiry[jti] = b.now().Add(ttl)
	b.mu.Unlock()
	return nil
}

func (b *InMemoryTokenBlacklist) IsRevoked(_ context.Context, jti string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live(jti), nil
}

func (b *InMemoryTokenBlacklist) Consume(_ context.Context, jti string, ttl time.Duration) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.live(jti) {
		return false, nil
	}
	b.expiry[jti] = b.now().Add(ttl)
	return true, nil
}

// live reports an unexpired entry and drops an expired one. Callers hold mu.
func (b *InMemoryTokenBlacklist) live(jti string) bool {
	exp, ok := b.expiry[jti]
	if ok && b.now().Before(exp) {
		return true
	}
	delete(b.expiry, jti)
	return false
}

// RevokeSubject ignores ttl; cut-offs live as long as the process
func (b *InMemoryTokenBlacklist) RevokeSubject(_ context.Context, subject string, _ time.Duration) error {
	b.mu.Lock()
	b.cutoffAt[subject] = b.now()
	b.mu.Unlock()
	return nil
}

func (b *InMemoryTokenBlacklist) SubjectRevoked(_ context.Context, subject string, issuedAt time.Time) (bool, error) {
	b.mu.Lock()
	cutoff, ok := b.cutoffAt[subject]
	b.mu.Unlock()
	return ok && !issuedAt.After(cutoff), nil
}

var (
	_ TokenBlacklist = (*RedisTokenBlacklist)(nil)
	_ TokenBlacklist = (*InMemoryTokenBlacklist)(nil)
)
