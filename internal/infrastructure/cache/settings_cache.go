package cache

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	settingsapp "github.com/delivery/backend/internal/application/settings"
	"github.com/delivery/backend/internal/domain/settings"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultSettingsTTL     = 30 * time.Second
	settingsRedisKeyPrefix = "delivery:setting:"
)

type cacheEntry[T any] struct {
	value     T
	expiresAt time.Time
}

func (e cacheEntry[T]) isExpired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// InMemorySettingsCache keeps settings in process for a short TTL
type InMemorySettingsCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry[settings.Setting]
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemorySettingsCache creates an in-memory settings cache
func NewInMemorySettingsCache(ttl time.Duration) *InMemorySettingsCache {
	if ttl <= 0 {
		ttl = defaultSettingsTTL
	}
	return &InMemorySettingsCache{
		entries: make(map[string]cacheEntry[settings.Setting]),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns a cached setting
func (c *InMemorySettingsCache) Get(_ context.Context, key string) (*settings.Setting, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || e.isExpired(c.now()) {
		return nil, false
	}
	s := e.value
	return &s, true
}

// Set caches a setting
func (c *InMemorySettingsCache) Set(_ context.Context, s *settings.Setting) {
	if s == nil {
		return
	}
	c.mu.Lock()
	c.entries[s.Key] = cacheEntry[settings.Setting]{value: *s, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
}

// Invalidate drops a cached setting
func (c *InMemorySettingsCache) Invalidate(_ context.Context, key string) {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
}

// RedisSettingsCache shares cached settings between instances. Errors are
// logged and read as misses.
type RedisSettingsCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisSettingsCache creates a Redis settings cache
func NewRedisSettingsCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisSettingsCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisSettingsCache{client: client, ttl: ttl, logger: logger}
}

type redisSetting struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Get returns a cached setting
func (c *RedisSettingsCache) Get(ctx context.Context, key string) (*settings.Setting, bool) {
	data, err := c.client.Get(ctx, settingsRedisKeyPrefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("settings cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var rs redisSetting
	if err := json.Unmarshal(data, &rs); err != nil {
		c.logger.Warn("settings cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &settings.Setting{Key: rs.Key, Value: rs.Value, UpdatedAt: rs.UpdatedAt}, true
}

// Set caches a setting
func (c *RedisSettingsCache) Set(ctx context.Context, s *settings.Setting) {
	if s == nil {
		return
	}
	data, err := json.Marshal(redisSetting{Key: s.Key, Value: s.Value, UpdatedAt: s.UpdatedAt})
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, settingsRedisKeyPrefix+s.Key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("settings cache write failed", zap.String("key", s.Key), zap.Error(err))
	}
}

// Invalidate drops a cached setting
func (c *RedisSettingsCache) Invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, settingsRedisKeyPrefix+key).Err(); err != nil {
		c.logger.Warn("settings cache invalidation failed", zap.String("key", key), zap.Error(err))
	}
}

// TieredSettingsCache reads the local cache first, then Redis
type TieredSettingsCache struct {
	l1 settingsapp.Cache
	l2 settingsapp.Cache
}

// NewTieredSettingsCache combines a local and a shared cache
func NewTieredSettingsCache(l1, l2 settingsapp.Cache) *TieredSettingsCache {
	return &TieredSettingsCache{l1: l1, l2: l2}
}

// Get returns a cached setting, filling L1 on an L2 hit
func (c *TieredSettingsCache) Get(ctx context.Context, key string) (*settings.Setting, bool) {
	if s, ok := c.l1.Get(ctx, key); ok {
		return s, true
	}
	s, ok := c.l2.Get(ctx, key)
	if ok {
		c.l1.Set(ctx, s)
	}
	return s, ok
}

// Set writes both tiers
func (c *TieredSettingsCache) Set(ctx context.Context, s *settings.Setting) {
	c.l1.Set(ctx, s)
	c.l2.Set(ctx, s)
}

// Invalidate drops the key from both tiers
func (c *TieredSettingsCache) Invalidate(ctx context.Context, key string) {
	c.l1.Invalidate(ctx, key)
	c.l2.Invalidate(ctx, key)
}

var (
	_ settingsapp.Cache = (*InMemorySettingsCache)(nil)
	_ settingsapp.Cache = (*RedisSettingsCache)(nil)
	_ settingsapp.Cache = (*TieredSettingsCache)(nil)
)
