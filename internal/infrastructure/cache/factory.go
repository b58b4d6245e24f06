package cache

import (
	"fmt"

	settingsapp "github.com/delivery/backend/internal/application/settings"
	"github.com/delivery/backend/internal/domain/shared"
	"github.com/delivery/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory builds the Redis-backed stores when Redis is enabled and
// reachable, and in-memory stores otherwise
type Factory struct {
	redisConfig           config.RedisConfig
	useRedis              bool
	logger                *zap.Logger
	allowInMemoryFallback bool

	client     *redis.Client
	ownsClient bool
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether an unreachable Redis degrades to
// in-memory stores. Default is true.
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// WithRedisClient reuses an existing client instead of dialing
func WithRedisClient(client *redis.Client) FactoryOption {
	return func(f *Factory) {
		f.client = client
	}
}

// NewFactory creates a new Factory
func NewFactory(redisCfg config.RedisConfig, useRedis bool, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           redisCfg,
		useRedis:              useRedis,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// redisClient returns the shared client, dialing on first use
func (f *Factory) redisClient() (*redis.Client, error) {
	if f.client != nil {
		return f.client, nil
	}
	client, err := NewRedisClient(f.redisConfig)
	if err != nil {
		return nil, err
	}
	f.client = client
	f.ownsClient = true
	return client, nil
}

// CreateIdempotencyStore returns the event idempotency store
func (f *Factory) CreateIdempotencyStore() (shared.IdempotencyStore, error) {
	if !f.useRedis {
		f.logger.Info("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	}

	client, err := f.redisClient()
	if err == nil {
		f.logger.Info("using Redis idempotency store", zap.String("addr", f.redisConfig.Addr()))
		return NewRedisIdempotencyStore(client, ""), nil
	}
	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for idempotency but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory idempotency store; "+
		"events may be handled twice when several instances run",
		zap.Error(err),
	)
	return NewInMemoryIdempotencyStore(), nil
}

// CreateSettingsCache returns the settings read cache
func (f *Factory) CreateSettingsCache() settingsapp.Cache {
	local := NewInMemorySettingsCache(defaultSettingsTTL)
	if !f.useRedis {
		return local
	}
	client, err := f.redisClient()
	if err != nil {
		f.logger.Warn("Redis unavailable, settings cache is process-local", zap.Error(err))
		return local
	}
	return NewTieredSettingsCache(local, NewRedisSettingsCache(client, defaultSettingsTTL, f.logger))
}

// Close releases the Redis client when the factory dialed it
func (f *Factory) Close() error {
	if f.client != nil && f.ownsClient {
		return f.client.Close()
	}
	return nil
}
