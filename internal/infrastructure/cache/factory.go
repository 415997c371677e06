package cache

import (
	"fmt"

	appbilling "github.com/coliving/backend/internal/application/billing"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Factory builds the Redis-backed components, or their in-memory fallbacks
type Factory struct {
	redisConfig           config.RedisConfig
	lockOptions           LockOptions
	logger                *zap.Logger
	allowInMemoryFallback bool
	connect               func(config.RedisConfig) (*redis.Client, error)
	client                *redis.Client
}

// FactoryOption is a functional option for configuring the factory
type FactoryOption func(*Factory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to in-memory components when Redis is unavailable
// Default is true (allow fallback)
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// WithLockOptions overrides the lock TTL and retry schedule
func WithLockOptions(opts LockOptions) FactoryOption {
	return func(f *Factory) {
		f.lockOptions = opts
	}
}

// NewFactory creates a new factory. Redis is contacted lazily, once.
func NewFactory(cfg config.RedisConfig, opts ...FactoryOption) *Factory {
	f := &Factory{
		redisConfig:           cfg,
		lockOptions:           DefaultLockOptions(),
		logger:                zap.NewNop(),
		allowInMemoryFallback: true, // Default to allowing fallback
		connect:               NewRedisClient,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Client returns the shared Redis client, or nil when Redis is disabled or unreachable
// and fallback is allowed
func (f *Factory) Client() (*redis.Client, error) {
	if f.client != nil {
		return f.client, nil
	}
	if !f.redisConfig.Enabled {
		return nil, nil
	}

	client, err := f.connect(f.redisConfig)
	if err != nil {
		if !f.allowInMemoryFallback {
			return nil, fmt.Errorf("Redis required but unavailable: %w", err)
		}
		// Fall back to in-memory with warning
		f.logger.Warn("Redis unavailable, falling back to in-memory components. "+
			"Bill locks and idempotency keys will not be shared between instances.",
			zap.Error(err),
		)
		return nil, nil
	}
	f.client = client
	return client, nil
}

// CreateBillLocker returns a redislock locker when Redis is available
func (f *Factory) CreateBillLocker() (appbilling.BillLocker, error) {
	client, err := f.Client()
	if err != nil {
		return nil, err
	}
	if client == nil {
		f.logger.Info("using in-memory bill locker")
		return NewInMemoryBillLocker(f.lockOptions), nil
	}
	f.logger.Info("using Redis bill locker")
	return NewRedisBillLocker(client, f.lockOptions, f.logger), nil
}

// CreateIdempotencyStore returns a Redis store when Redis is available
func (f *Factory) CreateIdempotencyStore() (shared.IdempotencyStore, error) {
	client, err := f.Client()
	if err != nil {
		return nil, err
	}
	if client == nil {
		f.logger.Info("using in-memory idempotency store")
		return NewInMemoryIdempotencyStore(), nil
	}
	f.logger.Info("using Redis idempotency store")
	return NewRedisIdempotencyStore(client, ""), nil
}

// Close releases the Redis client if one was opened
func (f *Factory) Close() error {
	if f.client == nil {
		return nil
	}
	return f.client.Close()
}
