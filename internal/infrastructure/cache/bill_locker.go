package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	appbilling "github.com/coliving/backend/internal/application/billing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const billLockPrefix = "coliving:lock:"

// LockOptions tune how long a lock lives and how long Acquire waits for it
type LockOptions struct {
	TTL        time.Duration
	RetryEvery time.Duration
	MaxRetries int
}

// DefaultLockOptions waits up to about a second for a busy bill
func DefaultLockOptions() LockOptions {
	return LockOptions{
		TTL:        30 * time.Second,
		RetryEvery: 100 * time.Millisecond,
		MaxRetries: 10,
	}
}

// RedisBillLocker serializes bill regeneration across instances with redislock
type RedisBillLocker struct {
	locker *redislock.Client
	opts   LockOptions
	logger *zap.Logger
}

// NewRedisBillLocker creates a locker on a shared Redis client
func NewRedisBillLocker(client redislock.RedisClient, opts LockOptions, logger *zap.Logger) *RedisBillLocker {
	return &RedisBillLocker{
		locker: redislock.New(client),
		opts:   opts,
		logger: logger,
	}
}

// Acquire obtains the lock for key or returns ErrBillLocked once retries run out
func (l *RedisBillLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lock, err := l.locker.Obtain(ctx, billLockPrefix+key, l.opts.TTL, &redislock.Options{
		RetryStrategy: redislock.LimitRetry(redislock.LinearBackoff(l.opts.RetryEvery), l.opts.MaxRetries),
	})
	if err != nil {
		return nil, mapLockError(key, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := lock.Release(releaseCtx); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				l.logger.Warn("failed to release bill lock",
					zap.String("key", key),
					zap.Error(err),
				)
			}
		})
	}, nil
}

func mapLockError(key string, err error) error {
	if errors.Is(err, redislock.ErrNotObtained) {
		return appbilling.ErrBillLocked
	}
	return fmt.Errorf("failed to obtain lock %s: %w", key, err)
}

// InMemoryBillLocker is the single-instance fallback with the same waiting behavior
type InMemoryBillLocker struct {
	keys *ttlKeys
	opts LockOptions
}

// NewInMemoryBillLocker creates a process-local locker
func NewInMemoryBillLocker(opts LockOptions) *InMemoryBillLocker {
	return &InMemoryBillLocker{keys: newTTLKeys(time.Minute), opts: opts}
}

// Acquire obtains the lock for key or returns ErrBillLocked once retries run out
func (l *InMemoryBillLocker) Acquire(ctx context.Context, key string) (func(), error) {
	token := uuid.NewString()
	for attempt := 0; ; attempt++ {
		if l.keys.setNX(key, token, l.opts.TTL) {
			break
		}
		if attempt >= l.opts.MaxRetries {
			return nil, appbilling.ErrBillLocked
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(l.opts.RetryEvery):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() { l.keys.del(key, token) })
	}, nil
}

// Close stops the expiry sweeper
func (l *InMemoryBillLocker) Close() error {
	l.keys.close()
	return nil
}

var (
	_ appbilling.BillLocker = (*RedisBillLocker)(nil)
	_ appbilling.BillLocker = (*InMemoryBillLocker)(nil)
)
