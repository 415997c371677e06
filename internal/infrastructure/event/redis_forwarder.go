package event

import (
	"context"
	"fmt"
	"time"

	"github.com/coliving/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisPublisher is the part of *redis.Client the forwarder needs
type RedisPublisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisForwarder publishes billing events to a Redis pub/sub channel for
// out-of-process consumers such as cmd/notifier
type RedisForwarder struct {
	client     RedisPublisher
	channel    string
	serializer *EventSerializer
	logger     *zap.Logger
	attempts   int
	backoff    time.Duration
}

// NewRedisForwarder creates a forwarder for channel
func NewRedisForwarder(client RedisPublisher, channel string, serializer *EventSerializer, logger *zap.Logger) *RedisForwarder {
	return &RedisForwarder{
		client:     client,
		channel:    channel,
		serializer: serializer,
		logger:     logger,
		attempts:   3,
		backoff:    50 * time.Millisecond,
	}
}

// EventTypes returns the billing events
func (f *RedisForwarder) EventTypes() []string {
	return BillingEventTypes
}

// Handle publishes the event. A publish that fails is retried; consumers
// deduplicate by event ID, so a repeat is harmless.
func (f *RedisForwarder) Handle(ctx context.Context, event shared.DomainEvent) error {
	data, err := f.serializer.Encode(event)
	if err != nil {
		return err
	}

	var lastErr error
	for attempt := 1; attempt <= f.attempts; attempt++ {
		receivers, err := f.client.Publish(ctx, f.channel, data).Result()
		if err == nil {
			f.logger.Debug("event forwarded",
				zap.String("event_type", event.EventType()),
				zap.String("event_id", event.EventID().String()),
				zap.Int64("receivers", receivers),
			)
			return nil
		}
		lastErr = err
		if attempt < f.attempts {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(f.backoff * time.Duration(attempt)):
			}
		}
	}
	return fmt.Errorf("failed to forward %s to %s: %w", event.EventType(), f.channel, lastErr)
}

// Ensure RedisForwarder implements EventHandler
var _ shared.EventHandler = (*RedisForwarder)(nil)
