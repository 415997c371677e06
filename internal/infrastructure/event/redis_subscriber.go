package event

import (
	"context"

	"github.com/coliving/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisSubscriber reads envelopes from the notification channel and publishes
// them on a local bus
type RedisSubscriber struct {
	client     *redis.Client
	channel    string
	serializer *EventSerializer
	bus        shared.EventPublisher
	logger     *zap.Logger
}

// NewRedisSubscriber creates a subscriber for channel
func NewRedisSubscriber(client *redis.Client, channel string, serializer *EventSerializer, bus shared.EventPublisher, logger *zap.Logger) *RedisSubscriber {
	return &RedisSubscriber{
		client:     client,
		channel:    channel,
		serializer: serializer,
		bus:        bus,
		logger:     logger,
	}
}

// Run consumes the channel until ctx is canceled
func (s *RedisSubscriber) Run(ctx context.Context) error {
	pubsub := s.client.Subscribe(ctx, s.channel)
	defer pubsub.Close()

	// Wait for the subscription to be confirmed
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	s.logger.Info("subscribed to notification channel", zap.String("channel", s.channel))

	messages := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			s.HandleMessage(ctx, []byte(msg.Payload))
		}
	}
}

// HandleMessage decodes one envelope and publishes it. Undecodable messages are logged and dropped.
func (s *RedisSubscriber) HandleMessage(ctx context.Context, payload []byte) {
	event, err := s.serializer.Decode(payload)
	if err != nil {
		s.logger.Warn("dropping undecodable notification",
			zap.String("channel", s.channel),
			zap.Error(err),
		)
		return
	}
	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Error("failed to publish notification",
			zap.String("event_type", event.EventType()),
			zap.Error(err),
		)
	}
}
