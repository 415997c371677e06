package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/coliving/backend/internal/domain/shared"
	"go.uber.org/zap"
)

const defaultQueueSize = 256

type queued struct {
	ctx   context.Context
	event shared.DomainEvent
}

// InMemoryEventBus fans events out to in-process handlers. Until Start it
// delivers on the publisher's goroutine; between Start and Stop a single
// worker drains a bounded queue, so a slow handler such as the Redis
// forwarder never holds up a committed billing operation.
type InMemoryEventBus struct {
	handlers  *HandlerRegistry
	logger    *zap.Logger
	queueSize int

	mu      sync.RWMutex
	pending chan queued
	drained chan struct{}
}

// BusOption configures the bus
type BusOption func(*InMemoryEventBus)

// WithQueueSize bounds the asynchronous queue
func WithQueueSize(n int) BusOption {
	return func(b *InMemoryEventBus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

func NewInMemoryEventBus(logger *zap.Logger, opts ...BusOption) *InMemoryEventBus {
	b := &InMemoryEventBus{
		handlers:  NewHandlerRegistry(),
		logger:    logger.Named("event_bus"),
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish never fails; handler errors are logged. A full queue degrades to
// inline delivery instead of dropping the event.
func (b *InMemoryEventBus) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, e := range events {
		if b.pending != nil {
			select {
			case b.pending <- queued{ctx: context.WithoutCancel(ctx), event: e}:
				continue
			default:
				b.logger.Warn("Event queue full, delivering inline", zap.String("event_type", e.EventType()))
			}
		}
		b.deliver(ctx, e)
	}
	return nil
}

// Subscribe registers handler for eventTypes, defaulting to the handler's own list
func (b *InMemoryEventBus) Subscribe(handler shared.EventHandler, eventTypes ...string) {
	if len(eventTypes) == 0 {
		eventTypes = handler.EventTypes()
	}
	b.handlers.Register(handler, eventTypes...)
}

func (b *InMemoryEventBus) Unsubscribe(handler shared.EventHandler) {
	b.handlers.Unregister(handler)
}

// Start switches to asynchronous delivery. Starting twice is a no-op.
func (b *InMemoryEventBus) Start(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.pending != nil {
		return nil
	}

	pending, drained := make(chan queued, b.queueSize), make(chan struct{})
	b.pending, b.drained = pending, drained
	go func() {
		defer close(drained)
		for q := range pending {
			b.deliver(q.ctx, q.event)
		}
	}()
	b.logger.Info("Event bus started", zap.Int("queue_size", b.queueSize))
	return nil
}

// Stop waits for queued events and falls back to synchronous delivery. It
// returns ctx's error if the queue has not drained by then.
func (b *InMemoryEventBus) Stop(ctx context.Context) error {
	b.mu.Lock()
	pending, drained := b.pending, b.drained
	b.pending, b.drained = nil, nil
	b.mu.Unlock()
	if pending == nil {
		return nil
	}

	close(pending)
	select {
	case <-drained:
		b.logger.Info("Event bus stopped")
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus stopped with events still queued")
		return ctx.Err()
	}
}

func (b *InMemoryEventBus) deliver(ctx context.Context, e shared.DomainEvent) {
	for _, h := range b.handlers.GetHandlers(e.EventType()) {
		if err := invoke(ctx, h, e); err != nil {
			b.logger.Error("Event handler failed",
				zap.String("event_type", e.EventType()),
				zap.Stringer("event_id", e.EventID()),
				zap.Stringer("location_id", e.LocationID()),
				zap.Error(err),
			)
		}
	}
}

// invoke turns a handler panic into an error so the other handlers still run
func invoke(ctx context.Context, h shared.EventHandler, e shared.DomainEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return h.Handle(ctx, e)
}

var _ shared.EventBus = (*InMemoryEventBus)(nil)
