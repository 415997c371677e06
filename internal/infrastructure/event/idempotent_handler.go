package event

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/coliving/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// DeliveryCounts counts what an IdempotentHandler did with each delivery.
// One value may be shared by several handlers.
type DeliveryCounts struct {
	Handled    atomic.Int64
	Duplicates atomic.Int64
	Failed     atomic.Int64
}

// DeliveryStats is a point-in-time copy of DeliveryCounts
type DeliveryStats struct {
	Handled    int64 `json:"handled"`
	Duplicates int64 `json:"duplicates"`
	Failed     int64 `json:"failed"`
}

// Snapshot copies the counters
func (c *DeliveryCounts) Snapshot() DeliveryStats {
	return DeliveryStats{
		Handled:    c.Handled.Load(),
		Duplicates: c.Duplicates.Load(),
		Failed:     c.Failed.Load(),
	}
}

// IdempotentHandler drops redeliveries of an event it has already seen. The
// notifier needs it because the Redis forwarder delivers at least once.
type IdempotentHandler struct {
	next   shared.EventHandler
	store  shared.IdempotencyStore
	window time.Duration
	counts *DeliveryCounts
	logger *zap.Logger
}

// IdempotentHandlerOption configures an IdempotentHandler
type IdempotentHandlerOption func(*IdempotentHandler)

// WithDedupWindow sets how long a delivered event ID is remembered
func WithDedupWindow(window time.Duration) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		if window > 0 {
			h.window = window
		}
	}
}

// WithDeliveryCounts makes the handler count into c
func WithDeliveryCounts(c *DeliveryCounts) IdempotentHandlerOption {
	return func(h *IdempotentHandler) {
		if c != nil {
			h.counts = c
		}
	}
}

// NewIdempotentHandler wraps next
func NewIdempotentHandler(next shared.EventHandler, store shared.IdempotencyStore, logger *zap.Logger, opts ...IdempotentHandlerOption) *IdempotentHandler {
	h := &IdempotentHandler{
		next:   next,
		store:  store,
		window: shared.DefaultIdempotencyTTL,
		counts: &DeliveryCounts{},
		logger: logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// EventTypes delegates to the wrapped handler
func (h *IdempotentHandler) EventTypes() []string {
	return h.next.EventTypes()
}

// Counts returns the handler's counters
func (h *IdempotentHandler) Counts() *DeliveryCounts {
	return h.counts
}

// Handle passes event on unless its ID was marked within the window. When the
// store is unreachable the event is delivered; a duplicate notice beats a
// lost one.
func (h *IdempotentHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	key := dedupKey(event)
	log := h.logger.With(
		zap.String("event_id", event.EventID().String()),
		zap.String("event_type", event.EventType()),
	)

	first, err := h.store.MarkProcessed(ctx, key, h.window)
	switch {
	case err != nil:
		log.Warn("Dedup store unavailable, delivering anyway", zap.Error(err))
	case !first:
		h.counts.Duplicates.Add(1)
		log.Debug("Dropping redelivered event")
		return nil
	}

	if err := h.next.Handle(ctx, event); err != nil {
		h.counts.Failed.Add(1)
		log.Error("Event handler failed", zap.Error(err))
		return err
	}
	h.counts.Handled.Add(1)
	return nil
}

func dedupKey(event shared.DomainEvent) string {
	return "notify:" + event.EventID().String()
}

var _ shared.EventHandler = (*IdempotentHandler)(nil)
