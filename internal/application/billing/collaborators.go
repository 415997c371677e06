package billing

import (
	"context"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// ErrBillLocked is returned when another request holds the bill's advisory lock
var ErrBillLocked = shared.NewDomainError("BILL_LOCKED", "bill is being updated by another request, try again")

// BillLocker serializes regeneration of one bill across processes.
// Release must be safe to call more than once.
type BillLocker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// NoopBillLocker never blocks; the optimistic version check still applies
type NoopBillLocker struct{}

// Acquire always succeeds
func (NoopBillLocker) Acquire(context.Context, string) (func(), error) {
	return func() {}, nil
}

func lockKey(subject billing.BillSubject) string {
	return "bill:" + subject.String()
}

// Notifier delivers billing events after commit. It never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, events ...shared.DomainEvent)
}

// EventNotifier forwards events to the event bus
type EventNotifier struct {
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewEventNotifier creates an EventNotifier
func NewEventNotifier(publisher shared.EventPublisher, logger *zap.Logger) *EventNotifier {
	return &EventNotifier{publisher: publisher, logger: logger}
}

// Notify publishes on a context detached from the request, errors are logged
func (n *EventNotifier) Notify(ctx context.Context, events ...shared.DomainEvent) {
	if n.publisher == nil || len(events) == 0 {
		return
	}
	if err := n.publisher.Publish(context.WithoutCancel(ctx), events...); err != nil {
		n.logger.Warn("failed to publish billing events",
			zap.Int("count", len(events)),
			zap.Error(err),
		)
	}
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, ...shared.DomainEvent) {}

// drainEvents takes the pending events off a saved bill
func drainEvents(bill *billing.Bill) []shared.DomainEvent {
	if bill == nil {
		return nil
	}
	events := bill.GetDomainEvents()
	bill.ClearDomainEvents()
	return events
}
