package event

import (
	"context"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/shared"
	"go.uber.org/zap"
)

// NotificationHandler turns billing events into structured notification log
// records. Delivery (mail, chat) reads from those records.
type NotificationHandler struct {
	logger *zap.Logger
}

// NewNotificationHandler creates a NotificationHandler
func NewNotificationHandler(logger *zap.Logger) *NotificationHandler {
	return &NotificationHandler{logger: logger.Named("notification")}
}

// EventTypes returns the billing events
func (h *NotificationHandler) EventTypes() []string {
	return BillingEventTypes
}

// Handle logs one notification per event
func (h *NotificationHandler) Handle(_ context.Context, event shared.DomainEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.EventID().String()),
		zap.String("bill_id", event.AggregateID().String()),
		zap.String("location_id", event.LocationID().String()),
	}

	switch e := event.(type) {
	case *billing.BillGeneratedEvent:
		h.logger.Info("bill ready",
			append(fields,
				zap.String("subject", e.Subject),
				zap.String("owner_id", e.OwnerID.String()),
				zap.String("amount", e.Amount.StringFixed(2)),
				zap.String("total_owed", e.TotalOwed.StringFixed(2)),
			)...)
	case *billing.PaymentRecordedEvent:
		h.logger.Info("payment received",
			append(fields,
				zap.String("payment_id", e.PaymentID.String()),
				zap.String("owner_id", e.OwnerID.String()),
				zap.String("amount", e.Amount.StringFixed(2)),
				zap.String("method", e.Method),
				zap.String("total_owed", e.TotalOwed.StringFixed(2)),
			)...)
	case *billing.RefundIssuedEvent:
		h.logger.Info("refund issued",
			append(fields,
				zap.String("refund_id", e.RefundID.String()),
				zap.String("original_payment_id", e.OriginalPaymentID.String()),
				zap.String("amount", e.Amount.StringFixed(2)),
			)...)
	case *billing.PaymentDeclinedEvent:
		h.logger.Warn("card declined",
			append(fields,
				zap.String("amount", e.Amount.StringFixed(2)),
				zap.String("decline_code", e.DeclineCode),
				zap.String("reason", e.Reason),
			)...)
	default:
		h.logger.Debug("unhandled event", append(fields, zap.String("event_type", event.EventType()))...)
	}
	return nil
}

// Ensure NotificationHandler implements EventHandler
var _ shared.EventHandler = (*NotificationHandler)(nil)
