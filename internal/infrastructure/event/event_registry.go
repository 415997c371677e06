package event

import "github.com/coliving/backend/internal/domain/billing"

// BillingEventTypes are the notifications the billing services raise
var BillingEventTypes = []string{
	billing.EventTypeBillGenerated,
	billing.EventTypePaymentRecorded,
	billing.EventTypeRefundIssued,
	billing.EventTypePaymentDeclined,
}

// RegisterBillingEvents registers the billing events with the serializer.
// Subscribers on the notification channel need this to decode envelopes.
func RegisterBillingEvents(serializer *EventSerializer) {
	serializer.Register(billing.EventTypeBillGenerated, &billing.BillGeneratedEvent{})
	serializer.Register(billing.EventTypePaymentRecorded, &billing.PaymentRecordedEvent{})
	serializer.Register(billing.EventTypeRefundIssued, &billing.RefundIssuedEvent{})
	serializer.Register(billing.EventTypePaymentDeclined, &billing.PaymentDeclinedEvent{})
}

// NewBillingSerializer returns a serializer that knows every billing event
func NewBillingSerializer() *EventSerializer {
	s := NewEventSerializer()
	RegisterBillingEvents(s)
	return s
}
