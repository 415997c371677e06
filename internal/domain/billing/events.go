package billing

import (
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeBillGenerated   = "billing.bill.generated"
	EventTypePaymentRecorded = "billing.payment.recorded"
	EventTypeRefundIssued    = "billing.refund.issued"
	EventTypePaymentDeclined = "billing.payment.declined"

	AggregateTypeBill = "Bill"
)

// BillGeneratedEvent is raised after automatic line items were rebuilt
type BillGeneratedEvent struct {
	shared.BaseDomainEvent
	Subject     string          `json:"subject"`
	SubjectKind SubjectKind     `json:"subject_kind"`
	OwnerID     uuid.UUID       `json:"owner_id"`
	Amount      decimal.Decimal `json:"amount"`
	TotalOwed   decimal.Decimal `json:"total_owed"`
}

// NewBillGeneratedEvent creates a BillGeneratedEvent
func NewBillGeneratedEvent(b *Bill) *BillGeneratedEvent {
	return &BillGeneratedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeBillGenerated, AggregateTypeBill, b.ID, b.LocationID),
		Subject:         b.Subject.String(),
		SubjectKind:     b.Subject.Kind(),
		OwnerID:         b.Subject.OwnerID(),
		Amount:          b.Amount().Amount(),
		TotalOwed:       b.TotalOwed().Amount(),
	}
}

// PaymentRecordedEvent is raised when money comes in
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID     uuid.UUID       `json:"payment_id"`
	OwnerID       uuid.UUID       `json:"owner_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	TransactionID string          `json:"transaction_id"`
	TotalOwed     decimal.Decimal `json:"total_owed"`
}

// NewPaymentRecordedEvent creates a PaymentRecordedEvent
func NewPaymentRecordedEvent(b *Bill, p Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, AggregateTypeBill, b.ID, b.LocationID),
		PaymentID:       p.ID,
		OwnerID:         b.Subject.OwnerID(),
		Amount:          p.Amount.Amount(),
		Method:          p.Method,
		TransactionID:   p.TransactionID,
		TotalOwed:       b.TotalOwed().Amount(),
	}
}

// RefundIssuedEvent is raised when a refund row is added
type RefundIssuedEvent struct {
	shared.BaseDomainEvent
	RefundID          uuid.UUID       `json:"refund_id"`
	OriginalPaymentID uuid.UUID       `json:"original_payment_id"`
	Amount            decimal.Decimal `json:"amount"`
	TransactionID     string          `json:"transaction_id"`
}

// NewRefundIssuedEvent creates a RefundIssuedEvent
func NewRefundIssuedEvent(b *Bill, refund Payment) *RefundIssuedEvent {
	e := &RefundIssuedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeRefundIssued, AggregateTypeBill, b.ID, b.LocationID),
		RefundID:        refund.ID,
		Amount:          refund.Amount.Amount().Neg(),
		TransactionID:   refund.TransactionID,
	}
	if refund.RefundOf != nil {
		e.OriginalPaymentID = *refund.RefundOf
	}
	return e
}

// PaymentDeclinedEvent is raised when the gateway refuses a charge. Nothing is
// written to the ledger; the event only feeds notifications.
type PaymentDeclinedEvent struct {
	shared.BaseDomainEvent
	Amount      decimal.Decimal `json:"amount"`
	DeclineCode string          `json:"decline_code"`
	Reason      string          `json:"reason"`
}

// NewPaymentDeclinedEvent creates a PaymentDeclinedEvent
func NewPaymentDeclinedEvent(b *Bill, amount decimal.Decimal, declined *PaymentDeclinedError) *PaymentDeclinedEvent {
	e := &PaymentDeclinedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentDeclined, AggregateTypeBill, b.ID, b.LocationID),
		Amount:          amount,
	}
	if declined != nil {
		e.DeclineCode = declined.DeclineCode
		e.Reason = declined.Message
	}
	return e
}
