package billing

import (
	"strings"
	"time"

	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// RecordPayment appends a positive payment. Negative amounts only enter the
// ledger through RecordRefund.
func (b *Bill) RecordPayment(in PaymentInput, now time.Time) (*Payment, error) {
	if !in.Amount.IsPositive() {
		return nil, paymentError("billing: payment amount must be positive, got %s", in.Amount)
	}
	if !in.Amount.IsWholeCents() {
		return nil, paymentError("billing: payment amount %s is not whole cents", in.Amount.Amount())
	}
	if in.Method == RefundMethod {
		return nil, paymentError("billing: refunds must be issued against a payment")
	}
	txID := strings.TrimSpace(in.TransactionID)
	if txID == "" {
		txID = ManualTransactionID
	}
	date := in.PaymentDate
	if date.IsZero() {
		date = now
	}
	p := Payment{
		ID:            uuid.New(),
		BillID:        b.ID,
		Amount:        in.Amount,
		Service:       strings.TrimSpace(in.Service),
		Method:        strings.TrimSpace(in.Method),
		TransactionID: txID,
		PaymentDate:   date,
		UserID:        in.UserID,
		CreatedAt:     now,
	}
	b.Payments = append(b.Payments, p)
	b.IncrementVersion()
	b.AddDomainEvent(NewPaymentRecordedEvent(b, p))
	return &b.Payments[len(b.Payments)-1], nil
}

// FindPayment returns the payment with the given ID, or nil
func (b *Bill) FindPayment(paymentID uuid.UUID) *Payment {
	for i := range b.Payments {
		if b.Payments[i].ID == paymentID {
			return &b.Payments[i]
		}
	}
	return nil
}

// NetPaid is a payment's amount less every refund already issued against it
func (b *Bill) NetPaid(paymentID uuid.UUID) valueobject.Money {
	p := b.FindPayment(paymentID)
	if p == nil {
		return valueobject.Zero()
	}
	net := p.Amount
	for _, r := range b.Payments {
		if r.RefundOf != nil && *r.RefundOf == paymentID {
			net = net.Add(r.Amount)
		}
	}
	return net
}

// PrepareRefund validates a refund before any money moves. A nil amount refunds
// whatever is left on the payment. It returns the payment and the amount to refund.
func (b *Bill) PrepareRefund(paymentID uuid.UUID, amount *valueobject.Money) (Payment, valueobject.Money, error) {
	p := b.FindPayment(paymentID)
	if p == nil {
		return Payment{}, valueobject.Money{}, paymentError("billing: payment %s does not belong to bill %s", paymentID, b.ID)
	}
	if p.IsRefund() {
		return Payment{}, valueobject.Money{}, paymentError("billing: payment %s is itself a refund", paymentID)
	}
	net := b.NetPaid(paymentID)
	refund := net
	if amount != nil {
		refund = *amount
	}
	if !refund.IsPositive() {
		return Payment{}, valueobject.Money{}, paymentError("billing: refund amount must be positive, got %s", refund)
	}
	if !refund.IsWholeCents() {
		return Payment{}, valueobject.Money{}, paymentError("billing: refund amount %s is not whole cents", refund.Amount())
	}
	if refund.GreaterThan(net) {
		return Payment{}, valueobject.Money{}, refundExceedsBalance(refund, net)
	}
	return *p, refund, nil
}

// RecordRefund appends the negative row for a refund validated by PrepareRefund
func (b *Bill) RecordRefund(original Payment, amount valueobject.Money, transactionID string, userID *uuid.UUID, now time.Time) (*Payment, error) {
	if _, _, err := b.PrepareRefund(original.ID, &amount); err != nil {
		return nil, err
	}
	if strings.TrimSpace(transactionID) == "" {
		transactionID = ManualTransactionID
	}
	origID := original.ID
	r := Payment{
		ID:            uuid.New(),
		BillID:        b.ID,
		Amount:        amount.Negate(),
		Service:       original.Service,
		Method:        RefundMethod,
		TransactionID: transactionID,
		PaymentDate:   now,
		UserID:        userID,
		RefundOf:      &origID,
		CreatedAt:     now,
	}
	b.Payments = append(b.Payments, r)
	b.IncrementVersion()
	b.AddDomainEvent(NewRefundIssuedEvent(b, r))
	return &b.Payments[len(b.Payments)-1], nil
}

// PaymentsBetween returns payments dated in [from, to)
func (b *Bill) PaymentsBetween(from, to time.Time) []Payment {
	out := make([]Payment, 0)
	for _, p := range b.Payments {
		if !p.PaymentDate.Before(from) && p.PaymentDate.Before(to) {
			out = append(out, p)
		}
	}
	return out
}

func refundExceedsBalance(refund, net valueobject.Money) error {
	return &RefundExceedsBalanceError{Requested: refund, Available: net}
}

// RefundExceedsBalanceError reports how much could have been refunded.
// It unwraps to ErrRefundExceedsBalance.
type RefundExceedsBalanceError struct {
	Requested valueobject.Money
	Available valueobject.Money
}

// Error implements the error interface
func (e *RefundExceedsBalanceError) Error() string {
	return "refund of " + e.Requested.String() + " exceeds the " + e.Available.String() + " left on the payment"
}

// Unwrap exposes the sentinel
func (e *RefundExceedsBalanceError) Unwrap() error {
	return ErrRefundExceedsBalance
}
