package billing

import (
	"strings"
	"time"

	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

const (
	// ManualTransactionID marks cash and other payments entered by hand
	ManualTransactionID = "Manual"
	// RefundMethod is the method label of every refund row
	RefundMethod = "Refund"
	// ServiceStripe labels payments taken through the card gateway
	ServiceStripe = "Stripe"
)

// Payment is one payment or refund event against a Bill.
// Rows are never mutated; a refund is a new negative row with RefundOf set.
type Payment struct {
	ID            uuid.UUID
	BillID        uuid.UUID
	Amount        valueobject.Money
	Service       string
	Method        string
	TransactionID string
	PaymentDate   time.Time
	UserID        *uuid.UUID
	RefundOf      *uuid.UUID
	CreatedAt     time.Time
}

// IsRefund reports whether this row reverses another payment
func (p Payment) IsRefund() bool {
	return p.RefundOf != nil
}

// IsManual reports whether the payment was entered by hand rather than through the gateway
func (p Payment) IsManual() bool {
	return p.TransactionID == "" || strings.EqualFold(p.TransactionID, ManualTransactionID)
}

// PaymentInput is the data needed to record a payment
type PaymentInput struct {
	Amount        valueobject.Money
	Service       string
	Method        string
	TransactionID string
	PaymentDate   time.Time
	UserID        *uuid.UUID
}

// PaymentAllocation splits a payment by the bill's proportions
type PaymentAllocation struct {
	ToHouse      valueobject.Money
	HouseFees    valueobject.Money
	NonHouseFees valueobject.Money
}
