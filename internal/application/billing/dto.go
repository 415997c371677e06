package billing

import (
	"time"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GenerateBookingBillRequest regenerates the bill of one booking
type GenerateBookingBillRequest struct {
	BookingID       uuid.UUID `json:"-"`
	ResetSuppressed bool      `json:"reset_suppressed"`
}

// GenerateSubscriptionBillRequest regenerates the bill of one subscription period
type GenerateSubscriptionBillRequest struct {
	SubscriptionID  uuid.UUID `json:"-"`
	PeriodStart     time.Time `json:"period_start" binding:"required"`
	ResetSuppressed bool      `json:"reset_suppressed"`
}

// GenerateAllBillsRequest regenerates every period of a subscription up to Through
type GenerateAllBillsRequest struct {
	SubscriptionID uuid.UUID  `json:"-"`
	Through        *time.Time `json:"through"` // defaults to today
}

// UpdateEndDateRequest moves or clears a subscription end date
type UpdateEndDateRequest struct {
	SubscriptionID uuid.UUID  `json:"-"`
	EndDate        *time.Time `json:"end_date"` // inclusive, null makes the membership open-ended
}

// AddLineItemRequest adds a custom line item
type AddLineItemRequest struct {
	BillID      uuid.UUID         `json:"-"`
	Description string            `json:"description" binding:"required,max=200"`
	Amount      valueobject.Money `json:"amount"`
	PaidByHouse bool              `json:"paid_by_house"`
}

// AddAdjustmentRequest adds a discount or fee
type AddAdjustmentRequest struct {
	BillID  uuid.UUID          `json:"-"`
	Kind    string             `json:"kind" binding:"required,oneof=discount fee"`
	Amount  *valueobject.Money `json:"amount"`
	Percent *decimal.Decimal   `json:"percent"`
	Reason  string             `json:"reason" binding:"required,max=200"`
}

// RemoveLineItemRequest removes a line item. Removing a fee suppresses it on the subject.
type RemoveLineItemRequest struct {
	BillID uuid.UUID
	ItemID uuid.UUID
}

// RecordPaymentRequest records a payment taken outside the gateway or reported by it
type RecordPaymentRequest struct {
	BillID        uuid.UUID         `json:"-"`
	Amount        valueobject.Money `json:"amount"`
	Service       string            `json:"service" binding:"max=50"`
	Method        string            `json:"method" binding:"max=50"`
	TransactionID string            `json:"transaction_id" binding:"max=100"`
	PaymentDate   *time.Time        `json:"payment_date"`
	UserID        *uuid.UUID        `json:"user_id"`
}

// ChargeBillRequest charges a card on file through the gateway
type ChargeBillRequest struct {
	BillID      uuid.UUID         `json:"-"`
	CustomerRef string            `json:"customer_ref" binding:"required"`
	Amount      valueobject.Money `json:"amount"`
	UserID      *uuid.UUID        `json:"user_id"`
}

// IssueRefundRequest refunds part or all of a payment. A nil amount refunds what is left.
type IssueRefundRequest struct {
	PaymentID uuid.UUID          `json:"-"`
	Amount    *valueobject.Money `json:"amount"`
	UserID    *uuid.UUID         `json:"user_id"`
}

// LineItemResponse is a line item in API responses
type LineItemResponse struct {
	ID          uuid.UUID         `json:"id"`
	Description string            `json:"description"`
	Amount      valueobject.Money `json:"amount"`
	PaidByHouse bool              `json:"paid_by_house"`
	Custom      bool              `json:"custom"`
	FeeID       *uuid.UUID        `json:"fee_id,omitempty"`
}

// PaymentResponse is a payment or refund in API responses
type PaymentResponse struct {
	ID            uuid.UUID         `json:"id"`
	BillID        uuid.UUID         `json:"bill_id"`
	Amount        valueobject.Money `json:"amount"`
	Service       string            `json:"service"`
	Method        string            `json:"method"`
	TransactionID string            `json:"transaction_id"`
	PaymentDate   time.Time         `json:"payment_date"`
	UserID        *uuid.UUID        `json:"user_id,omitempty"`
	RefundOf      *uuid.UUID        `json:"refund_of,omitempty"`
	ToHouse       valueobject.Money `json:"to_house"`
	HouseFees     valueobject.Money `json:"house_fees"`
	NonHouseFees  valueobject.Money `json:"non_house_fees"`
}

// BillResponse is a bill with its totals
type BillResponse struct {
	ID           uuid.UUID           `json:"id"`
	LocationID   uuid.UUID           `json:"location_id"`
	SubjectKind  billing.SubjectKind `json:"subject_kind"`
	SubjectID    uuid.UUID           `json:"subject_id"`
	PeriodStart  *time.Time          `json:"period_start,omitempty"`
	PeriodEnd    *time.Time          `json:"period_end,omitempty"`
	GeneratedAt  *time.Time          `json:"generated_at,omitempty"`
	Comment      string              `json:"comment,omitempty"`
	LineItems    []LineItemResponse  `json:"line_items"`
	Payments     []PaymentResponse   `json:"payments"`
	Amount       valueobject.Money   `json:"amount"`
	Subtotal     valueobject.Money   `json:"subtotal"`
	HouseFees    valueobject.Money   `json:"house_fees"`
	NonHouseFees valueobject.Money   `json:"non_house_fees"`
	ToHouse      valueobject.Money   `json:"to_house"`
	TotalPaid    valueobject.Money   `json:"total_paid"`
	TotalOwed    valueobject.Money   `json:"total_owed"`
	IsPaid       bool                `json:"is_paid"`
	Version      int                 `json:"version"`
}

// ToBillResponse converts a bill to its API shape
func ToBillResponse(b *billing.Bill) *BillResponse {
	resp := &BillResponse{
		ID:           b.ID,
		LocationID:   b.LocationID,
		SubjectKind:  b.Subject.Kind(),
		SubjectID:    b.Subject.OwnerID(),
		GeneratedAt:  b.GeneratedAt,
		Comment:      b.Comment,
		LineItems:    make([]LineItemResponse, 0, len(b.LineItems)),
		Payments:     make([]PaymentResponse, 0, len(b.Payments)),
		Amount:       b.Amount(),
		Subtotal:     b.SubtotalAmount(),
		HouseFees:    b.HouseFees(),
		NonHouseFees: b.NonHouseFees(),
		ToHouse:      b.ToHouse(),
		TotalPaid:    b.TotalPaid(),
		TotalOwed:    b.TotalOwed(),
		IsPaid:       b.IsPaid(),
		Version:      b.Version,
	}
	if period, ok := b.Subject.Subscription(); ok {
		resp.PeriodStart = &period.PeriodStart
		resp.PeriodEnd = &period.PeriodEnd
	}
	for _, li := range b.LineItems {
		resp.LineItems = append(resp.LineItems, LineItemResponse{
			ID:          li.ID,
			Description: li.Description,
			Amount:      li.Amount,
			PaidByHouse: li.PaidByHouse,
			Custom:      li.Custom,
			FeeID:       li.FeeID,
		})
	}
	for _, p := range b.Payments {
		resp.Payments = append(resp.Payments, ToPaymentResponse(b, p))
	}
	return resp
}

// ToPaymentResponse converts a payment, with its share of the bill's fees
func ToPaymentResponse(b *billing.Bill, p billing.Payment) PaymentResponse {
	alloc := b.Allocate(p.Amount)
	return PaymentResponse{
		ID:            p.ID,
		BillID:        p.BillID,
		Amount:        p.Amount,
		Service:       p.Service,
		Method:        p.Method,
		TransactionID: p.TransactionID,
		PaymentDate:   p.PaymentDate,
		UserID:        p.UserID,
		RefundOf:      p.RefundOf,
		ToHouse:       alloc.ToHouse,
		HouseFees:     alloc.HouseFees,
		NonHouseFees:  alloc.NonHouseFees,
	}
}

// PaymentResult is a payment together with the bill it landed on
type PaymentResult struct {
	Payment PaymentResponse `json:"payment"`
	Bill    *BillResponse   `json:"bill"`
}

// SubscriptionBillsResponse lists the bills of a subscription after a bulk operation
type SubscriptionBillsResponse struct {
	SubscriptionID uuid.UUID       `json:"subscription_id"`
	EndDate        *time.Time      `json:"end_date,omitempty"`
	Bills          []*BillResponse `json:"bills"`
	DeletedBillIDs []uuid.UUID     `json:"deleted_bill_ids,omitempty"`
}
