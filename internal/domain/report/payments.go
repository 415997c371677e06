package report

import (
	"slices"
	"time"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentRow is one payment dated in the window
type PaymentRow struct {
	PaymentID     uuid.UUID           `json:"payment_id"`
	BillID        uuid.UUID           `json:"bill_id"`
	SubjectKind   billing.SubjectKind `json:"subject_kind"`
	SubjectID     uuid.UUID           `json:"subject_id"`
	PaymentDate   time.Time           `json:"payment_date"`
	Service       string              `json:"service"`
	Method        string              `json:"method"`
	TransactionID string              `json:"transaction_id"`
	Amount        decimal.Decimal     `json:"amount"`
	ToHouse       decimal.Decimal     `json:"to_house"`
	NonHouseFees  decimal.Decimal     `json:"non_house_fees"`
	Manual        bool                `json:"manual"`
	Refund        bool                `json:"refund"`
}

// PaymentsSummary totals the cash a location took in a window, split by bill kind
type PaymentsSummary struct {
	LocationID          uuid.UUID       `json:"location_id"`
	Start               time.Time       `json:"start"`
	End                 time.Time       `json:"end"`
	Rows                []PaymentRow    `json:"rows"`
	BookingTotal        decimal.Decimal `json:"booking_total"`
	SubscriptionTotal   decimal.Decimal `json:"subscription_total"`
	GatewayTotal        decimal.Decimal `json:"gateway_total"`
	ManualTotal         decimal.Decimal `json:"manual_total"`
	RefundTotal         decimal.Decimal `json:"refund_total"` // negative
	NonHouseFeesTotal   decimal.Decimal `json:"non_house_fees_total"`
	ToHouseTotal        decimal.Decimal `json:"to_house_total"`
	GatewayTransferable decimal.Decimal `json:"gateway_transferable"` // gateway cash less fees owed to third parties
	Total               decimal.Decimal `json:"total"`
}

// BuildPaymentsSummary lists every payment in [start, end) on the given bills, oldest first
func BuildPaymentsSummary(locationID uuid.UUID, start, end time.Time, bills []*billing.Bill) *PaymentsSummary {
	out := &PaymentsSummary{
		LocationID: locationID,
		Start:      start,
		End:        end,
		Rows:       make([]PaymentRow, 0),
	}
	for _, b := range bills {
		if b == nil || b.LocationID != locationID {
			continue
		}
		for _, p := range b.PaymentsBetween(start, end) {
			alloc := b.Allocate(p.Amount)
			row := PaymentRow{
				PaymentID:     p.ID,
				BillID:        b.ID,
				SubjectKind:   b.Subject.Kind(),
				SubjectID:     b.Subject.OwnerID(),
				PaymentDate:   p.PaymentDate,
				Service:       p.Service,
				Method:        p.Method,
				TransactionID: p.TransactionID,
				Amount:        p.Amount.Amount(),
				ToHouse:       alloc.ToHouse.Amount(),
				NonHouseFees:  alloc.NonHouseFees.Amount(),
				Manual:        p.IsManual(),
				Refund:        p.IsRefund(),
			}
			out.Rows = append(out.Rows, row)

			out.Total = out.Total.Add(row.Amount)
			out.ToHouseTotal = out.ToHouseTotal.Add(row.ToHouse)
			out.NonHouseFeesTotal = out.NonHouseFeesTotal.Add(row.NonHouseFees)
			if row.SubjectKind == billing.SubjectBooking {
				out.BookingTotal = out.BookingTotal.Add(row.Amount)
			} else {
				out.SubscriptionTotal = out.SubscriptionTotal.Add(row.Amount)
			}
			if row.Refund {
				out.RefundTotal = out.RefundTotal.Add(row.Amount)
			}
			if row.Manual {
				out.ManualTotal = out.ManualTotal.Add(row.Amount)
			} else {
				out.GatewayTotal = out.GatewayTotal.Add(row.Amount)
				out.GatewayTransferable = out.GatewayTransferable.Add(row.ToHouse)
			}
		}
	}
	slices.SortStableFunc(out.Rows, func(a, b PaymentRow) int {
		return a.PaymentDate.Compare(b.PaymentDate)
	})
	return out
}
