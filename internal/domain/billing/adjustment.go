package billing

import (
	"fmt"
	"strings"
	"time"

	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/shopspring/decimal"
)

// AdjustmentKind says whether an adjustment lowers or raises the bill
type AdjustmentKind string

const (
	AdjustmentDiscount AdjustmentKind = "discount"
	AdjustmentFee      AdjustmentKind = "fee"
)

// IsValid checks if the kind is known
func (k AdjustmentKind) IsValid() bool {
	return k == AdjustmentDiscount || k == AdjustmentFee
}

// Adjustment is a manual discount or fee, given either as an absolute amount
// or as a percentage of the bill subtotal. Exactly one of Amount and Percent is set.
type Adjustment struct {
	Kind    AdjustmentKind
	Amount  *valueobject.Money
	Percent *decimal.Decimal
	Reason  string
}

var hundredPercent = decimal.NewFromInt(100)

// AddAdjustment resolves the adjustment against the current subtotal and appends
// it as a custom item. Discounts are stored negative.
func (b *Bill) AddAdjustment(adj Adjustment, now time.Time) (*LineItem, error) {
	if !adj.Kind.IsValid() {
		return nil, lineItemError("billing: unknown adjustment kind %q", adj.Kind)
	}
	reason := strings.TrimSpace(adj.Reason)
	if reason == "" {
		return nil, lineItemError("billing: adjustment reason is required")
	}
	if (adj.Amount == nil) == (adj.Percent == nil) {
		return nil, lineItemError("billing: adjustment needs exactly one of amount or percent")
	}

	label := "Fee"
	if adj.Kind == AdjustmentDiscount {
		label = "Discount"
	}

	var amount valueobject.Money
	var description string
	if adj.Percent != nil {
		pct := *adj.Percent
		if !pct.IsPositive() || pct.GreaterThan(hundredPercent) {
			return nil, lineItemError("billing: adjustment percent must be in (0, 100], got %s", pct)
		}
		amount = b.SubtotalAmount().Percent(pct)
		description = fmt.Sprintf("%s (%s%%): %s", label, pct.String(), reason)
	} else {
		amount = adj.Amount.Abs().RoundCents()
		description = fmt.Sprintf("%s: %s", label, reason)
	}
	if amount.IsZero() {
		return nil, lineItemError("billing: adjustment of %s comes to zero", description)
	}
	if adj.Kind == AdjustmentDiscount {
		amount = amount.Negate()
	}
	return b.AddCustomLineItem(description, amount, false, now)
}
