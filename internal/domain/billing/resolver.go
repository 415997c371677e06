package billing

import (
	"fmt"
	"slices"
	"strings"

	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ChargeBasis is everything the resolver needs to know about a billable subject.
// Booking and subscription aggregates build it from their own state.
type ChargeBasis struct {
	Subject    BillSubject
	LocationID uuid.UUID
	// Quantity is billable nights for a booking, or 1 for a subscription period
	Quantity int
	// Unit is used in the base line item description ("night", "month")
	Unit string
	// Rate is the subject's explicit rate; nil falls back to DefaultRate
	Rate        *valueobject.Money
	DefaultRate *valueobject.Money
	Comp        bool
	Suppressed  []uuid.UUID
	// Label names what is being billed, e.g. the room name
	Label string
}

// IsSuppressed reports whether a fee is suppressed for this subject
func (b ChargeBasis) IsSuppressed(feeID uuid.UUID) bool {
	return slices.Contains(b.Suppressed, feeID)
}

// ResolvedFee is a fee as it applies to one bill
type ResolvedFee struct {
	FeeID       uuid.UUID
	Label       string
	Basis       FeeBasis
	Percentage  decimal.Decimal
	FlatAmount  valueobject.Money
	PaidByHouse bool
}

// AmountOn calculates the fee against a pre-fee subtotal
func (f ResolvedFee) AmountOn(subtotal valueobject.Money) valueobject.Money {
	if f.Basis == FeeBasisFlat {
		return f.FlatAmount
	}
	return subtotal.Fraction(f.Percentage)
}

// ChargePlan is the resolved input of a regeneration
type ChargePlan struct {
	Subject         BillSubject
	Quantity        int
	Rate            valueobject.Money
	Comp            bool
	BaseDescription string
	Fees            []ResolvedFee
}

// BaseAmount is quantity times rate; zero for comps
func (p *ChargePlan) BaseAmount() valueobject.Money {
	if p.Comp {
		return valueobject.Zero()
	}
	return p.Rate.MultiplyByInt(int64(p.Quantity)).RoundCents()
}

// ResolveCharges picks the rate for a subject and the fees that apply to it.
//
// The explicit rate wins over the default unless the subject is comped, in
// which case the rate is zero and no fees apply. Suppressed fees are dropped.
// Each fee's payer comes from the location override when one is set.
// Fees are returned ordered by label so regeneration is deterministic.
func ResolveCharges(basis ChargeBasis, locationFees []LocationFee) (*ChargePlan, error) {
	if err := basis.Subject.Validate(); err != nil {
		return nil, err
	}
	if basis.LocationID == uuid.Nil {
		return nil, configurationError("billing: %s has no location", basis.Subject)
	}
	if basis.Quantity < 0 {
		return nil, configurationError("billing: %s has a negative quantity", basis.Subject)
	}

	plan := &ChargePlan{
		Subject:  basis.Subject,
		Quantity: basis.Quantity,
		Comp:     basis.Comp,
	}

	switch {
	case basis.Comp:
		plan.Rate = valueobject.Zero()
	case basis.Rate != nil:
		plan.Rate = *basis.Rate
	case basis.DefaultRate != nil:
		plan.Rate = *basis.DefaultRate
	default:
		return nil, configurationError("billing: %s has no rate and no default rate", basis.Subject)
	}
	if plan.Rate.IsNegative() {
		return nil, configurationError("billing: %s resolves to a negative rate %s", basis.Subject, plan.Rate)
	}
	plan.BaseDescription = baseDescription(basis, plan.Rate)

	if basis.Comp {
		return plan, nil
	}

	for _, lf := range locationFees {
		if lf.Fee == nil {
			return nil, configurationError("billing: location fee %s has no fee definition", lf.ID)
		}
		if lf.LocationID != basis.LocationID || basis.IsSuppressed(lf.FeeID) {
			continue
		}
		plan.Fees = append(plan.Fees, ResolvedFee{
			FeeID:       lf.FeeID,
			Label:       lf.Fee.Label(),
			Basis:       lf.Fee.Basis,
			Percentage:  lf.Fee.Percentage,
			FlatAmount:  lf.Fee.FlatAmount,
			PaidByHouse: lf.ResolvedPaidByHouse(),
		})
	}
	slices.SortStableFunc(plan.Fees, func(a, b ResolvedFee) int {
		if c := strings.Compare(a.Label, b.Label); c != 0 {
			return c
		}
		return strings.Compare(a.FeeID.String(), b.FeeID.String())
	})
	return plan, nil
}

func baseDescription(basis ChargeBasis, rate valueobject.Money) string {
	unit := basis.Unit
	if unit == "" {
		unit = "night"
	}
	if basis.Quantity != 1 {
		unit += "s"
	}
	var sb strings.Builder
	if basis.Label != "" {
		sb.WriteString(basis.Label)
		sb.WriteString(": ")
	}
	if basis.Comp {
		fmt.Fprintf(&sb, "%d %s (comp)", basis.Quantity, unit)
		return sb.String()
	}
	fmt.Fprintf(&sb, "%d %s at %s", basis.Quantity, unit, rate)
	return sb.String()
}
