package billing

import (
	"fmt"
	"strings"

	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeBasis says how a fee amount is calculated
type FeeBasis string

const (
	// FeeBasisFlat charges a fixed amount per bill
	FeeBasisFlat FeeBasis = "flat"
	// FeeBasisPercentage charges a fraction of the pre-fee subtotal
	FeeBasisPercentage FeeBasis = "percentage"
)

// IsValid checks if the basis is known
func (b FeeBasis) IsValid() bool {
	return b == FeeBasisFlat || b == FeeBasisPercentage
}

// Fee is a reusable charge template, e.g. "Hotel tax 5%" or "Cleaning $10"
type Fee struct {
	shared.BaseEntity
	Name        string
	Description string
	Basis       FeeBasis
	// Percentage is a fraction: 0.05 means five percent
	Percentage  decimal.Decimal
	FlatAmount  valueobject.Money
	PaidByHouse bool
}

// NewPercentageFee creates a fee charged as a fraction of the subtotal
func NewPercentageFee(name string, percentage decimal.Decimal, paidByHouse bool) (*Fee, error) {
	f := &Fee{
		BaseEntity:  shared.NewBaseEntity(),
		Name:        strings.TrimSpace(name),
		Basis:       FeeBasisPercentage,
		Percentage:  percentage,
		PaidByHouse: paidByHouse,
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// NewFlatFee creates a fee with a fixed amount
func NewFlatFee(name string, amount valueobject.Money, paidByHouse bool) (*Fee, error) {
	f := &Fee{
		BaseEntity:  shared.NewBaseEntity(),
		Name:        strings.TrimSpace(name),
		Basis:       FeeBasisFlat,
		FlatAmount:  amount,
		PaidByHouse: paidByHouse,
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the fee definition
func (f *Fee) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidFee)
	}
	switch f.Basis {
	case FeeBasisPercentage:
		if !f.Percentage.IsPositive() || f.Percentage.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("%w: percentage must be in (0, 1], got %s", ErrInvalidFee, f.Percentage)
		}
	case FeeBasisFlat:
		if !f.FlatAmount.IsPositive() {
			return fmt.Errorf("%w: flat amount must be positive, got %s", ErrInvalidFee, f.FlatAmount)
		}
	default:
		return fmt.Errorf("%w: unknown basis %q", ErrInvalidFee, f.Basis)
	}
	return nil
}

// AmountOn calculates the fee on a pre-fee subtotal
func (f *Fee) AmountOn(subtotal valueobject.Money) valueobject.Money {
	if f.Basis == FeeBasisFlat {
		return f.FlatAmount
	}
	return subtotal.Fraction(f.Percentage)
}

// Label is the line item description for the fee
func (f *Fee) Label() string {
	if f.Basis == FeeBasisPercentage {
		return fmt.Sprintf("%s (%s%%)", f.Name, f.Percentage.Mul(decimal.NewFromInt(100)).String())
	}
	return f.Name
}

// LocationFee attaches a Fee to a house. PaidByHouse, when set, overrides the
// fee's own default for that house.
type LocationFee struct {
	ID          uuid.UUID
	LocationID  uuid.UUID
	FeeID       uuid.UUID
	PaidByHouse *bool
	Fee         *Fee
}

// NewLocationFee attaches fee to a location, optionally overriding who pays it
func NewLocationFee(locationID uuid.UUID, fee *Fee, paidByHouse *bool) LocationFee {
	return LocationFee{
		ID:          uuid.New(),
		LocationID:  locationID,
		FeeID:       fee.ID,
		PaidByHouse: paidByHouse,
		Fee:         fee,
	}
}

// ResolvedPaidByHouse applies the location override over the fee default
func (lf LocationFee) ResolvedPaidByHouse() bool {
	if lf.PaidByHouse != nil {
		return *lf.PaidByHouse
	}
	if lf.Fee == nil {
		return false
	}
	return lf.Fee.PaidByHouse
}
