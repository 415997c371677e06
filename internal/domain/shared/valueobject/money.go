package valueobject

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// CurrencyCode is the only currency the ledger stores. Amounts carry no currency tag.
const CurrencyCode = "USD"

// CentPlaces is the number of decimal places money is rounded to when a charge is settled
const CentPlaces int32 = 2

var hundred = decimal.NewFromInt(100)

// Money is an immutable USD amount backed by an exact decimal.
// The zero value is $0.00 and is ready to use.
type Money struct {
	amount decimal.Decimal
}

// NewMoney creates Money from a decimal amount
func NewMoney(amount decimal.Decimal) Money {
	return Money{amount: amount}
}

// NewMoneyFromInt creates Money from whole dollars
func NewMoneyFromInt(dollars int64) Money {
	return Money{amount: decimal.NewFromInt(dollars)}
}

// NewMoneyFromCents creates Money from an integer number of cents
func NewMoneyFromCents(cents int64) Money {
	return Money{amount: decimal.New(cents, -CentPlaces)}
}

// NewMoneyFromString parses a decimal string such as "12.50"
func NewMoneyFromString(amount string) (Money, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount string: %w", err)
	}
	return Money{amount: d}, nil
}

// MustMoney parses a decimal string and panics on failure. Intended for constants and tests.
func MustMoney(amount string) Money {
	m, err := NewMoneyFromString(amount)
	if err != nil {
		panic(err)
	}
	return m
}

// Zero returns $0
func Zero() Money {
	return Money{}
}

// Sum adds all amounts together
func Sum(amounts ...Money) Money {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a.amount)
	}
	return Money{amount: total}
}

// Amount returns the decimal amount
func (m Money) Amount() decimal.Decimal {
	return m.amount
}

// Cents returns the amount in whole cents, rounding half away from zero
func (m Money) Cents() int64 {
	return m.amount.Round(CentPlaces).Mul(hundred).IntPart()
}

// IsZero returns true if the amount is zero
func (m Money) IsZero() bool {
	return m.amount.IsZero()
}

// IsPositive returns true if the amount is greater than zero
func (m Money) IsPositive() bool {
	return m.amount.IsPositive()
}

// IsNegative returns true if the amount is less than zero
func (m Money) IsNegative() bool {
	return m.amount.IsNegative()
}

// Add returns m + other
func (m Money) Add(other Money) Money {
	return Money{amount: m.amount.Add(other.amount)}
}

// Subtract returns m - other
func (m Money) Subtract(other Money) Money {
	return Money{amount: m.amount.Sub(other.amount)}
}

// Multiply returns m * factor without rounding
func (m Money) Multiply(factor decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(factor)}
}

// MultiplyByInt returns m * factor
func (m Money) MultiplyByInt(factor int64) Money {
	return m.Multiply(decimal.NewFromInt(factor))
}

// Divide returns m / divisor. The result is not rounded.
func (m Money) Divide(divisor decimal.Decimal) (Money, error) {
	if divisor.IsZero() {
		return Money{}, errors.New("cannot divide by zero")
	}
	return Money{amount: m.amount.Div(divisor)}, nil
}

// Ratio returns m / other as a plain decimal, or zero when other is zero
func (m Money) Ratio(other Money) decimal.Decimal {
	if other.amount.IsZero() {
		return decimal.Zero
	}
	return m.amount.Div(other.amount)
}

// Negate returns -m
func (m Money) Negate() Money {
	return Money{amount: m.amount.Neg()}
}

// Abs returns |m|
func (m Money) Abs() Money {
	return Money{amount: m.amount.Abs()}
}

// Round rounds half away from zero to the given number of places
func (m Money) Round(places int32) Money {
	return Money{amount: m.amount.Round(places)}
}

// RoundCents rounds to whole cents
func (m Money) RoundCents() Money {
	return m.Round(CentPlaces)
}

// IsWholeCents reports whether m has no fraction of a cent
func (m Money) IsWholeCents() bool {
	return m.amount.Equal(m.amount.Round(CentPlaces))
}

// Percent returns m * percent / 100, rounded to cents
func (m Money) Percent(percent decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(percent).Div(hundred).Round(CentPlaces)}
}

// Fraction returns m * fraction, rounded to cents. A fraction of 0.05 is five percent.
func (m Money) Fraction(fraction decimal.Decimal) Money {
	return Money{amount: m.amount.Mul(fraction).Round(CentPlaces)}
}

// Max returns the larger of m and other
func (m Money) Max(other Money) Money {
	if other.amount.GreaterThan(m.amount) {
		return other
	}
	return m
}

// Equals compares the numeric value, so 1.0 equals 1.00
func (m Money) Equals(other Money) bool {
	return m.amount.Equal(other.amount)
}

// LessThan returns true if m < other
func (m Money) LessThan(other Money) bool {
	return m.amount.LessThan(other.amount)
}

// LessThanOrEqual returns true if m <= other
func (m Money) LessThanOrEqual(other Money) bool {
	return m.amount.LessThanOrEqual(other.amount)
}

// GreaterThan returns true if m > other
func (m Money) GreaterThan(other Money) bool {
	return m.amount.GreaterThan(other.amount)
}

// GreaterThanOrEqual returns true if m >= other
func (m Money) GreaterThanOrEqual(other Money) bool {
	return m.amount.GreaterThanOrEqual(other.amount)
}

// String formats the amount as "$12.50", or "-$12.50" for negative amounts
func (m Money) String() string {
	if m.amount.IsNegative() {
		return "-$" + m.amount.Neg().StringFixed(CentPlaces)
	}
	return "$" + m.amount.StringFixed(CentPlaces)
}

// StringFixed returns the bare amount with a fixed number of decimal places
func (m Money) StringFixed(places int32) string {
	return m.amount.StringFixed(places)
}

// Float64 returns the amount as a float64 (may lose precision). Only for display and spreadsheets.
func (m Money) Float64() float64 {
	f, _ := m.amount.Float64()
	return f
}

// MarshalJSON encodes the amount as a JSON string with two decimal places
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.amount.StringFixed(CentPlaces))
}

// UnmarshalJSON accepts both "12.50" and 12.5
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("invalid amount: %w", err)
	}
	m.amount = d
	return nil
}

// Value implements driver.Valuer; the column is numeric
func (m Money) Value() (driver.Value, error) {
	return m.amount.String(), nil
}

// Scan implements sql.Scanner
func (m *Money) Scan(value any) error {
	if value == nil {
		m.amount = decimal.Zero
		return nil
	}
	var d decimal.Decimal
	if err := d.Scan(value); err != nil {
		return fmt.Errorf("cannot scan %T into Money: %w", value, err)
	}
	m.amount = d
	return nil
}

// Allocate divides money into n parts, handing leftover cents to the first parts.
// The parts always sum to the original amount.
func (m Money) Allocate(parts int) ([]Money, error) {
	if parts <= 0 {
		return nil, errors.New("parts must be positive")
	}
	if parts == 1 {
		return []Money{m}, nil
	}

	n := decimal.NewFromInt(int64(parts))
	base := m.amount.Div(n).Truncate(CentPlaces)
	remainderCents := m.amount.Sub(base.Mul(n)).Mul(hundred).IntPart()
	cent := decimal.New(1, -CentPlaces)
	if remainderCents < 0 {
		cent = cent.Neg()
		remainderCents = -remainderCents
	}

	result := make([]Money, parts)
	for i := range parts {
		part := base
		if int64(i) < remainderCents {
			part = part.Add(cent)
		}
		result[i] = Money{amount: part}
	}
	return result, nil
}
