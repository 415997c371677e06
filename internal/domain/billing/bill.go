package billing

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Bill is the accounting record of one booking or one subscription period.
//
// Invariants, all derived from the collections and never stored:
//
//	Amount     == sum of line item amounts
//	TotalPaid  == sum of payment amounts (refunds are negative)
//	TotalOwed  == Amount - TotalPaid
type Bill struct {
	shared.BaseAggregateRoot
	LocationID  uuid.UUID
	Subject     BillSubject
	GeneratedAt *time.Time
	Comment     string
	LineItems   []LineItem
	Payments    []Payment
}

// NewBill creates an empty bill for a subject
func NewBill(locationID uuid.UUID, subject BillSubject) (*Bill, error) {
	if err := subject.Validate(); err != nil {
		return nil, err
	}
	if locationID == uuid.Nil {
		return nil, configurationError("billing: bill for %s has no location", subject)
	}
	return &Bill{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		LocationID:        locationID,
		Subject:           subject,
		LineItems:         make([]LineItem, 0),
		Payments:          make([]Payment, 0),
	}, nil
}

// Regenerate replaces every automatic line item with the ones described by plan.
// Custom items are kept as they are. Percentage fees are charged on the subtotal
// of the new base item plus the custom items, with no compounding, so applying
// the same plan twice yields the same items.
func (b *Bill) Regenerate(plan *ChargePlan, now time.Time) error {
	if plan == nil {
		return configurationError("billing: nothing to regenerate bill %s from", b.ID)
	}
	if !plan.Subject.SameBill(b.Subject) {
		return fmt.Errorf("%w: plan for %s applied to bill of %s", ErrInvalidSubject, plan.Subject, b.Subject)
	}
	b.Subject = plan.Subject

	custom := b.CustomLineItems()
	items := make([]LineItem, 0, 1+len(plan.Fees)+len(custom))

	base := plan.BaseAmount()
	items = append(items, b.newItem(plan.BaseDescription, base, false, false, nil, now))

	subtotal := base
	for _, c := range custom {
		if !c.IsFee() {
			subtotal = subtotal.Add(c.Amount)
		}
	}

	for _, fee := range plan.Fees {
		feeID := fee.FeeID
		items = append(items, b.newItem(fee.Label, fee.AmountOn(subtotal), fee.PaidByHouse, false, &feeID, now))
	}
	items = append(items, custom...)

	for i := range items {
		items[i].Position = i
	}
	b.LineItems = items
	generated := now
	b.GeneratedAt = &generated
	b.IncrementVersion()
	b.AddDomainEvent(NewBillGeneratedEvent(b))
	return nil
}

// AddCustomLineItem appends a manual adjustment. It does not trigger regeneration.
func (b *Bill) AddCustomLineItem(description string, amount valueobject.Money, paidByHouse bool, now time.Time) (*LineItem, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, lineItemError("billing: line item description is required")
	}
	if amount.IsZero() {
		return nil, lineItemError("billing: line item amount must not be zero")
	}
	if !amount.IsWholeCents() {
		return nil, lineItemError("billing: line item amount %s is not whole cents", amount.Amount())
	}
	item := b.newItem(description, amount, paidByHouse, true, nil, now)
	item.Position = len(b.LineItems)
	b.LineItems = append(b.LineItems, item)
	b.IncrementVersion()
	return &b.LineItems[len(b.LineItems)-1], nil
}

// RemoveLineItem deletes an item from the bill and returns it.
// The caller is responsible for suppressing a removed fee on the subject.
func (b *Bill) RemoveLineItem(itemID uuid.UUID) (LineItem, error) {
	idx := slices.IndexFunc(b.LineItems, func(li LineItem) bool { return li.ID == itemID })
	if idx < 0 {
		return LineItem{}, lineItemError("billing: line item %s does not belong to bill %s", itemID, b.ID)
	}
	removed := b.LineItems[idx]
	b.LineItems = slices.Delete(b.LineItems, idx, idx+1)
	for i := range b.LineItems {
		b.LineItems[i].Position = i
	}
	b.IncrementVersion()
	return removed, nil
}

// EnsureEditable rejects line item changes on a settled bill when paid bills are locked
func (b *Bill) EnsureEditable(lockPaidBills bool) error {
	if lockPaidBills && len(b.Payments) > 0 && b.IsPaid() {
		return lineItemError("billing: bill %s is paid and locked", b.ID)
	}
	return nil
}

// FindLineItem returns the item with the given ID, or nil
func (b *Bill) FindLineItem(itemID uuid.UUID) *LineItem {
	for i := range b.LineItems {
		if b.LineItems[i].ID == itemID {
			return &b.LineItems[i]
		}
	}
	return nil
}

// AutomaticLineItems returns the items owned by regeneration
func (b *Bill) AutomaticLineItems() []LineItem {
	out := make([]LineItem, 0, len(b.LineItems))
	for _, li := range b.LineItems {
		if li.IsAutomatic() {
			out = append(out, li)
		}
	}
	return out
}

// CustomLineItems returns the manually added items
func (b *Bill) CustomLineItems() []LineItem {
	out := make([]LineItem, 0)
	for _, li := range b.LineItems {
		if li.Custom {
			out = append(out, li)
		}
	}
	return out
}

func (b *Bill) newItem(description string, amount valueobject.Money, paidByHouse, custom bool, feeID *uuid.UUID, now time.Time) LineItem {
	return LineItem{
		ID:          uuid.New(),
		BillID:      b.ID,
		Description: description,
		Amount:      amount,
		PaidByHouse: paidByHouse,
		Custom:      custom,
		FeeID:       feeID,
		CreatedAt:   now,
	}
}

// Amount is the total of all line items
func (b *Bill) Amount() valueobject.Money {
	total := valueobject.Zero()
	for _, li := range b.LineItems {
		total = total.Add(li.Amount)
	}
	return total
}

// HouseFees sums fee items borne by the house
func (b *Bill) HouseFees() valueobject.Money {
	total := valueobject.Zero()
	for _, li := range b.LineItems {
		if li.IsFee() && li.PaidByHouse {
			total = total.Add(li.Amount)
		}
	}
	return total
}

// NonHouseFees sums fee items passed on to third parties (taxes and the like)
func (b *Bill) NonHouseFees() valueobject.Money {
	total := valueobject.Zero()
	for _, li := range b.LineItems {
		if li.IsFee() && !li.PaidByHouse {
			total = total.Add(li.Amount)
		}
	}
	return total
}

// ToHouse is what the house keeps: the amount minus non-house fees
func (b *Bill) ToHouse() valueobject.Money {
	return b.Amount().Subtract(b.NonHouseFees())
}

// SubtotalAmount is the amount without any fee items: the base charge plus manual adjustments
func (b *Bill) SubtotalAmount() valueobject.Money {
	total := valueobject.Zero()
	for _, li := range b.LineItems {
		if !li.IsFee() {
			total = total.Add(li.Amount)
		}
	}
	return total
}

// TotalPaid sums payments and refunds
func (b *Bill) TotalPaid() valueobject.Money {
	total := valueobject.Zero()
	for _, p := range b.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// TotalOwed may be negative when the guest overpaid
func (b *Bill) TotalOwed() valueobject.Money {
	return b.Amount().Subtract(b.TotalPaid())
}

// IsPaid reports whether nothing is owed
func (b *Bill) IsPaid() bool {
	return !b.TotalOwed().IsPositive()
}

// Allocate splits a payment amount in the bill's proportions of fees to amount
func (b *Bill) Allocate(amount valueobject.Money) PaymentAllocation {
	total := b.Amount()
	if total.IsZero() {
		return PaymentAllocation{ToHouse: amount}
	}
	nonHouse := amount.Multiply(b.NonHouseFees().Ratio(total)).RoundCents()
	house := amount.Multiply(b.HouseFees().Ratio(total)).RoundCents()
	return PaymentAllocation{
		ToHouse:      amount.Subtract(nonHouse),
		HouseFees:    house,
		NonHouseFees: nonHouse,
	}
}
