package billing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScenarioBill(t *testing.T) (*Bill, feeFixture, ChargeBasis) {
	t.Helper()
	fx := newFeeFixture()
	basis := bookingBasis(fx.locationID, uuid.New(), 3, moneyPtr("100"))
	bill, err := NewBill(fx.locationID, basis.Subject)
	require.NoError(t, err)

	plan, err := ResolveCharges(basis, fx.fees)
	require.NoError(t, err)
	require.NoError(t, bill.Regenerate(plan, testNow))
	return bill, fx, basis
}

func assertInvariants(t *testing.T, b *Bill) {
	t.Helper()
	assert.True(t, b.Amount().Equals(b.TotalPaid().Add(b.TotalOwed())), "amount == paid + owed")
	assert.True(t, b.Amount().Equals(b.HouseFees().Add(b.NonHouseFees()).Add(b.SubtotalAmount())),
		"house + non-house + subtotal == amount")
}

func TestNewBill(t *testing.T) {
	t.Run("requires a valid subject", func(t *testing.T) {
		_, err := NewBill(uuid.New(), BillSubject{})
		assert.ErrorIs(t, err, ErrInvalidSubject)
	})

	t.Run("requires a location", func(t *testing.T) {
		_, err := NewBill(uuid.Nil, ForBooking(uuid.New()))
		assert.ErrorIs(t, err, ErrConfiguration)
	})

	t.Run("starts empty at version 1", func(t *testing.T) {
		b, err := NewBill(uuid.New(), ForBooking(uuid.New()))
		require.NoError(t, err)
		assert.Equal(t, 1, b.Version)
		assert.True(t, b.Amount().IsZero())
		assert.True(t, b.IsPaid())
		assert.Nil(t, b.GeneratedAt)
	})
}

func TestBill_RegenerateScenario(t *testing.T) {
	bill, fx, _ := newScenarioBill(t)

	require.Len(t, bill.LineItems, 3)
	assert.True(t, bill.LineItems[0].Amount.Equals(money("300")))
	assert.Nil(t, bill.LineItems[0].FeeID)
	assert.True(t, bill.LineItems[1].References(fx.houseFlat.ID))
	assert.True(t, bill.LineItems[1].Amount.Equals(money("10")))
	assert.True(t, bill.LineItems[1].PaidByHouse)
	assert.True(t, bill.LineItems[2].References(fx.guestTax.ID))
	assert.True(t, bill.LineItems[2].Amount.Equals(money("15")))
	assert.False(t, bill.LineItems[2].PaidByHouse)

	assert.True(t, bill.Amount().Equals(money("325")))
	assert.True(t, bill.SubtotalAmount().Equals(money("300")))
	assert.True(t, bill.HouseFees().Equals(money("10")))
	assert.True(t, bill.NonHouseFees().Equals(money("15")))
	assert.True(t, bill.ToHouse().Equals(money("310")))
	assert.NotNil(t, bill.GeneratedAt)
	assertInvariants(t, bill)

	events := bill.GetDomainEvents()
	require.Len(t, events, 1)
	assert.Equal(t, EventTypeBillGenerated, events[0].EventType())
}

func TestBill_RegenerateIsIdempotent(t *testing.T) {
	bill, fx, basis := newScenarioBill(t)
	_, err := bill.AddCustomLineItem("Late checkout", money("20"), false, testNow)
	require.NoError(t, err)

	plan, err := ResolveCharges(basis, fx.fees)
	require.NoError(t, err)
	require.NoError(t, bill.Regenerate(plan, testNow.Add(time.Minute)))
	first := shapes(bill.AutomaticLineItems())
	firstCustom := bill.CustomLineItems()

	require.NoError(t, bill.Regenerate(plan, testNow.Add(2*time.Minute)))
	second := shapes(bill.AutomaticLineItems())

	assert.Equal(t, first, second)
	assert.Equal(t, firstCustom, bill.CustomLineItems())
}

func TestBill_RegenerateKeepsCustomItems(t *testing.T) {
	bill, fx, basis := newScenarioBill(t)
	discount, err := bill.AddCustomLineItem("Discount: returning guest", money("-50"), false, testNow)
	require.NoError(t, err)

	plan, err := ResolveCharges(basis, fx.fees)
	require.NoError(t, err)
	require.NoError(t, bill.Regenerate(plan, testNow))

	custom := bill.CustomLineItems()
	require.Len(t, custom, 1)
	assert.Equal(t, discount.ID, custom[0].ID)

	// subtotal 250, tax 5% on 250
	assert.True(t, bill.SubtotalAmount().Equals(money("250")))
	assert.True(t, bill.NonHouseFees().Equals(money("12.50")))
	assert.True(t, bill.Amount().Equals(money("272.50")))
	assertInvariants(t, bill)
}

func TestBill_RemoveFeeThenRegenerate(t *testing.T) {
	bill, fx, basis := newScenarioBill(t)
	taxItem := bill.LineItems[2]

	removed, err := bill.RemoveLineItem(taxItem.ID)
	require.NoError(t, err)
	require.NotNil(t, removed.FeeID)
	assert.True(t, bill.Amount().Equals(money("310")))

	basis.Suppressed = append(basis.Suppressed, *removed.FeeID)
	plan, err := ResolveCharges(basis, fx.fees)
	require.NoError(t, err)
	require.NoError(t, bill.Regenerate(plan, testNow))

	assert.True(t, bill.Amount().Equals(money("310")))
	for _, li := range bill.LineItems {
		assert.False(t, li.References(fx.guestTax.ID))
	}
	assertInvariants(t, bill)
}

func TestBill_Comp(t *testing.T) {
	fx := newFeeFixture()
	basis := bookingBasis(fx.locationID, uuid.New(), 5, moneyPtr("100"))
	basis.Comp = true
	bill, err := NewBill(fx.locationID, basis.Subject)
	require.NoError(t, err)

	plan, err := ResolveCharges(basis, fx.fees)
	require.NoError(t, err)
	require.NoError(t, bill.Regenerate(plan, testNow))

	require.Len(t, bill.LineItems, 1)
	assert.True(t, bill.LineItems[0].Amount.IsZero())
	assert.Contains(t, bill.LineItems[0].Description, "comp")
	assert.True(t, bill.Amount().IsZero())
	assert.False(t, bill.TotalOwed().IsPositive())
	assert.True(t, bill.IsPaid())

	t.Run("custom fee on a comp is still owed", func(t *testing.T) {
		_, err := bill.AddCustomLineItem("Fee: key replacement", money("15"), false, testNow)
		require.NoError(t, err)
		assert.True(t, bill.TotalOwed().Equals(money("15")))
	})
}

func TestBill_RegenerateRejectsForeignPlan(t *testing.T) {
	bill, fx, _ := newScenarioBill(t)
	other := bookingBasis(fx.locationID, uuid.New(), 3, moneyPtr("100"))
	plan, err := ResolveCharges(other, fx.fees)
	require.NoError(t, err)

	before := shapes(bill.LineItems)
	err = bill.Regenerate(plan, testNow)
	assert.ErrorIs(t, err, ErrInvalidSubject)
	assert.Equal(t, before, shapes(bill.LineItems))
}

func TestBill_LineItemOperations(t *testing.T) {
	t.Run("custom item needs a description and an amount", func(t *testing.T) {
		bill, _, _ := newScenarioBill(t)
		_, err := bill.AddCustomLineItem("  ", money("5"), false, testNow)
		assert.ErrorIs(t, err, ErrInvalidLineItemOperation)
		_, err = bill.AddCustomLineItem("Nothing", money("0"), false, testNow)
		assert.ErrorIs(t, err, ErrInvalidLineItemOperation)
		_, err = bill.AddCustomLineItem("Parking", money("10.005"), false, testNow)
		assert.ErrorIs(t, err, ErrInvalidLineItemOperation)
		assert.Len(t, bill.LineItems, 3)
	})

	t.Run("removing an unknown item fails", func(t *testing.T) {
		bill, _, _ := newScenarioBill(t)
		_, err := bill.RemoveLineItem(uuid.New())
		assert.ErrorIs(t, err, ErrInvalidLineItemOperation)
	})

	t.Run("positions stay contiguous", func(t *testing.T) {
		bill, _, _ := newScenarioBill(t)
		_, err := bill.RemoveLineItem(bill.LineItems[1].ID)
		require.NoError(t, err)
		for i, li := range bill.LineItems {
			assert.Equal(t, i, li.Position)
		}
	})

	t.Run("paid bill is locked only when the policy is on", func(t *testing.T) {
		bill, _, _ := newScenarioBill(t)
		_, err := bill.RecordPayment(PaymentInput{Amount: money("325"), Method: "Cash"}, testNow)
		require.NoError(t, err)

		assert.NoError(t, bill.EnsureEditable(false))
		assert.ErrorIs(t, bill.EnsureEditable(true), ErrInvalidLineItemOperation)
	})

	t.Run("unpaid bill is editable", func(t *testing.T) {
		bill, _, _ := newScenarioBill(t)
		assert.NoError(t, bill.EnsureEditable(true))
	})
}

func TestBill_Allocate(t *testing.T) {
	bill, _, _ := newScenarioBill(t)

	full := bill.Allocate(money("325"))
	assert.True(t, full.NonHouseFees.Equals(money("15")))
	assert.True(t, full.HouseFees.Equals(money("10")))
	assert.True(t, full.ToHouse.Equals(money("310")))

	zero, err := NewBill(uuid.New(), ForBooking(uuid.New()))
	require.NoError(t, err)
	a := zero.Allocate(money("20"))
	assert.True(t, a.ToHouse.Equals(money("20")))
	assert.True(t, a.NonHouseFees.IsZero())
}

func TestBillSubject(t *testing.T) {
	subID := uuid.New()
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)

	t.Run("booking variant", func(t *testing.T) {
		id := uuid.New()
		s := ForBooking(id)
		assert.Equal(t, SubjectBooking, s.Kind())
		b, ok := s.Booking()
		assert.True(t, ok)
		assert.Equal(t, id, b.BookingID)
		_, ok = s.Subscription()
		assert.False(t, ok)
		assert.Equal(t, id, s.OwnerID())
	})

	t.Run("subscription variant", func(t *testing.T) {
		s, err := ForSubscription(subID, start, end)
		require.NoError(t, err)
		sub, ok := s.Subscription()
		assert.True(t, ok)
		assert.Equal(t, 31, sub.Days())
		_, ok = s.Booking()
		assert.False(t, ok)
	})

	t.Run("empty period is rejected", func(t *testing.T) {
		_, err := ForSubscription(subID, start, start)
		assert.ErrorIs(t, err, ErrInvalidSubject)
	})

	t.Run("zero value is invalid", func(t *testing.T) {
		assert.ErrorIs(t, BillSubject{}.Validate(), ErrInvalidSubject)
	})

	t.Run("equality", func(t *testing.T) {
		a, _ := ForSubscription(subID, start, end)
		b, _ := ForSubscription(subID, start.Add(3*time.Hour), end)
		assert.True(t, a.Equal(b))
		assert.False(t, a.Equal(ForBooking(subID)))
	})

	t.Run("a shortened period is still the same bill", func(t *testing.T) {
		a, _ := ForSubscription(subID, start, end)
		b, _ := ForSubscription(subID, start, start.AddDate(0, 0, 10))
		assert.False(t, a.Equal(b))
		assert.True(t, a.SameBill(b))
	})
}
