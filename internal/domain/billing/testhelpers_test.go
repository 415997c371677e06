package billing

import (
	"time"

	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func money(s string) valueobject.Money {
	return valueobject.MustMoney(s)
}

func moneyPtr(s string) *valueobject.Money {
	m := valueobject.MustMoney(s)
	return &m
}

func boolPtr(b bool) *bool {
	return &b
}

type feeFixture struct {
	locationID uuid.UUID
	houseFlat  *Fee
	guestTax   *Fee
	fees       []LocationFee
}

// newFeeFixture builds a flat $10 house-paid fee and a 5% guest-paid fee at one location
func newFeeFixture() feeFixture {
	loc := uuid.New()
	cleaning, err := NewFlatFee("Cleaning", money("10"), true)
	if err != nil {
		panic(err)
	}
	tax, err := NewPercentageFee("Hotel tax", decimal.RequireFromString("0.05"), false)
	if err != nil {
		panic(err)
	}
	return feeFixture{
		locationID: loc,
		houseFlat:  cleaning,
		guestTax:   tax,
		fees: []LocationFee{
			NewLocationFee(loc, cleaning, nil),
			NewLocationFee(loc, tax, nil),
		},
	}
}

func bookingBasis(loc uuid.UUID, bookingID uuid.UUID, nights int, rate *valueobject.Money) ChargeBasis {
	return ChargeBasis{
		Subject:     ForBooking(bookingID),
		LocationID:  loc,
		Quantity:    nights,
		Unit:        "night",
		Rate:        rate,
		DefaultRate: moneyPtr("80"),
		Label:       "Room 1",
	}
}

type itemShape struct {
	Description string
	Amount      string
	PaidByHouse bool
	Custom      bool
	FeeID       *uuid.UUID
}

func shapes(items []LineItem) []itemShape {
	out := make([]itemShape, 0, len(items))
	for _, li := range items {
		out = append(out, itemShape{
			Description: li.Description,
			Amount:      li.Amount.StringFixed(2),
			PaidByHouse: li.PaidByHouse,
			Custom:      li.Custom,
			FeeID:       li.FeeID,
		})
	}
	return out
}
