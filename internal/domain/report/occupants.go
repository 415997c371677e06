package report

import (
	"time"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/booking"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscribedBills is a membership with every bill generated for it
type SubscribedBills struct {
	Subscription *booking.Subscription
	Bills        []*billing.Bill
}

// OccupantInput is everything BuildOccupants reads
type OccupantInput struct {
	LocationID uuid.UUID
	Start      time.Time
	End        time.Time
	Guests     []BookedBill
	Members    []SubscribedBills
}

// GuestSummary is the nightly-stay side of the occupant report
type GuestSummary struct {
	Count        int             `json:"count"`
	Nights       int             `json:"nights"`
	Value        decimal.Decimal `json:"value"`
	CompedNights int             `json:"comped_nights"`
	Owing        []uuid.UUID     `json:"owing"` // booking IDs with a balance
}

// MemberSummary is the subscription side of the occupant report
type MemberSummary struct {
	Count  int             `json:"count"`
	Days   int             `json:"days"`
	Value  decimal.Decimal `json:"value"`
	Comped []uuid.UUID     `json:"comped"` // subscription IDs with a zero bill in the window
	Owing  []uuid.UUID     `json:"owing"`  // subscription IDs with a balance
}

// Occupants summarizes who stayed in a location during [Start, End)
type Occupants struct {
	LocationID uuid.UUID     `json:"location_id"`
	Start      time.Time     `json:"start"`
	End        time.Time     `json:"end"`
	Guests     GuestSummary  `json:"guests"`
	Members    MemberSummary `json:"members"`
}

// BuildOccupants apportions guest bills by nights and member bills by days
func BuildOccupants(in OccupantInput) *Occupants {
	out := &Occupants{
		LocationID: in.LocationID,
		Start:      in.Start,
		End:        in.End,
		Guests:     GuestSummary{Owing: make([]uuid.UUID, 0)},
		Members:    MemberSummary{Comped: make([]uuid.UUID, 0), Owing: make([]uuid.UUID, 0)},
	}

	for _, g := range in.Guests {
		if g.Booking == nil {
			continue
		}
		nights := g.Booking.Use.NightsBetween(in.Start, in.End)
		if nights == 0 {
			continue
		}
		out.Guests.Count++
		out.Guests.Nights += nights
		if g.Booking.Comp {
			out.Guests.CompedNights += nights
		}
		if g.Bill == nil {
			continue
		}
		out.Guests.Value = out.Guests.Value.Add(apportion(g.Bill.SubtotalAmount().Amount(), nights, g.Booking.Use.TotalNights()))
		if g.Bill.TotalOwed().IsPositive() {
			out.Guests.Owing = append(out.Guests.Owing, g.Booking.ID)
		}
	}

	for _, m := range in.Members {
		if m.Subscription == nil {
			continue
		}
		days := m.Subscription.ActiveDaysBetween(in.Start, in.End)
		if days == 0 {
			continue
		}
		out.Members.Count++
		out.Members.Days += days

		comped, owing := m.Subscription.Comp, false
		for _, b := range m.Bills {
			period, ok := b.Subject.Subscription()
			if !ok {
				continue
			}
			inWindow := overlapDays(period.PeriodStart, period.PeriodEnd, in.Start, in.End)
			if inWindow == 0 {
				continue
			}
			out.Members.Value = out.Members.Value.Add(apportion(b.SubtotalAmount().Amount(), inWindow, period.Days()))
			if b.Amount().IsZero() {
				comped = true
			}
			if b.TotalOwed().IsPositive() {
				owing = true
			}
		}
		if comped {
			out.Members.Comped = append(out.Members.Comped, m.Subscription.ID)
		}
		if owing {
			out.Members.Owing = append(out.Members.Owing, m.Subscription.ID)
		}
	}

	out.Guests.Value = cents(out.Guests.Value)
	out.Members.Value = cents(out.Members.Value)
	return out
}

func overlapDays(aStart, aEnd, bStart, bEnd time.Time) int {
	from := aStart
	if bStart.After(from) {
		from = bStart
	}
	to := aEnd
	if bEnd.Before(to) {
		to = bEnd
	}
	return max(billing.DaysBetween(from, to), 0)
}
