package report

import (
	"slices"
	"strings"
	"time"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/booking"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookedBill is a booking together with its bill
type BookedBill struct {
	Booking *booking.Booking
	Bill    *billing.Bill
}

// OccupancyInput is everything BuildMonthlyOccupancy reads
type OccupancyInput struct {
	LocationID uuid.UUID
	Year       int
	Month      time.Month
	Resources  []booking.Resource
	// Stays are confirmed bookings whose stay intersects the month
	Stays []BookedBill
	// Paid are bookings with at least one payment dated in the month, wherever their stay falls
	Paid []BookedBill
}

// OccupancyLine is one booking's share of the month
type OccupancyLine struct {
	BookingID       uuid.UUID       `json:"booking_id"`
	ResourceID      uuid.UUID       `json:"resource_id"`
	ResourceName    string          `json:"resource_name"`
	UserID          uuid.UUID       `json:"user_id"`
	NightsThisMonth int             `json:"nights_this_month"`
	TotalNights     int             `json:"total_nights"`
	Rate            decimal.Decimal `json:"rate"`  // subtotal per night, discounts included
	Total           decimal.Decimal `json:"total"` // rate * nights this month
	Comp            bool            `json:"comp"`
	Unpaid          bool            `json:"unpaid"`
	PartialPayment  bool            `json:"partial_payment"`
	TotalOwed       decimal.Decimal `json:"total_owed"`
}

// RoomOccupancy is one room's month
type RoomOccupancy struct {
	ResourceID       uuid.UUID       `json:"resource_id"`
	Name             string          `json:"name"`
	OccupiedNights   int             `json:"occupied_nights"`
	ReservableNights int             `json:"reservable_nights"`
	OccupancyRate    decimal.Decimal `json:"occupancy_rate"` // percent, may exceed 100 when overbooked
	Income           decimal.Decimal `json:"income"`         // to-house value accrued this month
	PaymentsCash     decimal.Decimal `json:"payments_cash"`  // payments received this month for the room
	PaymentsAccrual  decimal.Decimal `json:"payments_accrual"`
	OutstandingValue decimal.Decimal `json:"outstanding_value"`
	CompedNights     int             `json:"comped_nights"`
	CompedValue      decimal.Decimal `json:"comped_value"` // comped nights at the room default rate
	TotalUserValue   decimal.Decimal `json:"total_user_value"`
	NetToHouse       decimal.Decimal `json:"net_to_house"`
	ExternalizedFees decimal.Decimal `json:"externalized_fees"`
	InternalFees     decimal.Decimal `json:"internal_fees"`
}

// MonthlyOccupancy is the accrual and cash picture of one location for one month.
//
// Accrual figures apportion each bill linearly over its nights:
// value_this_month = bill value / total nights * nights this month.
// Cash figures take payments dated in the month whatever period they pay for.
// Stays edited after payment, partial refunds and mid-stay fee changes make the
// income split between months approximate.
type MonthlyOccupancy struct {
	LocationID uuid.UUID       `json:"location_id"`
	Start      time.Time       `json:"start"`
	End        time.Time       `json:"end"`
	Lines      []OccupancyLine `json:"lines"`
	Rooms      []RoomOccupancy `json:"rooms"`

	TotalOccupiedNights   int             `json:"total_occupied_nights"`
	TotalReservableNights int             `json:"total_reservable_nights"`
	OverallOccupancy      decimal.Decimal `json:"overall_occupancy"`

	TotalIncome      decimal.Decimal `json:"total_income"` // to-house accrual of non-comp stays
	TotalUserValue   decimal.Decimal `json:"total_user_value"`
	ExternalizedFees decimal.Decimal `json:"externalized_fees"`
	InternalFees     decimal.Decimal `json:"internal_fees"`
	CompedNights     int             `json:"comped_nights"`
	CompedValue      decimal.Decimal `json:"comped_value"`
	UnpaidTotal      decimal.Decimal `json:"unpaid_total"`

	PaymentsCash        decimal.Decimal `json:"payments_cash"`
	PaymentsAccrual     decimal.Decimal `json:"payments_accrual"`
	OutstandingValue    decimal.Decimal `json:"outstanding_value"`
	PartialPaidBookings []uuid.UUID     `json:"partial_paid_bookings"`

	IncomeForThisMonth         decimal.Decimal `json:"income_for_this_month"`   // paid this month for nights this month
	IncomeFromPastMonths       decimal.Decimal `json:"income_from_past_months"` // paid earlier for nights this month
	IncomeForFutureMonths      decimal.Decimal `json:"income_for_future_months"`
	IncomeForPastMonths        decimal.Decimal `json:"income_for_past_months"`
	TotalIncomeForThisMonth    decimal.Decimal `json:"total_income_for_this_month"`
	TotalIncomeDuringThisMonth decimal.Decimal `json:"total_income_during_this_month"`

	PaidRateDiscrepancy  decimal.Decimal `json:"paid_rate_discrepancy"`
	PaymentDiscrepancies []uuid.UUID     `json:"payment_discrepancies"`
}

// BuildMonthlyOccupancy walks the stays and payments of a month. It never
// counts a night twice: every stay contributes exactly its nights inside
// [start, end), and stays with no night in the month are skipped.
func BuildMonthlyOccupancy(in OccupancyInput) *MonthlyOccupancy {
	start, end := MonthWindow(in.Year, in.Month)
	out := &MonthlyOccupancy{
		LocationID:           in.LocationID,
		Start:                start,
		End:                  end,
		Lines:                make([]OccupancyLine, 0),
		Rooms:                make([]RoomOccupancy, 0, len(in.Resources)),
		PartialPaidBookings:  make([]uuid.UUID, 0),
		PaymentDiscrepancies: make([]uuid.UUID, 0),
	}

	rooms := make(map[uuid.UUID]*RoomOccupancy, len(in.Resources))
	order := make([]uuid.UUID, 0, len(in.Resources))
	for _, r := range in.Resources {
		rooms[r.ID] = &RoomOccupancy{
			ResourceID:       r.ID,
			Name:             r.Name,
			ReservableNights: r.ReservableNightsBetween(start, end),
		}
		order = append(order, r.ID)
	}
	room := func(id uuid.UUID) *RoomOccupancy {
		if acc, ok := rooms[id]; ok {
			return acc
		}
		acc := &RoomOccupancy{ResourceID: id}
		rooms[id] = acc
		order = append(order, id)
		return acc
	}
	defaultRate := func(id uuid.UUID) decimal.Decimal {
		for _, r := range in.Resources {
			if r.ID == id && r.DefaultRate != nil {
				return r.DefaultRate.Amount()
			}
		}
		return decimal.Zero
	}

	// cash received this month, apportioned to the months the nights fall in
	for _, bb := range in.Paid {
		if bb.Booking == nil || bb.Bill == nil {
			continue
		}
		use := bb.Booking.Use
		total := use.TotalNights()
		before := use.NightsBetween(use.Arrive, start)
		after := use.NightsBetween(end, use.Depart)
		for _, p := range bb.Bill.PaymentsBetween(start, end) {
			toHouse := bb.Bill.Allocate(p.Amount).ToHouse.Amount()
			out.IncomeForFutureMonths = out.IncomeForFutureMonths.Add(apportion(toHouse, after, total))
			out.IncomeForPastMonths = out.IncomeForPastMonths.Add(apportion(toHouse, before, total))
			out.PaymentsCash = out.PaymentsCash.Add(p.Amount.Amount())
			acc := room(use.ResourceID)
			acc.PaymentsCash = acc.PaymentsCash.Add(p.Amount.Amount())
		}
	}

	for _, bb := range in.Stays {
		if bb.Booking == nil || bb.Bill == nil {
			continue
		}
		use := bb.Booking.Use
		nights := use.NightsBetween(start, end)
		if nights == 0 {
			continue
		}
		total := use.TotalNights()
		bill := bb.Bill
		acc := room(use.ResourceID)

		line := OccupancyLine{
			BookingID:       bb.Booking.ID,
			ResourceID:      use.ResourceID,
			ResourceName:    acc.Name,
			UserID:          use.UserID,
			NightsThisMonth: nights,
			TotalNights:     total,
			Rate:            cents(apportion(bill.SubtotalAmount().Amount(), 1, total)),
			Total:           cents(apportion(bill.SubtotalAmount().Amount(), nights, total)),
			Comp:            bb.Booking.Comp,
		}

		acc.OccupiedNights += nights
		out.TotalOccupiedNights += nights

		if bb.Booking.Comp {
			comped := defaultRate(use.ResourceID).Mul(decimal.NewFromInt(int64(nights)))
			acc.CompedNights += nights
			acc.CompedValue = acc.CompedValue.Add(comped)
			out.CompedNights += nights
			out.CompedValue = out.CompedValue.Add(comped)
			out.Lines = append(out.Lines, line)
			continue
		}

		toHouse := apportion(bill.ToHouse().Amount(), nights, total)
		userValue := apportion(bill.Amount().Amount(), nights, total)
		external := apportion(bill.NonHouseFees().Amount(), nights, total)
		internal := apportion(bill.HouseFees().Amount(), nights, total)

		acc.Income = acc.Income.Add(toHouse)
		acc.TotalUserValue = acc.TotalUserValue.Add(userValue)
		acc.NetToHouse = acc.NetToHouse.Add(toHouse)
		acc.ExternalizedFees = acc.ExternalizedFees.Add(external)
		acc.InternalFees = acc.InternalFees.Add(internal)
		out.TotalIncome = out.TotalIncome.Add(toHouse)
		out.TotalUserValue = out.TotalUserValue.Add(userValue)
		out.ExternalizedFees = out.ExternalizedFees.Add(external)
		out.InternalFees = out.InternalFees.Add(internal)

		if len(bill.Payments) > 0 {
			acc.PaymentsAccrual = acc.PaymentsAccrual.Add(toHouse)
			out.PaymentsAccrual = out.PaymentsAccrual.Add(toHouse)

			paidRate := apportion(bill.TotalPaid().Subtract(bill.NonHouseFees()).Amount(), 1, total)
			rate := apportion(bill.SubtotalAmount().Amount(), 1, total)
			if !cents(paidRate).Equal(cents(rate)) {
				out.PaidRateDiscrepancy = out.PaidRateDiscrepancy.Add(paidRate.Sub(rate).Mul(decimal.NewFromInt(int64(nights))))
				out.PaymentDiscrepancies = append(out.PaymentDiscrepancies, bb.Booking.ID)
			}
		}

		if bill.IsPaid() {
			for _, p := range bill.Payments {
				share := apportion(bill.Allocate(p.Amount).ToHouse.Amount(), nights, total)
				switch {
				case p.PaymentDate.Before(start):
					out.IncomeFromPastMonths = out.IncomeFromPastMonths.Add(share)
				case p.PaymentDate.Before(end):
					out.IncomeForThisMonth = out.IncomeForThisMonth.Add(share)
				}
			}
		} else {
			line.Unpaid = true
			out.UnpaidTotal = out.UnpaidTotal.Add(toHouse)
			owed := bill.TotalOwed().Amount()
			line.TotalOwed = owed
			acc.OutstandingValue = acc.OutstandingValue.Add(owed)
			out.OutstandingValue = out.OutstandingValue.Add(owed)
			if bill.TotalOwed().LessThan(bill.Amount()) {
				line.PartialPayment = true
				out.PartialPaidBookings = append(out.PartialPaidBookings, bb.Booking.ID)
			}
		}
		out.Lines = append(out.Lines, line)
	}

	for _, id := range order {
		acc := rooms[id]
		acc.OccupancyRate = percentOf(acc.OccupiedNights, acc.ReservableNights)
		roundRoom(acc)
		out.TotalReservableNights += acc.ReservableNights
		out.Rooms = append(out.Rooms, *acc)
	}
	slices.SortStableFunc(out.Rooms, func(a, b RoomOccupancy) int {
		return strings.Compare(a.Name, b.Name)
	})
	out.OverallOccupancy = percentOf(out.TotalOccupiedNights, out.TotalReservableNights)
	out.TotalIncomeForThisMonth = out.IncomeForThisMonth.Add(out.IncomeFromPastMonths)
	out.TotalIncomeDuringThisMonth = out.IncomeForThisMonth.Add(out.IncomeForFutureMonths).Add(out.IncomeForPastMonths)
	roundTotals(out)
	return out
}

func roundRoom(r *RoomOccupancy) {
	r.Income = cents(r.Income)
	r.PaymentsCash = cents(r.PaymentsCash)
	r.PaymentsAccrual = cents(r.PaymentsAccrual)
	r.OutstandingValue = cents(r.OutstandingValue)
	r.CompedValue = cents(r.CompedValue)
	r.TotalUserValue = cents(r.TotalUserValue)
	r.NetToHouse = cents(r.NetToHouse)
	r.ExternalizedFees = cents(r.ExternalizedFees)
	r.InternalFees = cents(r.InternalFees)
}

func roundTotals(m *MonthlyOccupancy) {
	for _, d := range []*decimal.Decimal{
		&m.TotalIncome, &m.TotalUserValue, &m.ExternalizedFees, &m.InternalFees,
		&m.CompedValue, &m.UnpaidTotal, &m.PaymentsCash, &m.PaymentsAccrual,
		&m.OutstandingValue, &m.IncomeForThisMonth, &m.IncomeFromPastMonths,
		&m.IncomeForFutureMonths, &m.IncomeForPastMonths, &m.TotalIncomeForThisMonth,
		&m.TotalIncomeDuringThisMonth, &m.PaidRateDiscrepancy,
	} {
		*d = cents(*d)
	}
}
