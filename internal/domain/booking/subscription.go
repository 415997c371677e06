package booking

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	// ErrEndDateBeforePaidPeriod is returned when shortening a subscription would cut into a paid period
	ErrEndDateBeforePaidPeriod = shared.NewDomainError("END_DATE_BEFORE_PAID_PERIOD",
		"subscription end date cannot be before the end of the last paid period")
	// ErrInvalidSubscription is returned for malformed subscriptions
	ErrInvalidSubscription = shared.NewDomainError("INVALID_SUBSCRIPTION", "invalid subscription")
)

// Period is one monthly billing period of a subscription, half-open [Start, End).
// FullEnd is where the period would end without an end date cutting it short.
type Period struct {
	Index   int
	Start   time.Time
	End     time.Time
	FullEnd time.Time
}

// Days is the number of billed days
func (p Period) Days() int {
	return billing.DaysBetween(p.Start, p.End)
}

// FullDays is the length of the uncut period
func (p Period) FullDays() int {
	return billing.DaysBetween(p.Start, p.FullEnd)
}

// IsPartial reports whether the end date cut the period short
func (p Period) IsPartial() bool {
	return p.End.Before(p.FullEnd)
}

// Subscription is a monthly membership at a location
type Subscription struct {
	shared.BaseAggregateRoot
	LocationID  uuid.UUID
	UserID      uuid.UUID
	Description string
	Price       valueobject.Money
	StartDate   time.Time
	// EndDate is the last day of the membership, inclusive. Nil means open-ended.
	EndDate *time.Time
	Comp    bool
	// Rate replaces Price as the monthly rate when set
	Rate           *valueobject.Money
	SuppressedFees []uuid.UUID
}

// NewSubscription creates a subscription
func NewSubscription(locationID, userID uuid.UUID, description string, price valueobject.Money, start time.Time, end *time.Time) (*Subscription, error) {
	s := &Subscription{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		LocationID:        locationID,
		UserID:            userID,
		Description:       strings.TrimSpace(description),
		Price:             price,
		StartDate:         billing.DateOf(start),
		SuppressedFees:    make([]uuid.UUID, 0),
	}
	if end != nil {
		e := billing.DateOf(*end)
		s.EndDate = &e
	}
	if s.LocationID == uuid.Nil || s.UserID == uuid.Nil {
		return nil, fmt.Errorf("%w: location and user are required", ErrInvalidSubscription)
	}
	if s.Price.IsNegative() {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidSubscription)
	}
	if s.EndDate != nil && s.EndDate.Before(s.StartDate) {
		return nil, fmt.Errorf("%w: end date before start date", ErrInvalidSubscription)
	}
	return s, nil
}

// endExclusive is the first day no longer covered, or nil when open-ended
func (s *Subscription) endExclusive() *time.Time {
	if s.EndDate == nil {
		return nil
	}
	e := s.EndDate.AddDate(0, 0, 1)
	return &e
}

// periodStart returns the start of the i-th period, keeping the start date's
// day of month and clamping it to short months (Jan 31 -> Feb 29 -> Mar 31).
func (s *Subscription) periodStart(i int) time.Time {
	first := time.Date(s.StartDate.Year(), s.StartDate.Month()+time.Month(i), 1, 0, 0, 0, 0, time.UTC)
	lastDay := first.AddDate(0, 1, -1).Day()
	return first.AddDate(0, 0, min(s.StartDate.Day(), lastDay)-1)
}

// PeriodAt returns the i-th period; ok is false past the end date
func (s *Subscription) PeriodAt(i int) (Period, bool) {
	if i < 0 {
		return Period{}, false
	}
	start := s.periodStart(i)
	full := s.periodStart(i + 1)
	end := full
	if ex := s.endExclusive(); ex != nil {
		if !start.Before(*ex) {
			return Period{}, false
		}
		if ex.Before(end) {
			end = *ex
		}
	}
	return Period{Index: i, Start: start, End: end, FullEnd: full}, true
}

// PeriodFor returns the period containing date
func (s *Subscription) PeriodFor(date time.Time) (Period, bool) {
	date = billing.DateOf(date)
	if date.Before(s.StartDate) {
		return Period{}, false
	}
	months := (date.Year()-s.StartDate.Year())*12 + int(date.Month()-s.StartDate.Month())
	for i := max(months-1, 0); i <= months+1; i++ {
		p, ok := s.PeriodAt(i)
		if !ok {
			return Period{}, false
		}
		if !date.Before(p.Start) && date.Before(p.End) {
			return p, true
		}
	}
	return Period{}, false
}

// PeriodsThrough lists every period starting on or before through
func (s *Subscription) PeriodsThrough(through time.Time) []Period {
	through = billing.DateOf(through)
	out := make([]Period, 0)
	for i := 0; ; i++ {
		p, ok := s.PeriodAt(i)
		if !ok || p.Start.After(through) {
			return out
		}
		out = append(out, p)
	}
}

// MonthlyRate is the rate override when one is set, otherwise the price
func (s *Subscription) MonthlyRate() valueobject.Money {
	if s.Rate != nil {
		return *s.Rate
	}
	return s.Price
}

// PriceFor is the monthly rate for a period, prorated by days when the end
// date cuts it short
func (s *Subscription) PriceFor(p Period) valueobject.Money {
	rate := s.MonthlyRate()
	if !p.IsPartial() || p.FullDays() == 0 {
		return rate
	}
	ratio := decimal.NewFromInt(int64(p.Days())).Div(decimal.NewFromInt(int64(p.FullDays())))
	return rate.Multiply(ratio).RoundCents()
}

// SetComp toggles the complimentary flag. Comped periods bill nothing.
func (s *Subscription) SetComp(comp bool) {
	s.Comp = comp
	s.IncrementVersion()
}

// SetRate overrides the monthly rate. Nil falls back to the price.
func (s *Subscription) SetRate(rate *valueobject.Money) error {
	if rate != nil && rate.IsNegative() {
		return fmt.Errorf("%w: rate must not be negative", ErrInvalidSubscription)
	}
	s.Rate = rate
	s.IncrementVersion()
	return nil
}

// Subject is the bill subject of one period
func (s *Subscription) Subject(p Period) (billing.BillSubject, error) {
	return billing.ForSubscription(s.ID, p.Start, p.End)
}

// ChargeBasis describes one period to the fee/rate resolver
func (s *Subscription) ChargeBasis(p Period) (billing.ChargeBasis, error) {
	subject, err := s.Subject(p)
	if err != nil {
		return billing.ChargeBasis{}, err
	}
	price := s.PriceFor(p)
	label := s.Description
	if label == "" {
		label = "Membership"
	}
	if p.IsPartial() {
		label = fmt.Sprintf("%s (%d of %d days)", label, p.Days(), p.FullDays())
	}
	return billing.ChargeBasis{
		Subject:    subject,
		LocationID: s.LocationID,
		Quantity:   1,
		Unit:       "month",
		Rate:       &price,
		Comp:       s.Comp,
		Suppressed: slices.Clone(s.SuppressedFees),
		Label:      label,
	}, nil
}

// UpdateEndDate moves or clears the end date. paidThrough is the end of the
// last period that has any payment; the membership cannot end before it.
func (s *Subscription) UpdateEndDate(end *time.Time, paidThrough *time.Time) error {
	var newEnd *time.Time
	if end != nil {
		e := billing.DateOf(*end)
		if e.Before(s.StartDate) {
			return fmt.Errorf("%w: end date before start date", ErrInvalidSubscription)
		}
		if paidThrough != nil && e.AddDate(0, 0, 1).Before(billing.DateOf(*paidThrough)) {
			return ErrEndDateBeforePaidPeriod
		}
		newEnd = &e
	}
	s.EndDate = newEnd
	s.IncrementVersion()
	return nil
}

// ActiveDaysBetween counts the membership days falling in [start, end)
func (s *Subscription) ActiveDaysBetween(start, end time.Time) int {
	from := laterOf(s.StartDate, billing.DateOf(start))
	to := billing.DateOf(end)
	if ex := s.endExclusive(); ex != nil {
		to = earlierOf(to, *ex)
	}
	return max(billing.DaysBetween(from, to), 0)
}

// SuppressFee stops a fee from being generated on this subscription's bills
func (s *Subscription) SuppressFee(feeID uuid.UUID) {
	if !slices.Contains(s.SuppressedFees, feeID) {
		s.SuppressedFees = append(s.SuppressedFees, feeID)
		s.IncrementVersion()
	}
}

// ResetSuppressedFees lets every location fee apply again
func (s *Subscription) ResetSuppressedFees() {
	if len(s.SuppressedFees) > 0 {
		s.SuppressedFees = make([]uuid.UUID, 0)
		s.IncrementVersion()
	}
}
