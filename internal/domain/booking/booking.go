package booking

import (
	"fmt"
	"slices"
	"time"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Status is the lifecycle state of a Use
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusConfirmed Status = "confirmed"
	StatusCanceled  Status = "canceled"
)

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusConfirmed, StatusCanceled:
		return true
	}
	return false
}

var (
	// ErrInvalidDates is returned for stays with no billable nights
	ErrInvalidDates = shared.NewDomainError("INVALID_DATES", "booking must depart at least one day after arrival")
	// ErrInvalidStatus is returned for unknown status values
	ErrInvalidStatus = shared.NewDomainError("INVALID_STATUS", "invalid booking status")
)

// Use is the date/resource/status part of a booking
type Use struct {
	Arrive     time.Time
	Depart     time.Time
	ResourceID uuid.UUID
	LocationID uuid.UUID
	UserID     uuid.UUID
	Status     Status
	Purpose    string
}

// TotalNights is depart - arrive in whole days
func (u Use) TotalNights() int {
	return billing.DaysBetween(u.Arrive, u.Depart)
}

// NightsBetween counts the nights of the stay falling in [start, end). Never negative.
func (u Use) NightsBetween(start, end time.Time) int {
	from := laterOf(billing.DateOf(u.Arrive), billing.DateOf(start))
	to := earlierOf(billing.DateOf(u.Depart), billing.DateOf(end))
	return max(billing.DaysBetween(from, to), 0)
}

// Booking is a guest stay. It owns one bill, created with the booking.
type Booking struct {
	shared.BaseAggregateRoot
	Use            Use
	Comp           bool
	Rate           *valueobject.Money
	SuppressedFees []uuid.UUID
	BillID         uuid.UUID
}

// NewBooking creates a pending booking. Zero-night stays are rejected here so
// billing never sees them.
func NewBooking(use Use, rate *valueobject.Money) (*Booking, error) {
	use.Arrive = billing.DateOf(use.Arrive)
	use.Depart = billing.DateOf(use.Depart)
	if use.Status == "" {
		use.Status = StatusPending
	}
	b := &Booking{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Use:               use,
		Rate:              rate,
		SuppressedFees:    make([]uuid.UUID, 0),
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Booking) validate() error {
	if b.Use.ResourceID == uuid.Nil || b.Use.LocationID == uuid.Nil {
		return shared.NewDomainError("INVALID_BOOKING", "booking needs a resource and a location")
	}
	if b.Use.TotalNights() < 1 {
		return ErrInvalidDates
	}
	if !b.Use.Status.IsValid() {
		return ErrInvalidStatus
	}
	if b.Rate != nil && b.Rate.IsNegative() {
		return shared.NewDomainError("INVALID_BOOKING", "rate must not be negative")
	}
	return nil
}

// Subject is the bill subject of this booking
func (b *Booking) Subject() billing.BillSubject {
	return billing.ForBooking(b.ID)
}

// ChangeDates moves the stay
func (b *Booking) ChangeDates(arrive, depart time.Time) error {
	use := b.Use
	use.Arrive = billing.DateOf(arrive)
	use.Depart = billing.DateOf(depart)
	if use.TotalNights() < 1 {
		return ErrInvalidDates
	}
	b.Use = use
	b.IncrementVersion()
	return nil
}

// SetStatus changes the lifecycle state
func (b *Booking) SetStatus(s Status) error {
	if !s.IsValid() {
		return ErrInvalidStatus
	}
	b.Use.Status = s
	b.IncrementVersion()
	return nil
}

// SetComp toggles the complimentary flag
func (b *Booking) SetComp(comp bool) {
	b.Comp = comp
	b.IncrementVersion()
}

// SetRate overrides the nightly rate. Nil falls back to the room default.
func (b *Booking) SetRate(rate *valueobject.Money) error {
	if rate != nil && rate.IsNegative() {
		return shared.NewDomainError("INVALID_BOOKING", "rate must not be negative")
	}
	b.Rate = rate
	b.IncrementVersion()
	return nil
}

// SuppressFee stops a fee from being generated on this booking's bill
func (b *Booking) SuppressFee(feeID uuid.UUID) {
	if !slices.Contains(b.SuppressedFees, feeID) {
		b.SuppressedFees = append(b.SuppressedFees, feeID)
		b.IncrementVersion()
	}
}

// ResetSuppressedFees lets every location fee apply again
func (b *Booking) ResetSuppressedFees() {
	if len(b.SuppressedFees) > 0 {
		b.SuppressedFees = make([]uuid.UUID, 0)
		b.IncrementVersion()
	}
}

// LinkBill records the bill generated for this booking
func (b *Booking) LinkBill(billID uuid.UUID) {
	if b.BillID != billID {
		b.BillID = billID
		b.IncrementVersion()
	}
}

// IsActive reports whether the booking counts toward occupancy
func (b *Booking) IsActive() bool {
	return b.Use.Status == StatusConfirmed
}

// ChargeBasis describes this booking to the fee/rate resolver
func (b *Booking) ChargeBasis(resource *Resource) (billing.ChargeBasis, error) {
	if resource == nil {
		return billing.ChargeBasis{}, fmt.Errorf("%w: resource %s not found for booking %s",
			billing.ErrConfiguration, b.Use.ResourceID, b.ID)
	}
	if resource.LocationID != b.Use.LocationID {
		return billing.ChargeBasis{}, fmt.Errorf("%w: resource %s belongs to location %s, booking %s to %s",
			billing.ErrConfiguration, resource.ID, resource.LocationID, b.ID, b.Use.LocationID)
	}
	return billing.ChargeBasis{
		Subject:     b.Subject(),
		LocationID:  b.Use.LocationID,
		Quantity:    b.Use.TotalNights(),
		Unit:        "night",
		Rate:        b.Rate,
		DefaultRate: resource.DefaultRate,
		Comp:        b.Comp,
		Suppressed:  slices.Clone(b.SuppressedFees),
		Label:       resource.Name,
	}, nil
}

func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earlierOf(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
