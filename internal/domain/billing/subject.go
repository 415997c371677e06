package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SubjectKind discriminates what a Bill is billing for
type SubjectKind string

const (
	SubjectBooking      SubjectKind = "booking"
	SubjectSubscription SubjectKind = "subscription"
)

// IsValid checks if the kind is known
func (k SubjectKind) IsValid() bool {
	return k == SubjectBooking || k == SubjectSubscription
}

// String returns the string representation
func (k SubjectKind) String() string {
	return string(k)
}

// BookingSubject is the payload of a booking bill
type BookingSubject struct {
	BookingID uuid.UUID
}

// SubscriptionSubject is the payload of a subscription bill. The period is
// half-open: PeriodStart is billed, PeriodEnd is not.
type SubscriptionSubject struct {
	SubscriptionID uuid.UUID
	PeriodStart    time.Time
	PeriodEnd      time.Time
}

// Days returns the number of days in the billed period
func (s SubscriptionSubject) Days() int {
	return DaysBetween(s.PeriodStart, s.PeriodEnd)
}

// BillSubject is a tagged variant: exactly one of the booking or subscription
// payloads is set, selected by Kind. Construct it with ForBooking or
// ForSubscription; the zero value is invalid.
type BillSubject struct {
	kind         SubjectKind
	booking      BookingSubject
	subscription SubscriptionSubject
}

// ForBooking builds the subject of a booking bill
func ForBooking(bookingID uuid.UUID) BillSubject {
	return BillSubject{kind: SubjectBooking, booking: BookingSubject{BookingID: bookingID}}
}

// ForSubscription builds the subject of one subscription period
func ForSubscription(subscriptionID uuid.UUID, periodStart, periodEnd time.Time) (BillSubject, error) {
	start, end := DateOf(periodStart), DateOf(periodEnd)
	if subscriptionID == uuid.Nil {
		return BillSubject{}, ErrInvalidSubject
	}
	if !end.After(start) {
		return BillSubject{}, fmt.Errorf("%w: period end %s is not after start %s",
			ErrInvalidSubject, end.Format(time.DateOnly), start.Format(time.DateOnly))
	}
	return BillSubject{
		kind: SubjectSubscription,
		subscription: SubscriptionSubject{
			SubscriptionID: subscriptionID,
			PeriodStart:    start,
			PeriodEnd:      end,
		},
	}, nil
}

// Kind returns the discriminator
func (s BillSubject) Kind() SubjectKind {
	return s.kind
}

// Booking returns the booking payload; ok is false for subscription subjects
func (s BillSubject) Booking() (BookingSubject, bool) {
	return s.booking, s.kind == SubjectBooking
}

// Subscription returns the subscription payload; ok is false for booking subjects
func (s BillSubject) Subscription() (SubscriptionSubject, bool) {
	return s.subscription, s.kind == SubjectSubscription
}

// OwnerID returns the booking or subscription ID
func (s BillSubject) OwnerID() uuid.UUID {
	switch s.kind {
	case SubjectBooking:
		return s.booking.BookingID
	case SubjectSubscription:
		return s.subscription.SubscriptionID
	default:
		return uuid.Nil
	}
}

// Validate rejects the zero value and empty payloads
func (s BillSubject) Validate() error {
	switch s.kind {
	case SubjectBooking:
		if s.booking.BookingID == uuid.Nil {
			return fmt.Errorf("%w: booking id is empty", ErrInvalidSubject)
		}
	case SubjectSubscription:
		if s.subscription.SubscriptionID == uuid.Nil {
			return fmt.Errorf("%w: subscription id is empty", ErrInvalidSubject)
		}
		if !s.subscription.PeriodEnd.After(s.subscription.PeriodStart) {
			return fmt.Errorf("%w: empty subscription period", ErrInvalidSubject)
		}
	default:
		return fmt.Errorf("%w: unknown subject kind %q", ErrInvalidSubject, s.kind)
	}
	return nil
}

// Equal compares kind and payload
func (s BillSubject) Equal(other BillSubject) bool {
	if s.kind != other.kind {
		return false
	}
	switch s.kind {
	case SubjectBooking:
		return s.booking == other.booking
	case SubjectSubscription:
		return s.subscription.SubscriptionID == other.subscription.SubscriptionID &&
			s.subscription.PeriodStart.Equal(other.subscription.PeriodStart) &&
			s.subscription.PeriodEnd.Equal(other.subscription.PeriodEnd)
	default:
		return true
	}
}

// SameBill reports whether two subjects name the same bill. A subscription
// period is keyed by its start; its end moves when the end date changes.
func (s BillSubject) SameBill(other BillSubject) bool {
	if s.kind != other.kind {
		return false
	}
	switch s.kind {
	case SubjectBooking:
		return s.booking == other.booking
	case SubjectSubscription:
		return s.subscription.SubscriptionID == other.subscription.SubscriptionID &&
			s.subscription.PeriodStart.Equal(other.subscription.PeriodStart)
	default:
		return false
	}
}

// String is used in logs
func (s BillSubject) String() string {
	switch s.kind {
	case SubjectBooking:
		return "booking:" + s.booking.BookingID.String()
	case SubjectSubscription:
		return fmt.Sprintf("subscription:%s[%s,%s)", s.subscription.SubscriptionID,
			s.subscription.PeriodStart.Format(time.DateOnly), s.subscription.PeriodEnd.Format(time.DateOnly))
	default:
		return "invalid"
	}
}

// DateOf truncates t to its calendar date at UTC midnight
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole days from start to end. Negative when end is before start.
func DaysBetween(start, end time.Time) int {
	return int(DateOf(end).Sub(DateOf(start)).Hours() / 24)
}
