package billing

import (
	"context"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/booking"
)

// TransactionScope runs a unit of work atomically. If fn returns an error
// every write made through repos is rolled back.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories hands out repositories bound to the current transaction.
//
// Bill owns its line items and payments; they are written through BillRepo only.
// Bookings and subscriptions are touched in the same transaction when a removed
// fee has to be suppressed on the bill's subject.
type TransactionalRepositories interface {
	BillRepo() billing.BillRepository
	FeeRepo() billing.FeeRepository
	BookingRepo() booking.BookingRepository
	SubscriptionRepo() booking.SubscriptionRepository
	LocationRepo() booking.LocationRepository
}

// NoOpTransactionScope calls fn directly with fixed repositories. Used in tests.
type NoOpTransactionScope struct {
	bills         billing.BillRepository
	fees          billing.FeeRepository
	bookings      booking.BookingRepository
	subscriptions booking.SubscriptionRepository
	locations     booking.LocationRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope
func NewNoOpTransactionScope(
	bills billing.BillRepository,
	fees billing.FeeRepository,
	bookings booking.BookingRepository,
	subscriptions booking.SubscriptionRepository,
	locations booking.LocationRepository,
) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		bills:         bills,
		fees:          fees,
		bookings:      bookings,
		subscriptions: subscriptions,
		locations:     locations,
	}
}

// Execute runs fn without a transaction
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

// BillRepo returns the bill repository
func (s *NoOpTransactionScope) BillRepo() billing.BillRepository {
	return s.bills
}

// FeeRepo returns the fee repository
func (s *NoOpTransactionScope) FeeRepo() billing.FeeRepository {
	return s.fees
}

// BookingRepo returns the booking repository
func (s *NoOpTransactionScope) BookingRepo() booking.BookingRepository {
	return s.bookings
}

// SubscriptionRepo returns the subscription repository
func (s *NoOpTransactionScope) SubscriptionRepo() booking.SubscriptionRepository {
	return s.subscriptions
}

// LocationRepo returns the location repository
func (s *NoOpTransactionScope) LocationRepo() booking.LocationRepository {
	return s.locations
}

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
