package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// BillRepository persists Bill aggregates together with their line items and payments.
// Finders return nil, nil when nothing matches.
type BillRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Bill, error)
	FindBySubject(ctx context.Context, subject BillSubject) (*Bill, error)
	FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*Bill, error)
	FindBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]Bill, error)
	FindByBookings(ctx context.Context, bookingIDs []uuid.UUID) ([]Bill, error)
	// FindWithPaymentsBetween returns bills of a location having at least one payment dated in [from, to)
	FindWithPaymentsBetween(ctx context.Context, locationID uuid.UUID, from, to time.Time) ([]Bill, error)
	// Create inserts a new bill
	Create(ctx context.Context, bill *Bill) error
	// SaveWithLock writes the bill if the stored version is bill.Version-1.
	// Line items are replaced; new payments are appended.
	SaveWithLock(ctx context.Context, bill *Bill) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// FeeRepository persists fees and their location attachments
type FeeRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Fee, error)
	FindAll(ctx context.Context) ([]Fee, error)
	// FindLocationFees returns the location's fees with Fee populated
	FindLocationFees(ctx context.Context, locationID uuid.UUID) ([]LocationFee, error)
	Save(ctx context.Context, fee *Fee) error
	SaveLocationFee(ctx context.Context, lf *LocationFee) error
	DeleteLocationFee(ctx context.Context, id uuid.UUID) error
}
