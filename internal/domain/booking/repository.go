package booking

import (
	"context"
	"time"

	"github.com/coliving/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// BookingFilter narrows booking lists
type BookingFilter struct {
	shared.Filter
	LocationID *uuid.UUID
	ResourceID *uuid.UUID
	Status     *Status
}

// BookingRepository persists bookings. Finders return nil, nil when nothing matches.
type BookingRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]Booking, error)
	FindAll(ctx context.Context, filter BookingFilter) ([]Booking, error)
	// FindIntersecting returns bookings of a location whose stay overlaps [start, end)
	FindIntersecting(ctx context.Context, locationID uuid.UUID, start, end time.Time, statuses ...Status) ([]Booking, error)
	Save(ctx context.Context, b *Booking) error
	SaveWithLock(ctx context.Context, b *Booking) error
}

// SubscriptionRepository persists subscriptions
type SubscriptionRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	// FindActiveBetween returns subscriptions of a location active on any day of [start, end)
	FindActiveBetween(ctx context.Context, locationID uuid.UUID, start, end time.Time) ([]Subscription, error)
	Save(ctx context.Context, s *Subscription) error
	SaveWithLock(ctx context.Context, s *Subscription) error
}

// LocationRepository reads houses and rooms
type LocationRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Location, error)
	FindBySlug(ctx context.Context, slug string) (*Location, error)
	FindResource(ctx context.Context, id uuid.UUID) (*Resource, error)
	FindResources(ctx context.Context, locationID uuid.UUID) ([]Resource, error)
	Save(ctx context.Context, l *Location) error
	SaveResource(ctx context.Context, r *Resource) error
}
