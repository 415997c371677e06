package booking

import (
	"strings"
	"time"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Location is a house
type Location struct {
	shared.BaseEntity
	Name string
	Slug string
}

// NewLocation creates a location
func NewLocation(name, slug string) (*Location, error) {
	name = strings.TrimSpace(name)
	slug = strings.TrimSpace(slug)
	if name == "" || slug == "" {
		return nil, shared.NewDomainError("INVALID_LOCATION", "location name and slug are required")
	}
	return &Location{BaseEntity: shared.NewBaseEntity(), Name: name, Slug: slug}, nil
}

// Resource is a bookable room or bed
type Resource struct {
	shared.BaseEntity
	LocationID  uuid.UUID
	Name        string
	DefaultRate *valueobject.Money
	// Reservable rooms count toward occupancy; private rooms of residents do not
	Reservable bool
}

// NewResource creates a reservable room
func NewResource(locationID uuid.UUID, name string, defaultRate *valueobject.Money) (*Resource, error) {
	name = strings.TrimSpace(name)
	if locationID == uuid.Nil || name == "" {
		return nil, shared.NewDomainError("INVALID_RESOURCE", "resource needs a location and a name")
	}
	if defaultRate != nil && defaultRate.IsNegative() {
		return nil, shared.NewDomainError("INVALID_RESOURCE", "default rate must not be negative")
	}
	return &Resource{
		BaseEntity:  shared.NewBaseEntity(),
		LocationID:  locationID,
		Name:        name,
		DefaultRate: defaultRate,
		Reservable:  true,
	}, nil
}

// ReservableNightsBetween is the number of nights the room could be sold in [start, end)
func (r *Resource) ReservableNightsBetween(start, end time.Time) int {
	if !r.Reservable {
		return 0
	}
	return max(billing.DaysBetween(start, end), 0)
}
