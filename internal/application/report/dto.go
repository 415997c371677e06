package report

import (
	"fmt"
	"time"

	"github.com/coliving/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// MonthRequest selects one calendar month of a location
type MonthRequest struct {
	LocationID uuid.UUID `json:"-"`
	Year       int       `form:"year" binding:"required,min=2000,max=2100"`
	Month      int       `form:"month" binding:"required,min=1,max=12"`
}

// Validate checks the month
func (r MonthRequest) Validate() error {
	if r.LocationID == uuid.Nil {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, "location is required")
	}
	if r.Month < 1 || r.Month > 12 {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, fmt.Sprintf("month must be 1-12, got %d", r.Month))
	}
	return nil
}

// OccupantsRequest selects an arbitrary window [Start, End)
type OccupantsRequest struct {
	LocationID uuid.UUID `json:"-"`
	Start      time.Time `form:"start" time_format:"2006-01-02" binding:"required"`
	End        time.Time `form:"end" time_format:"2006-01-02" binding:"required"`
}

// Validate checks the window
func (r OccupantsRequest) Validate() error {
	if r.LocationID == uuid.Nil {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, "location is required")
	}
	if !r.End.After(r.Start) {
		return shared.NewDomainError(shared.ErrInvalidInput.Code, "end must be after start")
	}
	return nil
}
