package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/coliving/backend/internal/domain/booking"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormBookingRepository implements BookingRepository using GORM
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID finds a booking by its ID
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*booking.Booking, error) {
	var model models.BookingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindByIDs finds bookings by IDs, skipping unknown ones
func (r *GormBookingRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]booking.Booking, error) {
	if len(ids) == 0 {
		return []booking.Booking{}, nil
	}
	return r.list(r.db.WithContext(ctx).Where("id IN ?", ids).Order("arrive ASC"))
}

// FindAll lists bookings with filtering and pagination
func (r *GormBookingRepository) FindAll(ctx context.Context, filter booking.BookingFilter) ([]booking.Booking, error) {
	query := r.db.WithContext(ctx).Model(&models.BookingModel{})
	if filter.LocationID != nil {
		query = query.Where("location_id = ?", *filter.LocationID)
	}
	if filter.ResourceID != nil {
		query = query.Where("resource_id = ?", *filter.ResourceID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	query = query.Order(orderClause(filter.OrderBy, filter.OrderDir, bookingSortFields, "arrive"))
	if filter.PageSize > 0 {
		query = query.Offset(filter.Offset()).Limit(filter.PageSize)
	}
	return r.list(query)
}

// FindIntersecting lists bookings of a location whose stay overlaps [start, end).
// A booking departing on start does not intersect.
func (r *GormBookingRepository) FindIntersecting(ctx context.Context, locationID uuid.UUID, start, end time.Time, statuses ...booking.Status) ([]booking.Booking, error) {
	query := r.db.WithContext(ctx).
		Where("location_id = ? AND arrive < ? AND depart > ?", locationID, end, start)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}
	return r.list(query.Order("arrive ASC"))
}

func (r *GormBookingRepository) list(query *gorm.DB) ([]booking.Booking, error) {
	var rows []models.BookingModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	bookings := make([]booking.Booking, 0, len(rows))
	for i := range rows {
		b, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, nil
}

// Save creates or updates a booking without a version check
func (r *GormBookingRepository) Save(ctx context.Context, b *booking.Booking) error {
	model, err := models.BookingModelFromDomain(b)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return err
	}
	b.MarkPersisted()
	return nil
}

// SaveWithLock updates a booking if the stored version is the one it was loaded at
func (r *GormBookingRepository) SaveWithLock(ctx context.Context, b *booking.Booking) error {
	model, err := models.BookingModelFromDomain(b)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&models.BookingModel{}).
		Where("id = ? AND version = ?", b.ID, b.Version-1).
		Updates(map[string]any{
			"location_id":     model.LocationID,
			"resource_id":     model.ResourceID,
			"user_id":         model.UserID,
			"arrive":          model.Arrive,
			"depart":          model.Depart,
			"status":          model.Status,
			"purpose":         model.Purpose,
			"comp":            model.Comp,
			"rate":            model.Rate,
			"suppressed_fees": model.SuppressedFees,
			"bill_id":         model.BillID,
			"version":         model.Version,
			"updated_at":      model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return versionConflict(r.db.WithContext(ctx), &models.BookingModel{}, b.ID)
	}
	b.MarkPersisted()
	return nil
}

// versionConflict tells a stale write apart from a missing row
func versionConflict(db *gorm.DB, model any, id uuid.UUID) error {
	var count int64
	if err := db.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return shared.ErrNotFound
	}
	return shared.ErrConcurrencyConflict
}

// Ensure GormBookingRepository implements BookingRepository
var _ booking.BookingRepository = (*GormBookingRepository)(nil)
