package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/coliving/backend/internal/domain/booking"
	"github.com/coliving/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormSubscriptionRepository implements SubscriptionRepository using GORM
type GormSubscriptionRepository struct {
	db *gorm.DB
}

// NewGormSubscriptionRepository creates a new GormSubscriptionRepository
func NewGormSubscriptionRepository(db *gorm.DB) *GormSubscriptionRepository {
	return &GormSubscriptionRepository{db: db}
}

// FindByID finds a subscription by its ID
func (r *GormSubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*booking.Subscription, error) {
	var model models.SubscriptionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindActiveBetween lists subscriptions of a location active on any day of [start, end).
// The end date is the last active day.
func (r *GormSubscriptionRepository) FindActiveBetween(ctx context.Context, locationID uuid.UUID, start, end time.Time) ([]booking.Subscription, error) {
	var rows []models.SubscriptionModel
	if err := r.db.WithContext(ctx).
		Where("location_id = ? AND start_date < ?", locationID, end).
		Where("(end_date IS NULL OR end_date >= ?)", start).
		Order("start_date ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	subs := make([]booking.Subscription, 0, len(rows))
	for i := range rows {
		s, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		subs = append(subs, *s)
	}
	return subs, nil
}

// ActiveIDsOn lists every subscription, across locations, that is active on day
func (r *GormSubscriptionRepository) ActiveIDsOn(ctx context.Context, day time.Time) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.SubscriptionModel{}).
		Where("start_date <= ?", day).
		Where("(end_date IS NULL OR end_date >= ?)", day).
		Order("start_date ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Save creates or updates a subscription without a version check
func (r *GormSubscriptionRepository) Save(ctx context.Context, s *booking.Subscription) error {
	model, err := models.SubscriptionModelFromDomain(s)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Save(model).Error; err != nil {
		return err
	}
	s.MarkPersisted()
	return nil
}

// SaveWithLock updates a subscription if the stored version is the one it was loaded at
func (r *GormSubscriptionRepository) SaveWithLock(ctx context.Context, s *booking.Subscription) error {
	model, err := models.SubscriptionModelFromDomain(s)
	if err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&models.SubscriptionModel{}).
		Where("id = ? AND version = ?", s.ID, s.Version-1).
		Updates(map[string]any{
			"location_id":     model.LocationID,
			"user_id":         model.UserID,
			"description":     model.Description,
			"price":           model.Price,
			"start_date":      model.StartDate,
			"end_date":        model.EndDate,
			"comp":            model.Comp,
			"rate":            model.Rate,
			"suppressed_fees": model.SuppressedFees,
			"version":         model.Version,
			"updated_at":      model.UpdatedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return versionConflict(r.db.WithContext(ctx), &models.SubscriptionModel{}, s.ID)
	}
	s.MarkPersisted()
	return nil
}

// Ensure GormSubscriptionRepository implements SubscriptionRepository
var _ booking.SubscriptionRepository = (*GormSubscriptionRepository)(nil)
