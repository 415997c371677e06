package persistence

import (
	"context"
	"errors"

	"github.com/coliving/backend/internal/domain/booking"
	"github.com/coliving/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLocationRepository implements LocationRepository using GORM
type GormLocationRepository struct {
	db *gorm.DB
}

// NewGormLocationRepository creates a new GormLocationRepository
func NewGormLocationRepository(db *gorm.DB) *GormLocationRepository {
	return &GormLocationRepository{db: db}
}

// FindByID finds a location by its ID
func (r *GormLocationRepository) FindByID(ctx context.Context, id uuid.UUID) (*booking.Location, error) {
	return r.findLocation(r.db.WithContext(ctx).Where("id = ?", id))
}

// FindBySlug finds a location by its URL slug
func (r *GormLocationRepository) FindBySlug(ctx context.Context, slug string) (*booking.Location, error) {
	return r.findLocation(r.db.WithContext(ctx).Where("slug = ?", slug))
}

func (r *GormLocationRepository) findLocation(query *gorm.DB) (*booking.Location, error) {
	var model models.LocationModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindResource finds a room by its ID
func (r *GormLocationRepository) FindResource(ctx context.Context, id uuid.UUID) (*booking.Resource, error) {
	var model models.ResourceModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindResources lists the rooms of a location by name
func (r *GormLocationRepository) FindResources(ctx context.Context, locationID uuid.UUID) ([]booking.Resource, error) {
	var rows []models.ResourceModel
	if err := r.db.WithContext(ctx).
		Where("location_id = ?", locationID).
		Order("name ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	resources := make([]booking.Resource, len(rows))
	for i := range rows {
		resources[i] = *rows[i].ToDomain()
	}
	return resources, nil
}

// Save creates or updates a location
func (r *GormLocationRepository) Save(ctx context.Context, l *booking.Location) error {
	return r.db.WithContext(ctx).Save(models.LocationModelFromDomain(l)).Error
}

// SaveResource creates or updates a room
func (r *GormLocationRepository) SaveResource(ctx context.Context, res *booking.Resource) error {
	return r.db.WithContext(ctx).Save(models.ResourceModelFromDomain(res)).Error
}

// Ensure GormLocationRepository implements LocationRepository
var _ booking.LocationRepository = (*GormLocationRepository)(nil)
