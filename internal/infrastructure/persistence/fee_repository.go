package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormFeeRepository implements FeeRepository using GORM
type GormFeeRepository struct {
	db *gorm.DB
}

// NewGormFeeRepository creates a new GormFeeRepository
func NewGormFeeRepository(db *gorm.DB) *GormFeeRepository {
	return &GormFeeRepository{db: db}
}

// FindByID finds a fee by its ID
func (r *GormFeeRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Fee, error) {
	var model models.FeeModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists every fee by name
func (r *GormFeeRepository) FindAll(ctx context.Context) ([]billing.Fee, error) {
	var rows []models.FeeModel
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	fees := make([]billing.Fee, len(rows))
	for i := range rows {
		fees[i] = *rows[i].ToDomain()
	}
	return fees, nil
}

// FindLocationFees lists the fees attached to a location in the order they were attached
func (r *GormFeeRepository) FindLocationFees(ctx context.Context, locationID uuid.UUID) ([]billing.LocationFee, error) {
	var rows []models.LocationFeeModel
	if err := r.db.WithContext(ctx).
		Preload("Fee").
		Where("location_id = ?", locationID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	fees := make([]billing.LocationFee, len(rows))
	for i := range rows {
		fees[i] = rows[i].ToDomain()
	}
	return fees, nil
}

// Save creates or updates a fee
func (r *GormFeeRepository) Save(ctx context.Context, fee *billing.Fee) error {
	if err := fee.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Save(models.FeeModelFromDomain(fee)).Error
}

// SaveLocationFee attaches a fee to a location, or updates the house override of an attachment
func (r *GormFeeRepository) SaveLocationFee(ctx context.Context, lf *billing.LocationFee) error {
	model := models.LocationFeeModelFromDomain(lf)
	model.CreatedAt = time.Now()
	return r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"paid_by_house"}),
		}).
		Create(model).Error
}

// DeleteLocationFee detaches a fee from a location
func (r *GormFeeRepository) DeleteLocationFee(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.LocationFeeModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// Ensure GormFeeRepository implements FeeRepository
var _ billing.FeeRepository = (*GormFeeRepository)(nil)
