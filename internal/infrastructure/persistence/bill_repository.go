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

// GormBillRepository implements BillRepository using GORM
type GormBillRepository struct {
	db *gorm.DB
}

// NewGormBillRepository creates a new GormBillRepository
func NewGormBillRepository(db *gorm.DB) *GormBillRepository {
	return &GormBillRepository{db: db}
}

// withChildren preloads line items in bill order and payments in ledger order
func (r *GormBillRepository) withChildren(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("Payments", func(db *gorm.DB) *gorm.DB {
			return db.Order("payment_date ASC, created_at ASC")
		})
}

func (r *GormBillRepository) first(query *gorm.DB) (*billing.Bill, error) {
	var model models.BillModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain()
}

func (r *GormBillRepository) list(query *gorm.DB) ([]billing.Bill, error) {
	var rows []models.BillModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	bills := make([]billing.Bill, 0, len(rows))
	for i := range rows {
		b, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		bills = append(bills, *b)
	}
	return bills, nil
}

// FindByID finds a bill by its ID
func (r *GormBillRepository) FindByID(ctx context.Context, id uuid.UUID) (*billing.Bill, error) {
	return r.first(r.withChildren(ctx).Where("id = ?", id))
}

// FindBySubject finds the bill of a booking, or of one subscription period keyed by its start
func (r *GormBillRepository) FindBySubject(ctx context.Context, subject billing.BillSubject) (*billing.Bill, error) {
	if bs, ok := subject.Booking(); ok {
		return r.first(r.withChildren(ctx).
			Where("subject_kind = ? AND booking_id = ?", billing.SubjectBooking, bs.BookingID))
	}
	if ss, ok := subject.Subscription(); ok {
		return r.first(r.withChildren(ctx).
			Where("subject_kind = ? AND subscription_id = ? AND period_start = ?",
				billing.SubjectSubscription, ss.SubscriptionID, ss.PeriodStart))
	}
	return nil, billing.ErrInvalidSubject
}

// FindByPaymentID finds the bill a payment or refund belongs to
func (r *GormBillRepository) FindByPaymentID(ctx context.Context, paymentID uuid.UUID) (*billing.Bill, error) {
	sub := r.db.WithContext(ctx).Model(&models.PaymentModel{}).Select("bill_id").Where("id = ?", paymentID)
	return r.first(r.withChildren(ctx).Where("id IN (?)", sub))
}

// FindBySubscription lists every period bill of a subscription, oldest first
func (r *GormBillRepository) FindBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]billing.Bill, error) {
	return r.list(r.withChildren(ctx).
		Where("subject_kind = ? AND subscription_id = ?", billing.SubjectSubscription, subscriptionID).
		Order("period_start ASC"))
}

// FindByBookings lists the bills of the given bookings
func (r *GormBillRepository) FindByBookings(ctx context.Context, bookingIDs []uuid.UUID) ([]billing.Bill, error) {
	if len(bookingIDs) == 0 {
		return []billing.Bill{}, nil
	}
	return r.list(r.withChildren(ctx).
		Where("subject_kind = ? AND booking_id IN ?", billing.SubjectBooking, bookingIDs))
}

// FindWithPaymentsBetween lists bills of a location with at least one payment dated in [from, to)
func (r *GormBillRepository) FindWithPaymentsBetween(ctx context.Context, locationID uuid.UUID, from, to time.Time) ([]billing.Bill, error) {
	sub := r.db.WithContext(ctx).Model(&models.PaymentModel{}).
		Select("bill_id").
		Where("payment_date >= ? AND payment_date < ?", from, to)
	return r.list(r.withChildren(ctx).
		Where("location_id = ? AND id IN (?)", locationID, sub).
		Order("created_at ASC"))
}

// Create inserts a new bill with its line items and payments
func (r *GormBillRepository) Create(ctx context.Context, bill *billing.Bill) error {
	model := models.BillModelFromDomain(bill)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	bill.MarkPersisted()
	return nil
}

// SaveWithLock saves the bill if nobody else wrote it since it was loaded.
// Line items are replaced wholesale. Payments are append-only, so only rows
// not yet stored are inserted.
func (r *GormBillRepository) SaveWithLock(ctx context.Context, bill *billing.Bill) error {
	model := models.BillModelFromDomain(bill)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.BillModel{}).
			Where("id = ? AND version = ?", bill.ID, bill.Version-1).
			Updates(map[string]any{
				"location_id":     model.LocationID,
				"subject_kind":    model.SubjectKind,
				"booking_id":      model.BookingID,
				"subscription_id": model.SubscriptionID,
				"period_start":    model.PeriodStart,
				"period_end":      model.PeriodEnd,
				"generated_at":    model.GeneratedAt,
				"comment":         model.Comment,
				"version":         model.Version,
				"updated_at":      model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return versionConflict(tx, &models.BillModel{}, bill.ID)
		}

		if err := tx.Where("bill_id = ?", bill.ID).Delete(&models.BillLineItemModel{}).Error; err != nil {
			return err
		}
		if len(model.LineItems) > 0 {
			if err := tx.Create(&model.LineItems).Error; err != nil {
				return err
			}
		}
		if len(model.Payments) > 0 {
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model.Payments).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	bill.MarkPersisted()
	return nil
}

// Delete removes a bill with its line items and payments
func (r *GormBillRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("bill_id = ?", id).Delete(&models.BillLineItemModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("bill_id = ?", id).Delete(&models.PaymentModel{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.BillModel{}, "id = ?", id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// Ensure GormBillRepository implements BillRepository
var _ billing.BillRepository = (*GormBillRepository)(nil)
