package billing

import (
	"context"
	"fmt"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/booking"
	"github.com/coliving/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BillGenerationService (re)builds the automatic line items of bills
type BillGenerationService struct {
	engine
}

// NewBillGenerationService creates a new BillGenerationService
func NewBillGenerationService(txScope TransactionScope, logger *zap.Logger, opts Options) *BillGenerationService {
	return &BillGenerationService{engine: newEngine(txScope, logger, opts)}
}

// GenerateBookingBill regenerates the bill of a booking, creating it on first use.
// Custom line items survive; fees removed from the bill stay suppressed unless
// ResetSuppressed is set.
func (s *BillGenerationService) GenerateBookingBill(ctx context.Context, req GenerateBookingBillRequest) (*BillResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bill_generation", "generate_booking_bill")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBookingID, req.BookingID.String())

	var bill *billing.Bill
	err := s.locked(ctx, billing.ForBooking(req.BookingID), func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			b, err := loadBooking(ctx, repos, req.BookingID)
			if err != nil {
				return err
			}
			if req.ResetSuppressed && len(b.SuppressedFees) > 0 {
				b.ResetSuppressedFees()
				if err := repos.BookingRepo().SaveWithLock(ctx, b); err != nil {
					return fmt.Errorf("failed to save booking %s: %w", b.ID, err)
				}
			}
			resource, err := repos.LocationRepo().FindResource(ctx, b.Use.ResourceID)
			if err != nil {
				return fmt.Errorf("failed to load resource %s: %w", b.Use.ResourceID, err)
			}
			basis, err := b.ChargeBasis(resource)
			if err != nil {
				return err
			}
			bill, err = s.regenerate(ctx, repos, basis)
			if err != nil {
				return err
			}
			if b.BillID != bill.ID {
				b.LinkBill(bill.ID)
				if err := repos.BookingRepo().SaveWithLock(ctx, b); err != nil {
					return fmt.Errorf("failed to link bill to booking %s: %w", b.ID, err)
				}
			}
			return nil
		})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("booking bill generated",
		zap.String("booking_id", req.BookingID.String()),
		zap.String("bill_id", bill.ID.String()),
		zap.String("amount", bill.Amount().StringFixed(2)),
	)
	s.notifier.Notify(ctx, drainEvents(bill)...)
	return ToBillResponse(bill), nil
}

// GenerateSubscriptionBill regenerates the bill of the subscription period starting at PeriodStart
func (s *BillGenerationService) GenerateSubscriptionBill(ctx context.Context, req GenerateSubscriptionBillRequest) (*BillResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bill_generation", "generate_subscription_bill")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrSubscriptionID, req.SubscriptionID.String())

	var bill *billing.Bill
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		sub, err := loadSubscription(ctx, repos, req.SubscriptionID)
		if err != nil {
			return err
		}
		period, ok := sub.PeriodFor(req.PeriodStart)
		if !ok {
			return fmt.Errorf("%w: subscription %s is not active on %s",
				billing.ErrInvalidSubject, sub.ID, req.PeriodStart.Format("2006-01-02"))
		}
		if req.ResetSuppressed && len(sub.SuppressedFees) > 0 {
			sub.ResetSuppressedFees()
			if err := repos.SubscriptionRepo().SaveWithLock(ctx, sub); err != nil {
				return fmt.Errorf("failed to save subscription %s: %w", sub.ID, err)
			}
		}
		bill, err = s.generatePeriod(ctx, repos, sub, period)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("subscription bill generated",
		zap.String("subscription_id", req.SubscriptionID.String()),
		zap.String("bill_id", bill.ID.String()),
	)
	s.notifier.Notify(ctx, drainEvents(bill)...)
	return ToBillResponse(bill), nil
}

// generatePeriod regenerates one period under the bill's advisory lock
func (s *BillGenerationService) generatePeriod(ctx context.Context, repos TransactionalRepositories, sub *booking.Subscription, period booking.Period) (*billing.Bill, error) {
	basis, err := sub.ChargeBasis(period)
	if err != nil {
		return nil, err
	}
	var bill *billing.Bill
	err = s.locked(ctx, basis.Subject, func() error {
		bill, err = s.regenerate(ctx, repos, basis)
		return err
	})
	return bill, err
}

func loadBooking(ctx context.Context, repos TransactionalRepositories, id uuid.UUID) (*booking.Booking, error) {
	b, err := repos.BookingRepo().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load booking %s: %w", id, err)
	}
	if b == nil {
		return nil, notFound("booking", id)
	}
	return b, nil
}

func loadSubscription(ctx context.Context, repos TransactionalRepositories, id uuid.UUID) (*booking.Subscription, error) {
	sub, err := repos.SubscriptionRepo().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load subscription %s: %w", id, err)
	}
	if sub == nil {
		return nil, notFound("subscription", id)
	}
	return sub, nil
}
