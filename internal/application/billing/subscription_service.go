package billing

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/booking"
	"github.com/coliving/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubscriptionService bills memberships period by period
type SubscriptionService struct {
	*BillGenerationService
}

// NewSubscriptionService creates a new SubscriptionService
func NewSubscriptionService(txScope TransactionScope, logger *zap.Logger, opts Options) *SubscriptionService {
	return &SubscriptionService{BillGenerationService: NewBillGenerationService(txScope, logger, opts)}
}

// GenerateAllBills generates or regenerates the bill of every period starting on
// or before Through (today when nil), stopping at the end date
func (s *SubscriptionService) GenerateAllBills(ctx context.Context, req GenerateAllBillsRequest) (*SubscriptionBillsResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "subscription", "generate_all_bills")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrSubscriptionID, req.SubscriptionID.String())

	through := s.now()
	if req.Through != nil {
		through = req.Through.UTC()
	}

	var (
		sub   *booking.Subscription
		bills []*billing.Bill
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		sub, err = loadSubscription(ctx, repos, req.SubscriptionID)
		if err != nil {
			return err
		}
		bills = bills[:0]
		for _, period := range sub.PeriodsThrough(through) {
			bill, err := s.generatePeriod(ctx, repos, sub, period)
			if err != nil {
				return fmt.Errorf("period starting %s: %w", period.Start.Format("2006-01-02"), err)
			}
			bills = append(bills, bill)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("subscription bills generated",
		zap.String("subscription_id", sub.ID.String()),
		zap.Int("periods", len(bills)),
	)
	resp := &SubscriptionBillsResponse{
		SubscriptionID: sub.ID,
		EndDate:        sub.EndDate,
		Bills:          make([]*BillResponse, 0, len(bills)),
	}
	for _, b := range bills {
		s.notifier.Notify(ctx, drainEvents(b)...)
		resp.Bills = append(resp.Bills, ToBillResponse(b))
	}
	return resp, nil
}

// UpdateEndDate moves or clears the end date of a membership. The new end may
// not fall before the end of the last period with a payment. Unpaid bills of
// periods now entirely past the end are deleted; the rest are regenerated so a
// shortened last period is prorated.
func (s *SubscriptionService) UpdateEndDate(ctx context.Context, req UpdateEndDateRequest) (*SubscriptionBillsResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "subscription", "update_end_date")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrSubscriptionID, req.SubscriptionID.String())

	var (
		sub     *booking.Subscription
		kept    []*billing.Bill
		deleted []uuid.UUID
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		sub, err = loadSubscription(ctx, repos, req.SubscriptionID)
		if err != nil {
			return err
		}
		existing, err := repos.BillRepo().FindBySubscription(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("failed to load bills of subscription %s: %w", sub.ID, err)
		}
		slices.SortFunc(existing, func(a, b billing.Bill) int {
			pa, _ := a.Subject.Subscription()
			pb, _ := b.Subject.Subscription()
			return pa.PeriodStart.Compare(pb.PeriodStart)
		})

		if err := sub.UpdateEndDate(req.EndDate, paidThrough(existing)); err != nil {
			return err
		}
		if err := repos.SubscriptionRepo().SaveWithLock(ctx, sub); err != nil {
			return fmt.Errorf("failed to save subscription %s: %w", sub.ID, err)
		}

		kept, deleted = kept[:0], deleted[:0]
		for i := range existing {
			bill := &existing[i]
			period, _ := bill.Subject.Subscription()
			current, ok := sub.PeriodFor(period.PeriodStart)
			if !ok || !current.Start.Equal(period.PeriodStart) {
				if len(bill.Payments) > 0 {
					return fmt.Errorf("%w: bill %s has payments", booking.ErrEndDateBeforePaidPeriod, bill.ID)
				}
				if err := repos.BillRepo().Delete(ctx, bill.ID); err != nil {
					return fmt.Errorf("failed to delete bill %s: %w", bill.ID, err)
				}
				deleted = append(deleted, bill.ID)
				continue
			}
			if err := bill.EnsureEditable(s.lockPaidBills); err != nil {
				kept = append(kept, bill)
				continue
			}
			regenerated, err := s.generatePeriod(ctx, repos, sub, current)
			if err != nil {
				return err
			}
			kept = append(kept, regenerated)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("subscription end date updated",
		zap.String("subscription_id", sub.ID.String()),
		zap.Int("bills_kept", len(kept)),
		zap.Int("bills_deleted", len(deleted)),
	)
	resp := &SubscriptionBillsResponse{
		SubscriptionID: sub.ID,
		EndDate:        sub.EndDate,
		Bills:          make([]*BillResponse, 0, len(kept)),
		DeletedBillIDs: deleted,
	}
	for _, b := range kept {
		s.notifier.Notify(ctx, drainEvents(b)...)
		resp.Bills = append(resp.Bills, ToBillResponse(b))
	}
	return resp, nil
}

// paidThrough is the end of the latest period that received any payment
func paidThrough(bills []billing.Bill) *time.Time {
	var latest *time.Time
	for _, b := range bills {
		if len(b.Payments) == 0 {
			continue
		}
		period, ok := b.Subject.Subscription()
		if !ok {
			continue
		}
		if latest == nil || period.PeriodEnd.After(*latest) {
			end := period.PeriodEnd
			latest = &end
		}
	}
	return latest
}
