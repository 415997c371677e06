package billing

import (
	"context"
	"fmt"
	"slices"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LineItemService edits the line items of a bill. Every edit regenerates the
// automatic items in the same transaction so percentage fees follow the subtotal.
type LineItemService struct {
	engine
}

// NewLineItemService creates a new LineItemService
func NewLineItemService(txScope TransactionScope, logger *zap.Logger, opts Options) *LineItemService {
	return &LineItemService{engine: newEngine(txScope, logger, opts)}
}

// GetBill returns a bill with its items and payments
func (s *LineItemService) GetBill(ctx context.Context, billID uuid.UUID) (*BillResponse, error) {
	var bill *billing.Bill
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		bill, err = loadBill(ctx, repos, billID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return ToBillResponse(bill), nil
}

// AddLineItem adds a custom item
func (s *LineItemService) AddLineItem(ctx context.Context, req AddLineItemRequest) (*BillResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "line_item", "add")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBillID, req.BillID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	bill, err := s.edit(ctx, req.BillID, func(repos TransactionalRepositories, bill *billing.Bill) (*uuid.UUID, error) {
		_, err := bill.AddCustomLineItem(req.Description, req.Amount, req.PaidByHouse, s.now())
		return nil, err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return ToBillResponse(bill), nil
}

// AddAdjustment adds a discount or fee, absolute or as a percent of the subtotal
func (s *LineItemService) AddAdjustment(ctx context.Context, req AddAdjustmentRequest) (*BillResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "line_item", "add_adjustment")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrBillID, req.BillID.String(), "kind", req.Kind)

	adj := billing.Adjustment{
		Kind:    billing.AdjustmentKind(req.Kind),
		Amount:  req.Amount,
		Percent: req.Percent,
		Reason:  req.Reason,
	}
	bill, err := s.edit(ctx, req.BillID, func(repos TransactionalRepositories, bill *billing.Bill) (*uuid.UUID, error) {
		_, err := bill.AddAdjustment(adj, s.now())
		return nil, err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return ToBillResponse(bill), nil
}

// RemoveLineItem deletes an item. A removed fee is suppressed on the booking or
// subscription and the bill is regenerated, all in one transaction. The base
// charge cannot be removed.
func (s *LineItemService) RemoveLineItem(ctx context.Context, req RemoveLineItemRequest) (*BillResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "line_item", "remove")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBillID, req.BillID.String(),
		telemetry.SpanAttrLineItemID, req.ItemID.String(),
	)

	bill, err := s.edit(ctx, req.BillID, func(repos TransactionalRepositories, bill *billing.Bill) (*uuid.UUID, error) {
		item := bill.FindLineItem(req.ItemID)
		if item == nil {
			return nil, fmt.Errorf("%w: line item %s does not belong to bill %s",
				billing.ErrInvalidLineItemOperation, req.ItemID, bill.ID)
		}
		if item.IsAutomatic() && !item.IsFee() {
			return nil, fmt.Errorf("%w: the base charge is rebuilt on every generation and cannot be removed",
				billing.ErrInvalidLineItemOperation)
		}
		removed, err := bill.RemoveLineItem(req.ItemID)
		if err != nil {
			return nil, err
		}
		return removed.FeeID, nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.logger.Info("line item removed",
		zap.String("bill_id", req.BillID.String()),
		zap.String("line_item_id", req.ItemID.String()),
	)
	return ToBillResponse(bill), nil
}

// edit loads a bill, applies change, suppresses the fee change returns (if any)
// on the bill's subject, regenerates and saves, all under the bill's lock
func (s *LineItemService) edit(
	ctx context.Context,
	billID uuid.UUID,
	change func(repos TransactionalRepositories, bill *billing.Bill) (*uuid.UUID, error),
) (*billing.Bill, error) {
	subject, err := s.subjectOf(ctx, billID)
	if err != nil {
		return nil, err
	}

	var bill *billing.Bill
	err = s.locked(ctx, subject, func() error {
		return s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			bill, err = loadBill(ctx, repos, billID)
			if err != nil {
				return err
			}
			if err := bill.EnsureEditable(s.lockPaidBills); err != nil {
				return err
			}
			suppress, err := change(repos, bill)
			if err != nil {
				return err
			}
			if suppress != nil {
				if err := suppressFee(ctx, repos, bill.Subject, *suppress); err != nil {
					return err
				}
			}
			basis, err := basisFor(ctx, repos, bill.Subject)
			if err != nil {
				return err
			}
			if err := s.rebuild(ctx, repos, bill, basis); err != nil {
				return err
			}
			if err := repos.BillRepo().SaveWithLock(ctx, bill); err != nil {
				return fmt.Errorf("failed to save bill %s: %w", bill.ID, err)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, drainEvents(bill)...)
	return bill, nil
}

func (s *LineItemService) subjectOf(ctx context.Context, billID uuid.UUID) (billing.BillSubject, error) {
	var subject billing.BillSubject
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		bill, err := loadBill(ctx, repos, billID)
		if err != nil {
			return err
		}
		subject = bill.Subject
		return nil
	})
	return subject, err
}

// suppressFee stops feeID from coming back on the next regeneration of subject
func suppressFee(ctx context.Context, repos TransactionalRepositories, subject billing.BillSubject, feeID uuid.UUID) error {
	switch subject.Kind() {
	case billing.SubjectBooking:
		bs, _ := subject.Booking()
		b, err := loadBooking(ctx, repos, bs.BookingID)
		if err != nil {
			return err
		}
		if slices.Contains(b.SuppressedFees, feeID) {
			return nil
		}
		b.SuppressFee(feeID)
		if err := repos.BookingRepo().SaveWithLock(ctx, b); err != nil {
			return fmt.Errorf("failed to suppress fee on booking %s: %w", b.ID, err)
		}
	case billing.SubjectSubscription:
		ss, _ := subject.Subscription()
		sub, err := loadSubscription(ctx, repos, ss.SubscriptionID)
		if err != nil {
			return err
		}
		if slices.Contains(sub.SuppressedFees, feeID) {
			return nil
		}
		sub.SuppressFee(feeID)
		if err := repos.SubscriptionRepo().SaveWithLock(ctx, sub); err != nil {
			return fmt.Errorf("failed to suppress fee on subscription %s: %w", sub.ID, err)
		}
	default:
		return subject.Validate()
	}
	return nil
}
