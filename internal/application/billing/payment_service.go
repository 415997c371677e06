package billing

import (
	"context"
	"errors"
	"fmt"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaymentService records payments and refunds on bills and talks to the card gateway
type PaymentService struct {
	engine
	gateway billing.PaymentGateway
}

// NewPaymentService creates a new PaymentService. gateway may be nil when card
// charges are not configured; manual payments and refunds still work.
func NewPaymentService(txScope TransactionScope, gateway billing.PaymentGateway, logger *zap.Logger, opts Options) *PaymentService {
	return &PaymentService{
		engine:  newEngine(txScope, logger, opts),
		gateway: gateway,
	}
}

// ErrGatewayNotConfigured is returned when a gateway call is needed but no gateway is wired
var ErrGatewayNotConfigured = fmt.Errorf("%w: payment gateway is not configured", billing.ErrConfiguration)

// ErrChargeNotRecorded wraps a ledger failure after the gateway already took the money
var ErrChargeNotRecorded = errors.New("charge succeeded but was not recorded")

// RecordPayment appends a payment to a bill. An empty transaction id marks it manual.
func (s *PaymentService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBillID, req.BillID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
	)

	in := billing.PaymentInput{
		Amount:        req.Amount,
		Service:       req.Service,
		Method:        req.Method,
		TransactionID: req.TransactionID,
		UserID:        req.UserID,
	}
	if req.PaymentDate != nil {
		in.PaymentDate = req.PaymentDate.UTC()
	}

	bill, payment, err := s.appendPayment(ctx, req.BillID, in)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &PaymentResult{Payment: ToPaymentResponse(bill, *payment), Bill: ToBillResponse(bill)}, nil
}

// ChargeBill charges the customer through the gateway and records the payment.
// The bill lock is held from the balance check until the payment is stored, so
// two charges against one bill cannot both pass the check.
func (s *PaymentService) ChargeBill(ctx context.Context, req ChargeBillRequest) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "charge")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrBillID, req.BillID.String(),
		telemetry.SpanAttrAmount, req.Amount.String(),
		telemetry.SpanAttrPaymentGateway, billing.ServiceStripe,
	)

	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	if !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: charge amount must be positive", billing.ErrInvalidPayment)
	}
	if !req.Amount.IsWholeCents() {
		return nil, fmt.Errorf("%w: charge amount %s is not whole cents", billing.ErrInvalidPayment, req.Amount.Amount())
	}

	current, err := s.readBill(ctx, req.BillID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		bill    *billing.Bill
		payment *billing.Payment
	)
	err = s.locked(ctx, current.Subject, func() error {
		// reread under the lock to see charges that finished while we waited
		current, err := s.readBill(ctx, req.BillID)
		if err != nil {
			return err
		}
		if owed := current.TotalOwed(); req.Amount.GreaterThan(owed) {
			return fmt.Errorf("%w: charge of %s exceeds the %s owed", billing.ErrInvalidPayment, req.Amount, owed)
		}

		result, err := s.gateway.Charge(ctx, billing.ChargeRequest{
			CustomerRef: req.CustomerRef,
			Amount:      req.Amount,
			Reference:   "Bill " + current.ID.String(),
		})
		if err != nil {
			s.reportDecline(ctx, current, req, err)
			return err
		}

		bill, payment, err = s.appendPayment(ctx, req.BillID, billing.PaymentInput{
			Amount:        req.Amount,
			Service:       billing.ServiceStripe,
			Method:        result.Method,
			TransactionID: result.TransactionID,
			UserID:        req.UserID,
		})
		if err != nil {
			// the card was charged; the ledger must be fixed by hand
			s.logger.Error("charge succeeded but could not be recorded",
				zap.String("bill_id", req.BillID.String()),
				zap.String("transaction_id", result.TransactionID),
				zap.String("amount", req.Amount.StringFixed(2)),
				zap.Error(err),
			)
			return fmt.Errorf("%w: %w", ErrChargeNotRecorded, err)
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &PaymentResult{Payment: ToPaymentResponse(bill, *payment), Bill: ToBillResponse(bill)}, nil
}

func (s *PaymentService) readBill(ctx context.Context, billID uuid.UUID) (*billing.Bill, error) {
	var bill *billing.Bill
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		bill, err = loadBill(ctx, repos, billID)
		return err
	})
	return bill, err
}

// reportDecline logs and publishes a gateway decline; other charge errors are left to the caller
func (s *PaymentService) reportDecline(ctx context.Context, bill *billing.Bill, req ChargeBillRequest, err error) {
	var declined *billing.PaymentDeclinedError
	if !errors.As(err, &declined) {
		return
	}
	s.logger.Info("card charge declined",
		zap.String("bill_id", bill.ID.String()),
		zap.String("decline_code", declined.DeclineCode),
	)
	if s.metrics != nil {
		s.metrics.RecordDecline(ctx, bill.LocationID, declined.DeclineCode)
	}
	s.notifier.Notify(ctx, billing.NewPaymentDeclinedEvent(bill, req.Amount.Amount(), declined))
}

// IssueRefund refunds part or all of a payment. Gateway payments are refunded
// through the gateway first; manual payments only get the negative ledger row.
func (s *PaymentService) IssueRefund(ctx context.Context, req IssueRefundRequest) (*PaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "issue_refund")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, req.PaymentID.String())

	var current *billing.Bill
	if err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		current, err = s.billOfPayment(ctx, repos, req.PaymentID)
		return err
	}); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var (
		bill   *billing.Bill
		refund *billing.Payment
	)
	err := s.locked(ctx, current.Subject, func() error {
		original, amount, err := current.PrepareRefund(req.PaymentID, req.Amount)
		if err != nil {
			return err
		}

		txID := billing.ManualTransactionID
		viaGateway := !original.IsManual()
		if viaGateway {
			if s.gateway == nil {
				return ErrGatewayNotConfigured
			}
			txID, err = s.gateway.Refund(ctx, original.TransactionID, amount)
			if err != nil {
				return fmt.Errorf("gateway refund of %s failed: %w", original.TransactionID, err)
			}
		}

		err = s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
			var err error
			bill, err = s.billOfPayment(ctx, repos, req.PaymentID)
			if err != nil {
				return err
			}
			refund, err = bill.RecordRefund(original, amount, txID, req.UserID, s.now())
			if err != nil {
				return err
			}
			if err := repos.BillRepo().SaveWithLock(ctx, bill); err != nil {
				s.recordConflict(ctx, "refund", err)
				return fmt.Errorf("failed to save bill %s: %w", bill.ID, err)
			}
			return nil
		})
		if err != nil && viaGateway {
			s.logger.Error("gateway refund succeeded but could not be recorded",
				zap.String("payment_id", req.PaymentID.String()),
				zap.String("refund_transaction_id", txID),
				zap.String("amount", amount.StringFixed(2)),
				zap.Error(err),
			)
		}
		if err == nil && s.metrics != nil {
			s.metrics.RecordRefund(ctx, bill.LocationID, viaGateway, amount.Cents())
		}
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	s.logger.Info("refund issued",
		zap.String("bill_id", bill.ID.String()),
		zap.String("payment_id", req.PaymentID.String()),
		zap.String("amount", refund.Amount.Negate().StringFixed(2)),
	)
	s.notifier.Notify(ctx, drainEvents(bill)...)
	return &PaymentResult{Payment: ToPaymentResponse(bill, *refund), Bill: ToBillResponse(bill)}, nil
}

// appendPayment records a payment; concurrent writers are caught by the version check
func (s *PaymentService) appendPayment(ctx context.Context, billID uuid.UUID, in billing.PaymentInput) (*billing.Bill, *billing.Payment, error) {
	var (
		bill    *billing.Bill
		payment *billing.Payment
	)
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		bill, err = loadBill(ctx, repos, billID)
		if err != nil {
			return err
		}
		payment, err = bill.RecordPayment(in, s.now())
		if err != nil {
			return err
		}
		if err := repos.BillRepo().SaveWithLock(ctx, bill); err != nil {
			s.recordConflict(ctx, "payment", err)
			return fmt.Errorf("failed to save bill %s: %w", bill.ID, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordPayment(ctx, bill.LocationID, payment.Method, payment.Amount.Cents())
	}
	s.logger.Info("payment recorded",
		zap.String("bill_id", bill.ID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("amount", payment.Amount.StringFixed(2)),
		zap.String("transaction_id", payment.TransactionID),
	)
	s.notifier.Notify(ctx, drainEvents(bill)...)
	return bill, payment, nil
}

func (s *PaymentService) billOfPayment(ctx context.Context, repos TransactionalRepositories, paymentID uuid.UUID) (*billing.Bill, error) {
	bill, err := repos.BillRepo().FindByPaymentID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bill of payment %s: %w", paymentID, err)
	}
	if bill == nil {
		return nil, notFound("payment", paymentID)
	}
	return bill, nil
}
