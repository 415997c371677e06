package telemetry

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BillingMetrics counts what the billing engine does. Amounts are recorded in cents.
type BillingMetrics struct {
	logger *zap.Logger

	billsGenerated    *Counter
	payments          *Counter
	paymentCents      *Counter
	refunds           *Counter
	refundCents       *Counter
	declinedCharges   *Counter
	concurrencyErrors *Counter
}

// BillingMetricsConfig holds configuration for billing metrics
type BillingMetricsConfig struct {
	Meter  metric.Meter
	Logger *zap.Logger
}

// NewBillingMetrics registers the billing counters on cfg.Meter
func NewBillingMetrics(cfg BillingMetricsConfig) (*BillingMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	bm := &BillingMetrics{logger: logger}

	counters := []struct {
		dst         **Counter
		name        string
		description string
		unit        string
	}{
		{&bm.billsGenerated, "coliving_bill_generated_total", "Bills generated or regenerated", "{bills}"},
		{&bm.payments, "coliving_payment_total", "Payments recorded", "{payments}"},
		{&bm.paymentCents, "coliving_payment_amount_total", "Payment amount in cents", "{cents}"},
		{&bm.refunds, "coliving_refund_total", "Refunds issued", "{refunds}"},
		{&bm.refundCents, "coliving_refund_amount_total", "Refund amount in cents", "{cents}"},
		{&bm.declinedCharges, "coliving_charge_declined_total", "Card charges declined by the gateway", "{charges}"},
		{&bm.concurrencyErrors, "coliving_bill_conflict_total", "Bill saves rejected by the version check", "{conflicts}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(cfg.Meter, c.name, c.description, c.unit)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}
	return bm, nil
}

// RecordBillGenerated counts one generation of a bill
func (bm *BillingMetrics) RecordBillGenerated(ctx context.Context, locationID uuid.UUID, subjectKind string) {
	bm.billsGenerated.Inc(ctx,
		AttrLocationID.String(locationID.String()),
		AttrSubjectKind.String(subjectKind),
	)
}

// RecordPayment counts a payment and its amount
func (bm *BillingMetrics) RecordPayment(ctx context.Context, locationID uuid.UUID, method string, cents int64) {
	bm.payments.Inc(ctx, AttrLocationID.String(locationID.String()), AttrPaymentMethod.String(method))
	bm.paymentCents.Add(ctx, cents, AttrLocationID.String(locationID.String()), AttrPaymentMethod.String(method))
}

// RecordRefund counts a refund and its amount
func (bm *BillingMetrics) RecordRefund(ctx context.Context, locationID uuid.UUID, viaGateway bool, cents int64) {
	bm.refunds.Inc(ctx, AttrLocationID.String(locationID.String()), AttrViaGateway.Bool(viaGateway))
	bm.refundCents.Add(ctx, cents, AttrLocationID.String(locationID.String()), AttrViaGateway.Bool(viaGateway))
}

// RecordDecline counts a declined card charge
func (bm *BillingMetrics) RecordDecline(ctx context.Context, locationID uuid.UUID, declineCode string) {
	bm.declinedCharges.Inc(ctx,
		AttrLocationID.String(locationID.String()),
		AttrDeclineCode.String(declineCode),
	)
}

// RecordConflict counts a save lost to a concurrent writer
func (bm *BillingMetrics) RecordConflict(ctx context.Context, operation string) {
	bm.concurrencyErrors.Inc(ctx, AttrOperation.String(operation))
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewBillingMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
