package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/coliving/backend/internal/domain/billing"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/coliving/backend/internal/infrastructure/telemetry"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Options tune the billing services
type Options struct {
	// LockPaidBills rejects line item changes and regeneration on settled bills
	LockPaidBills bool
	// Locker guards regeneration of one bill across processes. Defaults to NoopBillLocker.
	Locker BillLocker
	// Notifier receives events after commit. Defaults to dropping them.
	Notifier Notifier
	// Clock defaults to time.Now
	Clock func() time.Time
	// Metrics is optional
	Metrics *telemetry.BillingMetrics
}

// engine is the part shared by every billing service: the transaction scope,
// the advisory lock and the regeneration step itself
type engine struct {
	txScope       TransactionScope
	locker        BillLocker
	notifier      Notifier
	logger        *zap.Logger
	clock         func() time.Time
	metrics       *telemetry.BillingMetrics
	lockPaidBills bool
}

func newEngine(txScope TransactionScope, logger *zap.Logger, opts Options) engine {
	e := engine{
		txScope:       txScope,
		locker:        opts.Locker,
		notifier:      opts.Notifier,
		logger:        logger,
		clock:         opts.Clock,
		metrics:       opts.Metrics,
		lockPaidBills: opts.LockPaidBills,
	}
	if e.locker == nil {
		e.locker = NoopBillLocker{}
	}
	if e.notifier == nil {
		e.notifier = noopNotifier{}
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	return e
}

func (e *engine) now() time.Time {
	return e.clock().UTC()
}

// locked runs fn while holding the advisory lock of subject
func (e *engine) locked(ctx context.Context, subject billing.BillSubject, fn func() error) error {
	release, err := e.locker.Acquire(ctx, lockKey(subject))
	if err != nil {
		return err
	}
	defer release()
	return fn()
}

// regenerate finds or creates the bill of basis.Subject, rebuilds its automatic
// items from the location's current fees and persists it
func (e *engine) regenerate(ctx context.Context, repos TransactionalRepositories, basis billing.ChargeBasis) (*billing.Bill, error) {
	bill, err := repos.BillRepo().FindBySubject(ctx, basis.Subject)
	if err != nil {
		return nil, fmt.Errorf("failed to load bill of %s: %w", basis.Subject, err)
	}
	isNew := bill == nil
	if isNew {
		bill, err = billing.NewBill(basis.LocationID, basis.Subject)
		if err != nil {
			return nil, err
		}
	} else if err := bill.EnsureEditable(e.lockPaidBills); err != nil {
		return nil, err
	}

	if err := e.rebuild(ctx, repos, bill, basis); err != nil {
		return nil, err
	}

	if isNew {
		err = repos.BillRepo().Create(ctx, bill)
	} else {
		err = repos.BillRepo().SaveWithLock(ctx, bill)
	}
	if err != nil {
		e.recordConflict(ctx, "regenerate", err)
		return nil, fmt.Errorf("failed to save bill of %s: %w", basis.Subject, err)
	}
	if e.metrics != nil {
		e.metrics.RecordBillGenerated(ctx, bill.LocationID, bill.Subject.Kind().String())
	}
	return bill, nil
}

func (e *engine) recordConflict(ctx context.Context, operation string, err error) {
	if e.metrics != nil && errors.Is(err, shared.ErrConcurrencyConflict) {
		e.metrics.RecordConflict(ctx, operation)
	}
}

// rebuild replaces the automatic items of an already loaded bill
func (e *engine) rebuild(ctx context.Context, repos TransactionalRepositories, bill *billing.Bill, basis billing.ChargeBasis) error {
	fees, err := repos.FeeRepo().FindLocationFees(ctx, basis.LocationID)
	if err != nil {
		return fmt.Errorf("failed to load fees of location %s: %w", basis.LocationID, err)
	}
	plan, err := billing.ResolveCharges(basis, fees)
	if err != nil {
		return err
	}
	return bill.Regenerate(plan, e.now())
}

// basisFor loads the owner of a bill and describes it to the resolver
func basisFor(ctx context.Context, repos TransactionalRepositories, subject billing.BillSubject) (billing.ChargeBasis, error) {
	switch subject.Kind() {
	case billing.SubjectBooking:
		bs, _ := subject.Booking()
		b, err := loadBooking(ctx, repos, bs.BookingID)
		if err != nil {
			return billing.ChargeBasis{}, err
		}
		resource, err := repos.LocationRepo().FindResource(ctx, b.Use.ResourceID)
		if err != nil {
			return billing.ChargeBasis{}, fmt.Errorf("failed to load resource %s: %w", b.Use.ResourceID, err)
		}
		return b.ChargeBasis(resource)
	case billing.SubjectSubscription:
		ss, _ := subject.Subscription()
		sub, err := loadSubscription(ctx, repos, ss.SubscriptionID)
		if err != nil {
			return billing.ChargeBasis{}, err
		}
		period, ok := sub.PeriodFor(ss.PeriodStart)
		if !ok || !period.Start.Equal(ss.PeriodStart) {
			return billing.ChargeBasis{}, fmt.Errorf("%w: %s is not a period of subscription %s",
				billing.ErrInvalidSubject, ss.PeriodStart.Format(time.DateOnly), sub.ID)
		}
		return sub.ChargeBasis(period)
	default:
		return billing.ChargeBasis{}, subject.Validate()
	}
}

func loadBill(ctx context.Context, repos TransactionalRepositories, id uuid.UUID) (*billing.Bill, error) {
	bill, err := repos.BillRepo().FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load bill %s: %w", id, err)
	}
	if bill == nil {
		return nil, notFound("bill", id)
	}
	return bill, nil
}

func notFound(what string, id uuid.UUID) error {
	return shared.NewDomainError(shared.ErrNotFound.Code, fmt.Sprintf("%s %s not found", what, id))
}
