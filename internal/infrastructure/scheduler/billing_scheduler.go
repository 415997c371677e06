// Package scheduler runs the daily subscription billing job.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	billingapp "github.com/coliving/backend/internal/application/billing"
	"github.com/coliving/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SubscriptionSource lists the subscriptions that should be billed on a day
type SubscriptionSource interface {
	ActiveIDsOn(ctx context.Context, day time.Time) ([]uuid.UUID, error)
}

// SubscriptionBiller generates the bills of one subscription
type SubscriptionBiller interface {
	GenerateAllBills(ctx context.Context, req billingapp.GenerateAllBillsRequest) (*billingapp.SubscriptionBillsResponse, error)
}

// BillingSchedulerConfig holds configuration for the daily billing run
type BillingSchedulerConfig struct {
	Enabled bool
	// Schedule is a cron expression; only "minute hour" are honored
	Schedule string
	// CheckInterval is how often the loop looks at the clock
	CheckInterval time.Duration
	// JobTimeout bounds one subscription's regeneration
	JobTimeout time.Duration
	// RetryAttempts applies to lock and version conflicts only
	RetryAttempts int
	RetryDelay    time.Duration
}

// DefaultBillingSchedulerConfig runs at 02:00 every day
func DefaultBillingSchedulerConfig() BillingSchedulerConfig {
	return BillingSchedulerConfig{
		Enabled:       true,
		Schedule:      "0 2 * * *",
		CheckInterval: time.Minute,
		JobTimeout:    30 * time.Second,
		RetryAttempts: 3,
		RetryDelay:    2 * time.Second,
	}
}

// ParseCronSchedule extracts hour and minute from "minute hour * * *".
// An empty expression means 02:00.
func ParseCronSchedule(expr string) (hour, minute int, err error) {
	hour, minute = 2, 0
	parts := strings.Fields(expr)
	if len(parts) < 2 {
		return hour, minute, nil
	}
	if parts[0] != "*" {
		if minute, err = strconv.Atoi(parts[0]); err != nil {
			return 2, 0, fmt.Errorf("%w: minute %q", ErrInvalidConfig, parts[0])
		}
	}
	if parts[1] != "*" {
		if hour, err = strconv.Atoi(parts[1]); err != nil {
			return 2, 0, fmt.Errorf("%w: hour %q", ErrInvalidConfig, parts[1])
		}
	}
	if minute < 0 || minute > 59 {
		return 2, 0, fmt.Errorf("%w: minute must be 0-59, got %d", ErrInvalidConfig, minute)
	}
	if hour < 0 || hour > 23 {
		return 2, 0, fmt.Errorf("%w: hour must be 0-23, got %d", ErrInvalidConfig, hour)
	}
	return hour, minute, nil
}

// RunSummary describes one billing run
type RunSummary struct {
	Day           time.Time     `json:"day"`
	Subscriptions int           `json:"subscriptions"`
	Bills         int           `json:"bills"`
	Failed        []uuid.UUID   `json:"failed,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// BillingScheduler generates subscription bills through the current day once
// a day, so memberships get their next period's bill without a request
type BillingScheduler struct {
	config  BillingSchedulerConfig
	hour    int
	minute  int
	source  SubscriptionSource
	biller  SubscriptionBiller
	logger  *zap.Logger
	now     func() time.Time
	running sync.Mutex // held for the duration of a run

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	lastRun *RunSummary
	lastDay string
}

// NewBillingScheduler creates a scheduler. The schedule is validated here.
func NewBillingScheduler(cfg BillingSchedulerConfig, source SubscriptionSource, biller SubscriptionBiller, logger *zap.Logger) (*BillingScheduler, error) {
	hour, minute, err := ParseCronSchedule(cfg.Schedule)
	if err != nil {
		return nil, err
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingScheduler{
		config: cfg,
		hour:   hour,
		minute: minute,
		source: source,
		biller: biller,
		logger: logger.Named("billing_scheduler"),
		now:    time.Now,
	}, nil
}

// Start begins checking the clock. It does nothing when disabled or already started.
func (s *BillingScheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Billing scheduler disabled")
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	s.started = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Billing scheduler started",
		zap.Int("hour", s.hour),
		zap.Int("minute", s.minute),
		zap.Time("next_run_at", s.nextRunAt()),
	)
	return nil
}

// Stop cancels the loop and waits for an in-flight run, up to ctx
func (s *BillingScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.started = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Billing scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Billing scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *BillingScheduler) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := s.now()
			if !s.due(now) {
				continue
			}
			if _, err := s.RunOnce(ctx, now); err != nil && !errors.Is(err, ErrRunInProgress) {
				s.logger.Error("Scheduled billing run failed", zap.Error(err))
			}
		}
	}
}

// due reports whether the scheduled time has passed today and today has not run yet
func (s *BillingScheduler) due(now time.Time) bool {
	at := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if now.Before(at) {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastDay != now.Format("2006-01-02")
}

func (s *BillingScheduler) nextRunAt() time.Time {
	now := s.now()
	next := time.Date(now.Year(), now.Month(), now.Day(), s.hour, s.minute, 0, 0, now.Location())
	if !now.Before(next) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// RunOnce generates bills through day for every subscription active on day.
// One subscription failing does not stop the others.
func (s *BillingScheduler) RunOnce(ctx context.Context, day time.Time) (*RunSummary, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	started := s.now()
	through := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	ids, err := s.source.ActiveIDsOn(ctx, through)
	if err != nil {
		return nil, fmt.Errorf("list active subscriptions: %w", err)
	}

	summary := &RunSummary{Day: through, Subscriptions: len(ids)}
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		bills, err := s.billSubscription(ctx, id, through)
		if err != nil {
			summary.Failed = append(summary.Failed, id)
			s.logger.Warn("Subscription billing failed",
				zap.String("subscription_id", id.String()),
				zap.Error(err),
			)
			continue
		}
		summary.Bills += bills
	}
	summary.Duration = s.now().Sub(started)

	s.mu.Lock()
	s.lastRun = summary
	s.lastDay = day.Format("2006-01-02")
	s.mu.Unlock()

	s.logger.Info("Billing run finished",
		zap.Time("day", through),
		zap.Int("subscriptions", summary.Subscriptions),
		zap.Int("bills", summary.Bills),
		zap.Int("failed", len(summary.Failed)),
		zap.Duration("duration", summary.Duration),
	)
	return summary, nil
}

func (s *BillingScheduler) billSubscription(ctx context.Context, id uuid.UUID, through time.Time) (int, error) {
	var err error
	for attempt := 0; attempt <= s.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(s.config.RetryDelay):
			}
		}

		jobCtx := ctx
		var cancel context.CancelFunc = func() {}
		if s.config.JobTimeout > 0 {
			jobCtx, cancel = context.WithTimeout(ctx, s.config.JobTimeout)
		}
		var resp *billingapp.SubscriptionBillsResponse
		resp, err = s.biller.GenerateAllBills(jobCtx, billingapp.GenerateAllBillsRequest{
			SubscriptionID: id,
			Through:        &through,
		})
		cancel()
		if err == nil {
			return len(resp.Bills), nil
		}
		if !retryable(err) {
			return 0, err
		}
	}
	return 0, err
}

func retryable(err error) bool {
	return errors.Is(err, billingapp.ErrBillLocked) || errors.Is(err, shared.ErrConcurrencyConflict)
}

// LastRun returns the summary of the most recent run, or nil
func (s *BillingScheduler) LastRun() *RunSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}
