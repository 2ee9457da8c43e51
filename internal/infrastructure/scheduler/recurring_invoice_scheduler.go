package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/accumanager/backend/internal/application/billing"
)

// TickRunner fires all due recurring schedules as of now
type TickRunner interface {
	Tick(ctx context.Context, now time.Time) (*billing.TickResult, error)
}

// RecurringInvoiceScheduler drives the recurring billing engine. It
// periodically asks the schedule service to fire every due schedule,
// generating the occurrence invoices.
type RecurringInvoiceScheduler struct {
	service    TickRunner
	logger     *zap.Logger
	config     RecurringInvoiceSchedulerConfig
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	isRunning  bool
	tickActive bool
}

// RecurringInvoiceSchedulerConfig holds configuration for the recurring invoice scheduler
type RecurringInvoiceSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// TickInterval is how often due schedules are checked
	TickInterval time.Duration

	// TickTimeout is the maximum time for one scheduler pass
	TickTimeout time.Duration
}

// DefaultRecurringInvoiceSchedulerConfig returns default configuration
func DefaultRecurringInvoiceSchedulerConfig() RecurringInvoiceSchedulerConfig {
	return RecurringInvoiceSchedulerConfig{
		Enabled:      true,
		TickInterval: time.Minute,
		TickTimeout:  5 * time.Minute,
	}
}

// NewRecurringInvoiceScheduler creates a new recurring invoice scheduler
func NewRecurringInvoiceScheduler(
	service TickRunner,
	logger *zap.Logger,
	config RecurringInvoiceSchedulerConfig,
) (*RecurringInvoiceScheduler, error) {
	if config.TickInterval <= 0 || config.TickTimeout <= 0 {
		return nil, ErrInvalidConfig
	}
	return &RecurringInvoiceScheduler{
		service: service,
		logger:  logger,
		config:  config,
	}, nil
}

// Start starts the scheduler loop
func (s *RecurringInvoiceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Recurring invoice scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx)

	s.logger.Info("Recurring invoice scheduler started",
		zap.Duration("tick_interval", s.config.TickInterval),
		zap.Duration("tick_timeout", s.config.TickTimeout),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *RecurringInvoiceScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Recurring invoice scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Recurring invoice scheduler stop timed out")
		return ctx.Err()
	}
}

// run fires due schedules every tick interval until the context is cancelled
func (s *RecurringInvoiceScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Recurring invoice scheduler loop stopping")
			return
		case <-ticker.C:
			s.executeTick(ctx, time.Now())
		}
	}
}

// executeTick runs one scheduler pass. Overlapping passes are skipped:
// a slow tick keeps its batch and the next tick picks up the remainder.
func (s *RecurringInvoiceScheduler) executeTick(ctx context.Context, now time.Time) {
	s.mu.Lock()
	if s.tickActive {
		s.mu.Unlock()
		s.logger.Warn("Skipping scheduler tick, previous tick still running")
		return
	}
	s.tickActive = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.tickActive = false
		s.mu.Unlock()
	}()

	tickCtx, cancel := context.WithTimeout(ctx, s.config.TickTimeout)
	defer cancel()

	startTime := time.Now()
	result, err := s.service.Tick(tickCtx, now)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Recurring invoice tick failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	if result.Due == 0 {
		s.logger.Debug("Recurring invoice tick found no due schedules",
			zap.Duration("duration", duration),
		)
		return
	}

	s.logger.Info("Recurring invoice tick completed",
		zap.Duration("duration", duration),
		zap.Int("due", result.Due),
		zap.Int("fired", result.Fired),
		zap.Int("blocked", result.Blocked),
		zap.Int("failed", result.Failed),
	)
}

// TriggerImmediateTick runs one scheduler pass right away and returns
// its result. Used by the manual tick endpoint.
func (s *RecurringInvoiceScheduler) TriggerImmediateTick(ctx context.Context, now time.Time) (*billing.TickResult, error) {
	s.mu.Lock()
	if s.tickActive {
		s.mu.Unlock()
		return nil, ErrTickInProgress
	}
	s.tickActive = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.tickActive = false
		s.mu.Unlock()
	}()

	tickCtx, cancel := context.WithTimeout(ctx, s.config.TickTimeout)
	defer cancel()

	return s.service.Tick(tickCtx, now)
}

// IsRunning returns whether the scheduler is running
func (s *RecurringInvoiceScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}
