package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/accumanager/backend/internal/domain/billing"
	"github.com/accumanager/backend/internal/domain/shared"
	"github.com/accumanager/backend/internal/domain/shared/valueobject"
)

// DefaultTickBatchSize bounds how many due schedules one tick processes
const DefaultTickBatchSize = 100

// ScheduleService handles recurring schedule operations including the
// scheduler tick that turns due occurrences into invoices
type ScheduleService struct {
	scheduleRepo   billing.RecurringScheduleRepository
	invoiceRepo    billing.InvoiceRepository
	usageService   *UsageService
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	tickBatchSize  int
}

// NewScheduleService creates a new ScheduleService
func NewScheduleService(scheduleRepo billing.RecurringScheduleRepository, invoiceRepo billing.InvoiceRepository, usageService *UsageService, logger *zap.Logger) *ScheduleService {
	return &ScheduleService{
		scheduleRepo:  scheduleRepo,
		invoiceRepo:   invoiceRepo,
		usageService:  usageService,
		logger:        logger,
		tickBatchSize: DefaultTickBatchSize,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *ScheduleService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetTickBatchSize overrides how many due schedules one tick processes.
// Non-positive values are ignored.
func (s *ScheduleService) SetTickBatchSize(n int) {
	if n > 0 {
		s.tickBatchSize = n
	}
}

// Create creates a recurring schedule, consuming one unit of schedule quota
func (s *ScheduleService) Create(ctx context.Context, tenantID uuid.UUID, req CreateScheduleRequest) (*ScheduleResponse, error) {
	if err := s.usageService.Reserve(ctx, tenantID, billing.ResourceRecurringSchedules, 1); err != nil {
		return nil, err
	}

	schedule, err := s.buildSchedule(tenantID, req)
	if err != nil {
		s.compensate(ctx, tenantID)
		return nil, err
	}

	if err := s.scheduleRepo.Save(ctx, schedule); err != nil {
		s.compensate(ctx, tenantID)
		return nil, err
	}

	s.publishEvents(ctx, schedule)

	response := ToScheduleResponse(schedule)
	return &response, nil
}

func (s *ScheduleService) buildSchedule(tenantID uuid.UUID, req CreateScheduleRequest) (*billing.RecurringSchedule, error) {
	lines := make([]billing.ScheduleLineTemplate, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = billing.ScheduleLineTemplate{
			Description:     l.Description,
			HSNCode:         l.HSNCode,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			Discount:        l.Discount,
			CentralRate:     l.CentralRate,
			StateRate:       l.StateRate,
			CrossBorderRate: l.CrossBorderRate,
		}
	}

	customer := billing.CustomerSnapshot{
		CustomerName:      req.CustomerName,
		CustomerPhone:     req.CustomerPhone,
		CustomerStateCode: req.CustomerStateCode,
		CustomerTaxID:     req.CustomerTaxID,
	}

	// Omitted interval means every occurrence of the frequency unit.
	interval := req.Interval
	if interval == 0 {
		interval = 1
	}

	schedule, err := billing.NewRecurringSchedule(tenantID, req.Name, req.CustomerID, customer,
		req.SupplierStateCode, req.Frequency, interval, req.StartDate, lines)
	if err != nil {
		return nil, err
	}

	if req.EndDate != nil {
		if err := schedule.SetEndDate(*req.EndDate); err != nil {
			return nil, err
		}
	}
	if req.MaxOccurrences != nil {
		if err := schedule.SetMaxOccurrences(*req.MaxOccurrences); err != nil {
			return nil, err
		}
	}

	return schedule, nil
}

// GetByID retrieves a schedule by ID
func (s *ScheduleService) GetByID(ctx context.Context, tenantID, scheduleID uuid.UUID) (*ScheduleResponse, error) {
	schedule, err := s.scheduleRepo.FindByID(ctx, tenantID, scheduleID)
	if err != nil {
		return nil, err
	}
	response := ToScheduleResponse(schedule)
	return &response, nil
}

// List retrieves schedules with pagination
func (s *ScheduleService) List(ctx context.Context, tenantID uuid.UUID, filter ScheduleListFilter) ([]ScheduleResponse, int64, error) {
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	schedules, total, err := s.scheduleRepo.List(ctx, tenantID, filter.Status, page, pageSize)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]ScheduleResponse, len(schedules))
	for i, schedule := range schedules {
		responses[i] = ToScheduleResponse(schedule)
	}
	return responses, total, nil
}

// Pause suspends an active schedule
func (s *ScheduleService) Pause(ctx context.Context, tenantID, scheduleID uuid.UUID) (*ScheduleResponse, error) {
	return s.transition(ctx, tenantID, scheduleID, func(schedule *billing.RecurringSchedule) error {
		return schedule.Pause()
	})
}

// Resume reactivates a paused schedule
func (s *ScheduleService) Resume(ctx context.Context, tenantID, scheduleID uuid.UUID) (*ScheduleResponse, error) {
	return s.transition(ctx, tenantID, scheduleID, func(schedule *billing.RecurringSchedule) error {
		return schedule.Resume()
	})
}

// Cancel permanently stops a schedule and reclaims its quota slot
func (s *ScheduleService) Cancel(ctx context.Context, tenantID, scheduleID uuid.UUID, req CancelScheduleRequest) (*ScheduleResponse, error) {
	response, err := s.transition(ctx, tenantID, scheduleID, func(schedule *billing.RecurringSchedule) error {
		return schedule.Cancel(req.Reason)
	})
	if err != nil {
		return nil, err
	}

	if err := s.usageService.Reclaim(ctx, tenantID, billing.ResourceRecurringSchedules, 1); err != nil {
		s.logger.Warn("failed to reclaim schedule quota after cancel",
			zap.String("tenant_id", tenantID.String()),
			zap.String("schedule_id", scheduleID.String()),
			zap.Error(err))
	}

	return response, nil
}

func (s *ScheduleService) transition(ctx context.Context, tenantID, scheduleID uuid.UUID, apply func(*billing.RecurringSchedule) error) (*ScheduleResponse, error) {
	schedule, err := s.scheduleRepo.FindByID(ctx, tenantID, scheduleID)
	if err != nil {
		return nil, err
	}
	if err := apply(schedule); err != nil {
		return nil, err
	}
	if err := s.scheduleRepo.Update(ctx, schedule); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, schedule)

	response := ToScheduleResponse(schedule)
	return &response, nil
}

// Tick processes every due schedule once. Each due schedule fires at most
// one occurrence per tick; schedules that fell multiple periods behind
// catch up across successive ticks. Failures are isolated per schedule.
func (s *ScheduleService) Tick(ctx context.Context, now time.Time) (*TickResult, error) {
	due, err := s.scheduleRepo.FindDue(ctx, now, s.tickBatchSize)
	if err != nil {
		return nil, err
	}

	result := &TickResult{
		RunAt:    now,
		Due:      len(due),
		Outcomes: make([]TickOutcome, 0, len(due)),
	}

	for _, schedule := range due {
		outcome := s.fire(ctx, schedule, now)
		result.Outcomes = append(result.Outcomes, outcome)

		switch outcome.Status {
		case TickOutcomeFired, TickOutcomeAlreadyFired:
			result.Fired++
		case TickOutcomeLimitBlocked, TickOutcomeBlocked:
			result.Blocked++
		case TickOutcomeFailed:
			result.Failed++
		}
	}

	if result.Due > 0 {
		s.logger.Info("scheduler tick processed",
			zap.Time("run_at", now),
			zap.Int("due", result.Due),
			zap.Int("fired", result.Fired),
			zap.Int("blocked", result.Blocked),
			zap.Int("failed", result.Failed))
	}

	return result, nil
}

// fire generates the invoice for one due occurrence of one schedule
func (s *ScheduleService) fire(ctx context.Context, schedule *billing.RecurringSchedule, now time.Time) TickOutcome {
	outcome := TickOutcome{
		ScheduleID: schedule.ID,
		TenantID:   schedule.TenantID,
	}

	// A previous fire of this occurrence may have committed the invoice
	// while a crash lost the response, or a competing worker may have won.
	// The period start keys the occurrence.
	existing, err := s.invoiceRepo.FindBySchedulePeriod(ctx, schedule.TenantID, schedule.ID, schedule.NextRunAt)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		outcome.Status = TickOutcomeFailed
		outcome.Error = err.Error()
		return outcome
	}
	if existing != nil {
		if _, _, err := schedule.MarkFired(now); err != nil {
			outcome.Status = TickOutcomeFailed
			outcome.Error = err.Error()
			return outcome
		}
		if err := s.scheduleRepo.Update(ctx, schedule); err != nil {
			outcome.Status = TickOutcomeFailed
			outcome.Error = err.Error()
			return outcome
		}
		outcome.Status = TickOutcomeAlreadyFired
		outcome.InvoiceID = &existing.ID
		outcome.Completed = schedule.Status == billing.ScheduleStatusCompleted
		return outcome
	}

	if err := s.usageService.Reserve(ctx, schedule.TenantID, billing.ResourceInvoices, 1); err != nil {
		var limitErr *billing.LimitExceededError
		switch {
		case errors.As(err, &limitErr):
			// Leave NextRunAt untouched so the occurrence fires once the
			// tenant has headroom again.
			outcome.Status = TickOutcomeLimitBlocked
		case errors.Is(err, billing.ErrSubscriptionInactive):
			outcome.Status = TickOutcomeBlocked
		default:
			outcome.Status = TickOutcomeFailed
		}
		outcome.Error = err.Error()
		return outcome
	}

	invoice, err := s.buildOccurrenceInvoice(ctx, schedule, now)
	if err != nil {
		s.compensateInvoice(ctx, schedule.TenantID)
		outcome.Status = TickOutcomeFailed
		outcome.Error = err.Error()
		return outcome
	}

	if err := s.scheduleRepo.CommitFire(ctx, schedule, invoice); err != nil {
		s.compensateInvoice(ctx, schedule.TenantID)
		if errors.Is(err, shared.ErrConcurrencyConflict) {
			// A competing worker fired this occurrence first. Its invoice
			// is the canonical one; this attempt consumed nothing.
			outcome.Status = TickOutcomeAlreadyFired
		} else {
			outcome.Status = TickOutcomeFailed
		}
		outcome.Error = err.Error()
		return outcome
	}

	s.publishEvents(ctx, schedule)

	outcome.Status = TickOutcomeFired
	outcome.InvoiceID = &invoice.ID
	outcome.Completed = schedule.Status == billing.ScheduleStatusCompleted
	return outcome
}

// buildOccurrenceInvoice advances the schedule in memory and materializes
// the confirmed invoice for the fired period
func (s *ScheduleService) buildOccurrenceInvoice(ctx context.Context, schedule *billing.RecurringSchedule, now time.Time) (*billing.Invoice, error) {
	periodStart, periodEnd, err := schedule.MarkFired(now)
	if err != nil {
		return nil, err
	}

	seq, err := s.invoiceRepo.NextInvoiceNumber(ctx, schedule.TenantID)
	if err != nil {
		return nil, err
	}

	invoice, err := billing.NewInvoice(schedule.TenantID, FormatInvoiceNumber(schedule.TenantID, seq), schedule.CustomerID,
		schedule.Customer, schedule.SupplierStateCode, periodStart)
	if err != nil {
		return nil, err
	}

	for _, line := range schedule.Lines {
		rates, err := line.TaxRates()
		if err != nil {
			return nil, err
		}
		_, err = invoice.AddItem(line.Description, line.HSNCode, line.Quantity,
			valueobject.NewMoneyINR(line.UnitPrice), valueobject.NewMoneyINR(line.Discount), rates)
		if err != nil {
			return nil, err
		}
	}

	invoice.AttachSchedule(schedule.ID, periodStart, periodEnd)
	if err := invoice.Confirm(); err != nil {
		return nil, err
	}

	return invoice, nil
}

// compensate releases the schedule quota reserved by a failed create
func (s *ScheduleService) compensate(ctx context.Context, tenantID uuid.UUID) {
	_ = s.usageService.Release(ctx, tenantID, billing.ResourceRecurringSchedules, 1)
}

// compensateInvoice releases the invoice quota reserved by a failed fire
func (s *ScheduleService) compensateInvoice(ctx context.Context, tenantID uuid.UUID) {
	_ = s.usageService.Release(ctx, tenantID, billing.ResourceInvoices, 1)
}

func (s *ScheduleService) publishEvents(ctx context.Context, schedule *billing.RecurringSchedule) {
	if s.eventPublisher == nil {
		return
	}
	_ = s.eventPublisher.Publish(ctx, schedule.GetDomainEvents()...)
	schedule.ClearDomainEvents()
}
