package billing

import (
	"time"

	"github.com/google/uuid"

	"github.com/accumanager/backend/internal/domain/shared"
)

// Aggregate type constant
const AggregateTypeRecurringSchedule = "RecurringSchedule"

// Event type constants
const (
	EventTypeScheduleCreated   = "RecurringScheduleCreated"
	EventTypeSchedulePaused    = "RecurringSchedulePaused"
	EventTypeScheduleResumed   = "RecurringScheduleResumed"
	EventTypeScheduleCancelled = "RecurringScheduleCancelled"
	EventTypeScheduleFired     = "RecurringScheduleFired"
	EventTypeScheduleCompleted = "RecurringScheduleCompleted"
)

// ScheduleCreatedEvent is raised when a recurring schedule is created
type ScheduleCreatedEvent struct {
	shared.BaseDomainEvent
	ScheduleID uuid.UUID `json:"schedule_id"`
	Name       string    `json:"name"`
	CustomerID uuid.UUID `json:"customer_id"`
	Frequency  Frequency `json:"frequency"`
	NextRunAt  time.Time `json:"next_run_at"`
}

// NewScheduleCreatedEvent creates a new ScheduleCreatedEvent
func NewScheduleCreatedEvent(s *RecurringSchedule) *ScheduleCreatedEvent {
	return &ScheduleCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeScheduleCreated, AggregateTypeRecurringSchedule, s.ID, s.TenantID),
		ScheduleID:      s.ID,
		Name:            s.Name,
		CustomerID:      s.CustomerID,
		Frequency:       s.Frequency,
		NextRunAt:       s.NextRunAt,
	}
}

// EventType returns the event type name
func (e *ScheduleCreatedEvent) EventType() string {
	return EventTypeScheduleCreated
}

// SchedulePausedEvent is raised when a schedule is paused
type SchedulePausedEvent struct {
	shared.BaseDomainEvent
	ScheduleID uuid.UUID `json:"schedule_id"`
	Name       string    `json:"name"`
}

// NewSchedulePausedEvent creates a new SchedulePausedEvent
func NewSchedulePausedEvent(s *RecurringSchedule) *SchedulePausedEvent {
	return &SchedulePausedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeSchedulePaused, AggregateTypeRecurringSchedule, s.ID, s.TenantID),
		ScheduleID:      s.ID,
		Name:            s.Name,
	}
}

// EventType returns the event type name
func (e *SchedulePausedEvent) EventType() string {
	return EventTypeSchedulePaused
}

// ScheduleResumedEvent is raised when a paused schedule is reactivated
type ScheduleResumedEvent struct {
	shared.BaseDomainEvent
	ScheduleID uuid.UUID `json:"schedule_id"`
	Name       string    `json:"name"`
	NextRunAt  time.Time `json:"next_run_at"`
}

// NewScheduleResumedEvent creates a new ScheduleResumedEvent
func NewScheduleResumedEvent(s *RecurringSchedule) *ScheduleResumedEvent {
	return &ScheduleResumedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeScheduleResumed, AggregateTypeRecurringSchedule, s.ID, s.TenantID),
		ScheduleID:      s.ID,
		Name:            s.Name,
		NextRunAt:       s.NextRunAt,
	}
}

// EventType returns the event type name
func (e *ScheduleResumedEvent) EventType() string {
	return EventTypeScheduleResumed
}

// ScheduleCancelledEvent is raised when a schedule is cancelled
type ScheduleCancelledEvent struct {
	shared.BaseDomainEvent
	ScheduleID uuid.UUID `json:"schedule_id"`
	Name       string    `json:"name"`
	Reason     string    `json:"reason"`
}

// NewScheduleCancelledEvent creates a new ScheduleCancelledEvent
func NewScheduleCancelledEvent(s *RecurringSchedule) *ScheduleCancelledEvent {
	return &ScheduleCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeScheduleCancelled, AggregateTypeRecurringSchedule, s.ID, s.TenantID),
		ScheduleID:      s.ID,
		Name:            s.Name,
		Reason:          s.CancelReason,
	}
}

// EventType returns the event type name
func (e *ScheduleCancelledEvent) EventType() string {
	return EventTypeScheduleCancelled
}

// ScheduleFiredEvent is raised when an occurrence generates an invoice
type ScheduleFiredEvent struct {
	shared.BaseDomainEvent
	ScheduleID  uuid.UUID `json:"schedule_id"`
	Name        string    `json:"name"`
	FiredCount  int       `json:"fired_count"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
	NextRunAt   time.Time `json:"next_run_at"`
}

// NewScheduleFiredEvent creates a new ScheduleFiredEvent
func NewScheduleFiredEvent(s *RecurringSchedule, periodStart, periodEnd time.Time) *ScheduleFiredEvent {
	return &ScheduleFiredEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeScheduleFired, AggregateTypeRecurringSchedule, s.ID, s.TenantID),
		ScheduleID:      s.ID,
		Name:            s.Name,
		FiredCount:      s.FiredCount,
		PeriodStart:     periodStart,
		PeriodEnd:       periodEnd,
		NextRunAt:       s.NextRunAt,
	}
}

// EventType returns the event type name
func (e *ScheduleFiredEvent) EventType() string {
	return EventTypeScheduleFired
}

// ScheduleCompletedEvent is raised when a schedule exhausts its occurrences
type ScheduleCompletedEvent struct {
	shared.BaseDomainEvent
	ScheduleID uuid.UUID `json:"schedule_id"`
	Name       string    `json:"name"`
	FiredCount int       `json:"fired_count"`
}

// NewScheduleCompletedEvent creates a new ScheduleCompletedEvent
func NewScheduleCompletedEvent(s *RecurringSchedule) *ScheduleCompletedEvent {
	return &ScheduleCompletedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeScheduleCompleted, AggregateTypeRecurringSchedule, s.ID, s.TenantID),
		ScheduleID:      s.ID,
		Name:            s.Name,
		FiredCount:      s.FiredCount,
	}
}

// EventType returns the event type name
func (e *ScheduleCompletedEvent) EventType() string {
	return EventTypeScheduleCompleted
}
