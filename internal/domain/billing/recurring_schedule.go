package billing

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/accumanager/backend/internal/domain/shared"
)

// Frequency represents the cadence of a recurring schedule
type Frequency string

const (
	FrequencyDaily     Frequency = "DAILY"
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyYearly    Frequency = "YEARLY"
)

// IsValid checks if the frequency is a valid Frequency
func (f Frequency) IsValid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return true
	}
	return false
}

// String returns the string representation of Frequency
func (f Frequency) String() string {
	return string(f)
}

// NextOccurrence computes the occurrence after the given one. The
// interval multiplies the frequency unit, so weekly with interval 2 is
// every fortnight and monthly with interval 6 is twice a year.
// Month-based frequencies clamp to the last day of shorter months while
// remembering the anchor day, so a schedule anchored on the 31st runs on
// Jan 31, Feb 29 (leap) and Mar 31 rather than drifting to the 28th.
func NextOccurrence(after time.Time, freq Frequency, interval, anchorDay int) time.Time {
	if interval < 1 {
		interval = 1
	}
	switch freq {
	case FrequencyDaily:
		return after.AddDate(0, 0, interval)
	case FrequencyWeekly:
		return after.AddDate(0, 0, 7*interval)
	case FrequencyMonthly:
		return addMonthsClamped(after, interval, anchorDay)
	case FrequencyQuarterly:
		return addMonthsClamped(after, 3*interval, anchorDay)
	case FrequencyYearly:
		return addMonthsClamped(after, 12*interval, anchorDay)
	}
	return after
}

func addMonthsClamped(t time.Time, months, anchorDay int) time.Time {
	year, month, _ := t.Date()
	// Normalize via the first of the month to avoid time.AddDate overflow
	// (Jan 31 + 1 month would otherwise land on Mar 2/3).
	first := time.Date(year, month, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
	shifted := first.AddDate(0, months, 0)
	day := anchorDay
	if last := daysInMonth(shifted.Year(), shifted.Month()); day > last {
		day = last
	}
	return time.Date(shifted.Year(), shifted.Month(), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ScheduleStatus represents the lifecycle status of a recurring schedule
type ScheduleStatus string

const (
	ScheduleStatusActive    ScheduleStatus = "ACTIVE"
	ScheduleStatusPaused    ScheduleStatus = "PAUSED"
	ScheduleStatusCompleted ScheduleStatus = "COMPLETED"
	ScheduleStatusCancelled ScheduleStatus = "CANCELLED"
)

// IsValid checks if the status is a valid ScheduleStatus
func (s ScheduleStatus) IsValid() bool {
	switch s {
	case ScheduleStatusActive, ScheduleStatusPaused, ScheduleStatusCompleted, ScheduleStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of ScheduleStatus
func (s ScheduleStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s ScheduleStatus) CanTransitionTo(target ScheduleStatus) bool {
	switch s {
	case ScheduleStatusActive:
		return target == ScheduleStatusPaused || target == ScheduleStatusCompleted || target == ScheduleStatusCancelled
	case ScheduleStatusPaused:
		return target == ScheduleStatusActive || target == ScheduleStatusCancelled
	case ScheduleStatusCompleted, ScheduleStatusCancelled:
		return false // Terminal states
	}
	return false
}

// ScheduleLineTemplate describes one invoice line the schedule produces on
// every occurrence. Rates follow the same jurisdiction rules as invoice lines.
type ScheduleLineTemplate struct {
	Description     string           `json:"description"`
	HSNCode         string           `json:"hsn_code,omitempty"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	Discount        decimal.Decimal  `json:"discount"`
	CentralRate     *decimal.Decimal `json:"central_rate,omitempty"`
	StateRate       *decimal.Decimal `json:"state_rate,omitempty"`
	CrossBorderRate *decimal.Decimal `json:"cross_border_rate,omitempty"`
}

// TaxRates converts the stored template rates back into LineTaxRates
func (t ScheduleLineTemplate) TaxRates() (LineTaxRates, error) {
	var rates LineTaxRates
	if t.CentralRate != nil {
		r, err := NewTaxRate(*t.CentralRate)
		if err != nil {
			return LineTaxRates{}, err
		}
		rates.Central = &r
	}
	if t.StateRate != nil {
		r, err := NewTaxRate(*t.StateRate)
		if err != nil {
			return LineTaxRates{}, err
		}
		rates.State = &r
	}
	if t.CrossBorderRate != nil {
		r, err := NewTaxRate(*t.CrossBorderRate)
		if err != nil {
			return LineTaxRates{}, err
		}
		rates.CrossBorder = &r
	}
	return rates, nil
}

// Validate checks the template line against the supply type
func (t ScheduleLineTemplate) Validate(crossBorder bool) error {
	if t.Description == "" {
		return NewInvalidLineItemError("Template line description cannot be empty")
	}
	if t.Quantity.LessThanOrEqual(decimal.Zero) {
		return NewInvalidLineItemError("Template line quantity must be positive")
	}
	if t.UnitPrice.IsNegative() {
		return NewInvalidLineItemError("Template line unit price cannot be negative")
	}
	if t.Discount.IsNegative() {
		return NewInvalidLineItemError("Template line discount cannot be negative")
	}
	rates, err := t.TaxRates()
	if err != nil {
		return err
	}
	return rates.Validate(crossBorder)
}

// ScheduleLines is the jsonb-persisted collection of template lines
type ScheduleLines []ScheduleLineTemplate

// Value implements driver.Valuer for database storage
func (l ScheduleLines) Value() (driver.Value, error) {
	return json.Marshal(l)
}

// Scan implements sql.Scanner for database retrieval
func (l *ScheduleLines) Scan(value any) error {
	if value == nil {
		*l = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	default:
		return fmt.Errorf("cannot scan %T into ScheduleLines", value)
	}
}

// RecurringSchedule is an aggregate that stamps out invoices on a calendar
// cadence. Each fire advances NextRunAt from its scheduled time, not from
// the wall clock, so late ticks catch up one occurrence at a time without
// drifting the anchor day.
type RecurringSchedule struct {
	shared.TenantAggregateRoot
	Name              string           `gorm:"type:varchar(200);not null"`
	CustomerID        uuid.UUID        `gorm:"type:uuid;not null;index"`
	Customer          CustomerSnapshot `gorm:"embedded"`
	SupplierStateCode string
	CrossBorder       bool
	Frequency         Frequency
	Interval          int `gorm:"not null;default:1"` // Multiplier on the frequency unit
	AnchorDay         int // Day of month the cadence is anchored on
	StartDate         time.Time
	EndDate           *time.Time
	MaxOccurrences    *int
	NextRunAt         time.Time
	FiredCount        int
	LastFiredAt       *time.Time
	Lines             ScheduleLines `gorm:"type:jsonb"`
	Status            ScheduleStatus
	PausedAt          *time.Time
	CancelledAt       *time.Time
	CancelReason      string
}

// TableName returns the table name for GORM
func (RecurringSchedule) TableName() string {
	return "recurring_schedules"
}

// NewRecurringSchedule creates an active schedule whose first occurrence
// is the start date itself. The interval multiplies the frequency unit
// and must be at least 1.
func NewRecurringSchedule(tenantID uuid.UUID, name string, customerID uuid.UUID, customer CustomerSnapshot, supplierStateCode string, freq Frequency, interval int, startDate time.Time, lines ScheduleLines) (*RecurringSchedule, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_SCHEDULE_NAME", "Schedule name cannot be empty")
	}
	if customerID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_CUSTOMER", "Customer ID cannot be empty")
	}
	if err := customer.Validate(); err != nil {
		return nil, err
	}
	if supplierStateCode == "" {
		return nil, shared.NewDomainError("INVALID_STATE_CODE", "Supplier state code cannot be empty")
	}
	if !freq.IsValid() {
		return nil, shared.NewDomainError("INVALID_FREQUENCY", fmt.Sprintf("Unknown frequency: %s", freq))
	}
	if interval < 1 {
		return nil, shared.NewDomainError("INVALID_INTERVAL", "Interval must be a positive integer")
	}
	if startDate.IsZero() {
		return nil, shared.NewDomainError("INVALID_START_DATE", "Start date is required")
	}
	if len(lines) == 0 {
		return nil, shared.NewDomainError("EMPTY_SCHEDULE", "Schedule must have at least one template line")
	}

	crossBorder := customer.CustomerStateCode != supplierStateCode
	for _, line := range lines {
		if err := line.Validate(crossBorder); err != nil {
			return nil, err
		}
	}

	s := &RecurringSchedule{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		Name:                name,
		CustomerID:          customerID,
		Customer:            customer,
		SupplierStateCode:   supplierStateCode,
		CrossBorder:         crossBorder,
		Frequency:           freq,
		Interval:            interval,
		AnchorDay:           startDate.Day(),
		StartDate:           startDate,
		NextRunAt:           startDate,
		Lines:               lines,
		Status:              ScheduleStatusActive,
	}

	s.AddDomainEvent(NewScheduleCreatedEvent(s))

	return s, nil
}

// SetEndDate bounds the schedule by calendar date
func (s *RecurringSchedule) SetEndDate(end time.Time) error {
	if end.Before(s.StartDate) {
		return shared.NewDomainError("INVALID_END_DATE", "End date cannot be before the start date")
	}
	s.EndDate = &end
	s.UpdatedAt = time.Now()
	return nil
}

// SetMaxOccurrences bounds the schedule by total fire count
func (s *RecurringSchedule) SetMaxOccurrences(n int) error {
	if n <= 0 {
		return shared.NewDomainError("INVALID_OCCURRENCES", "Max occurrences must be positive")
	}
	if n < s.FiredCount {
		return shared.NewDomainError("INVALID_OCCURRENCES", "Max occurrences cannot be below the fired count")
	}
	s.MaxOccurrences = &n
	s.UpdatedAt = time.Now()
	return nil
}

// IsDue reports whether the schedule should fire at the given instant
func (s *RecurringSchedule) IsDue(now time.Time) bool {
	return s.Status == ScheduleStatusActive && !s.NextRunAt.After(now)
}

// Pause suspends firing; the next occurrence stays put until Resume
func (s *RecurringSchedule) Pause() error {
	if !s.Status.CanTransitionTo(ScheduleStatusPaused) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot pause schedule in %s status", s.Status))
	}

	now := time.Now()
	s.Status = ScheduleStatusPaused
	s.PausedAt = &now
	s.UpdatedAt = now

	s.AddDomainEvent(NewSchedulePausedEvent(s))

	return nil
}

// Resume reactivates a paused schedule. Occurrences that fell due while
// paused are fired by subsequent ticks, one per tick.
func (s *RecurringSchedule) Resume() error {
	if s.Status != ScheduleStatusPaused {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot resume schedule in %s status", s.Status))
	}

	s.Status = ScheduleStatusActive
	s.PausedAt = nil
	s.UpdatedAt = time.Now()

	s.AddDomainEvent(NewScheduleResumedEvent(s))

	return nil
}

// Cancel permanently stops the schedule
func (s *RecurringSchedule) Cancel(reason string) error {
	if !s.Status.CanTransitionTo(ScheduleStatusCancelled) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel schedule in %s status", s.Status))
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}

	now := time.Now()
	s.Status = ScheduleStatusCancelled
	s.CancelledAt = &now
	s.CancelReason = reason
	s.UpdatedAt = now

	s.AddDomainEvent(NewScheduleCancelledEvent(s))

	return nil
}

// MarkFired records a successful fire and advances the schedule.
// The occurrence period it returns covers scheduled time up to but not
// including the next occurrence.
func (s *RecurringSchedule) MarkFired(now time.Time) (periodStart, periodEnd time.Time, err error) {
	if s.Status != ScheduleStatusActive {
		return time.Time{}, time.Time{}, ErrScheduleNotActive
	}
	if s.NextRunAt.After(now) {
		return time.Time{}, time.Time{}, shared.NewDomainError("NOT_DUE", "Schedule is not due yet")
	}

	periodStart = s.NextRunAt
	periodEnd = NextOccurrence(s.NextRunAt, s.Frequency, s.Interval, s.AnchorDay)

	s.FiredCount++
	s.LastFiredAt = &now
	s.NextRunAt = periodEnd
	s.UpdatedAt = now

	s.AddDomainEvent(NewScheduleFiredEvent(s, periodStart, periodEnd))

	if s.exhausted() {
		s.Status = ScheduleStatusCompleted
		s.AddDomainEvent(NewScheduleCompletedEvent(s))
	}

	return periodStart, periodEnd, nil
}

// exhausted reports whether the schedule has no further occurrences
func (s *RecurringSchedule) exhausted() bool {
	if s.MaxOccurrences != nil && s.FiredCount >= *s.MaxOccurrences {
		return true
	}
	if s.EndDate != nil && s.NextRunAt.After(*s.EndDate) {
		return true
	}
	return false
}
