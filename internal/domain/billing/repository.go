package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// InvoiceFilter defines filtering options for invoice queries
type InvoiceFilter struct {
	Status        *InvoiceStatus
	PaymentStatus *PaymentStatus
	CustomerID    *uuid.UUID
	ScheduleID    *uuid.UUID
	IssuedFrom    *time.Time
	IssuedTo      *time.Time
	Page          int
	PageSize      int
	OrderBy       string
	OrderDir      string
}

// DefaultInvoiceFilter returns a filter with default values
func DefaultInvoiceFilter() InvoiceFilter {
	return InvoiceFilter{
		Page:     1,
		PageSize: 20,
		OrderBy:  "issue_date",
		OrderDir: "desc",
	}
}

// InvoiceRepository defines the interface for persisting invoices
type InvoiceRepository interface {
	// Save persists a new invoice together with its line items
	Save(ctx context.Context, invoice *Invoice) error

	// Update persists changes to an existing invoice, enforcing
	// optimistic locking on the aggregate version
	Update(ctx context.Context, invoice *Invoice) error

	// FindByID retrieves an invoice with its items
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)

	// FindByNumber retrieves an invoice by its invoice number
	FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*Invoice, error)

	// FindBySchedulePeriod retrieves the invoice a schedule generated for
	// a given period start, used to detect replayed fires
	FindBySchedulePeriod(ctx context.Context, tenantID, scheduleID uuid.UUID, periodStart time.Time) (*Invoice, error)

	// List retrieves invoices for a tenant matching the filter
	List(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]*Invoice, int64, error)

	// NextInvoiceNumber atomically allocates the next sequence number for
	// the tenant. Two concurrent calls never see the same value.
	NextInvoiceNumber(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// RecurringScheduleRepository defines the interface for persisting schedules
type RecurringScheduleRepository interface {
	// Save persists a new schedule
	Save(ctx context.Context, schedule *RecurringSchedule) error

	// Update persists changes to a schedule with optimistic locking
	Update(ctx context.Context, schedule *RecurringSchedule) error

	// FindByID retrieves a schedule by ID
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*RecurringSchedule, error)

	// List retrieves schedules for a tenant
	List(ctx context.Context, tenantID uuid.UUID, status *ScheduleStatus, page, pageSize int) ([]*RecurringSchedule, int64, error)

	// FindDue retrieves active schedules across all tenants whose next
	// occurrence is at or before the given instant
	FindDue(ctx context.Context, now time.Time, limit int) ([]*RecurringSchedule, error)

	// CommitFire persists an advanced schedule and its generated invoice
	// in one transaction. The schedule update enforces optimistic locking,
	// so a concurrent fire of the same occurrence fails the whole commit.
	CommitFire(ctx context.Context, schedule *RecurringSchedule, invoice *Invoice) error

	// Delete removes a cancelled schedule
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// UsageCounterRepository defines the interface for atomic usage accounting
type UsageCounterRepository interface {
	// TryIncrement reserves amount units against a limit in one atomic
	// step. It returns ok=false with the current count when the limit
	// would be exceeded; nothing is consumed in that case. A negative
	// limit always succeeds.
	TryIncrement(ctx context.Context, tenantID uuid.UUID, kind ResourceKind, amount, limit int64) (ok bool, current int64, err error)

	// Release returns previously reserved units, flooring at zero
	Release(ctx context.Context, tenantID uuid.UUID, kind ResourceKind, amount int64) error

	// Get retrieves the current counter, returning a zero counter when
	// the tenant has never consumed the resource
	Get(ctx context.Context, tenantID uuid.UUID, kind ResourceKind) (*UsageCounter, error)

	// GetAll retrieves all counters for a tenant
	GetAll(ctx context.Context, tenantID uuid.UUID) ([]*UsageCounter, error)
}

// SubscriptionRepository defines the interface for plan and subscription lookup
type SubscriptionRepository interface {
	// FindByTenant retrieves the tenant's subscription with its plan and limits
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)

	// FindPlanByCode retrieves a plan by its code
	FindPlanByCode(ctx context.Context, code string) (*Plan, error)

	// Save persists a new subscription
	Save(ctx context.Context, sub *Subscription) error

	// Update persists changes to a subscription
	Update(ctx context.Context, sub *Subscription) error
}

// BillingSummary is the aggregated financial picture of a tenant's period.
// A period with no invoices yields a summary of all zeros.
type BillingSummary struct {
	TenantID            uuid.UUID       `json:"tenant_id"`
	PeriodStart         time.Time       `json:"period_start"`
	PeriodEnd           time.Time       `json:"period_end"`
	InvoiceCount        int64           `json:"invoice_count"`
	ConfirmedCount      int64           `json:"confirmed_count"`
	CancelledCount      int64           `json:"cancelled_count"`
	PaidCount           int64           `json:"paid_count"`
	Subtotal            decimal.Decimal `json:"subtotal"`
	DiscountTotal       decimal.Decimal `json:"discount_total"`
	TaxableTotal        decimal.Decimal `json:"taxable_total"`
	CentralTaxTotal     decimal.Decimal `json:"central_tax_total"`
	StateTaxTotal       decimal.Decimal `json:"state_tax_total"`
	CrossBorderTaxTotal decimal.Decimal `json:"cross_border_tax_total"`
	RoundOffTotal       decimal.Decimal `json:"round_off_total"`
	GrandTotal          decimal.Decimal `json:"grand_total"`
	PaidTotal           decimal.Decimal `json:"paid_total"`
	OutstandingTotal    decimal.Decimal `json:"outstanding_total"`

	// ByPaymentMethod breaks the paid total down by how invoices were
	// settled. Invoices with no recorded payment do not appear.
	ByPaymentMethod map[PaymentMethod]PaymentMethodSummary `json:"by_payment_method"`
}

// PaymentMethodSummary is the per-method slice of a period's payments
type PaymentMethodSummary struct {
	InvoiceCount int64           `json:"invoice_count"`
	PaidTotal    decimal.Decimal `json:"paid_total"`
}

// ZeroBillingSummary returns an all-zero summary for the period
func ZeroBillingSummary(tenantID uuid.UUID, periodStart, periodEnd time.Time) BillingSummary {
	return BillingSummary{
		TenantID:            tenantID,
		PeriodStart:         periodStart,
		PeriodEnd:           periodEnd,
		Subtotal:            decimal.Zero,
		DiscountTotal:       decimal.Zero,
		TaxableTotal:        decimal.Zero,
		CentralTaxTotal:     decimal.Zero,
		StateTaxTotal:       decimal.Zero,
		CrossBorderTaxTotal: decimal.Zero,
		RoundOffTotal:       decimal.Zero,
		GrandTotal:          decimal.Zero,
		PaidTotal:           decimal.Zero,
		OutstandingTotal:    decimal.Zero,
		ByPaymentMethod:     map[PaymentMethod]PaymentMethodSummary{},
	}
}

// SummaryRepository defines the read-side interface for billing reports.
// Revenue figures cover confirmed invoices only; cancelled invoices are
// counted but excluded from every monetary total.
type SummaryRepository interface {
	// Summarize aggregates invoices issued within [periodStart, periodEnd)
	Summarize(ctx context.Context, tenantID uuid.UUID, periodStart, periodEnd time.Time) (*BillingSummary, error)
}
