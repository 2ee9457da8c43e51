package billing

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/accumanager/backend/internal/domain/billing"
)

// ==================== Invoice DTOs ====================

// CreateInvoiceLineInput represents one line in the create invoice request
type CreateInvoiceLineInput struct {
	Description     string           `json:"description" binding:"required,min=1,max=500"`
	HSNCode         string           `json:"hsn_code" binding:"omitempty,max=8"`
	Quantity        decimal.Decimal  `json:"quantity" binding:"required"`
	UnitPrice       decimal.Decimal  `json:"unit_price" binding:"required"`
	Discount        decimal.Decimal  `json:"discount"`
	CentralRate     *decimal.Decimal `json:"central_rate"`
	StateRate       *decimal.Decimal `json:"state_rate"`
	CrossBorderRate *decimal.Decimal `json:"cross_border_rate"`
}

// CreateInvoiceRequest represents a request to create an invoice
type CreateInvoiceRequest struct {
	CustomerID        uuid.UUID                `json:"customer_id" binding:"required"`
	CustomerName      string                   `json:"customer_name" binding:"required,min=1,max=200"`
	CustomerPhone     string                   `json:"customer_phone" binding:"omitempty,max=20"`
	CustomerStateCode string                   `json:"customer_state_code" binding:"required,min=1,max=4"`
	CustomerTaxID     string                   `json:"customer_tax_id" binding:"omitempty,max=15"`
	SupplierStateCode string                   `json:"supplier_state_code" binding:"required,min=1,max=4"`
	IssueDate         *time.Time               `json:"issue_date"`
	DueDate           *time.Time               `json:"due_date"`
	Notes             string                   `json:"notes" binding:"omitempty,max=1000"`
	Confirm           bool                     `json:"confirm"`
	Items             []CreateInvoiceLineInput `json:"items" binding:"required,min=1"`
}

// CancelInvoiceRequest represents a request to cancel an invoice
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// RecordPaymentRequest represents a request to record a payment
type RecordPaymentRequest struct {
	Amount decimal.Decimal       `json:"amount" binding:"required"`
	Method billing.PaymentMethod `json:"method" binding:"required,oneof=CASH BANK_TRANSFER UPI CARD CHEQUE OTHER"`
}

// InvoiceListFilter represents filter options for the invoice list
type InvoiceListFilter struct {
	Status        *billing.InvoiceStatus `form:"status"`
	PaymentStatus *billing.PaymentStatus `form:"payment_status"`
	CustomerID    *uuid.UUID             `form:"customer_id"`
	ScheduleID    *uuid.UUID             `form:"schedule_id"`
	IssuedFrom    *time.Time             `form:"issued_from"`
	IssuedTo      *time.Time             `form:"issued_to"`
	Page          int                    `form:"page" binding:"omitempty,min=1"`
	PageSize      int                    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy       string                 `form:"order_by"`
	OrderDir      string                 `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// InvoiceLineResponse represents a line item in API responses
type InvoiceLineResponse struct {
	ID              uuid.UUID        `json:"id"`
	Description     string           `json:"description"`
	HSNCode         string           `json:"hsn_code,omitempty"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	Discount        decimal.Decimal  `json:"discount"`
	TaxableAmount   decimal.Decimal  `json:"taxable_amount"`
	CentralRate     *decimal.Decimal `json:"central_rate,omitempty"`
	StateRate       *decimal.Decimal `json:"state_rate,omitempty"`
	CrossBorderRate *decimal.Decimal `json:"cross_border_rate,omitempty"`
	CentralTax      decimal.Decimal  `json:"central_tax"`
	StateTax        decimal.Decimal  `json:"state_tax"`
	CrossBorderTax  decimal.Decimal  `json:"cross_border_tax"`
	LineTotal       decimal.Decimal  `json:"line_total"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                uuid.UUID             `json:"id"`
	TenantID          uuid.UUID             `json:"tenant_id"`
	InvoiceNumber     string                `json:"invoice_number"`
	CustomerID        uuid.UUID             `json:"customer_id"`
	CustomerName      string                `json:"customer_name"`
	CustomerPhone     string                `json:"customer_phone,omitempty"`
	CustomerStateCode string                `json:"customer_state_code"`
	CustomerTaxID     string                `json:"customer_tax_id,omitempty"`
	SupplierStateCode string                `json:"supplier_state_code"`
	CrossBorder       bool                  `json:"cross_border"`
	IssueDate         time.Time             `json:"issue_date"`
	DueDate           *time.Time            `json:"due_date,omitempty"`
	Items             []InvoiceLineResponse `json:"items"`
	Subtotal          decimal.Decimal       `json:"subtotal"`
	DiscountTotal     decimal.Decimal       `json:"discount_total"`
	TaxableTotal      decimal.Decimal       `json:"taxable_total"`
	CentralTaxTotal   decimal.Decimal       `json:"central_tax_total"`
	StateTaxTotal     decimal.Decimal       `json:"state_tax_total"`
	CrossBorderTotal  decimal.Decimal       `json:"cross_border_tax_total"`
	RoundOff          decimal.Decimal       `json:"round_off"`
	GrandTotal        decimal.Decimal       `json:"grand_total"`
	AmountPaid        decimal.Decimal       `json:"amount_paid"`
	Outstanding       decimal.Decimal       `json:"outstanding"`
	Status            string                `json:"status"`
	PaymentStatus     string                `json:"payment_status"`
	PaymentMethod     string                `json:"payment_method,omitempty"`
	Notes             string                `json:"notes,omitempty"`
	ScheduleID        *uuid.UUID            `json:"schedule_id,omitempty"`
	PeriodStart       *time.Time            `json:"period_start,omitempty"`
	PeriodEnd         *time.Time            `json:"period_end,omitempty"`
	CreatedAt         time.Time             `json:"created_at"`
	UpdatedAt         time.Time             `json:"updated_at"`
}

// ToInvoiceResponse converts an invoice aggregate to its response form
func ToInvoiceResponse(inv *billing.Invoice) InvoiceResponse {
	items := make([]InvoiceLineResponse, len(inv.Items))
	for i, item := range inv.Items {
		items[i] = InvoiceLineResponse{
			ID:              item.ID,
			Description:     item.Description,
			HSNCode:         item.HSNCode,
			Quantity:        item.Quantity,
			UnitPrice:       item.UnitPrice,
			Discount:        item.Discount,
			TaxableAmount:   item.TaxableAmount,
			CentralRate:     item.CentralRate,
			StateRate:       item.StateRate,
			CrossBorderRate: item.CrossBorderRate,
			CentralTax:      item.CentralTax,
			StateTax:        item.StateTax,
			CrossBorderTax:  item.CrossBorderTax,
			LineTotal:       item.LineTotal(),
		}
	}

	var method string
	if inv.PaymentMethod != nil {
		method = inv.PaymentMethod.String()
	}

	return InvoiceResponse{
		ID:                inv.ID,
		TenantID:          inv.TenantID,
		InvoiceNumber:     inv.InvoiceNumber,
		CustomerID:        inv.CustomerID,
		CustomerName:      inv.Customer.CustomerName,
		CustomerPhone:     inv.Customer.CustomerPhone,
		CustomerStateCode: inv.Customer.CustomerStateCode,
		CustomerTaxID:     inv.Customer.CustomerTaxID,
		SupplierStateCode: inv.SupplierStateCode,
		CrossBorder:       inv.CrossBorder,
		IssueDate:         inv.IssueDate,
		DueDate:           inv.DueDate,
		Items:             items,
		Subtotal:          inv.Subtotal,
		DiscountTotal:     inv.DiscountTotal,
		TaxableTotal:      inv.TaxableTotal,
		CentralTaxTotal:   inv.CentralTaxTotal,
		StateTaxTotal:     inv.StateTaxTotal,
		CrossBorderTotal:  inv.CrossBorderTotal,
		RoundOff:          inv.RoundOff,
		GrandTotal:        inv.GrandTotal,
		AmountPaid:        inv.AmountPaid,
		Outstanding:       inv.Outstanding().Amount(),
		Status:            inv.Status.String(),
		PaymentStatus:     inv.PaymentStatus.String(),
		PaymentMethod:     method,
		Notes:             inv.Notes,
		ScheduleID:        inv.ScheduleID,
		PeriodStart:       inv.PeriodStart,
		PeriodEnd:         inv.PeriodEnd,
		CreatedAt:         inv.CreatedAt,
		UpdatedAt:         inv.UpdatedAt,
	}
}

// ==================== Recurring Schedule DTOs ====================

// ScheduleLineInput represents one template line in the create schedule request
type ScheduleLineInput struct {
	Description     string           `json:"description" binding:"required,min=1,max=500"`
	HSNCode         string           `json:"hsn_code" binding:"omitempty,max=8"`
	Quantity        decimal.Decimal  `json:"quantity" binding:"required"`
	UnitPrice       decimal.Decimal  `json:"unit_price" binding:"required"`
	Discount        decimal.Decimal  `json:"discount"`
	CentralRate     *decimal.Decimal `json:"central_rate"`
	StateRate       *decimal.Decimal `json:"state_rate"`
	CrossBorderRate *decimal.Decimal `json:"cross_border_rate"`
}

// CreateScheduleRequest represents a request to create a recurring schedule
type CreateScheduleRequest struct {
	Name              string              `json:"name" binding:"required,min=1,max=200"`
	CustomerID        uuid.UUID           `json:"customer_id" binding:"required"`
	CustomerName      string              `json:"customer_name" binding:"required,min=1,max=200"`
	CustomerPhone     string              `json:"customer_phone" binding:"omitempty,max=20"`
	CustomerStateCode string              `json:"customer_state_code" binding:"required,min=1,max=4"`
	CustomerTaxID     string              `json:"customer_tax_id" binding:"omitempty,max=15"`
	SupplierStateCode string              `json:"supplier_state_code" binding:"required,min=1,max=4"`
	Frequency         billing.Frequency   `json:"frequency" binding:"required"`
	Interval          int                 `json:"interval" binding:"omitempty,min=1"`
	StartDate         time.Time           `json:"start_date" binding:"required"`
	EndDate           *time.Time          `json:"end_date"`
	MaxOccurrences    *int                `json:"max_occurrences"`
	Lines             []ScheduleLineInput `json:"lines" binding:"required,min=1"`
}

// CancelScheduleRequest represents a request to cancel a schedule
type CancelScheduleRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// ScheduleListFilter represents filter options for the schedule list
type ScheduleListFilter struct {
	Status   *billing.ScheduleStatus `form:"status"`
	Page     int                     `form:"page" binding:"omitempty,min=1"`
	PageSize int                     `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ScheduleLineResponse represents a template line in API responses
type ScheduleLineResponse struct {
	Description     string           `json:"description"`
	HSNCode         string           `json:"hsn_code,omitempty"`
	Quantity        decimal.Decimal  `json:"quantity"`
	UnitPrice       decimal.Decimal  `json:"unit_price"`
	Discount        decimal.Decimal  `json:"discount"`
	CentralRate     *decimal.Decimal `json:"central_rate,omitempty"`
	StateRate       *decimal.Decimal `json:"state_rate,omitempty"`
	CrossBorderRate *decimal.Decimal `json:"cross_border_rate,omitempty"`
}

// ScheduleResponse represents a recurring schedule in API responses
type ScheduleResponse struct {
	ID                uuid.UUID              `json:"id"`
	TenantID          uuid.UUID              `json:"tenant_id"`
	Name              string                 `json:"name"`
	CustomerID        uuid.UUID              `json:"customer_id"`
	CustomerName      string                 `json:"customer_name"`
	CustomerStateCode string                 `json:"customer_state_code"`
	SupplierStateCode string                 `json:"supplier_state_code"`
	CrossBorder       bool                   `json:"cross_border"`
	Frequency         string                 `json:"frequency"`
	Interval          int                    `json:"interval"`
	AnchorDay         int                    `json:"anchor_day"`
	StartDate         time.Time              `json:"start_date"`
	EndDate           *time.Time             `json:"end_date,omitempty"`
	MaxOccurrences    *int                   `json:"max_occurrences,omitempty"`
	NextRunAt         time.Time              `json:"next_run_at"`
	FiredCount        int                    `json:"fired_count"`
	LastFiredAt       *time.Time             `json:"last_fired_at,omitempty"`
	Lines             []ScheduleLineResponse `json:"lines"`
	Status            string                 `json:"status"`
	CreatedAt         time.Time              `json:"created_at"`
	UpdatedAt         time.Time              `json:"updated_at"`
}

// ToScheduleResponse converts a schedule aggregate to its response form
func ToScheduleResponse(s *billing.RecurringSchedule) ScheduleResponse {
	lines := make([]ScheduleLineResponse, len(s.Lines))
	for i, l := range s.Lines {
		lines[i] = ScheduleLineResponse{
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

	return ScheduleResponse{
		ID:                s.ID,
		TenantID:          s.TenantID,
		Name:              s.Name,
		CustomerID:        s.CustomerID,
		CustomerName:      s.Customer.CustomerName,
		CustomerStateCode: s.Customer.CustomerStateCode,
		SupplierStateCode: s.SupplierStateCode,
		CrossBorder:       s.CrossBorder,
		Frequency:         s.Frequency.String(),
		Interval:          s.Interval,
		AnchorDay:         s.AnchorDay,
		StartDate:         s.StartDate,
		EndDate:           s.EndDate,
		MaxOccurrences:    s.MaxOccurrences,
		NextRunAt:         s.NextRunAt,
		FiredCount:        s.FiredCount,
		LastFiredAt:       s.LastFiredAt,
		Lines:             lines,
		Status:            s.Status.String(),
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.UpdatedAt,
	}
}

// ==================== Usage DTOs ====================

// UsageResponse reports a tenant's consumption against its plan limits
type UsageResponse struct {
	TenantID  uuid.UUID               `json:"tenant_id"`
	PlanCode  string                  `json:"plan_code"`
	Resources []billing.UsageSnapshot `json:"resources"`
}

// ==================== Tick DTOs ====================

// TickOutcomeStatus classifies what happened to one due schedule
type TickOutcomeStatus string

const (
	TickOutcomeFired        TickOutcomeStatus = "FIRED"
	TickOutcomeAlreadyFired TickOutcomeStatus = "ALREADY_FIRED"
	TickOutcomeLimitBlocked TickOutcomeStatus = "LIMIT_BLOCKED"
	TickOutcomeBlocked      TickOutcomeStatus = "BLOCKED"
	TickOutcomeFailed       TickOutcomeStatus = "FAILED"
)

// TickOutcome is the per-schedule result of a scheduler pass
type TickOutcome struct {
	ScheduleID uuid.UUID         `json:"schedule_id"`
	TenantID   uuid.UUID         `json:"tenant_id"`
	Status     TickOutcomeStatus `json:"status"`
	InvoiceID  *uuid.UUID        `json:"invoice_id,omitempty"`
	Completed  bool              `json:"completed"`
	Error      string            `json:"error,omitempty"`
}

// TickResult summarizes one scheduler pass
type TickResult struct {
	RunAt    time.Time     `json:"run_at"`
	Due      int           `json:"due"`
	Fired    int           `json:"fired"`
	Blocked  int           `json:"blocked"`
	Failed   int           `json:"failed"`
	Outcomes []TickOutcome `json:"outcomes"`
}

// ==================== Summary DTOs ====================

// SummaryRequest represents query parameters for the billing summary
type SummaryRequest struct {
	PeriodStart time.Time `form:"period_start" binding:"required"`
	PeriodEnd   time.Time `form:"period_end" binding:"required"`
}
