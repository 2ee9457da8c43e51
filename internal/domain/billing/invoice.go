package billing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/accumanager/backend/internal/domain/shared"
	"github.com/accumanager/backend/internal/domain/shared/valueobject"
)

// InvoiceStatus represents the lifecycle status of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "DRAFT"
	InvoiceStatusConfirmed InvoiceStatus = "CONFIRMED"
	InvoiceStatusCancelled InvoiceStatus = "CANCELLED"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusConfirmed, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// CanTransitionTo checks if the status can transition to the target status
func (s InvoiceStatus) CanTransitionTo(target InvoiceStatus) bool {
	switch s {
	case InvoiceStatusDraft:
		return target == InvoiceStatusConfirmed || target == InvoiceStatusCancelled
	case InvoiceStatusConfirmed:
		return target == InvoiceStatusCancelled
	case InvoiceStatusCancelled:
		return false // Terminal state
	}
	return false
}

// PaymentStatus tracks how much of a confirmed invoice has been settled
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "PENDING"
	PaymentStatusPartiallyPaid PaymentStatus = "PARTIALLY_PAID"
	PaymentStatusPaid          PaymentStatus = "PAID"
	PaymentStatusCancelled     PaymentStatus = "CANCELLED"
	PaymentStatusRefunded      PaymentStatus = "REFUNDED"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPartiallyPaid, PaymentStatusPaid,
		PaymentStatusCancelled, PaymentStatusRefunded:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// PaymentMethod represents how an invoice payment was settled
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodUPI          PaymentMethod = "UPI"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodCheque       PaymentMethod = "CHEQUE"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodUPI,
		PaymentMethodCard, PaymentMethodCheque, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// CustomerSnapshot captures the customer details as of invoice issue time.
// The snapshot is immutable so later edits to the customer record never
// change an issued invoice.
type CustomerSnapshot struct {
	CustomerName      string `json:"customer_name"`
	CustomerPhone     string `json:"customer_phone"`
	CustomerStateCode string `json:"customer_state_code"`
	CustomerTaxID     string `json:"customer_tax_id"`
}

// Validate checks the snapshot carries the minimum required fields
func (c CustomerSnapshot) Validate() error {
	if c.CustomerName == "" {
		return shared.NewDomainError("INVALID_CUSTOMER_NAME", "Customer name cannot be empty")
	}
	if c.CustomerStateCode == "" {
		return shared.NewDomainError("INVALID_STATE_CODE", "Customer state code cannot be empty")
	}
	return nil
}

// LineItem represents a single billable line on an invoice
type LineItem struct {
	ID              uuid.UUID
	InvoiceID       uuid.UUID
	Description     string
	HSNCode         string
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal // Price per unit
	Discount        decimal.Decimal // Absolute line discount
	TaxableAmount   decimal.Decimal // Quantity*UnitPrice - Discount, rounded to paise
	CentralRate     *decimal.Decimal
	StateRate       *decimal.Decimal
	CrossBorderRate *decimal.Decimal
	CentralTax      decimal.Decimal
	StateTax        decimal.Decimal
	CrossBorderTax  decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewLineItem creates a validated, fully computed invoice line.
// The taxable amount and each tax component are rounded to paise here,
// so totals are exact sums of what the line shows.
func NewLineItem(invoiceID uuid.UUID, description, hsnCode string, quantity decimal.Decimal, unitPrice, discount valueobject.Money, rates LineTaxRates, crossBorder bool) (*LineItem, error) {
	if description == "" {
		return nil, NewInvalidLineItemError("Line description cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, NewInvalidLineItemError("Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, NewInvalidLineItemError("Unit price cannot be negative")
	}
	if discount.IsNegative() {
		return nil, NewInvalidLineItemError("Discount cannot be negative")
	}
	if err := rates.Validate(crossBorder); err != nil {
		return nil, err
	}

	gross := unitPrice.Multiply(quantity)
	if ok, _ := discount.GreaterThan(gross); ok {
		return nil, NewInvalidLineItemError("Discount cannot exceed line amount")
	}
	taxable := gross.MustSubtract(discount).RoundPaise()
	taxes := ComputeLineTax(taxable, rates)

	now := time.Now()
	item := &LineItem{
		ID:             uuid.New(),
		InvoiceID:      invoiceID,
		Description:    description,
		HSNCode:        hsnCode,
		Quantity:       quantity,
		UnitPrice:      unitPrice.Amount(),
		Discount:       discount.Amount(),
		TaxableAmount:  taxable.Amount(),
		CentralTax:     taxes.Central.Amount(),
		StateTax:       taxes.State.Amount(),
		CrossBorderTax: taxes.CrossBorder.Amount(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if rates.Central != nil {
		v := rates.Central.Percent()
		item.CentralRate = &v
	}
	if rates.State != nil {
		v := rates.State.Percent()
		item.StateRate = &v
	}
	if rates.CrossBorder != nil {
		v := rates.CrossBorder.Percent()
		item.CrossBorderRate = &v
	}
	return item, nil
}

// TableName returns the table name for GORM
func (LineItem) TableName() string {
	return "invoice_line_items"
}

// TotalTax returns the summed tax components of the line
func (i *LineItem) TotalTax() decimal.Decimal {
	return i.CentralTax.Add(i.StateTax).Add(i.CrossBorderTax)
}

// LineTotal returns taxable amount plus tax, what the customer pays for the line
func (i *LineItem) LineTotal() decimal.Decimal {
	return i.TaxableAmount.Add(i.TotalTax())
}

// GetTaxableAmountMoney returns the taxable amount as Money
func (i *LineItem) GetTaxableAmountMoney() valueobject.Money {
	return valueobject.NewMoneyINR(i.TaxableAmount)
}

// Invoice represents a tax invoice aggregate root.
// Totals are derived exclusively through recalculateTotals so the grand
// total identity holds at every point in the aggregate's life:
//
//	GrandTotal = TaxableTotal + CentralTaxTotal + StateTaxTotal + CrossBorderTaxTotal + RoundOff
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber     string           `gorm:"type:varchar(50);not null;index"`
	CustomerID        uuid.UUID        `gorm:"type:uuid;not null;index"`
	Customer          CustomerSnapshot `gorm:"embedded"`
	SupplierStateCode string
	CrossBorder       bool // Supply crosses the supplier's state boundary
	IssueDate         time.Time
	DueDate           *time.Time
	Items             []LineItem
	Subtotal          decimal.Decimal // Sum of quantity*unit price before discounts
	DiscountTotal     decimal.Decimal
	TaxableTotal      decimal.Decimal
	CentralTaxTotal   decimal.Decimal
	StateTaxTotal     decimal.Decimal
	CrossBorderTotal  decimal.Decimal
	RoundOff          decimal.Decimal // Adjustment bringing the grand total to a whole rupee
	GrandTotal        decimal.Decimal
	AmountPaid        decimal.Decimal
	Status            InvoiceStatus
	PaymentStatus     PaymentStatus
	PaymentMethod     *PaymentMethod `gorm:"type:varchar(30)"` // Method of the most recent payment
	Notes             string
	ScheduleID        *uuid.UUID // Recurring schedule that generated this invoice, if any
	PeriodStart       *time.Time
	PeriodEnd         *time.Time
	ConfirmedAt       *time.Time
	CancelledAt       *time.Time
	CancelReason      string
}

// NewInvoice creates a draft invoice for a customer
func NewInvoice(tenantID uuid.UUID, invoiceNumber string, customerID uuid.UUID, customer CustomerSnapshot, supplierStateCode string, issueDate time.Time) (*Invoice, error) {
	if invoiceNumber == "" {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot be empty")
	}
	if len(invoiceNumber) > 50 {
		return nil, shared.NewDomainError("INVALID_INVOICE_NUMBER", "Invoice number cannot exceed 50 characters")
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
	if issueDate.IsZero() {
		issueDate = time.Now()
	}

	inv := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       invoiceNumber,
		CustomerID:          customerID,
		Customer:            customer,
		SupplierStateCode:   supplierStateCode,
		CrossBorder:         customer.CustomerStateCode != supplierStateCode,
		IssueDate:           issueDate,
		Items:               make([]LineItem, 0),
		Subtotal:            decimal.Zero,
		DiscountTotal:       decimal.Zero,
		TaxableTotal:        decimal.Zero,
		CentralTaxTotal:     decimal.Zero,
		StateTaxTotal:       decimal.Zero,
		CrossBorderTotal:    decimal.Zero,
		RoundOff:            decimal.Zero,
		GrandTotal:          decimal.Zero,
		AmountPaid:          decimal.Zero,
		Status:              InvoiceStatusDraft,
		PaymentStatus:       PaymentStatusPending,
	}

	inv.AddDomainEvent(NewInvoiceCreatedEvent(inv))

	return inv, nil
}

// AddItem adds a billable line to the invoice
// Only allowed in DRAFT status
func (inv *Invoice) AddItem(description, hsnCode string, quantity decimal.Decimal, unitPrice, discount valueobject.Money, rates LineTaxRates) (*LineItem, error) {
	if inv.Status != InvoiceStatusDraft {
		return nil, shared.NewDomainError("INVALID_STATE", "Cannot add items to a non-draft invoice")
	}

	item, err := NewLineItem(inv.ID, description, hsnCode, quantity, unitPrice, discount, rates, inv.CrossBorder)
	if err != nil {
		return nil, err
	}

	inv.Items = append(inv.Items, *item)
	inv.recalculateTotals()
	inv.UpdatedAt = time.Now()

	return item, nil
}

// RemoveItem removes a line from the invoice
// Only allowed in DRAFT status
func (inv *Invoice) RemoveItem(itemID uuid.UUID) error {
	if inv.Status != InvoiceStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Cannot remove items from a non-draft invoice")
	}

	for idx, item := range inv.Items {
		if item.ID == itemID {
			inv.Items = append(inv.Items[:idx], inv.Items[idx+1:]...)
			inv.recalculateTotals()
			inv.UpdatedAt = time.Now()
			return nil
		}
	}

	return shared.NewDomainError("ITEM_NOT_FOUND", "Invoice line item not found")
}

// SetDueDate sets the payment due date
// Only allowed in DRAFT status
func (inv *Invoice) SetDueDate(due time.Time) error {
	if inv.Status != InvoiceStatusDraft {
		return shared.NewDomainError("INVALID_STATE", "Cannot change due date of a non-draft invoice")
	}
	if due.Before(inv.IssueDate) {
		return shared.NewDomainError("INVALID_DUE_DATE", "Due date cannot be before the issue date")
	}
	inv.DueDate = &due
	inv.UpdatedAt = time.Now()
	return nil
}

// SetNotes sets free-form notes on the invoice
func (inv *Invoice) SetNotes(notes string) {
	inv.Notes = notes
	inv.UpdatedAt = time.Now()
}

// AttachSchedule links the invoice to the recurring schedule occurrence
// that generated it
func (inv *Invoice) AttachSchedule(scheduleID uuid.UUID, periodStart, periodEnd time.Time) {
	inv.ScheduleID = &scheduleID
	inv.PeriodStart = &periodStart
	inv.PeriodEnd = &periodEnd
	inv.UpdatedAt = time.Now()
}

// Confirm issues the invoice, transitioning from DRAFT to CONFIRMED
// Requires at least one line item
func (inv *Invoice) Confirm() error {
	if !inv.Status.CanTransitionTo(InvoiceStatusConfirmed) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot confirm invoice in %s status", inv.Status))
	}
	if len(inv.Items) == 0 {
		return ErrEmptyInvoice
	}

	now := time.Now()
	inv.Status = InvoiceStatusConfirmed
	inv.ConfirmedAt = &now
	inv.UpdatedAt = now

	inv.AddDomainEvent(NewInvoiceConfirmedEvent(inv))

	return nil
}

// Cancel voids the invoice
// A paid invoice cannot be cancelled, refund it first
func (inv *Invoice) Cancel(reason string) error {
	if !inv.Status.CanTransitionTo(InvoiceStatusCancelled) {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel invoice in %s status", inv.Status))
	}
	if reason == "" {
		return shared.NewDomainError("INVALID_REASON", "Cancel reason is required")
	}
	if inv.PaymentStatus == PaymentStatusPaid {
		return shared.NewDomainError("INVALID_STATE", "Cannot cancel a fully paid invoice")
	}

	now := time.Now()
	inv.Status = InvoiceStatusCancelled
	inv.CancelledAt = &now
	inv.CancelReason = reason
	if inv.AmountPaid.IsZero() {
		inv.PaymentStatus = PaymentStatusCancelled
	} else {
		inv.PaymentStatus = PaymentStatusRefunded
	}
	inv.UpdatedAt = now

	inv.AddDomainEvent(NewInvoiceCancelledEvent(inv))

	return nil
}

// RecordPayment records a payment against a confirmed invoice and moves
// the payment status forward
func (inv *Invoice) RecordPayment(amount valueobject.Money, method PaymentMethod) error {
	if inv.Status != InvoiceStatusConfirmed {
		return shared.NewDomainError("INVALID_STATE", "Payments can only be recorded on confirmed invoices")
	}
	if !amount.IsPositive() {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if !method.IsValid() {
		return shared.NewDomainError("INVALID_PAYMENT_METHOD", fmt.Sprintf("Unknown payment method: %s", method))
	}

	newPaid := inv.AmountPaid.Add(amount.Amount())
	if newPaid.GreaterThan(inv.GrandTotal) {
		return shared.NewDomainError("INVALID_AMOUNT", "Payment would exceed the invoice grand total")
	}

	inv.AmountPaid = newPaid
	inv.PaymentMethod = &method
	if inv.AmountPaid.Equal(inv.GrandTotal) {
		inv.PaymentStatus = PaymentStatusPaid
	} else {
		inv.PaymentStatus = PaymentStatusPartiallyPaid
	}
	inv.UpdatedAt = time.Now()

	inv.AddDomainEvent(NewInvoicePaymentRecordedEvent(inv, amount.Amount(), method))

	return nil
}

// Outstanding returns the unpaid balance
func (inv *Invoice) Outstanding() valueobject.Money {
	return valueobject.NewMoneyINR(inv.GrandTotal.Sub(inv.AmountPaid))
}

// ItemCount returns the number of line items
func (inv *Invoice) ItemCount() int {
	return len(inv.Items)
}

// TotalTax returns the sum of all tax components
func (inv *Invoice) TotalTax() decimal.Decimal {
	return inv.CentralTaxTotal.Add(inv.StateTaxTotal).Add(inv.CrossBorderTotal)
}

// GetGrandTotalMoney returns the grand total as Money
func (inv *Invoice) GetGrandTotalMoney() valueobject.Money {
	return valueobject.NewMoneyINR(inv.GrandTotal)
}

// GetTaxableTotalMoney returns the taxable total as Money
func (inv *Invoice) GetTaxableTotalMoney() valueobject.Money {
	return valueobject.NewMoneyINR(inv.TaxableTotal)
}

// TableName returns the table name for GORM
func (Invoice) TableName() string {
	return "invoices"
}

// recalculateTotals recomputes the invoice totals from its lines.
// The grand total is rounded to the nearest whole rupee and the
// difference is carried in RoundOff, keeping the identity exact.
func (inv *Invoice) recalculateTotals() {
	subtotal := decimal.Zero
	discount := decimal.Zero
	taxable := decimal.Zero
	central := decimal.Zero
	state := decimal.Zero
	crossBorder := decimal.Zero

	for _, item := range inv.Items {
		subtotal = subtotal.Add(item.UnitPrice.Mul(item.Quantity))
		discount = discount.Add(item.Discount)
		taxable = taxable.Add(item.TaxableAmount)
		central = central.Add(item.CentralTax)
		state = state.Add(item.StateTax)
		crossBorder = crossBorder.Add(item.CrossBorderTax)
	}

	inv.Subtotal = subtotal
	inv.DiscountTotal = discount
	inv.TaxableTotal = taxable
	inv.CentralTaxTotal = central
	inv.StateTaxTotal = state
	inv.CrossBorderTotal = crossBorder

	exact := taxable.Add(central).Add(state).Add(crossBorder)
	inv.GrandTotal = valueobject.NewMoneyINR(exact).RoundRupee().Amount()
	inv.RoundOff = inv.GrandTotal.Sub(exact)
}
