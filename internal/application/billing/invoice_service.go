package billing

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/accumanager/backend/internal/domain/billing"
	"github.com/accumanager/backend/internal/domain/shared"
	"github.com/accumanager/backend/internal/domain/shared/valueobject"
)

// InvoiceService handles invoice business operations
type InvoiceService struct {
	invoiceRepo    billing.InvoiceRepository
	usageService   *UsageService
	eventPublisher shared.EventPublisher
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(invoiceRepo billing.InvoiceRepository, usageService *UsageService) *InvoiceService {
	return &InvoiceService{
		invoiceRepo:  invoiceRepo,
		usageService: usageService,
	}
}

// SetEventPublisher sets the event publisher for cross-context integration
func (s *InvoiceService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// FormatInvoiceNumber renders a sequence value as a display invoice number.
// The prefix folds in the leading segment of the tenant ID, so numbers from
// different tenants never collide even when their sequences align.
func FormatInvoiceNumber(tenantID uuid.UUID, seq int64) string {
	prefix := strings.ToUpper(strings.SplitN(tenantID.String(), "-", 2)[0])
	return fmt.Sprintf("INV-%s-%06d", prefix, seq)
}

// Create creates an invoice, consuming one unit of invoice quota.
// Quota is reserved before anything else; if the invoice cannot be built
// or persisted the reservation is released again.
func (s *InvoiceService) Create(ctx context.Context, tenantID uuid.UUID, req CreateInvoiceRequest) (*InvoiceResponse, error) {
	if err := s.usageService.Reserve(ctx, tenantID, billing.ResourceInvoices, 1); err != nil {
		return nil, err
	}

	inv, err := s.buildInvoice(ctx, tenantID, req)
	if err != nil {
		s.compensate(ctx, tenantID)
		return nil, err
	}

	if err := s.invoiceRepo.Save(ctx, inv); err != nil {
		s.compensate(ctx, tenantID)
		return nil, err
	}

	s.publishEvents(ctx, inv)

	response := ToInvoiceResponse(inv)
	return &response, nil
}

func (s *InvoiceService) buildInvoice(ctx context.Context, tenantID uuid.UUID, req CreateInvoiceRequest) (*billing.Invoice, error) {
	seq, err := s.invoiceRepo.NextInvoiceNumber(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	issueDate := time.Now()
	if req.IssueDate != nil {
		issueDate = *req.IssueDate
	}

	customer := billing.CustomerSnapshot{
		CustomerName:      req.CustomerName,
		CustomerPhone:     req.CustomerPhone,
		CustomerStateCode: req.CustomerStateCode,
		CustomerTaxID:     req.CustomerTaxID,
	}

	inv, err := billing.NewInvoice(tenantID, FormatInvoiceNumber(tenantID, seq), req.CustomerID, customer, req.SupplierStateCode, issueDate)
	if err != nil {
		return nil, err
	}

	for _, line := range req.Items {
		rates, err := lineRates(line.CentralRate, line.StateRate, line.CrossBorderRate)
		if err != nil {
			return nil, err
		}
		_, err = inv.AddItem(line.Description, line.HSNCode, line.Quantity,
			valueobject.NewMoneyINR(line.UnitPrice), valueobject.NewMoneyINR(line.Discount), rates)
		if err != nil {
			return nil, err
		}
	}

	if req.DueDate != nil {
		if err := inv.SetDueDate(*req.DueDate); err != nil {
			return nil, err
		}
	}
	if req.Notes != "" {
		inv.SetNotes(req.Notes)
	}
	if req.Confirm {
		if err := inv.Confirm(); err != nil {
			return nil, err
		}
	}

	return inv, nil
}

// GetByID retrieves an invoice by ID
func (s *InvoiceService) GetByID(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	response := ToInvoiceResponse(inv)
	return &response, nil
}

// GetByNumber retrieves an invoice by its invoice number
func (s *InvoiceService) GetByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByNumber(ctx, tenantID, number)
	if err != nil {
		return nil, err
	}
	response := ToInvoiceResponse(inv)
	return &response, nil
}

// List retrieves invoices with filtering and pagination
func (s *InvoiceService) List(ctx context.Context, tenantID uuid.UUID, filter InvoiceListFilter) ([]InvoiceResponse, int64, error) {
	repoFilter := billing.DefaultInvoiceFilter()
	repoFilter.Status = filter.Status
	repoFilter.PaymentStatus = filter.PaymentStatus
	repoFilter.CustomerID = filter.CustomerID
	repoFilter.ScheduleID = filter.ScheduleID
	repoFilter.IssuedFrom = filter.IssuedFrom
	repoFilter.IssuedTo = filter.IssuedTo
	if filter.Page > 0 {
		repoFilter.Page = filter.Page
	}
	if filter.PageSize > 0 {
		repoFilter.PageSize = filter.PageSize
	}
	if filter.OrderBy != "" {
		repoFilter.OrderBy = filter.OrderBy
	}
	if filter.OrderDir != "" {
		repoFilter.OrderDir = filter.OrderDir
	}

	invoices, total, err := s.invoiceRepo.List(ctx, tenantID, repoFilter)
	if err != nil {
		return nil, 0, err
	}

	responses := make([]InvoiceResponse, len(invoices))
	for i, inv := range invoices {
		responses[i] = ToInvoiceResponse(inv)
	}
	return responses, total, nil
}

// Confirm issues a draft invoice
func (s *InvoiceService) Confirm(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := inv.Confirm(); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, inv)

	response := ToInvoiceResponse(inv)
	return &response, nil
}

// Cancel voids an invoice. Invoice quota is never reclaimed: the sequence
// number stays consumed and the record remains for audit.
func (s *InvoiceService) Cancel(ctx context.Context, tenantID, invoiceID uuid.UUID, req CancelInvoiceRequest) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := inv.Cancel(req.Reason); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, inv)

	response := ToInvoiceResponse(inv)
	return &response, nil
}

// RecordPayment applies a payment to a confirmed invoice
func (s *InvoiceService) RecordPayment(ctx context.Context, tenantID, invoiceID uuid.UUID, req RecordPaymentRequest) (*InvoiceResponse, error) {
	inv, err := s.invoiceRepo.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if err := inv.RecordPayment(valueobject.NewMoneyINR(req.Amount), req.Method); err != nil {
		return nil, err
	}
	if err := s.invoiceRepo.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, inv)

	response := ToInvoiceResponse(inv)
	return &response, nil
}

// compensate releases the invoice quota reserved by a failed create
func (s *InvoiceService) compensate(ctx context.Context, tenantID uuid.UUID) {
	// Best effort: a failed release leaves the counter high, which is
	// safe (never undercounts) and self-corrects on the next reconcile.
	_ = s.usageService.Release(ctx, tenantID, billing.ResourceInvoices, 1)
}

func (s *InvoiceService) publishEvents(ctx context.Context, inv *billing.Invoice) {
	if s.eventPublisher == nil {
		return
	}
	_ = s.eventPublisher.Publish(ctx, inv.GetDomainEvents()...)
	inv.ClearDomainEvents()
}

// lineRates assembles validated tax rates from raw decimal inputs
func lineRates(central, state, crossBorder *decimal.Decimal) (billing.LineTaxRates, error) {
	var rates billing.LineTaxRates
	if central != nil {
		r, err := billing.NewTaxRate(*central)
		if err != nil {
			return billing.LineTaxRates{}, err
		}
		rates.Central = &r
	}
	if state != nil {
		r, err := billing.NewTaxRate(*state)
		if err != nil {
			return billing.LineTaxRates{}, err
		}
		rates.State = &r
	}
	if crossBorder != nil {
		r, err := billing.NewTaxRate(*crossBorder)
		if err != nil {
			return billing.LineTaxRates{}, err
		}
		rates.CrossBorder = &r
	}
	return rates, nil
}
