package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/accumanager/backend/internal/domain/billing"
	"github.com/accumanager/backend/internal/domain/shared"
)

// InvoiceSequence backs the per-tenant monotonic invoice number allocator
type InvoiceSequence struct {
	TenantID  uuid.UUID `gorm:"type:uuid;primaryKey"`
	LastValue int64     `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (InvoiceSequence) TableName() string {
	return "invoice_sequences"
}

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

// Save persists a new invoice together with its line items
func (r *GormInvoiceRepository) Save(ctx context.Context, invoice *billing.Invoice) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Items").Create(invoice).Error; err != nil {
			return err
		}
		for i := range invoice.Items {
			invoice.Items[i].InvoiceID = invoice.ID
			if err := tx.Create(&invoice.Items[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// Update persists changes with optimistic locking on the aggregate version
func (r *GormInvoiceRepository) Update(ctx context.Context, invoice *billing.Invoice) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return updateInvoiceLocked(tx, invoice)
	})
}

// updateInvoiceLocked performs the version-checked invoice update inside tx
func updateInvoiceLocked(tx *gorm.DB, invoice *billing.Invoice) error {
	currentVersion := invoice.Version
	invoice.Version++
	invoice.UpdatedAt = time.Now()

	result := tx.Model(&billing.Invoice{}).
		Where("id = ? AND tenant_id = ? AND version = ?", invoice.ID, invoice.TenantID, currentVersion).
		Updates(map[string]interface{}{
			"subtotal":           invoice.Subtotal,
			"discount_total":     invoice.DiscountTotal,
			"taxable_total":      invoice.TaxableTotal,
			"central_tax_total":  invoice.CentralTaxTotal,
			"state_tax_total":    invoice.StateTaxTotal,
			"cross_border_total": invoice.CrossBorderTotal,
			"round_off":          invoice.RoundOff,
			"grand_total":        invoice.GrandTotal,
			"amount_paid":        invoice.AmountPaid,
			"status":             invoice.Status,
			"payment_status":     invoice.PaymentStatus,
			"payment_method":     invoice.PaymentMethod,
			"due_date":           invoice.DueDate,
			"notes":              invoice.Notes,
			"confirmed_at":       invoice.ConfirmedAt,
			"cancelled_at":       invoice.CancelledAt,
			"cancel_reason":      invoice.CancelReason,
			"version":            invoice.Version,
			"updated_at":         invoice.UpdatedAt,
		})
	if result.Error != nil {
		invoice.Version = currentVersion
		return result.Error
	}
	if result.RowsAffected == 0 {
		invoice.Version = currentVersion
		return shared.ErrConcurrencyConflict
	}

	currentItemIDs := make([]uuid.UUID, len(invoice.Items))
	for i, item := range invoice.Items {
		currentItemIDs[i] = item.ID
	}
	if len(currentItemIDs) > 0 {
		if err := tx.Where("invoice_id = ? AND id NOT IN ?", invoice.ID, currentItemIDs).
			Delete(&billing.LineItem{}).Error; err != nil {
			return err
		}
	} else {
		if err := tx.Where("invoice_id = ?", invoice.ID).
			Delete(&billing.LineItem{}).Error; err != nil {
			return err
		}
	}
	for i := range invoice.Items {
		invoice.Items[i].InvoiceID = invoice.ID
		if err := tx.Save(&invoice.Items[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

// FindByID retrieves an invoice with its items for a tenant
func (r *GormInvoiceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*billing.Invoice, error) {
	var invoice billing.Invoice
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// FindByNumber retrieves an invoice by its invoice number
func (r *GormInvoiceRepository) FindByNumber(ctx context.Context, tenantID uuid.UUID, number string) (*billing.Invoice, error) {
	var invoice billing.Invoice
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND invoice_number = ?", tenantID, number).
		First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// FindBySchedulePeriod retrieves the invoice generated by a schedule for a period start
func (r *GormInvoiceRepository) FindBySchedulePeriod(ctx context.Context, tenantID, scheduleID uuid.UUID, periodStart time.Time) (*billing.Invoice, error) {
	var invoice billing.Invoice
	if err := r.db.WithContext(ctx).
		Preload("Items").
		Where("tenant_id = ? AND schedule_id = ? AND period_start = ?", tenantID, scheduleID, periodStart).
		First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &invoice, nil
}

// List retrieves invoices matching the filter with a total count
func (r *GormInvoiceRepository) List(ctx context.Context, tenantID uuid.UUID, filter billing.InvoiceFilter) ([]*billing.Invoice, int64, error) {
	query := r.db.WithContext(ctx).Model(&billing.Invoice{}).Where("tenant_id = ?", tenantID)

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if filter.CustomerID != nil {
		query = query.Where("customer_id = ?", *filter.CustomerID)
	}
	if filter.ScheduleID != nil {
		query = query.Where("schedule_id = ?", *filter.ScheduleID)
	}
	if filter.IssuedFrom != nil {
		query = query.Where("issue_date >= ?", *filter.IssuedFrom)
	}
	if filter.IssuedTo != nil {
		query = query.Where("issue_date < ?", *filter.IssuedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	orderBy := filter.OrderBy
	if !isAllowedInvoiceSort(orderBy) {
		orderBy = "issue_date"
	}
	orderDir := "desc"
	if filter.OrderDir == "asc" {
		orderDir = "asc"
	}

	var invoices []*billing.Invoice
	if err := query.
		Preload("Items").
		Order(fmt.Sprintf("%s %s", orderBy, orderDir)).
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&invoices).Error; err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

// isAllowedInvoiceSort whitelists sortable columns to keep ORDER BY injection-safe
func isAllowedInvoiceSort(column string) bool {
	switch column {
	case "issue_date", "invoice_number", "grand_total", "created_at", "updated_at":
		return true
	}
	return false
}

// NextInvoiceNumber atomically allocates the next per-tenant sequence value.
// The upsert increments under the row lock, so concurrent callers serialize
// on the tenant row and never observe the same value.
func (r *GormInvoiceRepository) NextInvoiceNumber(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var seq int64
	err := r.db.WithContext(ctx).Raw(
		`INSERT INTO invoice_sequences (tenant_id, last_value) VALUES (?, 1)
		 ON CONFLICT (tenant_id) DO UPDATE SET last_value = invoice_sequences.last_value + 1
		 RETURNING last_value`,
		tenantID,
	).Scan(&seq).Error
	if err != nil {
		return 0, err
	}
	return seq, nil
}
