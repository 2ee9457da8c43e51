package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/accumanager/backend/internal/domain/billing"
)

// GormSummaryRepository implements SummaryRepository using GORM
type GormSummaryRepository struct {
	db *gorm.DB
}

// NewGormSummaryRepository creates a new GormSummaryRepository
func NewGormSummaryRepository(db *gorm.DB) *GormSummaryRepository {
	return &GormSummaryRepository{db: db}
}

type summaryRow struct {
	InvoiceCount        int64
	ConfirmedCount      int64
	CancelledCount      int64
	PaidCount           int64
	Subtotal            decimal.Decimal
	DiscountTotal       decimal.Decimal
	TaxableTotal        decimal.Decimal
	CentralTaxTotal     decimal.Decimal
	StateTaxTotal       decimal.Decimal
	CrossBorderTaxTotal decimal.Decimal
	RoundOffTotal       decimal.Decimal
	GrandTotal          decimal.Decimal
	PaidTotal           decimal.Decimal
}

type paymentMethodRow struct {
	PaymentMethod string
	InvoiceCount  int64
	PaidTotal     decimal.Decimal
}

// Summarize aggregates invoices issued within [periodStart, periodEnd).
// Cancelled invoices show up in the counts but contribute nothing to
// the monetary totals.
func (r *GormSummaryRepository) Summarize(ctx context.Context, tenantID uuid.UUID, periodStart, periodEnd time.Time) (*billing.BillingSummary, error) {
	var row summaryRow
	err := r.db.WithContext(ctx).Model(&billing.Invoice{}).
		Select(`COUNT(*) AS invoice_count,
			COUNT(CASE WHEN status = 'CONFIRMED' THEN 1 END) AS confirmed_count,
			COUNT(CASE WHEN status = 'CANCELLED' THEN 1 END) AS cancelled_count,
			COUNT(CASE WHEN status = 'CONFIRMED' AND payment_status = 'PAID' THEN 1 END) AS paid_count,
			COALESCE(SUM(CASE WHEN status = 'CONFIRMED' THEN subtotal ELSE 0 END), 0) AS subtotal,
			COALESCE(SUM(CASE WHEN status = 'CONFIRMED' THEN discount_total ELSE 0 END), 0) AS discount_total,
			COALESCE(SUM(CASE WHEN status = 'CONFIRMED' THEN taxable_total ELSE 0 END), 0) AS taxable_total,
			COALESCE(SUM(CASE WHEN status = 'CONFIRMED' THEN central_tax_total ELSE 0 END), 0) AS central_tax_total,
			COALESCE(SUM(CASE WHEN status = 'CONFIRMED' THEN state_tax_total ELSE 0 END), 0) AS state_tax_total,
			COALESCE(SUM(CASE WHEN status = 'CONFIRMED' THEN cross_border_total ELSE 0 END), 0) AS cross_border_tax_total,
			COALESCE(SUM(CASE WHEN status = 'CONFIRMED' THEN round_off ELSE 0 END), 0) AS round_off_total,
			COALESCE(SUM(CASE WHEN status = 'CONFIRMED' THEN grand_total ELSE 0 END), 0) AS grand_total,
			COALESCE(SUM(CASE WHEN status = 'CONFIRMED' THEN amount_paid ELSE 0 END), 0) AS paid_total`).
		Where("tenant_id = ? AND issue_date >= ? AND issue_date < ?", tenantID, periodStart, periodEnd).
		Scan(&row).Error
	if err != nil {
		return nil, err
	}

	if row.InvoiceCount == 0 {
		summary := billing.ZeroBillingSummary(tenantID, periodStart, periodEnd)
		return &summary, nil
	}

	var methodRows []paymentMethodRow
	err = r.db.WithContext(ctx).Model(&billing.Invoice{}).
		Select(`payment_method,
			COUNT(*) AS invoice_count,
			COALESCE(SUM(amount_paid), 0) AS paid_total`).
		Where("tenant_id = ? AND issue_date >= ? AND issue_date < ?", tenantID, periodStart, periodEnd).
		Where("status = 'CONFIRMED' AND payment_method IS NOT NULL").
		Group("payment_method").
		Scan(&methodRows).Error
	if err != nil {
		return nil, err
	}

	byMethod := make(map[billing.PaymentMethod]billing.PaymentMethodSummary, len(methodRows))
	for _, m := range methodRows {
		byMethod[billing.PaymentMethod(m.PaymentMethod)] = billing.PaymentMethodSummary{
			InvoiceCount: m.InvoiceCount,
			PaidTotal:    m.PaidTotal,
		}
	}

	return &billing.BillingSummary{
		TenantID:            tenantID,
		PeriodStart:         periodStart,
		PeriodEnd:           periodEnd,
		InvoiceCount:        row.InvoiceCount,
		ConfirmedCount:      row.ConfirmedCount,
		CancelledCount:      row.CancelledCount,
		PaidCount:           row.PaidCount,
		Subtotal:            row.Subtotal,
		DiscountTotal:       row.DiscountTotal,
		TaxableTotal:        row.TaxableTotal,
		CentralTaxTotal:     row.CentralTaxTotal,
		StateTaxTotal:       row.StateTaxTotal,
		CrossBorderTaxTotal: row.CrossBorderTaxTotal,
		RoundOffTotal:       row.RoundOffTotal,
		GrandTotal:          row.GrandTotal,
		PaidTotal:           row.PaidTotal,
		OutstandingTotal:    row.GrandTotal.Sub(row.PaidTotal),
		ByPaymentMethod:     byMethod,
	}, nil
}
