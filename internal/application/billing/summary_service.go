package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/accumanager/backend/internal/domain/billing"
	"github.com/accumanager/backend/internal/domain/shared"
)

// SummaryService produces aggregated billing reports for a tenant
type SummaryService struct {
	summaryRepo billing.SummaryRepository
}

// NewSummaryService creates a new SummaryService
func NewSummaryService(summaryRepo billing.SummaryRepository) *SummaryService {
	return &SummaryService{summaryRepo: summaryRepo}
}

// GetSummary aggregates invoices issued in [periodStart, periodEnd).
// Cancelled invoices appear in the counts but contribute nothing to the
// monetary totals. A period without invoices yields all zeros.
func (s *SummaryService) GetSummary(ctx context.Context, tenantID uuid.UUID, periodStart, periodEnd time.Time) (*billing.BillingSummary, error) {
	if !periodEnd.After(periodStart) {
		return nil, shared.NewDomainError("INVALID_PERIOD", "Period end must be after period start")
	}
	return s.summaryRepo.Summarize(ctx, tenantID, periodStart, periodEnd)
}

// GetMonthSummary is a convenience wrapper covering one calendar month
func (s *SummaryService) GetMonthSummary(ctx context.Context, tenantID uuid.UUID, year int, month time.Month) (*billing.BillingSummary, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return s.summaryRepo.Summarize(ctx, tenantID, start, start.AddDate(0, 1, 0))
}
