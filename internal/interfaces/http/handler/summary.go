package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	billingapp "github.com/accumanager/backend/internal/application/billing"
)

// SummaryHandler handles billing summary API endpoints
type SummaryHandler struct {
	BaseHandler
	summaryService *billingapp.SummaryService
}

// NewSummaryHandler creates a new SummaryHandler
func NewSummaryHandler(summaryService *billingapp.SummaryService) *SummaryHandler {
	return &SummaryHandler{
		summaryService: summaryService,
	}
}

// GetSummary godoc
// @Summary      Get billing summary for a period
// @Description  Aggregates invoices issued within [period_start, period_end). Cancelled invoices are counted but excluded from monetary totals.
// @Tags         billing-summary
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        period_start query string true "Period start (RFC3339)"
// @Param        period_end query string true "Period end, exclusive (RFC3339)"
// @Success      200 {object} dto.Response{data=billing.BillingSummary}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /billing/summary [get]
func (h *SummaryHandler) GetSummary(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant ID not found in request")
		return
	}

	var req billingapp.SummaryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	summary, err := h.summaryService.GetSummary(c.Request.Context(), tenantID, req.PeriodStart, req.PeriodEnd)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// GetMonthSummary godoc
// @Summary      Get billing summary for a calendar month
// @Tags         billing-summary
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        year path int true "Year" example(2026)
// @Param        month path int true "Month (1-12)" example(3)
// @Success      200 {object} dto.Response{data=billing.BillingSummary}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /billing/summary/{year}/{month} [get]
func (h *SummaryHandler) GetMonthSummary(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant ID not found in request")
		return
	}

	year, err := strconv.Atoi(c.Param("year"))
	if err != nil || year < 2000 || year > 2200 {
		h.BadRequest(c, "Invalid year")
		return
	}

	month, err := strconv.Atoi(c.Param("month"))
	if err != nil || month < 1 || month > 12 {
		h.BadRequest(c, "Invalid month, expected 1-12")
		return
	}

	summary, err := h.summaryService.GetMonthSummary(c.Request.Context(), tenantID, year, time.Month(month))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}
