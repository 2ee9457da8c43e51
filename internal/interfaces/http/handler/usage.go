package handler

import (
	"github.com/gin-gonic/gin"

	billingapp "github.com/accumanager/backend/internal/application/billing"
	"github.com/accumanager/backend/internal/domain/billing"
)

// UsageHandler handles usage and quota API endpoints
type UsageHandler struct {
	BaseHandler
	usageService *billingapp.UsageService
}

// NewUsageHandler creates a new UsageHandler
func NewUsageHandler(usageService *billingapp.UsageService) *UsageHandler {
	return &UsageHandler{
		usageService: usageService,
	}
}

// ReleaseUsageRequest represents a request to return reserved units
// @Description Request body for releasing previously reserved usage
type ReleaseUsageRequest struct {
	ResourceKind string `json:"resource_kind" binding:"required"`
	Amount       int64  `json:"amount" binding:"required,gt=0"`
}

// GetUsage godoc
// @Summary      Get current usage
// @Description  Returns per-resource usage, limits and remaining headroom for the tenant
// @Tags         usage
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Success      200 {object} dto.Response{data=billingapp.UsageResponse}
// @Failure      402 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /billing/usage [get]
func (h *UsageHandler) GetUsage(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant ID not found in request")
		return
	}

	usage, err := h.usageService.GetUsage(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, usage)
}

// GetUsageByKind godoc
// @Summary      Get usage for one resource kind
// @Description  Returns usage, limit and remaining headroom for a single resource kind
// @Tags         usage
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        kind path string true "Resource kind"
// @Success      200 {object} dto.Response{data=billing.UsageSnapshot}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /billing/usage/{kind} [get]
func (h *UsageHandler) GetUsageByKind(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant ID not found in request")
		return
	}

	kind := billing.ResourceKind(c.Param("kind"))
	if !kind.IsValid() {
		h.BadRequest(c, "Unknown resource kind")
		return
	}

	snapshot, err := h.usageService.GetUsageForKind(c.Request.Context(), tenantID, kind)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, snapshot)
}

// Release godoc
// @Summary      Release reserved usage
// @Description  Returns previously reserved units, flooring the counter at zero
// @Tags         usage
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body ReleaseUsageRequest true "Release request"
// @Success      204
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /billing/usage/release [post]
func (h *UsageHandler) Release(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant ID not found in request")
		return
	}

	var req ReleaseUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	kind := billing.ResourceKind(req.ResourceKind)
	if !kind.IsValid() {
		h.BadRequest(c, "Unknown resource kind")
		return
	}

	if err := h.usageService.Release(c.Request.Context(), tenantID, kind, req.Amount); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}
