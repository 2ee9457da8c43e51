package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	billingapp "github.com/accumanager/backend/internal/application/billing"
)

// RecurringScheduleHandler handles recurring schedule API endpoints
type RecurringScheduleHandler struct {
	BaseHandler
	scheduleService *billingapp.ScheduleService
}

// NewRecurringScheduleHandler creates a new RecurringScheduleHandler
func NewRecurringScheduleHandler(scheduleService *billingapp.ScheduleService) *RecurringScheduleHandler {
	return &RecurringScheduleHandler{
		scheduleService: scheduleService,
	}
}

// Create godoc
// @Summary      Create a recurring schedule
// @Description  Create an active schedule that generates an invoice each period
// @Tags         recurring-schedules
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        request body billingapp.CreateScheduleRequest true "Schedule creation request"
// @Success      201 {object} dto.Response{data=billingapp.ScheduleResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /billing/recurring-schedules [post]
func (h *RecurringScheduleHandler) Create(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant ID not found in request")
		return
	}

	var req billingapp.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	schedule, err := h.scheduleService.Create(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, schedule)
}

// GetByID godoc
// @Summary      Get recurring schedule by ID
// @Tags         recurring-schedules
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Schedule ID" format(uuid)
// @Success      200 {object} dto.Response{data=billingapp.ScheduleResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /billing/recurring-schedules/{id} [get]
func (h *RecurringScheduleHandler) GetByID(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant ID not found in request")
		return
	}

	scheduleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid schedule ID format")
		return
	}

	schedule, err := h.scheduleService.GetByID(c.Request.Context(), tenantID, scheduleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, schedule)
}

// List godoc
// @Summary      List recurring schedules
// @Tags         recurring-schedules
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        status query string false "Schedule status filter"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20)
// @Success      200 {object} dto.Response{data=[]billingapp.ScheduleResponse}
// @Router       /billing/recurring-schedules [get]
func (h *RecurringScheduleHandler) List(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant ID not found in request")
		return
	}

	var filter billingapp.ScheduleListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}

	schedules, total, err := h.scheduleService.List(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, schedules, total, filter.Page, filter.PageSize)
}

// Pause godoc
// @Summary      Pause an active schedule
// @Description  Pause a schedule so the scheduler skips it until resumed
// @Tags         recurring-schedules
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Schedule ID" format(uuid)
// @Success      200 {object} dto.Response{data=billingapp.ScheduleResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /billing/recurring-schedules/{id}/pause [post]
func (h *RecurringScheduleHandler) Pause(c *gin.Context) {
	h.transition(c, h.scheduleService.Pause)
}

// Resume godoc
// @Summary      Resume a paused schedule
// @Description  Resume a paused schedule; missed periods are not back-filled
// @Tags         recurring-schedules
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Schedule ID" format(uuid)
// @Success      200 {object} dto.Response{data=billingapp.ScheduleResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /billing/recurring-schedules/{id}/resume [post]
func (h *RecurringScheduleHandler) Resume(c *gin.Context) {
	h.transition(c, h.scheduleService.Resume)
}

// Cancel godoc
// @Summary      Cancel a schedule
// @Description  Permanently cancel a schedule; already generated invoices remain
// @Tags         recurring-schedules
// @Accept       json
// @Produce      json
// @Param        X-Tenant-ID header string true "Tenant ID"
// @Param        id path string true "Schedule ID" format(uuid)
// @Param        request body billingapp.CancelScheduleRequest true "Cancellation reason"
// @Success      200 {object} dto.Response{data=billingapp.ScheduleResponse}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /billing/recurring-schedules/{id}/cancel [post]
func (h *RecurringScheduleHandler) Cancel(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant ID not found in request")
		return
	}

	scheduleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid schedule ID format")
		return
	}

	var req billingapp.CancelScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	schedule, err := h.scheduleService.Cancel(c.Request.Context(), tenantID, scheduleID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, schedule)
}

type scheduleTransition func(ctx context.Context, tenantID, scheduleID uuid.UUID) (*billingapp.ScheduleResponse, error)

func (h *RecurringScheduleHandler) transition(c *gin.Context, apply scheduleTransition) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Unauthorized(c, "Tenant ID not found in request")
		return
	}

	scheduleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid schedule ID format")
		return
	}

	schedule, err := apply(c.Request.Context(), tenantID, scheduleID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, schedule)
}
