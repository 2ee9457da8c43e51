package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	billingapp "github.com/accumanager/backend/internal/application/billing"
	"github.com/accumanager/backend/internal/infrastructure/scheduler"
)

// TickTrigger runs a single scheduler pass on demand
type TickTrigger interface {
	TriggerImmediateTick(ctx context.Context, now time.Time) (*billingapp.TickResult, error)
	IsRunning() bool
}

// SchedulerHandler exposes manual control over the recurring invoice scheduler
type SchedulerHandler struct {
	BaseHandler
	scheduler TickTrigger
}

// NewSchedulerHandler creates a new SchedulerHandler
func NewSchedulerHandler(trigger TickTrigger) *SchedulerHandler {
	return &SchedulerHandler{
		scheduler: trigger,
	}
}

// SchedulerStatusResponse represents the scheduler status
// @Description Scheduler status information
type SchedulerStatusResponse struct {
	Running bool `json:"running"`
}

// TriggerTick godoc
// @Summary      Run one scheduler pass now
// @Description  Fires all due recurring schedules immediately and reports per-schedule outcomes
// @Tags         scheduler
// @Produce      json
// @Success      200 {object} dto.Response{data=billingapp.TickResult}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /billing/scheduler/tick [post]
func (h *SchedulerHandler) TriggerTick(c *gin.Context) {
	result, err := h.scheduler.TriggerImmediateTick(c.Request.Context(), time.Now().UTC())
	if err != nil {
		if errors.Is(err, scheduler.ErrTickInProgress) {
			h.Conflict(c, "A scheduler pass is already running")
			return
		}
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// Status godoc
// @Summary      Get scheduler status
// @Tags         scheduler
// @Produce      json
// @Success      200 {object} dto.Response{data=SchedulerStatusResponse}
// @Router       /billing/scheduler/status [get]
func (h *SchedulerHandler) Status(c *gin.Context) {
	h.Success(c, SchedulerStatusResponse{
		Running: h.scheduler.IsRunning(),
	})
}
