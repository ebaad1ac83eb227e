package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/watchdog-backend-go/internal/middleware"
	"github.com/jengzang/watchdog-backend-go/internal/service"
	"github.com/jengzang/watchdog-backend-go/pkg/response"
)

// RecomputeHandler handles HTTP requests for full recomputation
type RecomputeHandler struct {
	watchdogService *service.WatchdogService
}

// NewRecomputeHandler creates a new recompute handler
func NewRecomputeHandler(watchdogService *service.WatchdogService) *RecomputeHandler {
	return &RecomputeHandler{
		watchdogService: watchdogService,
	}
}

// TriggerRecompute handles POST /api/admin/recompute
func (h *RecomputeHandler) TriggerRecompute(c *gin.Context) {
	// Get user from context (set by auth middleware)
	triggeredBy := c.GetString(middleware.ContextUserKey)
	if triggeredBy == "" {
		triggeredBy = "admin"
	}

	run, err := h.watchdogService.RecomputeAll(c.Request.Context(), triggeredBy)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, run)
}

// GetRecomputeRun handles GET /api/admin/recompute/:id
func (h *RecomputeHandler) GetRecomputeRun(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid run ID")
		return
	}

	run, err := h.watchdogService.GetRecomputeRun(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, run)
}
