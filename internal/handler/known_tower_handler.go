package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/jengzang/watchdog-backend-go/internal/models"
	"github.com/jengzang/watchdog-backend-go/internal/service"
	"github.com/jengzang/watchdog-backend-go/pkg/response"
)

// KnownTowerHandler handles HTTP requests for the known-tower registry
type KnownTowerHandler struct {
	watchdogService *service.WatchdogService
}

// NewKnownTowerHandler creates a new known tower handler
func NewKnownTowerHandler(watchdogService *service.WatchdogService) *KnownTowerHandler {
	return &KnownTowerHandler{
		watchdogService: watchdogService,
	}
}

// ListKnownTowers handles GET /api/v1/known-towers
func (h *KnownTowerHandler) ListKnownTowers(c *gin.Context) {
	towers, err := h.watchdogService.ListKnownTowers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, towers)
}

// AddKnownTower handles POST /api/admin/known-towers
func (h *KnownTowerHandler) AddKnownTower(c *gin.Context) {
	var req models.KnownTowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}

	tower, err := h.watchdogService.AddKnownTower(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, tower)
}
