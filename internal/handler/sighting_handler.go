package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/watchdog-backend-go/internal/models"
	"github.com/jengzang/watchdog-backend-go/internal/service"
	"github.com/jengzang/watchdog-backend-go/pkg/response"
)

// SightingHandler handles HTTP requests for raw sightings
type SightingHandler struct {
	watchdogService *service.WatchdogService
}

// NewSightingHandler creates a new sighting handler
func NewSightingHandler(watchdogService *service.WatchdogService) *SightingHandler {
	return &SightingHandler{
		watchdogService: watchdogService,
	}
}

// GetSighting handles GET /api/v1/sightings/:id
func (h *SightingHandler) GetSighting(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid sighting ID")
		return
	}

	detail, err := h.watchdogService.SightingDetail(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, detail)
}

// IngestSighting handles POST /api/admin/sightings
func (h *SightingHandler) IngestSighting(c *gin.Context) {
	var sighting models.Sighting
	if err := c.ShouldBindJSON(&sighting); err != nil {
		response.BadRequest(c, "Invalid request body")
		return
	}
	sighting.ID = 0

	if err := h.watchdogService.IngestSighting(c.Request.Context(), &sighting); err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, sighting)
}
