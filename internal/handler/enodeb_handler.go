package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/watchdog-backend-go/internal/models"
	"github.com/jengzang/watchdog-backend-go/internal/service"
	"github.com/jengzang/watchdog-backend-go/pkg/response"
)

// EmptyMapMessage is sent with an empty map export
const EmptyMapMessage = "nothing to see yet"

// EnodebHandler handles HTTP requests for transmitters
type EnodebHandler struct {
	watchdogService *service.WatchdogService
}

// NewEnodebHandler creates a new enodeb handler
func NewEnodebHandler(watchdogService *service.WatchdogService) *EnodebHandler {
	return &EnodebHandler{
		watchdogService: watchdogService,
	}
}

// ListEnodebs handles GET /api/v1/enodebs
func (h *EnodebHandler) ListEnodebs(c *gin.Context) {
	summaries, err := h.watchdogService.ListClusters(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, gin.H{
		"enodebs": summaries,
		"total":   len(summaries),
	})
}

// GetEnodeb handles GET /api/v1/enodebs/:key
func (h *EnodebHandler) GetEnodeb(c *gin.Context) {
	filter, ok := parseFieldFilter(c)
	if !ok {
		return
	}

	detail, err := h.watchdogService.ClusterDetail(c.Request.Context(), c.Param("key"), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, detail)
}

// GetMap handles GET /api/v1/map
func (h *EnodebHandler) GetMap(c *gin.Context) {
	view, err := h.watchdogService.MapView(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	if len(view.Points) == 0 {
		response.SuccessWithMessage(c, EmptyMapMessage, view)
		return
	}
	response.Success(c, view)
}

// parseFieldFilter reads ?show_sensitive and ?fields=a,b
func parseFieldFilter(c *gin.Context) (models.FieldFilter, bool) {
	var filter models.FieldFilter

	if raw := c.Query("show_sensitive"); raw != "" {
		show, err := strconv.ParseBool(raw)
		if err != nil {
			response.BadRequest(c, "Invalid show_sensitive parameter")
			return filter, false
		}
		filter.ShowSensitive = show
	}

	if raw := c.Query("fields"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				filter.Only = append(filter.Only, name)
			}
		}
	}

	return filter, true
}
