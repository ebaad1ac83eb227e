package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/watchdog-backend-go/internal/detection"
	"github.com/jengzang/watchdog-backend-go/internal/logging"
	"github.com/jengzang/watchdog-backend-go/pkg/response"
)

// respondError maps detection errors onto HTTP statuses
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, detection.ErrInvalidInput):
		response.BadRequest(c, err.Error())
	case errors.Is(err, detection.ErrNotFound):
		response.NotFound(c, err.Error())
	default:
		// Storage details stay in the log
		logging.Error().Err(err).
			Bool("storage", detection.IsStorageError(err)).
			Str("path", c.FullPath()).
			Msg("Request failed")
		response.InternalError(c, "internal error")
	}
}
