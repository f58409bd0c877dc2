package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/placepulse/backend-go/internal/models"
	"github.com/placepulse/backend-go/internal/service"
	"github.com/placepulse/backend-go/pkg/response"
)

// TrackingHandler handles HTTP requests for session tracking
type TrackingHandler struct {
	service *service.TrackingService
}

// NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(service *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{service: service}
}

// Start handles POST /api/v1/tracking/:sessionId/start
func (h *TrackingHandler) Start(c *gin.Context) {
	sessionID := c.Param("sessionId")
	if sessionID == "" {
		response.Error(c, http.StatusBadRequest, "Missing session id", nil)
		return
	}

	h.service.StartTracking(sessionID)
	response.Success(c, gin.H{"sessionId": sessionID, "tracking": true})
}

// SubmitFix handles POST /api/v1/tracking/:sessionId/fixes
func (h *TrackingHandler) SubmitFix(c *gin.Context) {
	sessionID := c.Param("sessionId")

	var fix models.GPSFix
	if err := c.ShouldBindJSON(&fix); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid fix payload", err)
		return
	}

	sample, err := h.service.SubmitFix(c.Request.Context(), sessionID, fix)
	if err != nil {
		if errors.Is(err, models.ErrInvalidFix) {
			response.Error(c, http.StatusBadRequest, "Invalid fix", err)
			return
		}
		response.Error(c, http.StatusInternalServerError, "Failed to process fix", err)
		return
	}

	response.Success(c, sample)
}

// Stop handles POST /api/v1/tracking/:sessionId/stop
func (h *TrackingHandler) Stop(c *gin.Context) {
	sessionID := c.Param("sessionId")

	visits, err := h.service.StopTracking(c.Request.Context(), sessionID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to stop tracking", err)
		return
	}

	response.Success(c, gin.H{"sessionId": sessionID, "visits": visits})
}
