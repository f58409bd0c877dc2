package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/placepulse/backend-go/internal/service"
	"github.com/placepulse/backend-go/pkg/response"
)

// VoteHandler handles HTTP requests for vote weight queries
type VoteHandler struct {
	service *service.VoteService
}

// NewVoteHandler creates a new vote handler
func NewVoteHandler(service *service.VoteService) *VoteHandler {
	return &VoteHandler{service: service}
}

// Weight handles GET /api/v1/votes/weight
func (h *VoteHandler) Weight(c *gin.Context) {
	sessionID := c.Query("sessionId")
	if sessionID == "" {
		response.Error(c, http.StatusBadRequest, "Missing sessionId", nil)
		return
	}

	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid lat", err)
		return
	}
	lon, err := strconv.ParseFloat(c.Query("lng"), 64)
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid lng", err)
		return
	}

	weight, err := h.service.WeightAt(c.Request.Context(), sessionID, lat, lon)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to compute vote weight", err)
		return
	}

	response.Success(c, weight)
}

// Visits handles GET /api/v1/visits/:sessionId
func (h *VoteHandler) Visits(c *gin.Context) {
	visits, err := h.service.Visits(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get visits", err)
		return
	}
	response.Success(c, visits)
}
