package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/placepulse/backend-go/internal/models"
	"github.com/placepulse/backend-go/internal/service"
	"github.com/placepulse/backend-go/pkg/response"
)

// ContributionHandler handles HTTP requests for contribution rewards
type ContributionHandler struct {
	service *service.ContributionService
}

// NewContributionHandler creates a new contribution handler
func NewContributionHandler(service *service.ContributionService) *ContributionHandler {
	return &ContributionHandler{service: service}
}

// Reward handles POST /api/v1/contributions. Duplicate submissions
// and an exhausted supply come back as zero-reward results with a
// reason, not as HTTP errors.
func (h *ContributionHandler) Reward(c *gin.Context) {
	var contrib models.Contribution
	if err := c.ShouldBindJSON(&contrib); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid contribution payload", err)
		return
	}

	result, err := h.service.Process(c.Request.Context(), contrib)
	if err != nil {
		if errors.Is(err, models.ErrInvalidFix) {
			response.Error(c, http.StatusBadRequest, "Invalid contribution", err)
			return
		}
		response.Error(c, http.StatusInternalServerError, "Failed to process contribution", err)
		return
	}

	response.Success(c, result)
}
