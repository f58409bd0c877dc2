package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/placepulse/backend-go/internal/repository"
	"github.com/placepulse/backend-go/internal/service"
	"github.com/placepulse/backend-go/pkg/response"
)

// TokenHandler handles HTTP requests for balances, transactions and
// the supply state
type TokenHandler struct {
	service *service.ContributionService
}

// NewTokenHandler creates a new token handler
func NewTokenHandler(service *service.ContributionService) *TokenHandler {
	return &TokenHandler{service: service}
}

// Supply handles GET /api/v1/tokens/supply
func (h *TokenHandler) Supply(c *gin.Context) {
	state, err := h.service.SupplyState(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get supply state", err)
		return
	}
	response.Success(c, state)
}

// Balance handles GET /api/v1/tokens/balance/:sessionId
func (h *TokenHandler) Balance(c *gin.Context) {
	balance, err := h.service.Balance(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get balance", err)
		return
	}
	response.Success(c, balance)
}

// Transactions handles GET /api/v1/tokens/transactions/:sessionId
func (h *TokenHandler) Transactions(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

	txns, err := h.service.Transactions(c.Request.Context(), c.Param("sessionId"), limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to get transactions", err)
		return
	}
	response.Success(c, txns)
}

// spendRequest is the payload for POST /api/v1/tokens/spend
type spendRequest struct {
	SessionID string  `json:"sessionId" binding:"required"`
	Amount    float64 `json:"amount" binding:"required"`
	Reason    string  `json:"reason"`
}

// Spend handles POST /api/v1/tokens/spend
func (h *TokenHandler) Spend(c *gin.Context) {
	var req spendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid spend payload", err)
		return
	}

	balance, err := h.service.Spend(c.Request.Context(), req.SessionID, req.Amount, req.Reason)
	if err != nil {
		if errors.Is(err, repository.ErrInsufficientBalance) {
			response.Error(c, http.StatusBadRequest, "Insufficient balance", err)
			return
		}
		response.Error(c, http.StatusInternalServerError, "Failed to spend tokens", err)
		return
	}
	response.Success(c, balance)
}
