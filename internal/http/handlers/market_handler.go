package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/LuisNMHN/netmarkethn-backend/internal/http/handlers/common"
	"github.com/LuisNMHN/netmarkethn-backend/internal/service"
)

// MarketHandler exposes the prediction market endpoints.
type MarketHandler struct {
	markets *service.MarketService
}

func NewMarketHandler(markets *service.MarketService) *MarketHandler {
	return &MarketHandler{markets: markets}
}

type createMarketRequest struct {
	Question   string    `json:"question" binding:"required"`
	OutcomeYes string    `json:"outcome_yes"`
	OutcomeNo  string    `json:"outcome_no"`
	ClosesAt   time.Time `json:"closes_at" binding:"required"`
}

type stakeRequest struct {
	Outcome string `json:"outcome" binding:"required"`
	Stake   int64  `json:"stake" binding:"required"`
}

type resolveMarketRequest struct {
	Outcome string `json:"outcome" binding:"required"`
}

// Create handles POST /api/v1/admin/markets.
func (h *MarketHandler) Create(c *gin.Context) {
	var req createMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.Create(c.Request.Context(), req.Question, req.OutcomeYes, req.OutcomeNo, req.ClosesAt)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, market)
}

// ListOpen handles GET /api/v1/markets.
func (h *MarketHandler) ListOpen(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	markets, err := h.markets.ListOpen(c.Request.Context(), limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"markets": markets})
}

// Get handles GET /api/v1/markets/:id.
func (h *MarketHandler) Get(c *gin.Context) {
	marketID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	market, err := h.markets.GetByID(c.Request.Context(), marketID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, market)
}

// Stake handles POST /api/v1/markets/:id/stake.
func (h *MarketHandler) Stake(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	marketID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req stakeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	position, err := h.markets.Stake(c.Request.Context(), userID, marketID, req.Outcome, req.Stake)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, position)
}

// Positions handles GET /api/v1/markets/:id/positions.
func (h *MarketHandler) Positions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	marketID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	positions, err := h.markets.ListPositions(c.Request.Context(), userID, marketID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

// Resolve handles POST /api/v1/admin/markets/:id/resolve.
func (h *MarketHandler) Resolve(c *gin.Context) {
	marketID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req resolveMarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	market, err := h.markets.Resolve(c.Request.Context(), marketID, req.Outcome)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, market)
}

// Void handles POST /api/v1/admin/markets/:id/void.
func (h *MarketHandler) Void(c *gin.Context) {
	marketID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	market, err := h.markets.Void(c.Request.Context(), marketID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, market)
}
