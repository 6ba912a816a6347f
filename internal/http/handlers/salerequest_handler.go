package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/LuisNMHN/netmarkethn-backend/internal/http/handlers/common"
	"github.com/LuisNMHN/netmarkethn-backend/internal/models"
	"github.com/LuisNMHN/netmarkethn-backend/internal/service"
)

// SaleRequestHandler exposes the HNLD-for-lempira marketplace endpoints.
type SaleRequestHandler struct {
	sales *service.SaleRequestService
}

func NewSaleRequestHandler(sales *service.SaleRequestService) *SaleRequestHandler {
	return &SaleRequestHandler{sales: sales}
}

type createSaleRequest struct {
	Amount   int64 `json:"amount" binding:"required"`
	PriceLPS int64 `json:"price_lps" binding:"required"`
}

// Create handles POST /api/v1/sale-requests.
func (h *SaleRequestHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	request, err := h.sales.Create(c.Request.Context(), userID, req.Amount, req.PriceLPS)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

// ListOpen handles GET /api/v1/sale-requests.
func (h *SaleRequestHandler) ListOpen(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	requests, err := h.sales.ListOpen(c.Request.Context(), limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sale_requests": requests})
}

// ListMine handles GET /api/v1/sale-requests/mine.
func (h *SaleRequestHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := common.GetPagination(c)
	requests, err := h.sales.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sale_requests": requests})
}

// Get handles GET /api/v1/sale-requests/:id.
func (h *SaleRequestHandler) Get(c *gin.Context) {
	requestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	request, err := h.sales.GetByID(c.Request.Context(), requestID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, request)
}

// Accept handles POST /api/v1/sale-requests/:id/accept.
func (h *SaleRequestHandler) Accept(c *gin.Context) {
	h.action(c, h.sales.Accept)
}

// Complete handles POST /api/v1/sale-requests/:id/complete.
func (h *SaleRequestHandler) Complete(c *gin.Context) {
	h.action(c, h.sales.Complete)
}

// Cancel handles POST /api/v1/sale-requests/:id/cancel.
func (h *SaleRequestHandler) Cancel(c *gin.Context) {
	h.action(c, h.sales.Cancel)
}

func (h *SaleRequestHandler) action(c *gin.Context, op func(ctx context.Context, callerID, requestID uuid.UUID) (*models.SaleRequest, error)) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	requestID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	request, err := op(c.Request.Context(), userID, requestID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, request)
}
