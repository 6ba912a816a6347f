package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/LuisNMHN/netmarkethn-backend/internal/http/handlers/common"
	"github.com/LuisNMHN/netmarkethn-backend/internal/service"
)

// TransferHandler exposes the code-confirmed direct transfer endpoints.
type TransferHandler struct {
	transfers *service.TransferService
}

func NewTransferHandler(transfers *service.TransferService) *TransferHandler {
	return &TransferHandler{transfers: transfers}
}

type createTransferRequest struct {
	ToUserID *uuid.UUID `json:"to_user_id"`
	Amount   int64      `json:"amount" binding:"required"`
}

type confirmTransferRequest struct {
	Code string `json:"code" binding:"required"`
}

// Create handles POST /api/v1/transfers.
func (h *TransferHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	transfer, err := h.transfers.Create(c.Request.Context(), userID, req.ToUserID, req.Amount)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, transfer)
}

// Confirm handles POST /api/v1/transfers/confirm.
func (h *TransferHandler) Confirm(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req confirmTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.Code))
	transfer, err := h.transfers.Confirm(c.Request.Context(), userID, code)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, transfer)
}

// Cancel handles POST /api/v1/transfers/:id/cancel.
func (h *TransferHandler) Cancel(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	transferID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	transfer, err := h.transfers.Cancel(c.Request.Context(), userID, transferID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, transfer)
}

// Get handles GET /api/v1/transfers/:id.
func (h *TransferHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	transferID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	transfer, err := h.transfers.GetByID(c.Request.Context(), userID, transferID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, transfer)
}

// List handles GET /api/v1/transfers.
func (h *TransferHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := common.GetPagination(c)
	transfers, err := h.transfers.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transfers": transfers})
}
