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

// EscrowHandler exposes the escrow lifecycle endpoints.
type EscrowHandler struct {
	escrows *service.EscrowService
}

func NewEscrowHandler(escrows *service.EscrowService) *EscrowHandler {
	return &EscrowHandler{escrows: escrows}
}

type createEscrowRequest struct {
	PayeeID uuid.UUID `json:"payee_id" binding:"required"`
	Amount  int64     `json:"amount" binding:"required"`
	Type    string    `json:"type" binding:"required"`
}

type disputeRequest struct {
	Reason string `json:"reason" binding:"required"`
}

type resolveDisputeRequest struct {
	ReleaseToPayee *bool `json:"release_to_payee" binding:"required"`
}

// Create handles POST /api/v1/escrows.
func (h *EscrowHandler) Create(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req createEscrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	escrow, err := h.escrows.Create(c.Request.Context(), userID, req.PayeeID, req.Amount, req.Type)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, escrow)
}

// Lock handles POST /api/v1/escrows/:id/lock.
func (h *EscrowHandler) Lock(c *gin.Context) {
	h.transition(c, h.escrows.Lock)
}

// Release handles POST /api/v1/escrows/:id/release.
func (h *EscrowHandler) Release(c *gin.Context) {
	h.transition(c, h.escrows.Release)
}

// Cancel handles POST /api/v1/escrows/:id/cancel.
func (h *EscrowHandler) Cancel(c *gin.Context) {
	h.transition(c, h.escrows.Cancel)
}

// Dispute handles POST /api/v1/escrows/:id/dispute.
func (h *EscrowHandler) Dispute(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req disputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	escrow, err := h.escrows.Dispute(c.Request.Context(), userID, escrowID, req.Reason)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// ResolveDispute handles POST /api/v1/admin/escrows/:id/resolve.
func (h *EscrowHandler) ResolveDispute(c *gin.Context) {
	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req resolveDisputeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	escrow, err := h.escrows.ResolveDispute(c.Request.Context(), escrowID, *req.ReleaseToPayee)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}

// Get handles GET /api/v1/escrows/:id.
func (h *EscrowHandler) Get(c *gin.Context) {
	h.transition(c, h.escrows.GetByID)
}

// List handles GET /api/v1/escrows.
func (h *EscrowHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := common.GetPagination(c)
	escrows, err := h.escrows.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"escrows": escrows})
}

// transition runs a caller+id escrow operation and writes the result.
func (h *EscrowHandler) transition(c *gin.Context, op func(ctx context.Context, callerID, escrowID uuid.UUID) (*models.Escrow, error)) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	escrowID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	escrow, err := op(c.Request.Context(), userID, escrowID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, escrow)
}
