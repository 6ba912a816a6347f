package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/LuisNMHN/netmarkethn-backend/internal/http/handlers/common"
	"github.com/LuisNMHN/netmarkethn-backend/internal/service"
)

// LedgerHandler exposes balance and transaction endpoints.
type LedgerHandler struct {
	ledger *service.LedgerService
}

func NewLedgerHandler(ledger *service.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

type transferRequest struct {
	ToUserID    uuid.UUID `json:"to_user_id" binding:"required"`
	Amount      int64     `json:"amount" binding:"required"`
	Description string    `json:"description"`
	Reference   *string   `json:"reference"`
}

type mintRequest struct {
	UserID      uuid.UUID `json:"user_id" binding:"required"`
	Amount      int64     `json:"amount" binding:"required"`
	Description string    `json:"description"`
}

// Balance handles GET /api/v1/ledger/balance.
func (h *LedgerHandler) Balance(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	balance, err := h.ledger.GetBalance(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, balance)
}

// Transfer handles POST /api/v1/ledger/transfer.
func (h *LedgerHandler) Transfer(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	transaction, err := h.ledger.Transfer(c.Request.Context(), userID, req.ToUserID, req.Amount, req.Description, req.Reference)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, transaction)
}

// Transactions handles GET /api/v1/ledger/transactions.
func (h *LedgerHandler) Transactions(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := common.GetPagination(c)
	transactions, err := h.ledger.ListTransactions(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

// Transaction handles GET /api/v1/ledger/transactions/:id.
func (h *LedgerHandler) Transaction(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	transactionID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	transaction, err := h.ledger.GetTransaction(c.Request.Context(), userID, transactionID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, transaction)
}

// Emit handles POST /api/v1/admin/ledger/emit.
func (h *LedgerHandler) Emit(c *gin.Context) {
	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	transaction, err := h.ledger.Emit(c.Request.Context(), req.UserID, req.Amount, req.Description)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, transaction)
}

// Burn handles POST /api/v1/admin/ledger/burn.
func (h *LedgerHandler) Burn(c *gin.Context) {
	var req mintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	transaction, err := h.ledger.Burn(c.Request.Context(), req.UserID, req.Amount, req.Description)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, transaction)
}
