package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/LuisNMHN/netmarkethn-backend/internal/http/handlers/common"
	"github.com/LuisNMHN/netmarkethn-backend/internal/service"
)

// ConversationHandler exposes the per-deal chat endpoints.
type ConversationHandler struct {
	conversations *service.ConversationService
}

func NewConversationHandler(conversations *service.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

type openConversationRequest struct {
	SubjectType string    `json:"subject_type" binding:"required"`
	SubjectID   uuid.UUID `json:"subject_id" binding:"required"`
}

type sendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// Open handles POST /api/v1/conversations.
func (h *ConversationHandler) Open(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req openConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	conversation, err := h.conversations.Open(c.Request.Context(), userID, req.SubjectType, req.SubjectID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, conversation)
}

// List handles GET /api/v1/conversations.
func (h *ConversationHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := common.GetPagination(c)
	conversations, err := h.conversations.ListMine(c.Request.Context(), userID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"conversations": conversations})
}

// Send handles POST /api/v1/conversations/:id/messages.
func (h *ConversationHandler) Send(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	conversationID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	message, err := h.conversations.Send(c.Request.Context(), userID, conversationID, req.Body)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

// Messages handles GET /api/v1/conversations/:id/messages.
func (h *ConversationHandler) Messages(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	conversationID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	limit, offset := common.GetPagination(c)
	messages, err := h.conversations.Messages(c.Request.Context(), userID, conversationID, limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"messages": messages})
}
