package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/LuisNMHN/netmarkethn-backend/internal/http/handlers/common"
	"github.com/LuisNMHN/netmarkethn-backend/internal/service"
)

// PreferenceHandler exposes per-user settings endpoints.
type PreferenceHandler struct {
	preferences *service.PreferenceService
}

func NewPreferenceHandler(preferences *service.PreferenceService) *PreferenceHandler {
	return &PreferenceHandler{preferences: preferences}
}

type setPreferenceRequest struct {
	Value json.RawMessage `json:"value" binding:"required"`
}

// Set handles PUT /api/v1/preferences/:key.
func (h *PreferenceHandler) Set(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req setPreferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	preference, err := h.preferences.Set(c.Request.Context(), userID, c.Param("key"), req.Value)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, preference)
}

// Get handles GET /api/v1/preferences/:key.
func (h *PreferenceHandler) Get(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	preference, err := h.preferences.Get(c.Request.Context(), userID, c.Param("key"))
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, preference)
}

// List handles GET /api/v1/preferences.
func (h *PreferenceHandler) List(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	preferences, err := h.preferences.List(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"preferences": preferences})
}

// Delete handles DELETE /api/v1/preferences/:key.
func (h *PreferenceHandler) Delete(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.preferences.Delete(c.Request.Context(), userID, c.Param("key")); err != nil {
		_ = c.Error(err)
		return
	}

	common.RespondSuccess(c, http.StatusOK, "preference removed", nil)
}
