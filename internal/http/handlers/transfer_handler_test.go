package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestTransferHandler_Create_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TransferHandler{transfers: nil}
	r.POST("/transfers", handler.Create)

	req, _ := http.NewRequest("POST", "/transfers", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestTransferHandler_Confirm_MissingCode(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(authenticated(uuid.New()))
	handler := &TransferHandler{transfers: nil}
	r.POST("/transfers/confirm", handler.Confirm)

	req, _ := http.NewRequest("POST", "/transfers/confirm", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransferHandler_Cancel_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(authenticated(uuid.New()))
	handler := &TransferHandler{transfers: nil}
	r.POST("/transfers/:id/cancel", handler.Cancel)

	req, _ := http.NewRequest("POST", "/transfers/not-a-uuid/cancel", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTransferHandler_List_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &TransferHandler{transfers: nil}
	r.GET("/transfers", handler.List)

	req, _ := http.NewRequest("GET", "/transfers", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
