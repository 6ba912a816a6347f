package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/LuisNMHN/netmarkethn-backend/internal/http/middleware"
)

func authenticated(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextUserIDKey, userID)
		c.Next()
	}
}

func TestEscrowHandler_Create_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &EscrowHandler{escrows: nil}
	r.POST("/escrows", handler.Create)

	req, _ := http.NewRequest("POST", "/escrows", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestEscrowHandler_Lock_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(authenticated(uuid.New()))
	handler := &EscrowHandler{escrows: nil}
	r.POST("/escrows/:id/lock", handler.Lock)

	req, _ := http.NewRequest("POST", "/escrows/not-a-uuid/lock", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEscrowHandler_Dispute_MissingReason(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(authenticated(uuid.New()))
	handler := &EscrowHandler{escrows: nil}
	r.POST("/escrows/:id/dispute", handler.Dispute)

	req, _ := http.NewRequest("POST", "/escrows/"+uuid.New().String()+"/dispute", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEscrowHandler_List_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &EscrowHandler{escrows: nil}
	r.GET("/escrows", handler.List)

	req, _ := http.NewRequest("GET", "/escrows", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
