package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestKYCHandler_Upload_Unauthorized(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler := &KYCHandler{kyc: nil, maxUploadBytes: 1 << 20}
	r.POST("/kyc/documents", handler.Upload)

	req, _ := http.NewRequest("POST", "/kyc/documents", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestKYCHandler_Download_InvalidID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(authenticated(uuid.New()))
	handler := &KYCHandler{kyc: nil}
	r.GET("/admin/kyc/documents/:id/file", handler.Download)

	req, _ := http.NewRequest("GET", "/admin/kyc/documents/not-a-uuid/file", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestKYCHandler_Review_InvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(authenticated(uuid.New()))
	handler := &KYCHandler{kyc: nil}
	r.POST("/admin/kyc/documents/:id/review", handler.Review)

	req, _ := http.NewRequest("POST", "/admin/kyc/documents/"+uuid.NewString()+"/review", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
