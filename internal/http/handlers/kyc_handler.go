package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/LuisNMHN/netmarkethn-backend/internal/http/handlers/common"
	"github.com/LuisNMHN/netmarkethn-backend/internal/logger"
	"github.com/LuisNMHN/netmarkethn-backend/internal/service"
)

// KYCHandler exposes document upload and review endpoints.
type KYCHandler struct {
	kyc            *service.KYCService
	maxUploadBytes int64
}

func NewKYCHandler(kyc *service.KYCService, maxUploadBytes int64) *KYCHandler {
	return &KYCHandler{kyc: kyc, maxUploadBytes: maxUploadBytes}
}

type reviewRequest struct {
	Approve *bool   `json:"approve" binding:"required"`
	Note    *string `json:"note"`
}

// Upload handles POST /api/v1/kyc/documents (multipart form).
func (h *KYCHandler) Upload(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	docType := c.PostForm("type")
	if docType == "" {
		common.RespondError(c, http.StatusBadRequest, "document type is required")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "file is required")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, "failed to read file")
		return
	}
	defer file.Close()

	doc, err := h.kyc.UploadDocument(c.Request.Context(), userID, docType, fileHeader.Filename, file)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

// ListMine handles GET /api/v1/kyc/documents.
func (h *KYCHandler) ListMine(c *gin.Context) {
	userID, err := common.CurrentUserID(c)
	if err != nil {
		common.RespondError(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	docs, err := h.kyc.ListMyDocuments(c.Request.Context(), userID)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// ListPending handles GET /api/v1/admin/kyc/pending.
func (h *KYCHandler) ListPending(c *gin.Context) {
	limit, offset := common.GetPagination(c)

	docs, err := h.kyc.ListPending(c.Request.Context(), limit, offset)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// Download handles GET /api/v1/admin/kyc/documents/:id/file. The file is
// streamed as stored; reviewers get the original bytes.
func (h *KYCHandler) Download(c *gin.Context) {
	docID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	doc, file, err := h.kyc.OpenDocument(c.Request.Context(), docID)
	if err != nil {
		_ = c.Error(err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(doc.FilePath)))
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, file); err != nil {
		logger.Log.Warnf("kyc handler: stream document %s: %v", docID, err)
	}
}

// Review handles POST /api/v1/admin/kyc/documents/:id/review.
func (h *KYCHandler) Review(c *gin.Context) {
	docID, err := common.ParseUUIDParam(c, "id")
	if err != nil {
		common.RespondError(c, http.StatusBadRequest, err.Error())
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.RespondError(c, http.StatusBadRequest, "invalid request body")
		return
	}

	doc, err := h.kyc.Review(c.Request.Context(), docID, *req.Approve, req.Note)
	if err != nil {
		_ = c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}
