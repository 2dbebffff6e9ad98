package handler

import (
	"io"
	"net/http"
	"path/filepath"

	"github.com/damoang/campaign-chronicle/internal/common"
	"github.com/damoang/campaign-chronicle/internal/service"
	"github.com/damoang/campaign-chronicle/pkg/ginutil"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// DefaultMaxUploadBytes caps document uploads (10MB)
const DefaultMaxUploadBytes = 10 << 20

var uploadValidator = validator.New()

// documentUpload is the validated shape of the uploaded file header
type documentUpload struct {
	Filename string `validate:"required,max=255"`
	Size     int64  `validate:"gt=0"`
}

// ImportHandler accepts campaign documents for extraction
type ImportHandler struct {
	service  *service.ImportService
	maxBytes int64
}

// NewImportHandler creates a new ImportHandler
func NewImportHandler(svc *service.ImportService, maxBytes int64) *ImportHandler {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &ImportHandler{service: svc, maxBytes: maxBytes}
}

// Upload handles POST /api/campaigns/:id/import
// multipart: document (file), extractCharacters/Events/Plots/Lore (bool, default true)
func (h *ImportHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("document")
	if err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "No file uploaded", err)
		return
	}
	upload := documentUpload{Filename: filepath.Base(file.Filename), Size: file.Size}
	if err := uploadValidator.Struct(&upload); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "Validation failed", err)
		return
	}
	if upload.Size > h.maxBytes {
		common.ErrorResponse(c, http.StatusBadRequest, "File too large", nil)
		return
	}

	f, err := file.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, h.maxBytes))
	if err != nil {
		respondError(c, err)
		return
	}

	opts := service.ExtractOptions{
		ExtractCharacters: ginutil.FormBool(c, "extractCharacters", true),
		ExtractEvents:     ginutil.FormBool(c, "extractEvents", true),
		ExtractPlots:      ginutil.FormBool(c, "extractPlots", true),
		ExtractLore:       ginutil.FormBool(c, "extractLore", true),
	}

	result, err := h.service.ImportDocument(c.Request.Context(), c.Param("id"), upload.Filename, string(content), opts)
	if err != nil {
		respondError(c, err)
		return
	}
	common.Created(c, result)
}
