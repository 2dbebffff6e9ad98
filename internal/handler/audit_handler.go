package handler

import (
	"net/http"
	"time"

	"github.com/damoang/campaign-chronicle/internal/common"
	"github.com/damoang/campaign-chronicle/internal/repository"
	"github.com/damoang/campaign-chronicle/internal/service"
	"github.com/damoang/campaign-chronicle/pkg/ginutil"
	"github.com/gin-gonic/gin"
)

// AuditHandler exposes ledger queries and the rollback engine
type AuditHandler struct {
	ledger       repository.AuditLedger
	rollback     *service.RollbackService
	defaultLimit int
	maxLimit     int
}

// NewAuditHandler creates a new AuditHandler
func NewAuditHandler(ledger repository.AuditLedger, rollback *service.RollbackService, defaultLimit, maxLimit int) *AuditHandler {
	return &AuditHandler{
		ledger:       ledger,
		rollback:     rollback,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
	}
}

// CampaignLog handles GET /api/campaigns/:id/audit-log?limit=
func (h *AuditHandler) CampaignLog(c *gin.Context) {
	limit := ginutil.ClampLimit(ginutil.QueryInt(c, "limit", h.defaultLimit), h.defaultLimit, h.maxLimit)
	logs, err := h.ledger.ListByCampaign(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	common.SuccessWithMeta(c, logs, &common.Meta{Limit: limit, Count: len(logs)})
}

// EntityLog handles GET /api/audit-log/entity/:entityId
func (h *AuditHandler) EntityLog(c *gin.Context) {
	logs, err := h.ledger.ListByEntity(c.Request.Context(), c.Param("entityId"))
	if err != nil {
		respondError(c, err)
		return
	}
	common.SuccessWithMeta(c, logs, &common.Meta{Count: len(logs)})
}

// ImportBatchLog handles GET /api/audit-log/import/:batchId
func (h *AuditHandler) ImportBatchLog(c *gin.Context) {
	logs, err := h.ledger.ListByImportBatch(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		respondError(c, err)
		return
	}
	common.SuccessWithMeta(c, logs, &common.Meta{Count: len(logs)})
}

// RollbackImport handles POST /api/rollback/import/:batchId
func (h *AuditHandler) RollbackImport(c *gin.Context) {
	result, err := h.rollback.RollbackImportBatch(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		respondError(c, err)
		return
	}
	common.Success(c, result)
}

// RollbackTimestampRequest is the body of a timestamp rollback
type RollbackTimestampRequest struct {
	Timestamp time.Time `json:"timestamp" binding:"required"`
}

// RollbackTimestamp handles POST /api/rollback/timestamp/:campaignId
func (h *AuditHandler) RollbackTimestamp(c *gin.Context) {
	var req RollbackTimestampRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.ErrorResponse(c, http.StatusBadRequest, "timestamp (RFC 3339) is required", err)
		return
	}

	result, err := h.rollback.RollbackToTimestamp(c.Request.Context(), c.Param("campaignId"), req.Timestamp)
	if err != nil {
		respondError(c, err)
		return
	}
	common.Success(c, result)
}
