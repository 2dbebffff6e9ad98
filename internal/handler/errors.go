package handler

import (
	"errors"
	"net/http"

	"github.com/damoang/campaign-chronicle/internal/common"
	"github.com/gin-gonic/gin"
)

// respondError maps service errors onto status codes
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, common.Response{
			Success: false,
			Error: &common.ErrorInfo{
				Code:    "BAD_REQUEST",
				Message: verr.Error(),
				Details: verr,
			},
		})
	case errors.Is(err, common.ErrInvalidInput):
		common.ErrorResponse(c, http.StatusBadRequest, "invalid input", err)
	case errors.Is(err, common.ErrNotFound):
		common.ErrorResponse(c, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, common.ErrLockTimeout):
		common.ErrorResponse(c, http.StatusConflict, "campaign is being modified, retry later", err)
	case errors.Is(err, common.ErrExtractorDisabled):
		common.ErrorResponse(c, http.StatusServiceUnavailable, "document extraction is not configured", nil)
	case errors.Is(err, common.ErrRollbackFailed):
		common.ErrorResponse(c, http.StatusInternalServerError, "rollback failed", err)
	default:
		common.ErrorResponse(c, http.StatusInternalServerError, "internal server error", nil)
	}
}
