package handler

import (
	"errors"
	"net/http"

	domainDevice "fluoride-monitor/internal/domain/device"
	"fluoride-monitor/internal/logger"
	"fluoride-monitor/internal/middleware"
	appErrors "fluoride-monitor/pkg/errors"
	"fluoride-monitor/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// respondError maps service errors to HTTP responses.
func respondError(c *gin.Context, err error) {
	if ve, ok := appErrors.AsValidation(err); ok {
		utils.ValidationErrorResponse(c, http.StatusBadRequest, ve)
		return
	}

	switch {
	case errors.Is(err, domainDevice.ErrDeviceNotFound), errors.Is(err, appErrors.ErrNotFound):
		utils.ErrorResponse(c, http.StatusNotFound, err.Error())
	case errors.Is(err, appErrors.ErrStoreUnavailable):
		logger.WithRequestID(middleware.GetRequestID(c)).Error("Store unavailable", zap.Error(err))
		_ = c.Error(err)
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "Service temporarily unavailable")
	default:
		logger.WithRequestID(middleware.GetRequestID(c)).Error("Unhandled error", zap.Error(err))
		_ = c.Error(err)
		utils.ErrorResponse(c, http.StatusInternalServerError, "Internal server error")
	}
}
