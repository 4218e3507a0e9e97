package handler

import (
	"errors"
	"net/http"

	"github.com/attendsync/backend/internal/application/reconciliation"
	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/integration"
	"github.com/attendsync/backend/internal/domain/shared"
	"github.com/attendsync/backend/internal/infrastructure/logger"
	"github.com/attendsync/backend/internal/infrastructure/scheduler"
	"github.com/attendsync/backend/internal/interfaces/http/dto"
	"github.com/attendsync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Remediation hints returned with upstream failures
const (
	remediationERPAuth    = "Check erp.api_key and erp.api_secret (ATTSYNC_ERP_API_KEY, ATTSYNC_ERP_API_SECRET) and that the API user may create Attendance."
	remediationSourceAuth = "Check source.username and source.password (ATTSYNC_SOURCE_USERNAME, ATTSYNC_SOURCE_PASSWORD)."
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID set by the RequestID middleware
func getRequestID(c *gin.Context) string {
	if id := middleware.GetRequestID(c); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// HandleError converts an error into an HTTP response
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	h.respondError(c, err, nil)
}

// HandleErrorWithData responds with the error and keeps data in the body.
// Sync endpoints use it so a failed run still reports its partial counts.
func (h *BaseHandler) HandleErrorWithData(c *gin.Context, err error, data any) {
	h.respondError(c, err, data)
}

func (h *BaseHandler) respondError(c *gin.Context, err error, data any) {
	if err == nil {
		return
	}
	_ = c.Error(err)

	info := classifyError(err)
	info.RequestID = getRequestID(c)
	status := dto.GetHTTPStatus(info.Code)

	if status >= http.StatusInternalServerError {
		logger.GetGinLogger(c).Error("Request failed",
			zap.String("code", info.Code),
			zap.Error(err),
		)
	}

	c.JSON(status, dto.Response{
		Success: false,
		Data:    data,
		Error:   info,
	})
}

// classifyError maps domain and infrastructure errors to API error codes
func classifyError(err error) *dto.ErrorInfo {
	var domainErr *shared.DomainError

	switch {
	// missing credentials outrank the auth failure they surface as
	case errors.Is(err, integration.ErrSourceNotConfigured):
		return &dto.ErrorInfo{
			Code:        dto.ErrCodeNotConfigured,
			Message:     "Source system is not configured",
			Remediation: "Set source.base_url, source.username and source.password.",
		}
	case errors.Is(err, integration.ErrERPNotConfigured):
		return &dto.ErrorInfo{
			Code:        dto.ErrCodeNotConfigured,
			Message:     "ERP is not configured",
			Remediation: "Set erp.base_url, erp.api_key and erp.api_secret.",
		}
	case errors.Is(err, integration.ErrERPAuthFailed), errors.Is(err, shared.ErrUpstreamAuth):
		return &dto.ErrorInfo{
			Code:        dto.ErrCodeERPAuthFailed,
			Message:     "ERP rejected the configured API credentials",
			Remediation: remediationERPAuth,
		}
	case errors.Is(err, integration.ErrSourceAuthFailed):
		return &dto.ErrorInfo{
			Code:        dto.ErrCodeSourceAuthFailed,
			Message:     "Source system rejected the configured credentials",
			Remediation: remediationSourceAuth,
		}
	case errors.Is(err, integration.ErrSourceUnavailable), errors.Is(err, integration.ErrSourceInvalidResponse):
		return &dto.ErrorInfo{Code: dto.ErrCodeSourceUnavailable, Message: err.Error()}
	case errors.Is(err, integration.ErrERPUnavailable), errors.Is(err, integration.ErrERPInvalidResponse):
		return &dto.ErrorInfo{Code: dto.ErrCodeERPUnavailable, Message: err.Error()}
	case errors.Is(err, attendance.ErrFactNotFound):
		return &dto.ErrorInfo{Code: dto.ErrCodeNotFound, Message: "Attendance record not found"}
	case errors.Is(err, attendance.ErrEmployeeNotFound):
		return &dto.ErrorInfo{Code: dto.ErrCodeNotFound, Message: "Employee not found"}
	case errors.Is(err, scheduler.ErrJobNotFound):
		return &dto.ErrorInfo{Code: dto.ErrCodeNotFound, Message: "Job not found"}
	case errors.Is(err, scheduler.ErrJobLocked):
		return &dto.ErrorInfo{Code: dto.ErrCodeJobRunning, Message: "Job is already running"}
	case errors.Is(err, attendance.ErrInvalidTransition):
		return &dto.ErrorInfo{Code: dto.ErrCodeInvalidState, Message: err.Error()}
	case errors.Is(err, reconciliation.ErrInvalidWindow):
		return &dto.ErrorInfo{Code: dto.ErrCodeInvalidWindow, Message: "Start date must not be after end date"}
	case errors.As(err, &domainErr):
		return &dto.ErrorInfo{Code: dto.NormalizeErrorCode(domainErr.Code), Message: domainErr.Message}
	default:
		return &dto.ErrorInfo{Code: dto.ErrCodeInternal, Message: "An unexpected error occurred"}
	}
}
