package handler

import (
	"errors"
	"io"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// SyncHandler triggers synchronization runs on demand
type SyncHandler struct {
	BaseHandler
	service  SyncService
	location *time.Location
	now      func() time.Time
}

// NewSyncHandler creates a new sync handler. Explicit date ranges are read
// on loc's wall clock.
func NewSyncHandler(service SyncService, loc *time.Location) *SyncHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &SyncHandler{
		service:  service,
		location: loc,
		now:      time.Now,
	}
}

// bindOptionalJSON binds the body into req. An empty body keeps the defaults.
func bindOptionalJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// SyncEmployees pulls the employee list from the source system
func (h *SyncHandler) SyncEmployees(c *gin.Context) {
	result, err := h.service.SyncEmployees(c.Request.Context())
	if err != nil {
		h.HandleErrorWithData(c, err, result)
		return
	}
	h.Success(c, result)
}

// SyncAttendance pulls punches for the requested window
func (h *SyncHandler) SyncAttendance(c *gin.Context) {
	var req AttendanceSyncRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	window, err := req.Window(h.now(), h.location)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	result, err := h.service.SyncAttendance(c.Request.Context(), window)
	if err != nil {
		h.HandleErrorWithData(c, err, result)
		return
	}
	h.Success(c, result)
}

// SyncERP pushes pending attendance to the ERP
func (h *SyncHandler) SyncERP(c *gin.Context) {
	var req ERPSyncRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	filter, err := req.Filter()
	if err != nil {
		h.BadRequest(c, "Invalid date")
		return
	}

	result, err := h.service.SyncToERP(c.Request.Context(), filter)
	if err != nil {
		h.HandleErrorWithData(c, err, result)
		return
	}
	h.Success(c, result)
}

// FullSync runs employees, attendance and ERP stages in order
func (h *SyncHandler) FullSync(c *gin.Context) {
	var req FullSyncRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.service.FullSync(c.Request.Context(), req.Options())
	if err != nil {
		h.HandleErrorWithData(c, err, result)
		return
	}
	h.Success(c, result)
}

// ListLogs returns the newest audit entries
func (h *SyncHandler) ListLogs(c *gin.Context) {
	var q SyncLogQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	entries, err := h.service.RecentLogs(c.Request.Context(), attendance.LogCategory(q.Category), q.Limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToSyncLogResponses(entries))
}
