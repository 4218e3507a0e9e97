package handler

import (
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/shared"
	"github.com/attendsync/backend/internal/interfaces/http/dto"
	"github.com/attendsync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AttendanceListQuery filters the attendance listing
type AttendanceListQuery struct {
	dto.ListRequest
	Date     string `form:"date" binding:"omitempty,datetime=2006-01-02"`
	From     string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To       string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	Employee string `form:"employee" binding:"omitempty,max=50"`
	Status   string `form:"status" binding:"omitempty,sync_status"`
}

func (q AttendanceListQuery) filter() attendance.ListFilter {
	f := attendance.ListFilter{
		EmployeeCode: q.Employee,
		Status:       attendance.SyncStatus(q.Status),
	}
	f.Date = optionalDate(q.Date)
	f.From = optionalDate(q.From)
	f.To = optionalDate(q.To)
	return f
}

// optionalDate parses an already validated date
func optionalDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	d, err := attendance.ParseDate(s)
	if err != nil {
		return nil
	}
	return &d
}

func (q AttendanceListQuery) page() shared.Page {
	return shared.Page{Number: q.Page, Size: q.PageSize}.Normalize()
}

// AttendanceHandler serves attendance records and employees to operators
type AttendanceHandler struct {
	BaseHandler
	service AttendanceService
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(service AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// List returns a page of attendance records with worked hours
func (h *AttendanceHandler) List(c *gin.Context) {
	var q AttendanceListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.service.ListAttendance(c.Request.Context(), q.filter(), q.page())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, ToAttendanceResponses(result.Items), result.Total, result.Page, result.PageSize)
}

// Get returns one attendance record
func (h *AttendanceHandler) Get(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}

	fact, err := h.service.GetAttendance(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToAttendanceResponse(fact))
}

// Reset puts a record back to pending so the next ERP run picks it up
func (h *AttendanceHandler) Reset(c *gin.Context) {
	id, ok := h.bindID(c)
	if !ok {
		return
	}

	fact, err := h.service.ResetRecord(c.Request.Context(), id, middleware.GetOperator(c))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, ToAttendanceResponse(fact))
}

// ListEmployees returns a page of employees
func (h *AttendanceHandler) ListEmployees(c *gin.Context) {
	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.service.ListEmployees(c.Request.Context(), shared.Page{Number: req.Page, Size: req.PageSize})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, ToEmployeeResponses(result.Items), result.Total, result.Page, result.PageSize)
}

// StatsQuery selects the recent window of the statistics
type StatsQuery struct {
	Days int `form:"days,default=7" binding:"min=1,max=365"`
}

// Stats returns overall and recent synchronization statistics
func (h *AttendanceHandler) Stats(c *gin.Context) {
	var q StatsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	report, err := h.service.Stats(c.Request.Context(), q.Days)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}

func (h *AttendanceHandler) bindID(c *gin.Context) (uuid.UUID, bool) {
	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		h.BadRequest(c, "Invalid attendance ID")
		return uuid.Nil, false
	}
	return uuid.MustParse(req.ID), true
}
