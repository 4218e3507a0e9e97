package handler

import (
	"time"

	"github.com/attendsync/backend/internal/application/reconciliation"
	"github.com/attendsync/backend/internal/domain/attendance"
)

// AttendanceSyncRequest selects the fetch window: either the last Days days
// or an explicit StartDate..EndDate range. An empty body means one day.
type AttendanceSyncRequest struct {
	Days      int    `json:"days" binding:"omitempty,min=1,max=90,excluded_with=StartDate"`
	StartDate string `json:"start_date" binding:"required_with=EndDate,omitempty,datetime=2006-01-02"`
	EndDate   string `json:"end_date" binding:"required_with=StartDate,omitempty,datetime=2006-01-02"`
}

// Window converts the request into a fetch window
func (r AttendanceSyncRequest) Window(now time.Time, loc *time.Location) (reconciliation.Window, error) {
	if r.StartDate == "" {
		days := r.Days
		if days == 0 {
			days = 1
		}
		return reconciliation.LastDays(now, days), nil
	}
	start, err := attendance.ParseDate(r.StartDate)
	if err != nil {
		return reconciliation.Window{}, err
	}
	end, err := attendance.ParseDate(r.EndDate)
	if err != nil {
		return reconciliation.Window{}, err
	}
	w := reconciliation.DateRange(start, end, loc)
	return w, w.Validate()
}

// ERPSyncRequest narrows the batch pushed to the ERP
type ERPSyncRequest struct {
	MaxRecords   int      `json:"max_records" binding:"omitempty,min=1,max=1000"`
	Date         string   `json:"date" binding:"omitempty,datetime=2006-01-02"`
	EmployeeCode string   `json:"employee_code" binding:"omitempty,max=50"`
	RetryFailed  bool     `json:"retry_failed"`
	Statuses     []string `json:"statuses" binding:"omitempty,dive,sync_status"`
}

// Filter converts the request into a selection filter
func (r ERPSyncRequest) Filter() (attendance.SelectionFilter, error) {
	f := attendance.SelectionFilter{
		MaxRecords:      r.MaxRecords,
		EmployeeCode:    r.EmployeeCode,
		RetryFailedOnly: r.RetryFailed,
	}
	if r.Date != "" {
		d, err := attendance.ParseDate(r.Date)
		if err != nil {
			return f, err
		}
		f.Date = &d
	}
	for _, s := range r.Statuses {
		f.Statuses = append(f.Statuses, attendance.SyncStatus(s))
	}
	return f, nil
}

// FullSyncRequest selects the stages of a full sync
type FullSyncRequest struct {
	Days           int  `json:"days" binding:"omitempty,min=1,max=90"`
	SkipEmployees  bool `json:"skip_employees"`
	SkipAttendance bool `json:"skip_attendance"`
	SkipERP        bool `json:"skip_erp"`
	MaxERPRecords  int  `json:"max_erp_records" binding:"omitempty,min=1,max=1000"`
}

// Options converts the request into full sync options
func (r FullSyncRequest) Options() reconciliation.FullSyncOptions {
	return reconciliation.FullSyncOptions{
		Days:           r.Days,
		SkipEmployees:  r.SkipEmployees,
		SkipAttendance: r.SkipAttendance,
		SkipERP:        r.SkipERP,
		ERPFilter:      attendance.SelectionFilter{MaxRecords: r.MaxERPRecords},
	}
}

// SyncLogQuery filters the audit log listing
type SyncLogQuery struct {
	Category string `form:"category" binding:"omitempty,log_category"`
	Limit    int    `form:"limit" binding:"omitempty,min=1,max=500"`
}
