package handler

import (
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AttendanceResponse is the API view of an attendance fact
type AttendanceResponse struct {
	ID                   uuid.UUID             `json:"id"`
	EmployeeID           uuid.UUID             `json:"employee_id"`
	EmployeeCode         string                `json:"employee_code"`
	Date                 string                `json:"date"`
	InTime               *time.Time            `json:"in_time,omitempty"`
	OutTime              *time.Time            `json:"out_time,omitempty"`
	TotalHours           decimal.Decimal       `json:"total_hours"`
	Status               attendance.SyncStatus `json:"status"`
	ERPRef               string                `json:"erp_ref,omitempty"`
	SourceTransactionRef string                `json:"source_transaction_ref"`
	SyncAttempts         int                   `json:"sync_attempts"`
	LastAttemptAt        *time.Time            `json:"last_attempt_at,omitempty"`
	LastError            string                `json:"last_error,omitempty"`
	Department           string                `json:"department,omitempty"`
	Area                 string                `json:"area,omitempty"`
	Punches              []attendance.RawPunch `json:"punches,omitempty"`
	CreatedAt            time.Time             `json:"created_at"`
	UpdatedAt            time.Time             `json:"updated_at"`
}

// ToAttendanceResponse converts a fact to its API view
func ToAttendanceResponse(f *attendance.AttendanceFact) AttendanceResponse {
	return AttendanceResponse{
		ID:                   f.ID,
		EmployeeID:           f.EmployeeID,
		EmployeeCode:         f.EmployeeCode,
		Date:                 f.Date.Format(attendance.DateLayout),
		InTime:               f.InTime,
		OutTime:              f.OutTime,
		TotalHours:           f.TotalHours(),
		Status:               f.Status,
		ERPRef:               f.ERPRef,
		SourceTransactionRef: f.SourceTransactionRef,
		SyncAttempts:         f.SyncAttempts,
		LastAttemptAt:        f.LastAttemptAt,
		LastError:            f.LastError,
		Department:           f.Department,
		Area:                 f.Area,
		Punches:              f.RawPunches,
		CreatedAt:            f.CreatedAt,
		UpdatedAt:            f.UpdatedAt,
	}
}

// ToAttendanceResponses converts a list of facts
func ToAttendanceResponses(facts []attendance.AttendanceFact) []AttendanceResponse {
	out := make([]AttendanceResponse, len(facts))
	for i := range facts {
		out[i] = ToAttendanceResponse(&facts[i])
	}
	return out
}

// EmployeeResponse is the API view of an employee
type EmployeeResponse struct {
	ID          uuid.UUID `json:"id"`
	Code        string    `json:"code"`
	DisplayName string    `json:"display_name"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	Department  string    `json:"department,omitempty"`
	Area        string    `json:"area,omitempty"`
	IsActive    bool      `json:"is_active"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ToEmployeeResponses converts a list of employees
func ToEmployeeResponses(employees []attendance.Employee) []EmployeeResponse {
	out := make([]EmployeeResponse, len(employees))
	for i := range employees {
		e := &employees[i]
		out[i] = EmployeeResponse{
			ID:          e.ID,
			Code:        e.Code,
			DisplayName: e.DisplayName(),
			FirstName:   e.FirstName,
			LastName:    e.LastName,
			Department:  e.Department,
			Area:        e.Area,
			IsActive:    e.IsActive,
			UpdatedAt:   e.UpdatedAt,
		}
	}
	return out
}

// SyncLogResponse is the API view of an audit entry
type SyncLogResponse struct {
	ID         uuid.UUID              `json:"id"`
	Category   attendance.LogCategory `json:"category"`
	Outcome    attendance.LogOutcome  `json:"outcome"`
	Message    string                 `json:"message"`
	Details    map[string]any         `json:"details,omitempty"`
	EmployeeID *uuid.UUID             `json:"employee_id,omitempty"`
	DurationMS int64                  `json:"duration_ms"`
	CreatedAt  time.Time              `json:"created_at"`
}

// ToSyncLogResponses converts audit entries
func ToSyncLogResponses(entries []attendance.SyncLogEntry) []SyncLogResponse {
	out := make([]SyncLogResponse, len(entries))
	for i, e := range entries {
		out[i] = SyncLogResponse{
			ID:         e.ID,
			Category:   e.Category,
			Outcome:    e.Outcome,
			Message:    e.Message,
			Details:    e.Details,
			EmployeeID: e.EmployeeID,
			DurationMS: e.Duration.Milliseconds(),
			CreatedAt:  e.CreatedAt,
		}
	}
	return out
}
