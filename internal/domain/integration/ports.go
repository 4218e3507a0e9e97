package integration

import (
	"context"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
)

// SourceEmployee is an employee record as published by the source system
type SourceEmployee struct {
	Code       string
	FirstName  string
	LastName   string
	FullName   string
	Department string
	Area       string
}

// PunchSource reads employees and punches from the biometric system
type PunchSource interface {
	FetchEmployees(ctx context.Context) ([]SourceEmployee, error)
	// FetchTransactions returns punches whose time lies in [start, end]
	FetchTransactions(ctx context.Context, start, end time.Time) ([]attendance.Punch, error)
}

// AttendancePayload is the body of an ERP attendance create call
type AttendancePayload struct {
	Employee       string `json:"employee"`
	AttendanceDate string `json:"attendance_date"`
	Status         string `json:"status"`
	InTime         string `json:"in_time,omitempty"`
	OutTime        string `json:"out_time,omitempty"`
}

// AttendanceStatusPresent is the only attendance status pushed
const AttendanceStatusPresent = "Present"

// NewAttendancePayload builds the create payload for a fact. Times are
// anchored on the fact date using the overnight rule.
func NewAttendancePayload(employee string, fact *attendance.AttendanceFact) AttendancePayload {
	p := AttendancePayload{
		Employee:       employee,
		AttendanceDate: fact.Date.Format(attendance.DateLayout),
		Status:         AttendanceStatusPresent,
	}
	switch {
	case fact.InTime != nil && fact.OutTime != nil:
		in, out := attendance.ShiftOvernight(fact.Date, *fact.InTime, *fact.OutTime)
		p.InTime = in.Format(attendance.DateTimeLayout)
		p.OutTime = out.Format(attendance.DateTimeLayout)
	case fact.InTime != nil:
		in, _ := attendance.ShiftOvernight(fact.Date, *fact.InTime, *fact.InTime)
		p.InTime = in.Format(attendance.DateTimeLayout)
	case fact.OutTime != nil:
		out, _ := attendance.ShiftOvernight(fact.Date, *fact.OutTime, *fact.OutTime)
		p.OutTime = out.Format(attendance.DateTimeLayout)
	}
	return p
}

// AttendanceLedger is the ERP attendance resource
type AttendanceLedger interface {
	// CreateAttendance submits one attendance record; it never returns a Go
	// error, every outcome is classified into the result.
	CreateAttendance(ctx context.Context, payload AttendancePayload) PushResult
	// FindAttendance returns the ERP name of the attendance for employee on date,
	// or "" when none exists.
	FindAttendance(ctx context.Context, employee string, date time.Time) (string, error)
	// FindEmployee maps a local employee code to the ERP employee name.
	// It returns ErrEmployeeNotMapped when the ERP has no such employee.
	FindEmployee(ctx context.Context, code string) (string, error)
}

// ConfigChecker is implemented by adapters that may be wired without
// credentials. CheckConfigured returns the error every call would fail with.
type ConfigChecker interface {
	CheckConfigured() error
}

// CheckConfigured returns nil unless adapter reports itself unconfigured
func CheckConfigured(adapter any) error {
	if c, ok := adapter.(ConfigChecker); ok {
		return c.CheckConfigured()
	}
	return nil
}
