package attendance

import "errors"

// ---------------------------------------------------------------------------
// Attendance Errors
// ---------------------------------------------------------------------------

var (
	// Punch errors
	ErrInvalidPunch         = errors.New("attendance: invalid punch")
	ErrPunchMissingCode     = errors.New("attendance: punch has no employee code")
	ErrPunchMissingTime     = errors.New("attendance: punch has no timestamp")
	ErrPunchMissingRef      = errors.New("attendance: punch has no transaction ref")
	ErrNoPunches            = errors.New("attendance: no punches for attendance fact")
	ErrPunchesSpanManyDates = errors.New("attendance: punches belong to different dates")

	// Fact errors
	ErrFactNotFound        = errors.New("attendance: attendance record not found")
	ErrInvalidTransition   = errors.New("attendance: invalid status transition")
	ErrMissingERPRef       = errors.New("attendance: synced record requires an ERP reference")
	ErrInvalidEmployeeID   = errors.New("attendance: invalid employee ID")
	ErrInvalidEmployeeCode = errors.New("attendance: invalid employee code")

	// Employee errors
	ErrEmployeeNotFound = errors.New("attendance: employee not found")
)
