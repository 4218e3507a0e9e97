package models

import (
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// RawPunchModel is the stored form of one punch inside raw_punch_details
type RawPunchModel struct {
	Timestamp      time.Time `json:"timestamp"`
	TransactionRef string    `json:"transaction_ref"`
}

// AttendanceFactModel is the persistence model for attendance facts.
// (employee_id, attendance_date) is unique.
type AttendanceFactModel struct {
	BaseModel
	EmployeeID           uuid.UUID                          `gorm:"type:uuid;not null;uniqueIndex:uq_attendance_employee_date,priority:1"`
	EmployeeCode         string                             `gorm:"type:varchar(50);not null;index"`
	AttendanceDate       time.Time                          `gorm:"type:date;not null;uniqueIndex:uq_attendance_employee_date,priority:2;index"`
	InTime               *time.Time                         `gorm:"column:in_time"`
	OutTime              *time.Time                         `gorm:"column:out_time"`
	SourceTransactionRef string                             `gorm:"type:varchar(100);not null;uniqueIndex"`
	ERPRef               *string                            `gorm:"column:erp_ref;type:varchar(100)"`
	Status               attendance.SyncStatus              `gorm:"type:varchar(20);not null;default:'pending';index"`
	SyncAttempts         int                                `gorm:"not null;default:0"`
	LastAttemptAt        *time.Time                         `gorm:"column:last_attempt_at"`
	LastError            string                             `gorm:"type:text"`
	RawPunchDetails      datatypes.JSONSlice[RawPunchModel] `gorm:"type:jsonb"`
	Department           string                             `gorm:"type:varchar(200)"`
	Area                 string                             `gorm:"type:varchar(200)"`
}

// TableName returns the table name for GORM
func (AttendanceFactModel) TableName() string {
	return "attendance_facts"
}

// PunchColumns are the columns an ingestion upsert may overwrite.
// Reconciliation columns are deliberately absent.
var PunchColumns = []string{
	"in_time",
	"out_time",
	"source_transaction_ref",
	"raw_punch_details",
	"department",
	"area",
	"updated_at",
}

// ToDomain converts the persistence model to a domain AttendanceFact.
// Clock times are returned in loc, the wall-clock zone of the source.
func (m *AttendanceFactModel) ToDomain(loc *time.Location) *attendance.AttendanceFact {
	f := &attendance.AttendanceFact{
		BaseEntity:           m.BaseModel.ToDomain(),
		EmployeeID:           m.EmployeeID,
		EmployeeCode:         m.EmployeeCode,
		Date:                 attendance.DateOf(m.AttendanceDate),
		InTime:               inLocation(m.InTime, loc),
		OutTime:              inLocation(m.OutTime, loc),
		SourceTransactionRef: m.SourceTransactionRef,
		Status:               m.Status,
		SyncAttempts:         m.SyncAttempts,
		LastAttemptAt:        m.LastAttemptAt,
		LastError:            m.LastError,
		Department:           m.Department,
		Area:                 m.Area,
	}
	if m.ERPRef != nil {
		f.ERPRef = *m.ERPRef
	}
	f.RawPunches = make([]attendance.RawPunch, 0, len(m.RawPunchDetails))
	for _, p := range m.RawPunchDetails {
		ts := p.Timestamp
		if loc != nil {
			ts = ts.In(loc)
		}
		f.RawPunches = append(f.RawPunches, attendance.RawPunch{Timestamp: ts, TransactionRef: p.TransactionRef})
	}
	return f
}

// AttendanceFactModelFromDomain creates a persistence model from a domain AttendanceFact
func AttendanceFactModelFromDomain(f *attendance.AttendanceFact) *AttendanceFactModel {
	m := &AttendanceFactModel{
		EmployeeID:           f.EmployeeID,
		EmployeeCode:         f.EmployeeCode,
		AttendanceDate:       attendance.DateOf(f.Date),
		InTime:               utcPtr(f.InTime),
		OutTime:              utcPtr(f.OutTime),
		SourceTransactionRef: f.SourceTransactionRef,
		ERPRef:               optionalString(f.ERPRef),
		Status:               f.Status,
		SyncAttempts:         f.SyncAttempts,
		LastAttemptAt:        utcPtr(f.LastAttemptAt),
		LastError:            f.LastError,
		RawPunchDetails:      make(datatypes.JSONSlice[RawPunchModel], 0, len(f.RawPunches)),
		Department:           f.Department,
		Area:                 f.Area,
	}
	m.FromDomainBaseEntity(f.BaseEntity)
	for _, p := range f.RawPunches {
		m.RawPunchDetails = append(m.RawPunchDetails, RawPunchModel{
			Timestamp:      p.Timestamp.UTC(),
			TransactionRef: p.TransactionRef,
		})
	}
	return m
}

// ReconciliationColumns returns the reconciliation tuple of f as an update map
func ReconciliationColumns(f *attendance.AttendanceFact, now time.Time) map[string]any {
	return map[string]any{
		"status":          f.Status,
		"erp_ref":         optionalString(f.ERPRef),
		"sync_attempts":   f.SyncAttempts,
		"last_attempt_at": utcPtr(f.LastAttemptAt),
		"last_error":      f.LastError,
		"updated_at":      now.UTC(),
	}
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
