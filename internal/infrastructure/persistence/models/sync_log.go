package models

import (
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// SyncLogModel is the persistence model for audit entries. Rows are never updated.
type SyncLogModel struct {
	ID         uuid.UUID              `gorm:"type:uuid;primary_key"`
	Category   attendance.LogCategory `gorm:"type:varchar(30);not null;index:idx_sync_logs_category_created,priority:1"`
	Outcome    attendance.LogOutcome  `gorm:"type:varchar(20);not null;index"`
	Message    string                 `gorm:"type:text;not null"`
	Details    datatypes.JSONMap      `gorm:"type:jsonb"`
	EmployeeID *uuid.UUID             `gorm:"type:uuid;index"`
	DurationMs int64                  `gorm:"not null;default:0"`
	CreatedAt  time.Time              `gorm:"not null;index:idx_sync_logs_category_created,priority:2"`
}

// TableName returns the table name for GORM
func (SyncLogModel) TableName() string {
	return "sync_logs"
}

// ToDomain converts the persistence model to a domain SyncLogEntry
func (m *SyncLogModel) ToDomain() *attendance.SyncLogEntry {
	details := make(map[string]any, len(m.Details))
	for k, v := range m.Details {
		details[k] = v
	}
	return &attendance.SyncLogEntry{
		ID:         m.ID,
		Category:   m.Category,
		Outcome:    m.Outcome,
		Message:    m.Message,
		Details:    details,
		EmployeeID: m.EmployeeID,
		Duration:   time.Duration(m.DurationMs) * time.Millisecond,
		CreatedAt:  m.CreatedAt,
	}
}

// SyncLogModelFromDomain creates a persistence model from a domain SyncLogEntry
func SyncLogModelFromDomain(e *attendance.SyncLogEntry) *SyncLogModel {
	id := e.ID
	if id == uuid.Nil {
		id = uuid.New()
	}
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &SyncLogModel{
		ID:         id,
		Category:   e.Category,
		Outcome:    e.Outcome,
		Message:    e.Message,
		Details:    datatypes.JSONMap(e.Details),
		EmployeeID: e.EmployeeID,
		DurationMs: e.Duration.Milliseconds(),
		CreatedAt:  createdAt.UTC(),
	}
}
