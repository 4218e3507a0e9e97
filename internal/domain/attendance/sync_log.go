package attendance

import (
	"time"

	"github.com/google/uuid"
)

// LogCategory groups audit entries by the job that produced them
type LogCategory string

const (
	LogCategorySourceFetch     LogCategory = "source_fetch"
	LogCategorySourceEmployees LogCategory = "source_employees"
	LogCategoryERPSync         LogCategory = "erp_sync"
	LogCategorySystem          LogCategory = "system"
)

// IsValid returns true if the category is known
func (c LogCategory) IsValid() bool {
	switch c {
	case LogCategorySourceFetch, LogCategorySourceEmployees, LogCategoryERPSync, LogCategorySystem:
		return true
	}
	return false
}

// LogOutcome is the result recorded by an audit entry
type LogOutcome string

const (
	LogOutcomeSuccess LogOutcome = "success"
	LogOutcomeError   LogOutcome = "error"
	LogOutcomeWarning LogOutcome = "warning"
	// LogOutcomeInfo is used for records the ERP already held when we had no
	// local history of pushing them.
	LogOutcomeInfo LogOutcome = "info"
)

// SyncLogEntry is an append-only audit record
type SyncLogEntry struct {
	ID         uuid.UUID
	Category   LogCategory
	Outcome    LogOutcome
	Message    string
	Details    map[string]any
	EmployeeID *uuid.UUID
	Duration   time.Duration
	CreatedAt  time.Time
}

// NewSyncLogEntry builds an entry stamped with the current time
func NewSyncLogEntry(category LogCategory, outcome LogOutcome, message string) *SyncLogEntry {
	return &SyncLogEntry{
		ID:        uuid.New(),
		Category:  category,
		Outcome:   outcome,
		Message:   message,
		Details:   map[string]any{},
		CreatedAt: time.Now(),
	}
}

// WithDetail attaches a detail value and returns the entry
func (e *SyncLogEntry) WithDetail(key string, value any) *SyncLogEntry {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}

// ForEmployee links the entry to an employee
func (e *SyncLogEntry) ForEmployee(id uuid.UUID) *SyncLogEntry {
	if id != uuid.Nil {
		e.EmployeeID = &id
	}
	return e
}

// Took records the execution time
func (e *SyncLogEntry) Took(d time.Duration) *SyncLogEntry {
	e.Duration = d
	return e
}
