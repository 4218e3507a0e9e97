package attendance

import (
	"strings"
	"time"
)

const (
	// DefaultMaxRecords is the batch cap used when none is given
	DefaultMaxRecords = 100
	// DefaultMaxAttempts is the attempt ceiling used when none is given
	DefaultMaxAttempts = 5
)

// SelectionFilter selects the attendance facts a reconciliation run works on.
//
// With RetryFailedOnly the batch is failed facts below the attempt ceiling.
// With an explicit Statuses set the batch is facts in that set, without a ceiling.
// Otherwise it is pending and failed facts below the ceiling.
type SelectionFilter struct {
	Statuses        []SyncStatus
	RetryFailedOnly bool
	Date            *time.Time
	EmployeeCode    string
	MaxRecords      int
	MaxAttempts     int
}

// Normalize fills defaults and canonicalizes the filter
func (f SelectionFilter) Normalize(defaultMaxRecords, defaultMaxAttempts int) SelectionFilter {
	if defaultMaxRecords <= 0 {
		defaultMaxRecords = DefaultMaxRecords
	}
	if defaultMaxAttempts <= 0 {
		defaultMaxAttempts = DefaultMaxAttempts
	}
	if f.MaxRecords <= 0 {
		f.MaxRecords = defaultMaxRecords
	}
	if f.MaxAttempts <= 0 {
		f.MaxAttempts = defaultMaxAttempts
	}
	f.EmployeeCode = strings.TrimSpace(f.EmployeeCode)
	if f.Date != nil {
		d := DateOf(*f.Date)
		f.Date = &d
	}

	seen := make(map[SyncStatus]bool, len(f.Statuses))
	statuses := make([]SyncStatus, 0, len(f.Statuses))
	for _, s := range f.Statuses {
		if s.IsValid() && !seen[s] {
			seen[s] = true
			statuses = append(statuses, s)
		}
	}
	f.Statuses = statuses
	return f
}

// EffectiveStatuses returns the status set the filter selects from
func (f SelectionFilter) EffectiveStatuses() []SyncStatus {
	switch {
	case f.RetryFailedOnly:
		return []SyncStatus{SyncStatusFailed}
	case len(f.Statuses) > 0:
		return f.Statuses
	default:
		return []SyncStatus{SyncStatusPending, SyncStatusFailed}
	}
}

// CapsAttempts reports whether facts at or above MaxAttempts are excluded
func (f SelectionFilter) CapsAttempts() bool {
	return f.RetryFailedOnly || len(f.Statuses) == 0
}

// Matches evaluates the filter against a single fact, mirroring the
// repository query.
func (f SelectionFilter) Matches(fact *AttendanceFact) bool {
	inSet := false
	for _, s := range f.EffectiveStatuses() {
		if fact.Status == s {
			inSet = true
			break
		}
	}
	if !inSet {
		return false
	}
	if f.CapsAttempts() && fact.SyncAttempts >= f.MaxAttempts {
		return false
	}
	if f.Date != nil && !DateOf(fact.Date).Equal(*f.Date) {
		return false
	}
	if f.EmployeeCode != "" && fact.EmployeeCode != f.EmployeeCode {
		return false
	}
	return true
}

// ListFilter narrows the attendance listing exposed to operators
type ListFilter struct {
	Date         *time.Time
	From         *time.Time
	To           *time.Time
	EmployeeCode string
	Status       SyncStatus
}
