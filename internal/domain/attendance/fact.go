package attendance

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/attendsync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SyncStatus is the ERP reconciliation state of an attendance fact
type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending"
	SyncStatusSynced  SyncStatus = "synced"
	SyncStatusFailed  SyncStatus = "failed"
)

// IsValid returns true if the status is a known value
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusPending, SyncStatusSynced, SyncStatusFailed:
		return true
	}
	return false
}

// String returns the string representation
func (s SyncStatus) String() string {
	return string(s)
}

const (
	// MaxErrorLength bounds the stored error text
	MaxErrorLength = 500
	// UnknownERPRef marks a record the ERP accepted without returning its name
	UnknownERPRef = "unknown"
	// ExistingERPRef marks a duplicate whose ERP name could not be recovered
	ExistingERPRef = "existing-record"
)

// RawPunch is a stored punch inside an attendance fact
type RawPunch struct {
	Timestamp      time.Time `json:"timestamp"`
	TransactionRef string    `json:"transaction_ref"`
}

// AttendanceFact is one employee's attendance for one calendar date.
// It is the aggregate root of the reconciliation lifecycle:
//
//	pending -> synced | failed
//	failed  -> synced | failed
//	synced  -> pending (operator reset only)
type AttendanceFact struct {
	shared.BaseEntity
	EmployeeID           uuid.UUID
	EmployeeCode         string
	Date                 time.Time
	InTime               *time.Time
	OutTime              *time.Time
	SourceTransactionRef string
	ERPRef               string
	Status               SyncStatus
	SyncAttempts         int
	LastAttemptAt        *time.Time
	LastError            string
	RawPunches           []RawPunch
	Department           string
	Area                 string
}

// NewAttendanceFact creates a pending fact for an employee from a daily group
func NewAttendanceFact(employeeID uuid.UUID, group DailyGroup) (*AttendanceFact, error) {
	if employeeID == uuid.Nil {
		return nil, ErrInvalidEmployeeID
	}
	if strings.TrimSpace(group.EmployeeCode) == "" {
		return nil, ErrInvalidEmployeeCode
	}
	if len(group.Punches) == 0 {
		return nil, ErrNoPunches
	}
	f := &AttendanceFact{
		BaseEntity:   shared.NewBaseEntity(),
		EmployeeID:   employeeID,
		EmployeeCode: group.EmployeeCode,
		Date:         DateOf(group.Date),
		Status:       SyncStatusPending,
	}
	if err := f.MergePunches(group.Punches); err != nil {
		return nil, err
	}
	f.Department = group.Department
	f.Area = group.Area
	return f, nil
}

// MergePunches unions punches into the fact by transaction ref and recomputes
// in, out and the source transaction ref. The sync status is left untouched.
func (f *AttendanceFact) MergePunches(punches []Punch) error {
	byRef := make(map[string]Punch, len(f.RawPunches)+len(punches))
	for _, rp := range f.RawPunches {
		byRef[rp.TransactionRef] = Punch{
			EmployeeCode:   f.EmployeeCode,
			Timestamp:      rp.Timestamp,
			TransactionRef: rp.TransactionRef,
		}
	}
	for _, p := range punches {
		if err := p.Validate(); err != nil {
			return err
		}
		if !p.Date().Equal(f.Date) {
			return ErrPunchesSpanManyDates
		}
		byRef[p.TransactionRef] = p
	}
	if len(byRef) == 0 {
		return ErrNoPunches
	}

	merged := make([]Punch, 0, len(byRef))
	for _, p := range byRef {
		merged = append(merged, p)
	}
	g, err := summarize(f.EmployeeCode, f.Date, merged)
	if err != nil {
		return err
	}

	in, out := g.InTime, g.OutTime
	f.InTime = &in
	f.OutTime = &out
	f.SourceTransactionRef = g.SourceTransactionRef
	f.RawPunches = make([]RawPunch, len(g.Punches))
	for i, p := range g.Punches {
		f.RawPunches[i] = RawPunch{Timestamp: p.Timestamp, TransactionRef: p.TransactionRef}
	}
	if g.Department != "" {
		f.Department = g.Department
	}
	if g.Area != "" {
		f.Area = g.Area
	}
	f.Touch(time.Now())
	return nil
}

// MarkSynced records a successful (or rediscovered) ERP write.
// Calling it on a synced fact re-confirms the reference.
func (f *AttendanceFact) MarkSynced(erpRef string, at time.Time) error {
	if strings.TrimSpace(erpRef) == "" {
		return ErrMissingERPRef
	}
	f.ERPRef = erpRef
	f.Status = SyncStatusSynced
	f.LastError = ""
	f.recordAttempt(at)
	return nil
}

// MarkFailed records a failed reconciliation attempt
func (f *AttendanceFact) MarkFailed(cause string, at time.Time) error {
	if f.Status == SyncStatusSynced {
		return ErrInvalidTransition
	}
	f.Status = SyncStatusFailed
	f.LastError = TruncateError(cause)
	f.recordAttempt(at)
	return nil
}

// ResetToPending is the operator reset: the fact becomes eligible again
// with a fresh attempt budget.
func (f *AttendanceFact) ResetToPending() {
	f.Status = SyncStatusPending
	f.SyncAttempts = 0
	f.LastError = ""
	f.Touch(time.Now())
}

func (f *AttendanceFact) recordAttempt(at time.Time) {
	f.SyncAttempts++
	f.LastAttemptAt = &at
	f.Touch(at)
}

// IsSynced reports whether the ERP holds this fact
func (f *AttendanceFact) IsSynced() bool {
	return f.Status == SyncStatusSynced
}

// CanRetry reports whether the fact still has attempt budget left
func (f *AttendanceFact) CanRetry(maxAttempts int) bool {
	return f.Status != SyncStatusSynced && f.SyncAttempts < maxAttempts
}

// WorkedDuration returns the hours between in and out with the overnight correction
func (f *AttendanceFact) WorkedDuration() time.Duration {
	if f.InTime == nil || f.OutTime == nil {
		return 0
	}
	return WorkedDuration(f.Date, *f.InTime, *f.OutTime)
}

// TotalHours returns WorkedDuration as decimal hours
func (f *AttendanceFact) TotalHours() decimal.Decimal {
	if f.InTime == nil || f.OutTime == nil {
		return decimal.Zero
	}
	return TotalHours(f.Date, *f.InTime, *f.OutTime)
}

// TruncateError limits error text to MaxErrorLength runes
func TruncateError(s string) string {
	if utf8.RuneCountInString(s) <= MaxErrorLength {
		return s
	}
	return string([]rune(s)[:MaxErrorLength])
}
