package attendance

import (
	"context"
	"time"

	"github.com/attendsync/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// EmployeeRepository persists employees
type EmployeeRepository interface {
	Upsert(ctx context.Context, employee *Employee) error
	FindByCode(ctx context.Context, code string) (*Employee, error)
	FindByID(ctx context.Context, id uuid.UUID) (*Employee, error)
	List(ctx context.Context, page shared.Page) ([]Employee, int64, error)
	Count(ctx context.Context, activeOnly bool) (int64, error)
}

// AttendanceRepository persists attendance facts
type AttendanceRepository interface {
	// UpsertPunches inserts the fact or updates only its punch columns,
	// keyed by (employee, date). Reconciliation state is never overwritten.
	UpsertPunches(ctx context.Context, fact *AttendanceFact) error
	FindByID(ctx context.Context, id uuid.UUID) (*AttendanceFact, error)
	FindByEmployeeAndDate(ctx context.Context, employeeID uuid.UUID, date time.Time) (*AttendanceFact, error)
	// SelectForSync returns the batch described by filter, ordered by
	// sync attempts then date.
	SelectForSync(ctx context.Context, filter SelectionFilter) ([]AttendanceFact, error)
	// Transition locks the fact, applies fn and persists the reconciliation
	// tuple atomically. If fn returns an error nothing is written.
	Transition(ctx context.Context, id uuid.UUID, fn func(*AttendanceFact) error) (*AttendanceFact, error)
	List(ctx context.Context, filter ListFilter, page shared.Page) ([]AttendanceFact, int64, error)
	CountByStatus(ctx context.Context, from, to *time.Time) (map[SyncStatus]int64, error)
}

// SyncLogRepository stores the audit trail
type SyncLogRepository interface {
	Append(ctx context.Context, entry *SyncLogEntry) error
	// LatestSuccess returns the time of the newest entry in category with one of outcomes
	LatestSuccess(ctx context.Context, category LogCategory, outcomes ...LogOutcome) (*time.Time, error)
	Recent(ctx context.Context, category LogCategory, limit int) ([]SyncLogEntry, error)
}
