package handler

import (
	"context"

	"github.com/attendsync/backend/internal/application/reconciliation"
	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/shared"
	"github.com/attendsync/backend/internal/infrastructure/scheduler"
	"github.com/google/uuid"
)

// SyncService is the part of reconciliation.Service the sync endpoints trigger
type SyncService interface {
	SyncEmployees(ctx context.Context) (reconciliation.EmployeeSyncResult, error)
	SyncAttendance(ctx context.Context, window reconciliation.Window) (reconciliation.IngestResult, error)
	SyncAttendanceDays(ctx context.Context, days int) (reconciliation.IngestResult, error)
	SyncToERP(ctx context.Context, filter attendance.SelectionFilter) (reconciliation.RunResult, error)
	FullSync(ctx context.Context, opts reconciliation.FullSyncOptions) (reconciliation.FullSyncResult, error)
	RecentLogs(ctx context.Context, category attendance.LogCategory, limit int) ([]attendance.SyncLogEntry, error)
}

// AttendanceService is the read and operator side of reconciliation.Service
type AttendanceService interface {
	GetAttendance(ctx context.Context, id uuid.UUID) (*attendance.AttendanceFact, error)
	ListAttendance(ctx context.Context, filter attendance.ListFilter, page shared.Page) (shared.Paginated[attendance.AttendanceFact], error)
	ResetRecord(ctx context.Context, id uuid.UUID, operator string) (*attendance.AttendanceFact, error)
	ListEmployees(ctx context.Context, page shared.Page) (shared.Paginated[attendance.Employee], error)
	Stats(ctx context.Context, days int) (*reconciliation.StatsReport, error)
}

// JobRunner lists and triggers scheduled jobs
type JobRunner interface {
	Jobs() []scheduler.JobStatus
	RunJob(ctx context.Context, name string) error
}

var (
	_ SyncService       = (*reconciliation.Service)(nil)
	_ AttendanceService = (*reconciliation.Service)(nil)
	_ JobRunner         = (*scheduler.SyncScheduler)(nil)
)
