package scheduler

import (
	"context"
	"time"

	"github.com/attendsync/backend/internal/application/reconciliation"
	"github.com/attendsync/backend/internal/domain/attendance"
	"go.uber.org/zap"
)

// SyncService is the part of the reconciliation service the default jobs drive
type SyncService interface {
	SyncEmployees(ctx context.Context) (reconciliation.EmployeeSyncResult, error)
	SyncAttendanceDays(ctx context.Context, days int) (reconciliation.IngestResult, error)
	SyncToERP(ctx context.Context, filter attendance.SelectionFilter) (reconciliation.RunResult, error)
	FullSync(ctx context.Context, opts reconciliation.FullSyncOptions) (reconciliation.FullSyncResult, error)
}

// Job names of the default schedule
const (
	JobSyncEmployees      = "sync-employees"
	JobSyncAttendance     = "sync-attendance"
	JobFullSync           = "full-sync"
	JobERPSyncYesterday   = "erp-sync-yesterday"
	JobERPSyncToday       = "erp-sync-today"
	JobRetryFailedMidday  = "retry-failed-midday"
	JobRetryFailedEvening = "retry-failed-evening"
	JobWeekendMaintenance = "weekend-maintenance"
)

// DefaultJobs returns the daily synchronization plan. now and loc decide what
// "today" and "yesterday" mean for the ERP jobs.
func DefaultJobs(svc SyncService, now func() time.Time, loc *time.Location, logger *zap.Logger) []Job {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pendingOrFailed := []attendance.SyncStatus{attendance.SyncStatusPending, attendance.SyncStatusFailed}
	dayOffset := func(days int) *time.Time {
		d := attendance.DateOf(now().In(loc).AddDate(0, 0, days))
		return &d
	}

	return []Job{
		{
			Name:     JobSyncEmployees,
			Schedule: Daily(At(6, 0)),
			Run: func(ctx context.Context) error {
				r, err := svc.SyncEmployees(ctx)
				logger.Info("Scheduled employee sync",
					zap.Int("created", r.Created),
					zap.Int("updated", r.Updated),
					zap.Error(err))
				return err
			},
		},
		{
			Name:     JobSyncAttendance,
			Schedule: Daily(Hourly(8, 18)...),
			Run: func(ctx context.Context) error {
				r, err := svc.SyncAttendanceDays(ctx, 1)
				logger.Info("Scheduled attendance sync", zap.Int("saved", r.Saved), zap.Error(err))
				return err
			},
		},
		{
			Name:     JobFullSync,
			Schedule: Daily(At(7, 0)),
			Run: func(ctx context.Context) error {
				_, err := svc.FullSync(ctx, reconciliation.FullSyncOptions{Days: 1, SkipERP: true})
				return err
			},
		},
		{
			Name:     JobERPSyncYesterday,
			Schedule: Daily(At(7, 30)),
			Run: erpJob(svc, logger, func() attendance.SelectionFilter {
				return attendance.SelectionFilter{Date: dayOffset(-1), Statuses: pendingOrFailed, MaxRecords: 500}
			}),
		},
		{
			Name:     JobERPSyncToday,
			Schedule: Daily(At(19, 30)),
			Run: erpJob(svc, logger, func() attendance.SelectionFilter {
				return attendance.SelectionFilter{Date: dayOffset(0), Statuses: pendingOrFailed, MaxRecords: 500}
			}),
		},
		{
			Name:     JobRetryFailedMidday,
			Schedule: Daily(At(12, 0)),
			Run: erpJob(svc, logger, func() attendance.SelectionFilter {
				return attendance.SelectionFilter{RetryFailedOnly: true, MaxRecords: 50}
			}),
		},
		{
			Name:     JobRetryFailedEvening,
			Schedule: Daily(At(20, 0)),
			Run: erpJob(svc, logger, func() attendance.SelectionFilter {
				return attendance.SelectionFilter{RetryFailedOnly: true, MaxRecords: 100}
			}),
		},
		{
			Name:     JobWeekendMaintenance,
			Schedule: Weekly(time.Saturday, At(10, 0)),
			Run: func(ctx context.Context) error {
				_, err := svc.FullSync(ctx, reconciliation.FullSyncOptions{
					Days:      7,
					ERPFilter: attendance.SelectionFilter{Statuses: pendingOrFailed, MaxRecords: 1000},
				})
				return err
			},
		},
	}
}

func erpJob(svc SyncService, logger *zap.Logger, filter func() attendance.SelectionFilter) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		r, err := svc.SyncToERP(ctx, filter())
		logger.Info("Scheduled ERP sync",
			zap.String("run_id", r.RunID),
			zap.Int("synced", r.Synced),
			zap.Int("duplicates", r.Duplicates),
			zap.Int("failed", r.Failed),
			zap.Bool("aborted", r.Aborted),
			zap.Error(err))
		return err
	}
}
