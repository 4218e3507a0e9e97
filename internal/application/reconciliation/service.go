package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Service is the entry point used by the HTTP API, the CLI and the scheduler
type Service struct {
	ingestion    *IngestionService
	orchestrator *Orchestrator
	stats        *StatsService
	employees    attendance.EmployeeRepository
	facts        attendance.AttendanceRepository
	logs         attendance.SyncLogRepository
	audit        *auditTrail
	logger       *zap.Logger
	now          func() time.Time
}

// NewService creates a Service
func NewService(
	ingestion *IngestionService,
	orchestrator *Orchestrator,
	stats *StatsService,
	employees attendance.EmployeeRepository,
	facts attendance.AttendanceRepository,
	logs attendance.SyncLogRepository,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ingestion:    ingestion,
		orchestrator: orchestrator,
		stats:        stats,
		employees:    employees,
		facts:        facts,
		logs:         logs,
		audit:        newAuditTrail(logs, logger),
		logger:       logger,
		now:          time.Now,
	}
}

// ---------------------------------------------------------------------------
// Sync operations
// ---------------------------------------------------------------------------

// SyncEmployees pulls employees from the source system
func (s *Service) SyncEmployees(ctx context.Context) (EmployeeSyncResult, error) {
	return s.ingestion.SyncEmployees(ctx)
}

// SyncAttendance pulls punches in window from the source system
func (s *Service) SyncAttendance(ctx context.Context, window Window) (IngestResult, error) {
	return s.ingestion.SyncAttendance(ctx, window)
}

// SyncAttendanceDays pulls punches of the last days days
func (s *Service) SyncAttendanceDays(ctx context.Context, days int) (IngestResult, error) {
	return s.ingestion.SyncAttendance(ctx, LastDays(s.now(), days))
}

// SyncToERP reconciles a batch of attendance facts with the ERP
func (s *Service) SyncToERP(ctx context.Context, filter attendance.SelectionFilter) (RunResult, error) {
	return s.orchestrator.Run(ctx, filter)
}

// FullSyncOptions selects the stages of a full sync
type FullSyncOptions struct {
	Days           int
	SkipEmployees  bool
	SkipAttendance bool
	SkipERP        bool
	ERPFilter      attendance.SelectionFilter
}

// FullSyncResult collects the result of every stage that ran
type FullSyncResult struct {
	Employees  *EmployeeSyncResult `json:"employees,omitempty"`
	Attendance *IngestResult       `json:"attendance,omitempty"`
	ERP        *RunResult          `json:"erp,omitempty"`
}

// FullSync runs employees, attendance and ERP stages in order. A failing
// source stage does not prevent the later stages; an ERP auth failure is
// returned as is so callers can detect it.
func (s *Service) FullSync(ctx context.Context, opts FullSyncOptions) (FullSyncResult, error) {
	var (
		result FullSyncResult
		errs   []error
	)
	if opts.Days < 1 {
		opts.Days = 1
	}

	if !opts.SkipEmployees {
		r, err := s.ingestion.SyncEmployees(ctx)
		result.Employees = &r
		if err != nil {
			errs = append(errs, err)
		}
	}
	if !opts.SkipAttendance {
		r, err := s.ingestion.SyncAttendance(ctx, LastDays(s.now(), opts.Days))
		result.Attendance = &r
		if err != nil {
			errs = append(errs, err)
		}
	}
	if !opts.SkipERP {
		r, err := s.orchestrator.Run(ctx, opts.ERPFilter)
		result.ERP = &r
		if err != nil {
			errs = append(errs, err)
		}
	}
	return result, errors.Join(errs...)
}

// ---------------------------------------------------------------------------
// Operator operations
// ---------------------------------------------------------------------------

// ResetRecord puts an attendance fact back to pending with a fresh attempt budget
func (s *Service) ResetRecord(ctx context.Context, id uuid.UUID, operator string) (*attendance.AttendanceFact, error) {
	var previous attendance.SyncStatus
	fact, err := s.facts.Transition(ctx, id, func(f *attendance.AttendanceFact) error {
		previous = f.Status
		f.ResetToPending()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Attendance reset to pending",
		zap.String("attendance_id", id.String()),
		zap.String("previous_status", previous.String()),
		zap.String("operator", operator))
	entry := attendance.NewSyncLogEntry(attendance.LogCategorySystem, attendance.LogOutcomeWarning,
		fmt.Sprintf("Attendance for %s on %s reset to pending", fact.EmployeeCode, fact.Date.Format(attendance.DateLayout))).
		ForEmployee(fact.EmployeeID).
		WithDetail("attendance_id", id.String()).
		WithDetail("previous_status", previous.String()).
		WithDetail("operator", operator)
	s.audit.append(ctx, entry)
	return fact, nil
}

// StatsReport bundles overall and recent statistics
type StatsReport struct {
	Overall *Stats       `json:"overall"`
	Recent  *RecentStats `json:"recent"`
}

// Stats returns overall statistics and those of the last days days
func (s *Service) Stats(ctx context.Context, days int) (*StatsReport, error) {
	overall, err := s.stats.Overall(ctx)
	if err != nil {
		return nil, err
	}
	recent, err := s.stats.Recent(ctx, days)
	if err != nil {
		return nil, err
	}
	return &StatsReport{Overall: overall, Recent: recent}, nil
}

// GetAttendance returns one attendance fact
func (s *Service) GetAttendance(ctx context.Context, id uuid.UUID) (*attendance.AttendanceFact, error) {
	return s.facts.FindByID(ctx, id)
}

// ListAttendance lists attendance facts for operators
func (s *Service) ListAttendance(
	ctx context.Context,
	filter attendance.ListFilter,
	page shared.Page,
) (shared.Paginated[attendance.AttendanceFact], error) {
	page = page.Normalize()
	items, total, err := s.facts.List(ctx, filter, page)
	if err != nil {
		return shared.Paginated[attendance.AttendanceFact]{}, err
	}
	return shared.NewPaginated(items, total, page.Number, page.Size), nil
}

// ListEmployees lists employees for operators
func (s *Service) ListEmployees(ctx context.Context, page shared.Page) (shared.Paginated[attendance.Employee], error) {
	page = page.Normalize()
	items, total, err := s.employees.List(ctx, page)
	if err != nil {
		return shared.Paginated[attendance.Employee]{}, err
	}
	return shared.NewPaginated(items, total, page.Number, page.Size), nil
}

// RecentLogs returns the newest audit entries, optionally of one category
func (s *Service) RecentLogs(ctx context.Context, category attendance.LogCategory, limit int) ([]attendance.SyncLogEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.logs.Recent(ctx, category, limit)
}
