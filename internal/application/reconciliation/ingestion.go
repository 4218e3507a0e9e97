package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/integration"
	"github.com/attendsync/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Window is a closed fetch interval for source transactions
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// LastDays returns the window covering the last n days up to now
func LastDays(now time.Time, days int) Window {
	if days < 1 {
		days = 1
	}
	return Window{Start: now.AddDate(0, 0, -days), End: now}
}

// DateRange returns the window from the start of startDate to the last
// second of endDate, on loc's wall clock.
func DateRange(startDate, endDate time.Time, loc *time.Location) Window {
	if loc == nil {
		loc = time.UTC
	}
	sy, sm, sd := startDate.Date()
	ey, em, ed := endDate.Date()
	return Window{
		Start: time.Date(sy, sm, sd, 0, 0, 0, 0, loc),
		End:   time.Date(ey, em, ed, 23, 59, 59, 0, loc),
	}
}

// Validate checks that the window is not inverted
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() || w.End.Before(w.Start) {
		return ErrInvalidWindow
	}
	return nil
}

// EmployeeSyncResult summarizes an employee pull
type EmployeeSyncResult struct {
	Fetched int `json:"fetched"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// IngestResult summarizes an attendance pull
type IngestResult struct {
	RunID           string `json:"run_id"`
	Fetched         int    `json:"fetched"`
	Dropped         int    `json:"dropped"`
	Groups          int    `json:"groups"`
	Saved           int    `json:"saved"`
	UnknownEmployee int    `json:"unknown_employee"`
	Errors          int    `json:"errors"`
	ArchiveKey      string `json:"archive_key,omitempty"`
}

// IngestionService pulls employees and punches from the source system
// into local storage.
type IngestionService struct {
	source    integration.PunchSource
	employees attendance.EmployeeRepository
	facts     attendance.AttendanceRepository
	archive   PunchArchive
	audit     *auditTrail
	recorder  Recorder
	logger    *zap.Logger
}

// NewIngestionService creates an IngestionService. archive and recorder may be nil.
func NewIngestionService(
	source integration.PunchSource,
	employees attendance.EmployeeRepository,
	facts attendance.AttendanceRepository,
	logs attendance.SyncLogRepository,
	archive PunchArchive,
	recorder Recorder,
	logger *zap.Logger,
) *IngestionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if archive == nil {
		archive = NopArchive{}
	}
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &IngestionService{
		source:    source,
		employees: employees,
		facts:     facts,
		archive:   archive,
		audit:     newAuditTrail(logs, logger),
		recorder:  recorder,
		logger:    logger,
	}
}

// SyncEmployees upserts every employee the source publishes
func (s *IngestionService) SyncEmployees(ctx context.Context) (EmployeeSyncResult, error) {
	start := time.Now()
	var result EmployeeSyncResult

	fetched, err := s.source.FetchEmployees(ctx)
	if err != nil {
		err = fmt.Errorf("fetch employees: %w", err)
		s.finishEmployees(ctx, result, start, err)
		return result, err
	}
	result.Fetched = len(fetched)

	for _, src := range fetched {
		created, err := s.upsertEmployee(ctx, src)
		if err != nil {
			result.Skipped++
			s.logger.Warn("Skipping source employee",
				zap.String("employee_code", src.Code),
				zap.Error(err))
			continue
		}
		if created {
			result.Created++
		} else {
			result.Updated++
		}
	}

	s.finishEmployees(ctx, result, start, nil)
	return result, nil
}

func (s *IngestionService) upsertEmployee(ctx context.Context, src integration.SourceEmployee) (bool, error) {
	existing, err := s.employees.FindByCode(ctx, src.Code)
	switch {
	case err == nil:
		existing.UpdateProfile(src.FirstName, src.LastName, src.FullName, src.Department, src.Area)
		return false, s.employees.Upsert(ctx, existing)
	case errors.Is(err, attendance.ErrEmployeeNotFound):
		emp, err := attendance.NewEmployee(src.Code, src.FirstName, src.LastName)
		if err != nil {
			return false, err
		}
		emp.FullName = src.FullName
		emp.Department = src.Department
		emp.Area = src.Area
		return true, s.employees.Upsert(ctx, emp)
	default:
		return false, err
	}
}

func (s *IngestionService) finishEmployees(ctx context.Context, result EmployeeSyncResult, start time.Time, err error) {
	took := time.Since(start)
	fields := []zap.Field{
		zap.Int("fetched", result.Fetched),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
		zap.Int("skipped", result.Skipped),
		zap.Duration("duration", took),
	}
	if err != nil {
		s.logger.Error("Employee sync failed", append(fields, zap.Error(err))...)
	} else {
		s.logger.Info("Employee sync finished", fields...)
	}
	s.recorder.RecordRun(ctx, "source_employees", took, result.Fetched, err)
	s.audit.recordRun(ctx, attendance.LogCategorySourceEmployees,
		fmt.Sprintf("Employee sync: %d created, %d updated", result.Created, result.Updated),
		err, took, map[string]any{
			"fetched": result.Fetched,
			"created": result.Created,
			"updated": result.Updated,
			"skipped": result.Skipped,
		})
}

// SyncAttendance fetches punches in window, aggregates them per employee and
// day, and merges them into stored attendance facts. Reconciliation state of
// existing facts is preserved.
func (s *IngestionService) SyncAttendance(ctx context.Context, window Window) (IngestResult, error) {
	start := time.Now()
	result := IngestResult{RunID: uuid.NewString()}
	ctx, log := logger.WithRunID(ctx, s.logger, result.RunID)

	if err := window.Validate(); err != nil {
		return result, err
	}

	punches, err := s.source.FetchTransactions(ctx, window.Start, window.End)
	if err != nil {
		err = fmt.Errorf("fetch transactions: %w", err)
		s.finishAttendance(ctx, log, result, window, start, err)
		return result, err
	}
	result.Fetched = len(punches)

	if len(punches) > 0 {
		key, err := s.archive.Archive(ctx, result.RunID, window, punches)
		if err != nil {
			log.Warn("Failed to archive raw punches", zap.Error(err))
		}
		result.ArchiveKey = key
	}

	agg := attendance.Aggregate(punches)
	result.Dropped = len(agg.Dropped)
	result.Groups = len(agg.Groups)
	for _, d := range agg.Dropped {
		log.Warn("Dropping invalid punch",
			zap.String("employee_code", d.Punch.EmployeeCode),
			zap.String("transaction_ref", d.Punch.TransactionRef),
			zap.Error(d.Reason))
	}
	s.recorder.RecordDroppedPunches(ctx, result.Dropped)

	employees := make(map[string]*attendance.Employee)
	for _, g := range agg.Groups {
		emp, ok := employees[g.EmployeeCode]
		if !ok {
			emp, err = s.employees.FindByCode(ctx, g.EmployeeCode)
			if err != nil && !errors.Is(err, attendance.ErrEmployeeNotFound) {
				result.Errors++
				log.Error("Employee lookup failed", zap.String("employee_code", g.EmployeeCode), zap.Error(err))
				continue
			}
			if err != nil {
				emp = nil
			}
			employees[g.EmployeeCode] = emp
		}
		if emp == nil {
			result.UnknownEmployee++
			log.Warn("Skipping punches of unknown employee",
				zap.String("employee_code", g.EmployeeCode),
				zap.String("date", g.Date.Format(attendance.DateLayout)))
			continue
		}

		if err := s.saveGroup(ctx, emp, g); err != nil {
			result.Errors++
			log.Error("Failed to save attendance",
				zap.String("employee_code", g.EmployeeCode),
				zap.String("date", g.Date.Format(attendance.DateLayout)),
				zap.Error(err))
			continue
		}
		result.Saved++
	}
	s.recorder.RecordIngestedFacts(ctx, result.Saved)

	s.finishAttendance(ctx, log, result, window, start, nil)
	return result, nil
}

func (s *IngestionService) saveGroup(ctx context.Context, emp *attendance.Employee, g attendance.DailyGroup) error {
	fact, err := s.facts.FindByEmployeeAndDate(ctx, emp.ID, g.Date)
	switch {
	case err == nil:
		if err := fact.MergePunches(g.Punches); err != nil {
			return err
		}
	case errors.Is(err, attendance.ErrFactNotFound):
		fact, err = attendance.NewAttendanceFact(emp.ID, g)
		if err != nil {
			return err
		}
	default:
		return err
	}
	if fact.Department == "" {
		fact.Department = emp.Department
	}
	if fact.Area == "" {
		fact.Area = emp.Area
	}
	return s.facts.UpsertPunches(ctx, fact)
}

func (s *IngestionService) finishAttendance(
	ctx context.Context,
	log *zap.Logger,
	result IngestResult,
	window Window,
	start time.Time,
	err error,
) {
	took := time.Since(start)
	fields := []zap.Field{
		zap.Time("window_start", window.Start),
		zap.Time("window_end", window.End),
		zap.Int("fetched", result.Fetched),
		zap.Int("dropped", result.Dropped),
		zap.Int("groups", result.Groups),
		zap.Int("saved", result.Saved),
		zap.Int("unknown_employee", result.UnknownEmployee),
		zap.Duration("duration", took),
	}
	if err != nil {
		log.Error("Attendance fetch failed", append(fields, zap.Error(err))...)
	} else {
		log.Info("Attendance fetch finished", fields...)
	}
	s.recorder.RecordRun(ctx, "source_fetch", took, result.Fetched, err)
	s.audit.recordRun(ctx, attendance.LogCategorySourceFetch,
		fmt.Sprintf("Attendance fetch: %d punches, %d records saved", result.Fetched, result.Saved),
		err, took, map[string]any{
			"run_id":           result.RunID,
			"window_start":     window.Start.Format(attendance.DateTimeLayout),
			"window_end":       window.End.Format(attendance.DateTimeLayout),
			"fetched":          result.Fetched,
			"dropped":          result.Dropped,
			"saved":            result.Saved,
			"unknown_employee": result.UnknownEmployee,
			"archive_key":      result.ArchiveKey,
		})
}
