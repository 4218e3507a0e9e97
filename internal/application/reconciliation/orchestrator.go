package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/integration"
	"github.com/attendsync/backend/internal/infrastructure/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/attendsync/backend/internal/application/reconciliation"

// RunResult aggregates the outcome of one reconciliation run
type RunResult struct {
	RunID      string        `json:"run_id"`
	Selected   int           `json:"selected"`
	Processed  int           `json:"processed"`
	Synced     int           `json:"synced"`
	Duplicates int           `json:"duplicates"`
	Failed     int           `json:"failed"`
	Aborted    bool          `json:"aborted"`
	Duration   time.Duration `json:"duration"`
}

// OrchestratorConfig holds batch defaults
type OrchestratorConfig struct {
	DefaultMaxRecords int
}

// Orchestrator selects a batch of attendance facts and reconciles them one by one
type Orchestrator struct {
	facts      attendance.AttendanceRepository
	ledger     integration.AttendanceLedger
	reconciler *Reconciler
	audit      *auditTrail
	recorder   Recorder
	logger     *zap.Logger
	tracer     trace.Tracer
	cfg        OrchestratorConfig
}

// NewOrchestrator creates an Orchestrator
func NewOrchestrator(
	facts attendance.AttendanceRepository,
	ledger integration.AttendanceLedger,
	reconciler *Reconciler,
	logs attendance.SyncLogRepository,
	logger *zap.Logger,
	cfg OrchestratorConfig,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		facts:      facts,
		ledger:     ledger,
		reconciler: reconciler,
		audit:      newAuditTrail(logs, logger),
		recorder:   reconciler.recorder,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		cfg:        cfg,
	}
}

// Run reconciles the batch described by filter. Records are processed
// sequentially. Per-record failures are folded into the counts; an ERP
// authentication failure stops the run and is returned together with the
// partial counts. A ledger without credentials fails the run before any
// record is selected.
func (o *Orchestrator) Run(ctx context.Context, filter attendance.SelectionFilter) (RunResult, error) {
	start := time.Now()
	filter = filter.Normalize(o.cfg.DefaultMaxRecords, o.reconciler.MaxRetries())
	result := RunResult{RunID: uuid.NewString()}
	ctx, log := logger.WithRunID(ctx, o.logger, result.RunID)

	if err := integration.CheckConfigured(o.ledger); err != nil {
		log.Warn("ERP reconciliation skipped", zap.Error(err))
		return result, err
	}

	ctx, span := o.tracer.Start(ctx, "reconciliation.run", trace.WithAttributes(
		attribute.Int("max_records", filter.MaxRecords),
		attribute.Bool("retry_failed_only", filter.RetryFailedOnly),
		attribute.String("employee_code", filter.EmployeeCode),
	))
	defer span.End()

	batch, err := o.facts.SelectForSync(ctx, filter)
	if err != nil {
		err = fmt.Errorf("select attendance batch: %w", err)
		o.finish(ctx, span, log, &result, start, err)
		return result, err
	}
	result.Selected = len(batch)
	log.Info("Starting ERP reconciliation",
		zap.Int("selected", result.Selected),
		zap.Int("max_records", filter.MaxRecords),
		zap.Int("max_attempts", filter.MaxAttempts),
		zap.Bool("retry_failed_only", filter.RetryFailedOnly))

	resolver := NewIdentifierResolver(o.ledger, log)
	var runErr error

	for i := range batch {
		if err := ctx.Err(); err != nil {
			result.Aborted = true
			runErr = fmt.Errorf("%w: %w", ErrRunAborted, err)
			break
		}

		outcome := o.reconcileOne(ctx, resolver, &batch[i])
		result.Processed++
		switch outcome.Kind {
		case OutcomeCreated:
			result.Synced++
		case OutcomeDuplicate:
			result.Duplicates++
		case OutcomeFatal:
			result.Failed++
			result.Aborted = true
			runErr = fmt.Errorf("%w after %d of %d records: %w",
				ErrRunAborted, result.Processed, result.Selected, outcome.Err)
		default:
			result.Failed++
		}
		if result.Aborted {
			break
		}
	}

	o.finish(ctx, span, log, &result, start, runErr)
	return result, runErr
}

func (o *Orchestrator) reconcileOne(ctx context.Context, resolver *IdentifierResolver, fact *attendance.AttendanceFact) Outcome {
	ctx, span := o.tracer.Start(ctx, "reconciliation.record", trace.WithAttributes(
		attribute.String("attendance_id", fact.ID.String()),
		attribute.String("employee_code", fact.EmployeeCode),
		attribute.String("date", fact.Date.Format(attendance.DateLayout)),
	))
	defer span.End()

	outcome := o.reconciler.Reconcile(ctx, resolver, fact)
	span.SetAttributes(
		attribute.String("outcome", outcome.Kind.String()),
		attribute.Int("attempts", outcome.Attempts),
	)
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
		span.SetStatus(codes.Error, outcome.Kind.String())
	}
	return outcome
}

func (o *Orchestrator) finish(
	ctx context.Context,
	span trace.Span,
	log *zap.Logger,
	result *RunResult,
	start time.Time,
	err error,
) {
	result.Duration = time.Since(start)
	span.SetAttributes(
		attribute.Int("selected", result.Selected),
		attribute.Int("synced", result.Synced),
		attribute.Int("duplicates", result.Duplicates),
		attribute.Int("failed", result.Failed),
	)
	fields := []zap.Field{
		zap.Int("selected", result.Selected),
		zap.Int("processed", result.Processed),
		zap.Int("synced", result.Synced),
		zap.Int("duplicates", result.Duplicates),
		zap.Int("failed", result.Failed),
		zap.Duration("duration", result.Duration),
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "reconciliation aborted")
		log.Error("ERP reconciliation aborted", append(fields, zap.Error(err))...)
	} else {
		log.Info("ERP reconciliation finished", fields...)
	}

	o.recorder.RecordRun(ctx, "erp_sync", result.Duration, result.Selected, err)
	o.audit.recordRun(ctx, attendance.LogCategoryERPSync,
		fmt.Sprintf("ERP sync: %d synced, %d duplicates, %d failed", result.Synced, result.Duplicates, result.Failed),
		err, result.Duration, map[string]any{
			"run_id":     result.RunID,
			"selected":   result.Selected,
			"processed":  result.Processed,
			"synced":     result.Synced,
			"duplicates": result.Duplicates,
			"failed":     result.Failed,
			"aborted":    result.Aborted,
		})
}
