package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/integration"
	"go.uber.org/zap"
)

// OutcomeKind is the final result of reconciling one attendance fact
type OutcomeKind int

const (
	// OutcomeFailed means every attempt failed; the fact is left failed
	OutcomeFailed OutcomeKind = iota
	// OutcomeCreated means the ERP accepted a new record
	OutcomeCreated
	// OutcomeDuplicate means the ERP already held the record
	OutcomeDuplicate
	// OutcomeFatal means the ERP rejected our credentials; the run must stop
	OutcomeFatal
)

// String returns the metric friendly name
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeCreated:
		return "created"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeFatal:
		return "fatal"
	default:
		return "failed"
	}
}

// Outcome describes what happened to one fact
type Outcome struct {
	Kind       OutcomeKind
	ERPRef     string
	IsExisting bool
	// Attempts is the number of create calls issued for this fact in this call
	Attempts int
	Err      error
	Fact     *attendance.AttendanceFact
}

// Synced reports whether the fact ended up synced
func (o Outcome) Synced() bool {
	return o.Kind == OutcomeCreated || o.Kind == OutcomeDuplicate
}

// ReconcilerConfig holds the retry policy
type ReconcilerConfig struct {
	MaxRetries int
	RetryDelay time.Duration
}

// DefaultReconcilerConfig returns five attempts with a two second linear backoff
func DefaultReconcilerConfig() ReconcilerConfig {
	return ReconcilerConfig{MaxRetries: 5, RetryDelay: 2 * time.Second}
}

// Reconciler pushes a single attendance fact to the ERP and records the result
type Reconciler struct {
	ledger   integration.AttendanceLedger
	facts    attendance.AttendanceRepository
	audit    *auditTrail
	recorder Recorder
	logger   *zap.Logger
	cfg      ReconcilerConfig
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// ReconcilerOption configures a Reconciler
type ReconcilerOption func(*Reconciler)

// WithRecorder sets the metrics recorder
func WithRecorder(rec Recorder) ReconcilerOption {
	return func(r *Reconciler) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithSleeper replaces the backoff wait, mainly for tests
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) ReconcilerOption {
	return func(r *Reconciler) {
		r.sleep = sleep
	}
}

// WithClock replaces the time source
func WithClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) {
		r.now = now
	}
}

// NewReconciler creates a Reconciler
func NewReconciler(
	ledger integration.AttendanceLedger,
	facts attendance.AttendanceRepository,
	logs attendance.SyncLogRepository,
	logger *zap.Logger,
	cfg ReconcilerConfig,
	opts ...ReconcilerOption,
) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultReconcilerConfig().MaxRetries
	}
	if cfg.RetryDelay < 0 {
		cfg.RetryDelay = 0
	}
	r := &Reconciler{
		ledger:   ledger,
		facts:    facts,
		audit:    newAuditTrail(logs, logger),
		recorder: NopRecorder{},
		logger:   logger,
		cfg:      cfg,
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MaxRetries returns the per-record attempt ceiling
func (r *Reconciler) MaxRetries() int {
	return r.cfg.MaxRetries
}

// Reconcile pushes fact to the ERP, retrying transient failures with a linear
// backoff, and applies the outcome to the repository in one atomic write.
// A record always runs to completion once started: cancelling ctx does not
// cut a push or backoff short, callers check it between records.
func (r *Reconciler) Reconcile(ctx context.Context, resolver *IdentifierResolver, fact *attendance.AttendanceFact) Outcome {
	ctx = context.WithoutCancel(ctx)
	log := r.logger.With(
		zap.String("attendance_id", fact.ID.String()),
		zap.String("employee_code", fact.EmployeeCode),
		zap.String("date", fact.Date.Format(attendance.DateLayout)),
	)
	priorAttempts := fact.SyncAttempts
	wasSynced := fact.IsSynced()

	employee := resolver.Resolve(ctx, fact.EmployeeCode)
	payload := integration.NewAttendancePayload(employee, fact)

	outcome := r.push(ctx, resolver, fact, payload, log)
	outcome = r.apply(ctx, fact, outcome, log)

	r.recorder.RecordOutcome(ctx, outcome.Kind)
	r.audit.recordOutcome(ctx, fact, outcome, employee, priorAttempts, wasSynced)
	return outcome
}

func (r *Reconciler) push(
	ctx context.Context,
	resolver *IdentifierResolver,
	fact *attendance.AttendanceFact,
	payload integration.AttendancePayload,
	log *zap.Logger,
) Outcome {
	var lastErr error
	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		res := r.ledger.CreateAttendance(ctx, payload)
		r.recorder.RecordPush(ctx, res.Kind)

		switch res.Kind {
		case integration.PushCreatedWithID:
			return Outcome{Kind: OutcomeCreated, ERPRef: res.ERPRef, Attempts: attempt}

		case integration.PushCreatedUnknownID:
			log.Warn("ERP accepted attendance without returning its name")
			return Outcome{Kind: OutcomeCreated, ERPRef: attendance.UnknownERPRef, Attempts: attempt}

		case integration.PushDuplicateWithID:
			if res.EmployeeHint != "" {
				resolver.Remember(fact.EmployeeCode, res.EmployeeHint)
			}
			return Outcome{Kind: OutcomeDuplicate, ERPRef: res.ERPRef, IsExisting: true, Attempts: attempt}

		case integration.PushDuplicateUnresolved:
			ref := r.lookupExisting(ctx, resolver, fact, res.EmployeeHint, log)
			return Outcome{Kind: OutcomeDuplicate, ERPRef: ref, IsExisting: true, Attempts: attempt}

		case integration.PushAuthFailure:
			err := fmt.Errorf("%w: %s", integration.ErrERPAuthFailed, res.Error())
			if res.Err != nil {
				err = fmt.Errorf("%w: %w", integration.ErrERPAuthFailed, res.Err)
			}
			return Outcome{Kind: OutcomeFatal, Attempts: attempt, Err: err}
		}

		lastErr = res.Err
		if lastErr == nil {
			lastErr = fmt.Errorf("%w: %s", integration.ErrERPUnavailable, res.Error())
		}
		log.Warn("ERP push failed",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", r.cfg.MaxRetries),
			zap.Int("status_code", res.StatusCode),
			zap.Error(lastErr))

		if attempt == r.cfg.MaxRetries {
			break
		}
		if err := r.sleep(ctx, r.cfg.RetryDelay*time.Duration(attempt)); err != nil {
			return Outcome{Kind: OutcomeFailed, Attempts: attempt, Err: fmt.Errorf("retry wait interrupted: %w", err)}
		}
	}
	return Outcome{
		Kind:     OutcomeFailed,
		Attempts: r.cfg.MaxRetries,
		Err:      fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, r.cfg.MaxRetries, lastErr),
	}
}

// lookupExisting asks the ERP for the attendance it reported as a duplicate.
// Without an employee hint or a match the sentinel reference is used.
func (r *Reconciler) lookupExisting(
	ctx context.Context,
	resolver *IdentifierResolver,
	fact *attendance.AttendanceFact,
	employeeHint string,
	log *zap.Logger,
) string {
	if employeeHint == "" {
		return attendance.ExistingERPRef
	}
	resolver.Remember(fact.EmployeeCode, employeeHint)

	name, err := r.ledger.FindAttendance(ctx, employeeHint, fact.Date)
	if err != nil {
		log.Warn("Lookup of existing ERP attendance failed",
			zap.String("erp_employee", employeeHint),
			zap.Error(err))
		return attendance.ExistingERPRef
	}
	if name == "" {
		return attendance.ExistingERPRef
	}
	return name
}

// apply persists the outcome in one atomic write
func (r *Reconciler) apply(ctx context.Context, fact *attendance.AttendanceFact, outcome Outcome, log *zap.Logger) Outcome {
	at := r.now()
	updated, err := r.facts.Transition(ctx, fact.ID, func(f *attendance.AttendanceFact) error {
		if outcome.Synced() {
			return f.MarkSynced(outcome.ERPRef, at)
		}
		return f.MarkFailed(outcome.Err.Error(), at)
	})
	switch {
	case err == nil:
		outcome.Fact = updated
		*fact = *updated
	case errors.Is(err, attendance.ErrInvalidTransition):
		// someone else synced it between selection and now
		log.Warn("Attendance already synced, failure not recorded", zap.Error(outcome.Err))
		outcome.Fact = fact
	default:
		log.Error("Failed to persist reconciliation outcome",
			zap.String("outcome", outcome.Kind.String()),
			zap.Error(err))
		if outcome.Err == nil {
			outcome.Err = fmt.Errorf("persist outcome: %w", err)
		} else {
			outcome.Err = fmt.Errorf("%w (persist outcome: %v)", outcome.Err, err)
		}
		outcome.Fact = fact
	}
	return outcome
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
