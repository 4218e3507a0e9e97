package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"go.uber.org/zap"
)

// auditTrail appends sync log entries. Audit failures are logged and never
// change the outcome of the operation being audited.
type auditTrail struct {
	logs   attendance.SyncLogRepository
	logger *zap.Logger
}

func newAuditTrail(logs attendance.SyncLogRepository, logger *zap.Logger) *auditTrail {
	return &auditTrail{logs: logs, logger: logger}
}

func (a *auditTrail) append(ctx context.Context, entry *attendance.SyncLogEntry) {
	if a == nil || a.logs == nil {
		return
	}
	if err := a.logs.Append(context.WithoutCancel(ctx), entry); err != nil {
		a.logger.Error("Failed to append sync log",
			zap.String("category", string(entry.Category)),
			zap.String("message", entry.Message),
			zap.Error(err))
	}
}

func (a *auditTrail) recordOutcome(
	ctx context.Context,
	fact *attendance.AttendanceFact,
	outcome Outcome,
	erpEmployee string,
	priorAttempts int,
	wasSynced bool,
) {
	date := fact.Date.Format(attendance.DateLayout)
	var entry *attendance.SyncLogEntry

	switch outcome.Kind {
	case OutcomeCreated:
		entry = attendance.NewSyncLogEntry(attendance.LogCategoryERPSync, attendance.LogOutcomeSuccess,
			fmt.Sprintf("Synced attendance for %s on %s", fact.EmployeeCode, date))
		entry.WithDetail("unknown_ref", outcome.ERPRef == attendance.UnknownERPRef)
	case OutcomeDuplicate:
		// The ERP already held this record. When we have no local history of
		// pushing it, the record may have been written by another process.
		entry = attendance.NewSyncLogEntry(attendance.LogCategoryERPSync, attendance.LogOutcomeInfo,
			fmt.Sprintf("Attendance for %s on %s already exists in ERP", fact.EmployeeCode, date))
		entry.WithDetail("is_existing_record", true).
			WithDetail("no_local_history", priorAttempts == 0 && !wasSynced).
			WithDetail("unresolved_ref", outcome.ERPRef == attendance.ExistingERPRef)
	case OutcomeFatal:
		entry = attendance.NewSyncLogEntry(attendance.LogCategoryERPSync, attendance.LogOutcomeError,
			fmt.Sprintf("ERP rejected credentials while syncing %s on %s", fact.EmployeeCode, date))
	default:
		entry = attendance.NewSyncLogEntry(attendance.LogCategoryERPSync, attendance.LogOutcomeError,
			fmt.Sprintf("Failed to sync attendance for %s on %s", fact.EmployeeCode, date))
	}

	entry.ForEmployee(fact.EmployeeID).
		WithDetail("attendance_id", fact.ID.String()).
		WithDetail("erp_employee", erpEmployee).
		WithDetail("attempts", outcome.Attempts)
	if outcome.ERPRef != "" {
		entry.WithDetail("erp_ref", outcome.ERPRef)
	}
	if outcome.Err != nil {
		entry.WithDetail("error", attendance.TruncateError(outcome.Err.Error()))
	}
	a.append(ctx, entry)
}

func (a *auditTrail) recordRun(
	ctx context.Context,
	category attendance.LogCategory,
	message string,
	err error,
	took time.Duration,
	details map[string]any,
) {
	outcome := attendance.LogOutcomeSuccess
	if err != nil {
		outcome = attendance.LogOutcomeError
		message = fmt.Sprintf("%s: %v", message, err)
	}
	entry := attendance.NewSyncLogEntry(category, outcome, attendance.TruncateError(message)).Took(took)
	for k, v := range details {
		entry.WithDetail(k, v)
	}
	a.append(ctx, entry)
}
