package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/shopspring/decimal"
)

// Stats is the overall synchronization picture
type Stats struct {
	TotalEmployees     int64           `json:"total_employees"`
	ActiveEmployees    int64           `json:"active_employees"`
	TotalRecords       int64           `json:"total_records"`
	PendingRecords     int64           `json:"pending_records"`
	SyncedRecords      int64           `json:"synced_records"`
	FailedRecords      int64           `json:"failed_records"`
	SuccessRate        decimal.Decimal `json:"success_rate"`
	LastEmployeeSync   *time.Time      `json:"last_employee_sync,omitempty"`
	LastAttendanceSync *time.Time      `json:"last_attendance_sync,omitempty"`
	LastERPSync        *time.Time      `json:"last_erp_sync,omitempty"`
}

// RecentStats covers records whose date falls in the last Days days
type RecentStats struct {
	Days           int             `json:"days"`
	From           time.Time       `json:"from"`
	TotalRecords   int64           `json:"total_records"`
	PendingRecords int64           `json:"pending_records"`
	SyncedRecords  int64           `json:"synced_records"`
	FailedRecords  int64           `json:"failed_records"`
	SuccessRate    decimal.Decimal `json:"success_rate"`
}

// SuccessRate returns synced/(synced+failed) as a percentage with two decimals
func SuccessRate(synced, failed int64) decimal.Decimal {
	total := synced + failed
	if total == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(synced).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(total)).
		Round(2)
}

// StatsService computes synchronization statistics
type StatsService struct {
	employees attendance.EmployeeRepository
	facts     attendance.AttendanceRepository
	logs      attendance.SyncLogRepository
	now       func() time.Time
}

// NewStatsService creates a StatsService
func NewStatsService(
	employees attendance.EmployeeRepository,
	facts attendance.AttendanceRepository,
	logs attendance.SyncLogRepository,
) *StatsService {
	return &StatsService{employees: employees, facts: facts, logs: logs, now: time.Now}
}

// Overall returns totals over all records
func (s *StatsService) Overall(ctx context.Context) (*Stats, error) {
	total, err := s.employees.Count(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("count employees: %w", err)
	}
	active, err := s.employees.Count(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("count active employees: %w", err)
	}
	counts, err := s.facts.CountByStatus(ctx, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("count attendance: %w", err)
	}

	st := &Stats{
		TotalEmployees:  total,
		ActiveEmployees: active,
		PendingRecords:  counts[attendance.SyncStatusPending],
		SyncedRecords:   counts[attendance.SyncStatusSynced],
		FailedRecords:   counts[attendance.SyncStatusFailed],
	}
	st.TotalRecords = st.PendingRecords + st.SyncedRecords + st.FailedRecords
	st.SuccessRate = SuccessRate(st.SyncedRecords, st.FailedRecords)

	if st.LastEmployeeSync, err = s.logs.LatestSuccess(ctx, attendance.LogCategorySourceEmployees,
		attendance.LogOutcomeSuccess); err != nil {
		return nil, err
	}
	if st.LastAttendanceSync, err = s.logs.LatestSuccess(ctx, attendance.LogCategorySourceFetch,
		attendance.LogOutcomeSuccess); err != nil {
		return nil, err
	}
	// a rediscovered duplicate still proves the ERP was reachable
	if st.LastERPSync, err = s.logs.LatestSuccess(ctx, attendance.LogCategoryERPSync,
		attendance.LogOutcomeSuccess, attendance.LogOutcomeInfo); err != nil {
		return nil, err
	}
	return st, nil
}

// Recent returns totals for records dated within the last days days
func (s *StatsService) Recent(ctx context.Context, days int) (*RecentStats, error) {
	if days < 1 {
		days = 7
	}
	from := attendance.DateOf(s.now().AddDate(0, 0, -days))
	counts, err := s.facts.CountByStatus(ctx, &from, nil)
	if err != nil {
		return nil, fmt.Errorf("count recent attendance: %w", err)
	}
	rs := &RecentStats{
		Days:           days,
		From:           from,
		PendingRecords: counts[attendance.SyncStatusPending],
		SyncedRecords:  counts[attendance.SyncStatusSynced],
		FailedRecords:  counts[attendance.SyncStatusFailed],
	}
	rs.TotalRecords = rs.PendingRecords + rs.SyncedRecords + rs.FailedRecords
	rs.SuccessRate = SuccessRate(rs.SyncedRecords, rs.FailedRecords)
	return rs, nil
}
