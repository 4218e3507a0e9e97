package bootstrap

import (
	"context"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/integration"
)

// unconfiguredSource lets the server start without source credentials.
// Every call fails with ErrSourceNotConfigured.
type unconfiguredSource struct{}

func (unconfiguredSource) CheckConfigured() error {
	return integration.ErrSourceNotConfigured
}

func (unconfiguredSource) FetchEmployees(context.Context) ([]integration.SourceEmployee, error) {
	return nil, integration.ErrSourceNotConfigured
}

func (unconfiguredSource) FetchTransactions(context.Context, time.Time, time.Time) ([]attendance.Punch, error) {
	return nil, integration.ErrSourceNotConfigured
}

// unconfiguredLedger reports itself unconfigured so batch runs refuse to
// start. A push that still reaches it is classified as an auth failure.
type unconfiguredLedger struct{}

func (unconfiguredLedger) CheckConfigured() error {
	return integration.ErrERPNotConfigured
}

func (unconfiguredLedger) CreateAttendance(context.Context, integration.AttendancePayload) integration.PushResult {
	return integration.PushResult{Kind: integration.PushAuthFailure, Err: integration.ErrERPNotConfigured}
}

func (unconfiguredLedger) FindAttendance(context.Context, string, time.Time) (string, error) {
	return "", integration.ErrERPNotConfigured
}

func (unconfiguredLedger) FindEmployee(context.Context, string) (string, error) {
	return "", integration.ErrERPNotConfigured
}

var (
	_ integration.PunchSource      = unconfiguredSource{}
	_ integration.AttendanceLedger = unconfiguredLedger{}
	_ integration.ConfigChecker    = unconfiguredSource{}
	_ integration.ConfigChecker    = unconfiguredLedger{}
)
