package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/attendsync/backend/internal/application/reconciliation"
	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceWindow(t *testing.T) {
	loc := time.FixedZone("EAT", 3*60*60)
	now := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

	t.Run("defaults to the last day", func(t *testing.T) {
		w, err := attendanceWindow(0, "", "", now, loc)
		require.NoError(t, err)
		assert.True(t, w.End.Equal(now))
		assert.True(t, w.Start.Equal(now.AddDate(0, 0, -1)))
	})

	t.Run("last N days", func(t *testing.T) {
		w, err := attendanceWindow(7, "", "", now, loc)
		require.NoError(t, err)
		assert.True(t, w.Start.Equal(now.AddDate(0, 0, -7)))
	})

	t.Run("date range on the local wall clock", func(t *testing.T) {
		w, err := attendanceWindow(0, "2024-03-01", "2024-03-02", now, loc)
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, loc), w.Start)
		assert.Equal(t, time.Date(2024, 3, 2, 23, 59, 59, 0, loc), w.End)
	})

	tests := []struct {
		name       string
		days       int
		start, end string
		wantErr    string
	}{
		{"negative days", -1, "", "", "-days must be positive"},
		{"days with range", 3, "2024-03-01", "2024-03-02", "cannot be combined"},
		{"start without end", 0, "2024-03-01", "", "given together"},
		{"bad start", 0, "03/01/2024", "2024-03-02", "-start"},
		{"bad end", 0, "2024-03-01", "tomorrow", "-end"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := attendanceWindow(tt.days, tt.start, tt.end, now, loc)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("inverted range", func(t *testing.T) {
		_, err := attendanceWindow(0, "2024-03-05", "2024-03-01", now, loc)
		assert.ErrorIs(t, err, reconciliation.ErrInvalidWindow)
	})
}

func TestERPFlags_Filter(t *testing.T) {
	var f erpFlags
	fs := flag.NewFlagSet("erp", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	f.register(fs)

	err := fs.Parse([]string{
		"-max-records", "25",
		"-date", "2024-03-01",
		"-employee", " E100 ",
		"-status", "pending",
		"-status", "FAILED",
		"-retry-failed",
	})
	require.NoError(t, err)

	filter, err := f.filter()
	require.NoError(t, err)
	assert.Equal(t, 25, filter.MaxRecords)
	assert.Equal(t, "E100", filter.EmployeeCode)
	assert.True(t, filter.RetryFailedOnly)
	assert.Equal(t, []attendance.SyncStatus{attendance.SyncStatusPending, attendance.SyncStatusFailed}, filter.Statuses)
	require.NotNil(t, filter.Date)
	assert.Equal(t, "2024-03-01", filter.Date.Format(attendance.DateLayout))
}

func TestERPFlags_Invalid(t *testing.T) {
	t.Run("unknown status is rejected while parsing", func(t *testing.T) {
		var f erpFlags
		fs := flag.NewFlagSet("erp", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		f.register(fs)

		err := fs.Parse([]string{"-status", "archived"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown status")
	})

	t.Run("bad date", func(t *testing.T) {
		f := erpFlags{date: "yesterday"}
		_, err := f.filter()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "-date")
	})

	t.Run("negative max records", func(t *testing.T) {
		f := erpFlags{maxRecords: -5}
		_, err := f.filter()
		require.Error(t, err)
	})
}

func TestReport(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantText string
	}{
		{
			name:     "erp auth failure",
			err:      fmt.Errorf("%w after 2 of 5 records: %w", reconciliation.ErrRunAborted, integration.ErrERPAuthFailed),
			wantCode: exitAuthError,
			wantText: "ATTSYNC_ERP_API_KEY",
		},
		{
			name:     "source auth failure",
			err:      fmt.Errorf("fetch employees: %w", integration.ErrSourceAuthFailed),
			wantCode: exitAuthError,
			wantText: "ATTSYNC_SOURCE_PASSWORD",
		},
		{
			name:     "other failure",
			err:      errors.New("connection refused"),
			wantCode: exitFailure,
			wantText: "Error: connection refused",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Equal(t, tt.wantCode, report(&buf, tt.err))
			assert.Contains(t, buf.String(), tt.wantText)
		})
	}
}

func TestRun_Usage(t *testing.T) {
	t.Run("no command", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), nil, &stdout, &stderr)
		assert.Equal(t, exitFailure, code)
		assert.Contains(t, stderr.String(), "Usage:")
	})

	t.Run("unknown command", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"rebuild"}, &stdout, &stderr)
		assert.Equal(t, exitFailure, code)
		assert.Contains(t, stderr.String(), `unknown command "rebuild"`)
	})

	t.Run("bad flag", func(t *testing.T) {
		var stdout, stderr bytes.Buffer
		code := run(context.Background(), []string{"stats", "-days", "many"}, &stdout, &stderr)
		assert.Equal(t, exitFailure, code)
	})
}

func TestRun_Token(t *testing.T) {
	t.Setenv("ATTSYNC_AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")

	var stdout, stderr bytes.Buffer
	code := run(context.Background(), []string{"token", "-operator", "alice", "-ttl", "1h"}, &stdout, &stderr)

	require.Equal(t, exitOK, code, stderr.String())
	assert.Contains(t, stdout.String(), "# operator alice")
	assert.Regexp(t, `^[\w-]+\.[\w-]+\.[\w-]+\n`, stdout.String())
}
