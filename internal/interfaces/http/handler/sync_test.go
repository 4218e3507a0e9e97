package handler

import (
	"net/http"
	"testing"
	"time"

	"github.com/attendsync/backend/internal/application/reconciliation"
	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/integration"
	"github.com/attendsync/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var syncNow = time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)

func newSyncRouter(svc *MockService) *gin.Engine {
	h := NewSyncHandler(svc, time.UTC)
	h.now = func() time.Time { return syncNow }

	r := newTestRouter("alice")
	r.POST("/sync/employees", h.SyncEmployees)
	r.POST("/sync/attendance", h.SyncAttendance)
	r.POST("/sync/erp", h.SyncERP)
	r.POST("/sync/full", h.FullSync)
	r.GET("/sync/logs", h.ListLogs)
	return r
}

func TestSyncHandler_SyncEmployees(t *testing.T) {
	svc := new(MockService)
	svc.On("SyncEmployees", mock.Anything).
		Return(reconciliation.EmployeeSyncResult{Fetched: 3, Created: 2, Updated: 1}, nil)

	w := performRequest(newSyncRouter(svc), http.MethodPost, "/sync/employees", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var result reconciliation.EmployeeSyncResult
	decodeData(t, decodeResponse(t, w), &result)
	assert.Equal(t, 2, result.Created)
	svc.AssertExpectations(t)
}

func TestSyncHandler_SyncEmployeesSourceAuthFailure(t *testing.T) {
	svc := new(MockService)
	svc.On("SyncEmployees", mock.Anything).
		Return(reconciliation.EmployeeSyncResult{}, integration.ErrSourceAuthFailed)

	w := performRequest(newSyncRouter(svc), http.MethodPost, "/sync/employees", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, dto.ErrCodeSourceAuthFailed, decodeResponse(t, w).Error.Code)
}

func TestSyncHandler_SyncAttendance(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		window reconciliation.Window
	}{
		{
			name:   "empty body fetches one day",
			body:   "",
			window: reconciliation.LastDays(syncNow, 1),
		},
		{
			name:   "last days",
			body:   `{"days":7}`,
			window: reconciliation.LastDays(syncNow, 7),
		},
		{
			name: "explicit range",
			body: `{"start_date":"2026-03-01","end_date":"2026-03-02"}`,
			window: reconciliation.Window{
				Start: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
				End:   time.Date(2026, 3, 2, 23, 59, 59, 0, time.UTC),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			svc.On("SyncAttendance", mock.Anything, tt.window).
				Return(reconciliation.IngestResult{RunID: "run-1", Fetched: 4, Saved: 2}, nil)

			w := performRequest(newSyncRouter(svc), http.MethodPost, "/sync/attendance", tt.body)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var result reconciliation.IngestResult
			decodeData(t, decodeResponse(t, w), &result)
			assert.Equal(t, 2, result.Saved)
			svc.AssertExpectations(t)
		})
	}
}

func TestSyncHandler_SyncAttendanceRejects(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"inverted range", `{"start_date":"2026-03-05","end_date":"2026-03-01"}`, http.StatusBadRequest, dto.ErrCodeInvalidWindow},
		{"start without end", `{"start_date":"2026-03-05"}`, http.StatusBadRequest, dto.ErrCodeValidation},
		{"days with range", `{"days":3,"start_date":"2026-03-01","end_date":"2026-03-02"}`, http.StatusBadRequest, dto.ErrCodeValidation},
		{"malformed date", `{"start_date":"01/03/2026","end_date":"2026-03-02"}`, http.StatusBadRequest, dto.ErrCodeValidation},
		{"too many days", `{"days":365}`, http.StatusBadRequest, dto.ErrCodeValidation},
		{"invalid json", `{"days":`, http.StatusBadRequest, dto.ErrCodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockService)
			w := performRequest(newSyncRouter(svc), http.MethodPost, "/sync/attendance", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeResponse(t, w).Error.Code)
			svc.AssertNotCalled(t, "SyncAttendance", mock.Anything, mock.Anything)
		})
	}
}

func TestSyncHandler_SyncERP(t *testing.T) {
	svc := new(MockService)
	svc.On("SyncToERP", mock.Anything, mock.MatchedBy(func(f attendance.SelectionFilter) bool {
		return f.MaxRecords == 25 &&
			f.EmployeeCode == "E100" &&
			f.RetryFailedOnly &&
			f.Date != nil && f.Date.Equal(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)) &&
			len(f.Statuses) == 1 && f.Statuses[0] == attendance.SyncStatusFailed
	})).Return(reconciliation.RunResult{RunID: "run-2", Selected: 1, Processed: 1, Synced: 1}, nil)

	body := `{"max_records":25,"date":"2026-03-01","employee_code":"E100","retry_failed":true,"statuses":["failed"]}`
	w := performRequest(newSyncRouter(svc), http.MethodPost, "/sync/erp", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result reconciliation.RunResult
	decodeData(t, decodeResponse(t, w), &result)
	assert.Equal(t, 1, result.Synced)
	svc.AssertExpectations(t)
}

func TestSyncHandler_SyncERPAuthFailure(t *testing.T) {
	svc := new(MockService)
	svc.On("SyncToERP", mock.Anything, mock.Anything).
		Return(reconciliation.RunResult{Selected: 5, Processed: 1, Failed: 1, Aborted: true}, integration.ErrERPAuthFailed)

	w := performRequest(newSyncRouter(svc), http.MethodPost, "/sync/erp", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	resp := decodeResponse(t, w)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ERP_AUTH_FAILED", resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Remediation)

	var partial reconciliation.RunResult
	decodeData(t, resp, &partial)
	assert.Equal(t, 1, partial.Processed)
	assert.True(t, partial.Aborted)
}

func TestSyncHandler_SyncERPRejectsUnknownStatus(t *testing.T) {
	svc := new(MockService)
	w := performRequest(newSyncRouter(svc), http.MethodPost, "/sync/erp", `{"statuses":["done"]}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "SyncToERP", mock.Anything, mock.Anything)
}

func TestSyncHandler_FullSync(t *testing.T) {
	svc := new(MockService)
	svc.On("FullSync", mock.Anything, reconciliation.FullSyncOptions{
		Days:          3,
		SkipEmployees: true,
		ERPFilter:     attendance.SelectionFilter{MaxRecords: 50},
	}).Return(reconciliation.FullSyncResult{
		Attendance: &reconciliation.IngestResult{Saved: 4},
		ERP:        &reconciliation.RunResult{Synced: 4},
	}, nil)

	w := performRequest(newSyncRouter(svc), http.MethodPost, "/sync/full",
		`{"days":3,"skip_employees":true,"max_erp_records":50}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result reconciliation.FullSyncResult
	decodeData(t, decodeResponse(t, w), &result)
	assert.Nil(t, result.Employees)
	require.NotNil(t, result.ERP)
	assert.Equal(t, 4, result.ERP.Synced)
	svc.AssertExpectations(t)
}

func TestSyncHandler_FullSyncPartialFailure(t *testing.T) {
	svc := new(MockService)
	svc.On("FullSync", mock.Anything, mock.Anything).Return(reconciliation.FullSyncResult{
		Employees:  &reconciliation.EmployeeSyncResult{},
		Attendance: &reconciliation.IngestResult{},
		ERP:        &reconciliation.RunResult{Synced: 2},
	}, integration.ErrSourceUnavailable)

	w := performRequest(newSyncRouter(svc), http.MethodPost, "/sync/full", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)

	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeSourceUnavailable, resp.Error.Code)
	var result reconciliation.FullSyncResult
	decodeData(t, resp, &result)
	require.NotNil(t, result.ERP)
	assert.Equal(t, 2, result.ERP.Synced)
}

func TestSyncHandler_ListLogs(t *testing.T) {
	employeeID := uuid.New()
	entry := attendance.NewSyncLogEntry(attendance.LogCategoryERPSync, attendance.LogOutcomeError, "push failed").
		ForEmployee(employeeID).
		WithDetail("status_code", 500)
	entry.Duration = 1500 * time.Millisecond

	svc := new(MockService)
	svc.On("RecentLogs", mock.Anything, attendance.LogCategoryERPSync, 10).
		Return([]attendance.SyncLogEntry{*entry}, nil)

	w := performRequest(newSyncRouter(svc), http.MethodGet, "/sync/logs?category=erp_sync&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var logs []SyncLogResponse
	decodeData(t, decodeResponse(t, w), &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, int64(1500), logs[0].DurationMS)
	require.NotNil(t, logs[0].EmployeeID)
	assert.Equal(t, employeeID, *logs[0].EmployeeID)
	svc.AssertExpectations(t)
}

func TestSyncHandler_ListLogsRejectsUnknownCategory(t *testing.T) {
	svc := new(MockService)
	w := performRequest(newSyncRouter(svc), http.MethodGet, "/sync/logs?category=billing", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
