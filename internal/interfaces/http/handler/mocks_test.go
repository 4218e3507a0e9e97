package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/attendsync/backend/internal/application/reconciliation"
	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/shared"
	"github.com/attendsync/backend/internal/infrastructure/auth"
	"github.com/attendsync/backend/internal/infrastructure/scheduler"
	"github.com/attendsync/backend/internal/interfaces/http/dto"
	"github.com/attendsync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// MockService mocks the reconciliation service behind every handler
type MockService struct {
	mock.Mock
}

func (m *MockService) SyncEmployees(ctx context.Context) (reconciliation.EmployeeSyncResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(reconciliation.EmployeeSyncResult), args.Error(1)
}

func (m *MockService) SyncAttendance(ctx context.Context, window reconciliation.Window) (reconciliation.IngestResult, error) {
	args := m.Called(ctx, window)
	return args.Get(0).(reconciliation.IngestResult), args.Error(1)
}

func (m *MockService) SyncAttendanceDays(ctx context.Context, days int) (reconciliation.IngestResult, error) {
	args := m.Called(ctx, days)
	return args.Get(0).(reconciliation.IngestResult), args.Error(1)
}

func (m *MockService) SyncToERP(ctx context.Context, filter attendance.SelectionFilter) (reconciliation.RunResult, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(reconciliation.RunResult), args.Error(1)
}

func (m *MockService) FullSync(ctx context.Context, opts reconciliation.FullSyncOptions) (reconciliation.FullSyncResult, error) {
	args := m.Called(ctx, opts)
	return args.Get(0).(reconciliation.FullSyncResult), args.Error(1)
}

func (m *MockService) RecentLogs(ctx context.Context, category attendance.LogCategory, limit int) ([]attendance.SyncLogEntry, error) {
	args := m.Called(ctx, category, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]attendance.SyncLogEntry), args.Error(1)
}

func (m *MockService) GetAttendance(ctx context.Context, id uuid.UUID) (*attendance.AttendanceFact, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*attendance.AttendanceFact), args.Error(1)
}

func (m *MockService) ListAttendance(
	ctx context.Context,
	filter attendance.ListFilter,
	page shared.Page,
) (shared.Paginated[attendance.AttendanceFact], error) {
	args := m.Called(ctx, filter, page)
	return args.Get(0).(shared.Paginated[attendance.AttendanceFact]), args.Error(1)
}

func (m *MockService) ResetRecord(ctx context.Context, id uuid.UUID, operator string) (*attendance.AttendanceFact, error) {
	args := m.Called(ctx, id, operator)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*attendance.AttendanceFact), args.Error(1)
}

func (m *MockService) ListEmployees(ctx context.Context, page shared.Page) (shared.Paginated[attendance.Employee], error) {
	args := m.Called(ctx, page)
	return args.Get(0).(shared.Paginated[attendance.Employee]), args.Error(1)
}

func (m *MockService) Stats(ctx context.Context, days int) (*reconciliation.StatsReport, error) {
	args := m.Called(ctx, days)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconciliation.StatsReport), args.Error(1)
}

// MockJobRunner mocks the scheduler
type MockJobRunner struct {
	mock.Mock
}

func (m *MockJobRunner) Jobs() []scheduler.JobStatus {
	args := m.Called()
	return args.Get(0).([]scheduler.JobStatus)
}

func (m *MockJobRunner) RunJob(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

// MockRevoker mocks operator token revocation
type MockRevoker struct {
	mock.Mock
}

func (m *MockRevoker) Revoke(ctx context.Context, claims *auth.OperatorClaims) error {
	args := m.Called(ctx, claims)
	return args.Error(0)
}

var (
	_ SyncService       = (*MockService)(nil)
	_ AttendanceService = (*MockService)(nil)
	_ JobRunner         = (*MockJobRunner)(nil)
	_ TokenRevoker      = (*MockRevoker)(nil)
)

// newTestRouter returns an engine with request IDs and, when operator is
// set, an authenticated operator on every request.
func newTestRouter(operator string) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID())
	if operator != "" {
		r.Use(func(c *gin.Context) {
			c.Set(middleware.OperatorKey, operator)
			c.Next()
		})
	}
	return r
}

func performRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func performRequestWithToken(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set(middleware.AuthHeaderKey, middleware.BearerPrefix+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) dto.Response {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

// decodeData re-decodes the data field into out
func decodeData(t *testing.T, resp dto.Response, out any) {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, out))
}
