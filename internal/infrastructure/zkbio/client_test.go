package zkbio

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/attendsync/backend/internal/domain/integration"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeServer is a minimal biometric server
type fakeServer struct {
	t            *testing.T
	tokenCalls   atomic.Int32
	pageCalls    atomic.Int32
	issuedTokens atomic.Int32
	rejectFirst  atomic.Bool
	lastQuery    atomic.Value
	tokenStatus  int
	codeOnPage   int
	failOnPage   int
	pages        map[int][]map[string]any
}

func newFakeServer(t *testing.T) *fakeServer {
	return &fakeServer{t: t, tokenStatus: http.StatusOK, pages: map[int][]map[string]any{}}
}

func (s *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(tokenPath, func(w http.ResponseWriter, r *http.Request) {
		s.tokenCalls.Add(1)
		assert.Equal(s.t, http.MethodPost, r.Method)
		var req tokenRequest
		require.NoError(s.t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(s.t, "admin", req.Username)
		if s.tokenStatus != http.StatusOK {
			w.WriteHeader(s.tokenStatus)
			return
		}
		n := s.issuedTokens.Add(1)
		_ = json.NewEncoder(w).Encode(tokenResponse{Token: fmt.Sprintf("tok-%d", n)})
	})
	list := func(w http.ResponseWriter, r *http.Request) {
		s.pageCalls.Add(1)
		s.lastQuery.Store(r.URL.Query())
		if s.rejectFirst.CompareAndSwap(true, false) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Contains(s.t, r.Header.Get("Authorization"), "Token tok-")
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == s.failOnPage {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		code := 0
		if page == s.codeOnPage {
			code = 500
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"code": code, "msg": "", "data": s.pages[page]})
	}
	mux.HandleFunc(employeesPath, list)
	mux.HandleFunc(transactionsPath, list)
	return mux
}

func newTestClient(t *testing.T, srv *httptest.Server, opts ...Option) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:  srv.URL + "/",
		Username: "admin",
		Password: "secret",
	}, time.FixedZone("EAT", 3*60*60), zap.NewNop(), opts...)
	require.NoError(t, err)
	return c
}

func transactions(n, from int) []map[string]any {
	out := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, map[string]any{
			"id":         from + i,
			"emp_code":   "E100",
			"punch_time": "2024-01-15 08:00:00",
			"department": "DELIVERY",
			"area_alias": "THIKA BRANCH",
		})
	}
	return out
}

func TestConfig_Validate(t *testing.T) {
	cfg := Config{BaseURL: "http://zk/", Username: "u", Password: "p"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "http://zk", cfg.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 10, cfg.PageSizeThreshold)
	assert.Equal(t, 100, cfg.MaxPages)
	assert.Equal(t, time.Hour, cfg.TokenTTL)

	missing := Config{BaseURL: "http://zk"}
	assert.ErrorIs(t, missing.Validate(), integration.ErrSourceNotConfigured)
}

func TestClient_FetchEmployees(t *testing.T) {
	fs := newFakeServer(t)
	fs.pages[1] = []map[string]any{
		{"emp_code": "E100", "first_name": "Ada", "last_name": "Lovelace", "full_name": "Ada Lovelace",
			"department": map[string]any{"dept_name": "Engineering"},
			"area":       []map[string]any{{"area_name": "HQ"}, {"area_name": "Other"}}},
		{"emp_code": 205, "first_name": "Numeric"},
		{"emp_code": "", "first_name": "Skipped"},
	}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	employees, err := newTestClient(t, srv).FetchEmployees(context.Background())

	require.NoError(t, err)
	require.Len(t, employees, 2)
	assert.Equal(t, integration.SourceEmployee{
		Code: "E100", FirstName: "Ada", LastName: "Lovelace", FullName: "Ada Lovelace",
		Department: "Engineering", Area: "HQ",
	}, employees[0])
	assert.Equal(t, "205", employees[1].Code)
}

func TestClient_FetchTransactions_ParsesInLocation(t *testing.T) {
	fs := newFakeServer(t)
	fs.pages[1] = []map[string]any{
		{"id": 1, "emp_code": "E100", "punch_time": "2024-01-15 08:00:00", "department": "DELIVERY", "area_alias": "THIKA"},
		{"id": "2", "emp_code": "E100", "punch_time": "not a time"},
	}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	c := newTestClient(t, srv)
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, c.loc)
	punches, err := c.FetchTransactions(context.Background(), start, start.Add(24*time.Hour-time.Second))

	require.NoError(t, err)
	require.Len(t, punches, 2)
	assert.Equal(t, "1", punches[0].TransactionRef)
	assert.Equal(t, 8, punches[0].Timestamp.Hour())
	assert.Equal(t, c.loc, punches[0].Timestamp.Location())
	assert.Equal(t, "THIKA", punches[0].Area)
	assert.True(t, punches[1].Timestamp.IsZero())

	query := fs.lastQuery.Load().(url.Values)
	assert.Equal(t, "2024-01-15 00:00:00", query.Get("start_time"))
	assert.Equal(t, "2024-01-15 23:59:59", query.Get("end_time"))
}

func TestClient_Pagination(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(fs *fakeServer)
		wantCount int
		wantPages int32
	}{
		{
			name: "stops on a short page",
			setup: func(fs *fakeServer) {
				fs.pages[1] = transactions(10, 0)
				fs.pages[2] = transactions(3, 10)
			},
			wantCount: 13,
			wantPages: 2,
		},
		{
			name: "stops on an empty page",
			setup: func(fs *fakeServer) {
				fs.pages[1] = transactions(10, 0)
			},
			wantCount: 10,
			wantPages: 2,
		},
		{
			name: "keeps pages read before an API error code",
			setup: func(fs *fakeServer) {
				fs.pages[1] = transactions(10, 0)
				fs.pages[2] = transactions(10, 10)
				fs.codeOnPage = 2
			},
			wantCount: 10,
			wantPages: 2,
		},
		{
			name: "keeps pages read before an HTTP error",
			setup: func(fs *fakeServer) {
				fs.pages[1] = transactions(10, 0)
				fs.failOnPage = 2
			},
			wantCount: 10,
			wantPages: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeServer(t)
			tt.setup(fs)
			srv := httptest.NewServer(fs.handler())
			defer srv.Close()

			punches, err := newTestClient(t, srv).FetchTransactions(context.Background(), time.Now().Add(-time.Hour), time.Now())

			require.NoError(t, err)
			assert.Len(t, punches, tt.wantCount)
			assert.Equal(t, tt.wantPages, fs.pageCalls.Load())
		})
	}
}

func TestClient_MaxPages(t *testing.T) {
	fs := newFakeServer(t)
	for p := 1; p <= 5; p++ {
		fs.pages[p] = transactions(10, p*10)
	}
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, Username: "admin", Password: "x", MaxPages: 3}, nil, zap.NewNop())
	require.NoError(t, err)

	punches, err := c.FetchTransactions(context.Background(), time.Now(), time.Now())

	require.NoError(t, err)
	assert.Len(t, punches, 30)
	assert.Equal(t, int32(3), fs.pageCalls.Load())
}

func TestClient_TokenIsCachedAndRefreshedOn401(t *testing.T) {
	fs := newFakeServer(t)
	fs.pages[1] = transactions(2, 0)
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	_, err := c.FetchTransactions(ctx, time.Now(), time.Now())
	require.NoError(t, err)
	_, err = c.FetchTransactions(ctx, time.Now(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int32(1), fs.tokenCalls.Load(), "token is reused while valid")

	fs.rejectFirst.Store(true)
	punches, err := c.FetchTransactions(ctx, time.Now(), time.Now())
	require.NoError(t, err)
	assert.Len(t, punches, 2)
	assert.Equal(t, int32(2), fs.tokenCalls.Load(), "401 forces exactly one refresh")
}

func TestClient_TokenExpiry(t *testing.T) {
	fs := newFakeServer(t)
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	now := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	c := newTestClient(t, srv, WithClock(func() time.Time { return now }))
	ctx := context.Background()

	_, err := c.FetchEmployees(ctx)
	require.NoError(t, err)
	now = now.Add(59 * time.Minute)
	_, err = c.FetchEmployees(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(1), fs.tokenCalls.Load())

	now = now.Add(2 * time.Minute)
	_, err = c.FetchEmployees(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(2), fs.tokenCalls.Load())
}

func TestClient_AuthFailure(t *testing.T) {
	fs := newFakeServer(t)
	fs.tokenStatus = http.StatusBadRequest
	srv := httptest.NewServer(fs.handler())
	defer srv.Close()

	_, err := newTestClient(t, srv).FetchEmployees(context.Background())

	assert.ErrorIs(t, err, integration.ErrSourceAuthFailed)
	assert.Equal(t, int32(0), fs.pageCalls.Load())
}

func TestFlexString(t *testing.T) {
	var rec transactionRecord
	require.NoError(t, json.Unmarshal([]byte(`{"id": 12345, "emp_code": " E7 "}`), &rec))
	assert.Equal(t, flexString("12345"), rec.ID)
	assert.Equal(t, flexString("E7"), rec.EmpCode)

	require.NoError(t, json.Unmarshal([]byte(`{"id": null}`), &rec))
	assert.Equal(t, flexString(""), rec.ID)
}
