package reconciliation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/integration"
	"github.com/attendsync/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockLedger is a mock implementation of integration.AttendanceLedger
type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) CreateAttendance(ctx context.Context, payload integration.AttendancePayload) integration.PushResult {
	args := m.Called(ctx, payload)
	return args.Get(0).(integration.PushResult)
}

func (m *MockLedger) FindAttendance(ctx context.Context, employee string, date time.Time) (string, error) {
	args := m.Called(ctx, employee, date)
	return args.String(0), args.Error(1)
}

func (m *MockLedger) FindEmployee(ctx context.Context, code string) (string, error) {
	args := m.Called(ctx, code)
	return args.String(0), args.Error(1)
}

// MockSource is a mock implementation of integration.PunchSource
type MockSource struct {
	mock.Mock
}

func (m *MockSource) FetchEmployees(ctx context.Context) ([]integration.SourceEmployee, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SourceEmployee), args.Error(1)
}

func (m *MockSource) FetchTransactions(ctx context.Context, start, end time.Time) ([]attendance.Punch, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]attendance.Punch), args.Error(1)
}

// memFacts is an in-memory attendance repository
type memFacts struct {
	mu    sync.Mutex
	items map[uuid.UUID]attendance.AttendanceFact
}

func newMemFacts() *memFacts {
	return &memFacts{items: make(map[uuid.UUID]attendance.AttendanceFact)}
}

func (r *memFacts) put(f *attendance.AttendanceFact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[f.ID] = *f
}

func (r *memFacts) get(id uuid.UUID) attendance.AttendanceFact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.items[id]
}

func (r *memFacts) UpsertPunches(_ context.Context, fact *attendance.AttendanceFact) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, existing := range r.items {
		if existing.EmployeeID == fact.EmployeeID && existing.Date.Equal(fact.Date) {
			existing.InTime = fact.InTime
			existing.OutTime = fact.OutTime
			existing.SourceTransactionRef = fact.SourceTransactionRef
			existing.RawPunches = fact.RawPunches
			existing.Department = fact.Department
			existing.Area = fact.Area
			r.items[id] = existing
			return nil
		}
	}
	r.items[fact.ID] = *fact
	return nil
}

func (r *memFacts) FindByID(_ context.Context, id uuid.UUID) (*attendance.AttendanceFact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.items[id]
	if !ok {
		return nil, attendance.ErrFactNotFound
	}
	return &f, nil
}

func (r *memFacts) FindByEmployeeAndDate(_ context.Context, employeeID uuid.UUID, date time.Time) (*attendance.AttendanceFact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range r.items {
		if f.EmployeeID == employeeID && f.Date.Equal(date) {
			return &f, nil
		}
	}
	return nil, attendance.ErrFactNotFound
}

func (r *memFacts) SelectForSync(_ context.Context, filter attendance.SelectionFilter) ([]attendance.AttendanceFact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]attendance.AttendanceFact, 0)
	for _, f := range r.items {
		f := f
		if filter.Matches(&f) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SyncAttempts != out[j].SyncAttempts {
			return out[i].SyncAttempts < out[j].SyncAttempts
		}
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].EmployeeCode < out[j].EmployeeCode
	})
	if len(out) > filter.MaxRecords {
		out = out[:filter.MaxRecords]
	}
	return out, nil
}

func (r *memFacts) Transition(_ context.Context, id uuid.UUID, fn func(*attendance.AttendanceFact) error) (*attendance.AttendanceFact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.items[id]
	if !ok {
		return nil, attendance.ErrFactNotFound
	}
	if err := fn(&f); err != nil {
		return nil, err
	}
	r.items[id] = f
	return &f, nil
}

func (r *memFacts) List(_ context.Context, _ attendance.ListFilter, _ shared.Page) ([]attendance.AttendanceFact, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]attendance.AttendanceFact, 0, len(r.items))
	for _, f := range r.items {
		out = append(out, f)
	}
	return out, int64(len(out)), nil
}

func (r *memFacts) CountByStatus(_ context.Context, from, _ *time.Time) (map[attendance.SyncStatus]int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := make(map[attendance.SyncStatus]int64)
	for _, f := range r.items {
		if from != nil && f.Date.Before(*from) {
			continue
		}
		counts[f.Status]++
	}
	return counts, nil
}

// memEmployees is an in-memory employee repository
type memEmployees struct {
	mu    sync.Mutex
	items map[string]attendance.Employee
}

func newMemEmployees(codes ...string) *memEmployees {
	r := &memEmployees{items: make(map[string]attendance.Employee)}
	for _, c := range codes {
		e, _ := attendance.NewEmployee(c, "First", "Last")
		r.items[c] = *e
	}
	return r
}

func (r *memEmployees) Upsert(_ context.Context, e *attendance.Employee) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[e.Code] = *e
	return nil
}

func (r *memEmployees) FindByCode(_ context.Context, code string) (*attendance.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[code]
	if !ok {
		return nil, attendance.ErrEmployeeNotFound
	}
	return &e, nil
}

func (r *memEmployees) FindByID(_ context.Context, id uuid.UUID) (*attendance.Employee, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.items {
		if e.ID == id {
			return &e, nil
		}
	}
	return nil, attendance.ErrEmployeeNotFound
}

func (r *memEmployees) List(_ context.Context, _ shared.Page) ([]attendance.Employee, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]attendance.Employee, 0, len(r.items))
	for _, e := range r.items {
		out = append(out, e)
	}
	return out, int64(len(out)), nil
}

func (r *memEmployees) Count(_ context.Context, activeOnly bool) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, e := range r.items {
		if !activeOnly || e.IsActive {
			n++
		}
	}
	return n, nil
}

// memLogs is an in-memory sync log repository
type memLogs struct {
	mu      sync.Mutex
	entries []attendance.SyncLogEntry
}

func (r *memLogs) Append(_ context.Context, e *attendance.SyncLogEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *e)
	return nil
}

func (r *memLogs) LatestSuccess(_ context.Context, category attendance.LogCategory, outcomes ...attendance.LogOutcome) (*time.Time, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *time.Time
	for _, e := range r.entries {
		if e.Category != category {
			continue
		}
		for _, o := range outcomes {
			if e.Outcome == o && (latest == nil || e.CreatedAt.After(*latest)) {
				t := e.CreatedAt
				latest = &t
			}
		}
	}
	return latest, nil
}

func (r *memLogs) Recent(_ context.Context, category attendance.LogCategory, limit int) ([]attendance.SyncLogEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]attendance.SyncLogEntry, 0)
	for i := len(r.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if category == "" || r.entries[i].Category == category {
			out = append(out, r.entries[i])
		}
	}
	return out, nil
}

func (r *memLogs) byOutcome(outcome attendance.LogOutcome) []attendance.SyncLogEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]attendance.SyncLogEntry, 0)
	for _, e := range r.entries {
		if e.Outcome == outcome && e.Details["attendance_id"] != nil {
			out = append(out, e)
		}
	}
	return out
}

// noSleep records backoff waits instead of sleeping
type noSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *noSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func pendingFact(code string, punches ...attendance.Punch) *attendance.AttendanceFact {
	for i := range punches {
		punches[i].EmployeeCode = code
	}
	agg := attendance.Aggregate(punches)
	f, err := attendance.NewAttendanceFact(uuid.New(), agg.Groups[0])
	if err != nil {
		panic(err)
	}
	return f
}

func punchAt(value, ref string) attendance.Punch {
	ts, err := time.ParseInLocation(attendance.DateTimeLayout, value, time.UTC)
	if err != nil {
		panic(err)
	}
	return attendance.Punch{Timestamp: ts, TransactionRef: ref}
}
