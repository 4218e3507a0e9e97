package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fakeLock struct {
	mu       sync.Mutex
	held     map[string]bool
	acquired []string
	err      error
}

func newFakeLock() *fakeLock {
	return &fakeLock{held: map[string]bool{}}
}

func (l *fakeLock) Acquire(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	l.acquired = append(l.acquired, key)
	return true, nil
}

func (l *fakeLock) Release(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, key)
	return nil
}

var testLoc = time.FixedZone("EAT", 3*60*60)

func newTestScheduler(t *testing.T, clock *fakeClock, lock RunLock, jobs ...Job) *SyncScheduler {
	t.Helper()
	s, err := New(Config{CheckInterval: 10 * time.Millisecond, Location: testLoc}, jobs, lock, zap.NewNop(), WithClock(clock.Now))
	require.NoError(t, err)
	return s
}

type counter struct {
	mu    sync.Mutex
	count int
}

func (c *counter) job(err error) func(context.Context) error {
	return func(context.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.count++
		return err
	}
}

func (c *counter) value() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestNew_Validation(t *testing.T) {
	noop := func(context.Context) error { return nil }

	_, err := New(DefaultConfig(), nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(DefaultConfig(), []Job{{Name: "a", Schedule: Daily(At(1, 0)), Run: noop}, {Name: "a", Schedule: Daily(At(2, 0)), Run: noop}}, newFakeLock(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(DefaultConfig(), []Job{{Name: "a", Schedule: Schedule{}, Run: noop}}, newFakeLock(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(DefaultConfig(), []Job{{Name: "", Schedule: Daily(At(1, 0)), Run: noop}}, newFakeLock(), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSyncScheduler_RunPending(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 5, 0, 0, 0, testLoc)}
	lock := newFakeLock()
	var morning, evening counter
	s := newTestScheduler(t, clock, lock,
		Job{Name: "morning", Schedule: Daily(At(6, 0)), Run: morning.job(nil)},
		Job{Name: "evening", Schedule: Daily(At(19, 30)), Run: evening.job(nil)},
	)

	t.Run("Nothing due before the first slot", func(t *testing.T) {
		assert.Equal(t, 0, s.RunPending(context.Background()))
	})

	t.Run("Due job runs once and is replanned", func(t *testing.T) {
		clock.Set(time.Date(2024, 3, 1, 6, 0, 30, 0, testLoc))
		assert.Equal(t, 1, s.RunPending(context.Background()))
		assert.Equal(t, 1, morning.value())
		assert.Equal(t, 0, s.RunPending(context.Background()))

		jobs := s.Jobs()
		require.Len(t, jobs, 2)
		assert.Equal(t, "evening", jobs[0].Name)
		assert.Equal(t, "morning", jobs[1].Name)
		assert.Equal(t, time.Date(2024, 3, 2, 6, 0, 0, 0, testLoc), jobs[1].NextRun)
		assert.Equal(t, 1, jobs[1].RunCount)
		require.NotNil(t, jobs[1].LastRun)
		assert.Equal(t, []string{LockKeyPrefix + "morning"}, lock.acquired)
	})

	t.Run("Missed slots run once, late", func(t *testing.T) {
		clock.Set(time.Date(2024, 3, 4, 9, 0, 0, 0, testLoc))
		assert.Equal(t, 2, s.RunPending(context.Background()))
		assert.Equal(t, 2, morning.value())
		assert.Equal(t, 1, evening.value())
		assert.Equal(t, 0, s.RunPending(context.Background()))
	})
}

func TestSyncScheduler_LockHeld(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 5, 0, 0, 0, testLoc)}
	lock := newFakeLock()
	lock.held[LockKeyPrefix+"morning"] = true
	var morning counter
	s := newTestScheduler(t, clock, lock, Job{Name: "morning", Schedule: Daily(At(6, 0)), Run: morning.job(nil)})

	err := s.RunJob(context.Background(), "morning")
	assert.ErrorIs(t, err, ErrJobLocked)
	assert.Equal(t, 0, morning.value())

	clock.Set(time.Date(2024, 3, 1, 6, 1, 0, 0, testLoc))
	s.RunPending(context.Background())
	assert.Equal(t, 0, morning.value())
	assert.Equal(t, time.Date(2024, 3, 2, 6, 0, 0, 0, testLoc), s.Jobs()[0].NextRun)
}

func TestSyncScheduler_RunJob(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 5, 0, 0, 0, testLoc)}
	lock := newFakeLock()
	boom := errors.New("boom")
	var failing counter
	s := newTestScheduler(t, clock, lock, Job{Name: "failing", Schedule: Daily(At(6, 0)), Run: failing.job(boom)})

	t.Run("Unknown job", func(t *testing.T) {
		assert.ErrorIs(t, s.RunJob(context.Background(), "nope"), ErrJobNotFound)
	})

	t.Run("Error is returned and recorded, next run untouched", func(t *testing.T) {
		err := s.RunJob(context.Background(), "failing")
		assert.ErrorIs(t, err, boom)

		status := s.Jobs()[0]
		assert.Equal(t, "boom", status.LastError)
		assert.Equal(t, 1, status.RunCount)
		assert.False(t, status.Running)
		assert.Equal(t, time.Date(2024, 3, 1, 6, 0, 0, 0, testLoc), status.NextRun)
		assert.Empty(t, lock.held)
	})

	t.Run("Lock errors prevent the run", func(t *testing.T) {
		lock.err = errors.New("redis down")
		defer func() { lock.err = nil }()

		assert.Error(t, s.RunJob(context.Background(), "failing"))
		assert.Equal(t, 1, failing.value())
	})
}

func TestSyncScheduler_PanicIsRecovered(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 5, 0, 0, 0, testLoc)}
	s := newTestScheduler(t, clock, newFakeLock(), Job{
		Name:     "panics",
		Schedule: Daily(At(6, 0)),
		Run:      func(context.Context) error { panic("bad") },
	})

	err := s.RunJob(context.Background(), "panics")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestSyncScheduler_StartStop(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 5, 59, 0, 0, testLoc)}
	ran := make(chan struct{}, 1)
	s := newTestScheduler(t, clock, newFakeLock(), Job{
		Name:     "morning",
		Schedule: Daily(At(6, 0)),
		Run: func(context.Context) error {
			select {
			case ran <- struct{}{}:
			default:
			}
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.Start(context.Background()))
	clock.Set(time.Date(2024, 3, 1, 6, 0, 0, 0, testLoc))

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.ErrorIs(t, s.Stop(ctx), ErrSchedulerNotRunning)
}
