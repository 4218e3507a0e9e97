package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/attendsync/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// LockKeyPrefix prefixes the run lock of every job
const LockKeyPrefix = "attendance-sync:job:"

// RunLock guards a job against overlapping runs, possibly across processes
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Config holds scheduler settings
type Config struct {
	// CheckInterval is how often due jobs are looked for
	CheckInterval time.Duration
	// LockTTL bounds how long a crashed run can keep its lock
	LockTTL time.Duration
	// Location is the time zone schedules are expressed in
	Location *time.Location
}

// DefaultConfig returns a 30 second check interval and a 30 minute lock TTL
func DefaultConfig() Config {
	return Config{
		CheckInterval: 30 * time.Second,
		LockTTL:       30 * time.Minute,
		Location:      time.Local,
	}
}

// Job is a named unit of work run on a schedule
type Job struct {
	Name     string
	Schedule Schedule
	Run      func(ctx context.Context) error
}

// JobStatus is a snapshot of one job
type JobStatus struct {
	Name         string        `json:"name"`
	Schedule     string        `json:"schedule"`
	NextRun      time.Time     `json:"next_run"`
	LastRun      *time.Time    `json:"last_run,omitempty"`
	LastDuration time.Duration `json:"last_duration"`
	LastError    string        `json:"last_error,omitempty"`
	RunCount     int           `json:"run_count"`
	Running      bool          `json:"running"`
}

type jobState struct {
	job    Job
	status JobStatus
}

// SyncScheduler runs jobs at wall clock times. Due jobs are run one after the
// other on the scheduler goroutine; a slot missed while another job ran is
// run once, late.
type SyncScheduler struct {
	cfg    Config
	lock   RunLock
	logger *zap.Logger
	now    func() time.Time

	jobs   []*jobState
	byName map[string]*jobState

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// Option configures a SyncScheduler
type Option func(*SyncScheduler)

// WithClock injects the time source
func WithClock(now func() time.Time) Option {
	return func(s *SyncScheduler) {
		s.now = now
	}
}

// New creates a scheduler for jobs. Job names must be unique.
func New(cfg Config, jobs []Job, lock RunLock, logger *zap.Logger, opts ...Option) (*SyncScheduler, error) {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = DefaultConfig().CheckInterval
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultConfig().LockTTL
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if lock == nil {
		return nil, fmt.Errorf("%w: run lock is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &SyncScheduler{
		cfg:    cfg,
		lock:   lock,
		logger: logger.Named("scheduler"),
		now:    time.Now,
		byName: make(map[string]*jobState, len(jobs)),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, job := range jobs {
		if job.Name == "" || job.Run == nil {
			return nil, fmt.Errorf("%w: job needs a name and a run func", ErrInvalidConfig)
		}
		if _, dup := s.byName[job.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate job %q", ErrInvalidConfig, job.Name)
		}
		if err := job.Schedule.Validate(); err != nil {
			return nil, fmt.Errorf("job %q: %w", job.Name, err)
		}
		st := &jobState{job: job, status: JobStatus{Name: job.Name, Schedule: job.Schedule.String()}}
		s.jobs = append(s.jobs, st)
		s.byName[job.Name] = st
	}
	s.planAll()
	return s, nil
}

// Start starts the check loop
func (s *SyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	s.planAll()
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.runLoop(ctx)

	s.logger.Info("Scheduler started",
		zap.Int("jobs", len(s.jobs)),
		zap.Duration("check_interval", s.cfg.CheckInterval),
		zap.String("location", s.cfg.Location.String()),
	)
	return nil
}

// Stop stops the loop and waits for a running job to return or ctx to expire
func (s *SyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *SyncScheduler) runLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunPending(ctx)
		}
	}
}

// RunPending runs every job whose next run is due and returns how many ran
func (s *SyncScheduler) RunPending(ctx context.Context) int {
	ran := 0
	for _, st := range s.dueJobs() {
		if ctx.Err() != nil {
			break
		}
		_ = s.execute(ctx, st)
		s.mu.Lock()
		st.status.NextRun = st.job.Schedule.Next(s.localNow())
		s.mu.Unlock()
		ran++
	}
	return ran
}

// RunJob runs the named job now without moving its next scheduled run
func (s *SyncScheduler) RunJob(ctx context.Context, name string) error {
	st, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, st)
}

// Jobs returns a snapshot of every job ordered by next run
func (s *SyncScheduler) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]JobStatus, 0, len(s.jobs))
	for _, st := range s.jobs {
		status := st.status
		if st.status.LastRun != nil {
			last := *st.status.LastRun
			status.LastRun = &last
		}
		out = append(out, status)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NextRun.Before(out[j].NextRun) })
	return out
}

func (s *SyncScheduler) dueJobs() []*jobState {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.localNow()
	due := make([]*jobState, 0)
	for _, st := range s.jobs {
		if !st.status.NextRun.IsZero() && !st.status.NextRun.After(now) {
			due = append(due, st)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].status.NextRun.Before(due[j].status.NextRun) })
	return due
}

func (s *SyncScheduler) planAll() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.localNow()
	for _, st := range s.jobs {
		st.status.NextRun = st.job.Schedule.Next(now)
	}
}

func (s *SyncScheduler) localNow() time.Time {
	return s.now().In(s.cfg.Location)
}

// execute runs one job under its run lock
func (s *SyncScheduler) execute(ctx context.Context, st *jobState) error {
	name := st.job.Name
	log := s.logger.With(zap.String("job", name))
	key := LockKeyPrefix + name

	acquired, err := s.lock.Acquire(ctx, key, s.cfg.LockTTL)
	if err != nil {
		log.Error("Failed to acquire job lock", zap.Error(err))
		s.finish(st, time.Time{}, err)
		return fmt.Errorf("acquire lock for %s: %w", name, err)
	}
	if !acquired {
		log.Warn("Job skipped, a previous run still holds its lock")
		return fmt.Errorf("%w: %s", ErrJobLocked, name)
	}
	defer func() {
		if err := s.lock.Release(context.WithoutCancel(ctx), key); err != nil {
			log.Warn("Failed to release job lock", zap.Error(err))
		}
	}()

	started := s.now()
	s.mu.Lock()
	st.status.Running = true
	s.mu.Unlock()

	log.Info("Job started")
	ctx, span := telemetry.StartSpan(ctx, "scheduler."+name, telemetry.WithAttributes(telemetry.AttrJob.String(name)))
	telemetry.WithProfilingLabels(ctx, map[string]string{telemetry.ProfilingLabelJob: name}, func(ctx context.Context) {
		err = s.safeRun(ctx, st.job)
	})
	telemetry.EndSpan(span, err)
	s.finish(st, started, err)

	if err != nil {
		log.Error("Job failed", zap.Duration("duration", s.now().Sub(started)), zap.Error(err))
		return err
	}
	log.Info("Job completed", zap.Duration("duration", s.now().Sub(started)))
	return nil
}

func (s *SyncScheduler) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job %s panicked: %v", job.Name, r)
		}
	}()
	return job.Run(ctx)
}

func (s *SyncScheduler) finish(st *jobState, started time.Time, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st.status.Running = false
	if !started.IsZero() {
		at := started
		st.status.LastRun = &at
		st.status.LastDuration = s.now().Sub(started)
		st.status.RunCount++
	}
	st.status.LastError = ""
	if err != nil && !errors.Is(err, context.Canceled) {
		st.status.LastError = err.Error()
	}
}
