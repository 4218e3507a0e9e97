package scheduler

import "errors"

// Sentinel errors; compare with errors.Is. ErrJobLocked means another process
// or a previous tick still holds the job's run lock.
var (
	ErrSchedulerNotRunning = errors.New("scheduler: not running")
	ErrJobNotFound         = errors.New("scheduler: unknown job")
	ErrJobLocked           = errors.New("scheduler: job already running")
	ErrInvalidConfig       = errors.New("scheduler: invalid configuration")
)
