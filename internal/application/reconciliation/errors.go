package reconciliation

import "errors"

var (
	// ErrRetriesExhausted is recorded when every transport attempt for a record failed
	ErrRetriesExhausted = errors.New("reconciliation: retries exhausted")
	// ErrRunAborted wraps the cause of a run that stopped before its batch was done
	ErrRunAborted = errors.New("reconciliation: run aborted")
	// ErrInvalidWindow is returned for an empty or inverted fetch window
	ErrInvalidWindow = errors.New("reconciliation: invalid fetch window")
)
