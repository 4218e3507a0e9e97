package reconciliation

import (
	"context"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/domain/integration"
)

// Recorder receives operational measurements from the sync services
type Recorder interface {
	RecordOutcome(ctx context.Context, kind OutcomeKind)
	RecordPush(ctx context.Context, kind integration.PushKind)
	RecordDroppedPunches(ctx context.Context, n int)
	RecordIngestedFacts(ctx context.Context, n int)
	RecordRun(ctx context.Context, job string, duration time.Duration, batch int, err error)
}

// NopRecorder discards all measurements
type NopRecorder struct{}

func (NopRecorder) RecordOutcome(context.Context, OutcomeKind) {}
func (NopRecorder) RecordPush(context.Context, integration.PushKind) {}
func (NopRecorder) RecordDroppedPunches(context.Context, int) {}
func (NopRecorder) RecordIngestedFacts(context.Context, int) {}
func (NopRecorder) RecordRun(context.Context, string, time.Duration, int, error) {}

// PunchArchive keeps a copy of the raw punches of each fetch
type PunchArchive interface {
	Archive(ctx context.Context, runID string, window Window, punches []attendance.Punch) (string, error)
}

// NopArchive does not archive anything
type NopArchive struct{}

// Archive implements PunchArchive
func (NopArchive) Archive(context.Context, string, Window, []attendance.Punch) (string, error) {
	return "", nil
}
