package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/attendsync/backend/internal/application/reconciliation"
	"github.com/attendsync/backend/internal/domain/integration"
	"go.opentelemetry.io/otel/metric"
)

var _ reconciliation.Recorder = (*SyncMetrics)(nil)

// SyncMetrics records reconciliation measurements:
//
//	attendance_sync_outcomes_total{outcome}
//	attendance_erp_push_total{push_kind}
//	attendance_dropped_punches_total
//	attendance_ingested_facts_total
//	attendance_sync_runs_total{job,result}
//	attendance_sync_run_duration_seconds{job,result}
//	attendance_sync_run_batch_size{job}
type SyncMetrics struct {
	outcomes    *Counter
	pushes      *Counter
	dropped     *Counter
	ingested    *Counter
	runs        *Counter
	runDuration *Histogram
	runBatch    *Gauge
}

// NewSyncMetrics creates the sync instruments on meter.
func NewSyncMetrics(meter metric.Meter) (*SyncMetrics, error) {
	if meter == nil {
		return nil, errors.New("telemetry: meter is required")
	}

	var (
		m   SyncMetrics
		err error
	)
	if m.outcomes, err = NewCounter(meter, "attendance_sync_outcomes_total",
		"Reconciled attendance facts by final outcome", "{fact}"); err != nil {
		return nil, err
	}
	if m.pushes, err = NewCounter(meter, "attendance_erp_push_total",
		"ERP create attempts by classified result", "{request}"); err != nil {
		return nil, err
	}
	if m.dropped, err = NewCounter(meter, "attendance_dropped_punches_total",
		"Source punches dropped for missing employee code or time", "{punch}"); err != nil {
		return nil, err
	}
	if m.ingested, err = NewCounter(meter, "attendance_ingested_facts_total",
		"Attendance facts created or updated from source punches", "{fact}"); err != nil {
		return nil, err
	}
	if m.runs, err = NewCounter(meter, "attendance_sync_runs_total",
		"Sync runs by job and result", "{run}"); err != nil {
		return nil, err
	}
	if m.runDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "attendance_sync_run_duration_seconds",
		Description: "Sync run wall time",
		Unit:        "s",
		Boundaries:  RunDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.runBatch, err = NewGauge(meter, "attendance_sync_run_batch_size",
		"Items handled by the latest run of each job", "{item}"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordOutcome counts one reconciled fact.
func (m *SyncMetrics) RecordOutcome(ctx context.Context, kind reconciliation.OutcomeKind) {
	m.outcomes.Inc(ctx, AttrOutcome.String(kind.String()))
}

// RecordPush counts one classified create call.
func (m *SyncMetrics) RecordPush(ctx context.Context, kind integration.PushKind) {
	m.pushes.Inc(ctx, AttrPushKind.String(kind.String()))
}

// RecordDroppedPunches counts punches that could not be used.
func (m *SyncMetrics) RecordDroppedPunches(ctx context.Context, n int) {
	if n > 0 {
		m.dropped.Add(ctx, int64(n))
	}
}

// RecordIngestedFacts counts facts saved by an ingest.
func (m *SyncMetrics) RecordIngestedFacts(ctx context.Context, n int) {
	if n > 0 {
		m.ingested.Add(ctx, int64(n))
	}
}

// RecordRun records one finished run of job.
func (m *SyncMetrics) RecordRun(ctx context.Context, job string, duration time.Duration, batch int, err error) {
	result := "success"
	if err != nil {
		result = "error"
	}
	m.runs.Inc(ctx, AttrJob.String(job), AttrResult.String(result))
	m.runDuration.RecordDuration(ctx, duration, AttrJob.String(job), AttrResult.String(result))
	m.runBatch.Record(ctx, int64(batch), AttrJob.String(job))
}
