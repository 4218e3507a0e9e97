package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zaptest"
)

func newTestMeter(t *testing.T) (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	return reader, provider
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func findMetric(rm metricdata.ResourceMetrics, name string) (metricdata.Metrics, bool) {
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// int64Value sums the points of a counter or gauge whose attributes equal attrs
func int64Value(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) int64 {
	t.Helper()
	m, ok := findMetric(rm, name)
	require.True(t, ok, "metric %s not recorded", name)

	want := attribute.NewSet(attrs...)
	var points []metricdata.DataPoint[int64]
	switch data := m.Data.(type) {
	case metricdata.Sum[int64]:
		points = data.DataPoints
	case metricdata.Gauge[int64]:
		points = data.DataPoints
	default:
		t.Fatalf("metric %s has unexpected type %T", name, m.Data)
	}

	var total int64
	for _, dp := range points {
		if dp.Attributes.Equals(&want) {
			total += dp.Value
		}
	}
	return total
}

func histogramCount(t *testing.T, rm metricdata.ResourceMetrics, name string, attrs ...attribute.KeyValue) uint64 {
	t.Helper()
	m, ok := findMetric(rm, name)
	require.True(t, ok, "metric %s not recorded", name)
	h, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)

	want := attribute.NewSet(attrs...)
	var count uint64
	for _, dp := range h.DataPoints {
		if dp.Attributes.Equals(&want) {
			count += dp.Count
		}
	}
	return count
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	cfg := MetricsConfig{
		Enabled:           false,
		CollectorEndpoint: "localhost:14317",
		ExportInterval:    time.Minute,
		ServiceName:       "attendance-sync-test",
	}

	mp, err := NewMeterProvider(ctx, cfg, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, mp.IsEnabled())
	assert.NotNil(t, mp.Meter("test"))
	assert.NoError(t, mp.ForceFlush(ctx))
	assert.NoError(t, mp.Shutdown(ctx))
}

func TestNewMeterProvider_NilLogger(t *testing.T) {
	mp, err := NewMeterProvider(context.Background(), MetricsConfig{}, nil)
	require.NoError(t, err)
	assert.False(t, mp.IsEnabled())
}

func TestHelpers_RecordValues(t *testing.T) {
	reader, provider := newTestMeter(t)
	meter := provider.Meter("helpers")
	ctx := context.Background()

	counter, err := NewCounter(meter, "test_counter_total", "test counter", "{item}")
	require.NoError(t, err)
	counter.Inc(ctx, AttrJob.String("a"))
	counter.Add(ctx, 4, AttrJob.String("a"))
	counter.Inc(ctx, AttrJob.String("b"))

	histogram, err := NewHistogram(meter, HistogramOpts{
		Name:       "test_duration_seconds",
		Unit:       "s",
		Boundaries: RunDurationBuckets,
	})
	require.NoError(t, err)
	histogram.RecordDuration(ctx, 2*time.Second)
	histogram.Record(ctx, 0.2)

	gauge, err := NewGauge(meter, "test_gauge", "test gauge", "{item}")
	require.NoError(t, err)
	gauge.Record(ctx, 10)
	gauge.Record(ctx, 3)

	rm := collect(t, reader)
	assert.Equal(t, int64(5), int64Value(t, rm, "test_counter_total", AttrJob.String("a")))
	assert.Equal(t, int64(1), int64Value(t, rm, "test_counter_total", AttrJob.String("b")))
	assert.Equal(t, uint64(2), histogramCount(t, rm, "test_duration_seconds"))
	assert.Equal(t, int64(3), int64Value(t, rm, "test_gauge"))
}
