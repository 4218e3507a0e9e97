package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"

	otelpyroscope "github.com/grafana/otel-profiling-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Config holds tracing configuration
type Config struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
}

// TracerProvider exports spans over OTLP gRPC
type TracerProvider struct {
	lifecycle
	provider     *sdktrace.TracerProvider
	spanProfiles atomic.Bool
}

// NewTracerProvider installs an exporting provider and the W3C propagators
// globally. When disabled the global no-op provider stays in place.
func NewTracerProvider(ctx context.Context, cfg Config, log *zap.Logger) (*TracerProvider, error) {
	tp := &TracerProvider{lifecycle: newLifecycle("traces", log)}
	if !cfg.Enabled {
		return tp, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	tp.provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SamplingRatio)),
	)
	otel.SetTracerProvider(tp.provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	tp.started(tp.provider.ForceFlush, tp.provider.Shutdown,
		zap.String("endpoint", cfg.CollectorEndpoint),
		zap.Float64("sampling_ratio", cfg.SamplingRatio),
	)
	return tp, nil
}

// samplerFor honours the parent's decision and samples root spans by ratio
func samplerFor(ratio float64) sdktrace.Sampler {
	root := sdktrace.TraceIDRatioBased(ratio)
	switch {
	case ratio >= 1:
		root = sdktrace.AlwaysSample()
	case ratio <= 0:
		root = sdktrace.NeverSample()
	}
	return sdktrace.ParentBased(root)
}

// EnableSpanProfiles wraps the global provider with otelpyroscope so CPU
// profiles carry span IDs. Call it once the profiler runs.
func (tp *TracerProvider) EnableSpanProfiles() error {
	if tp.provider == nil || !tp.spanProfiles.CompareAndSwap(false, true) {
		return nil
	}
	otel.SetTracerProvider(otelpyroscope.NewTracerProvider(tp.provider))
	tp.log.Info("Span profiles enabled")
	return nil
}

func (tp *TracerProvider) IsSpanProfilesEnabled() bool {
	return tp.spanProfiles.Load()
}

// Tracer returns a tracer from this provider, or from the global one when
// tracing is disabled
func (tp *TracerProvider) Tracer(name string, opts ...trace.TracerOption) trace.Tracer {
	if tp.provider == nil {
		return otel.Tracer(name, opts...)
	}
	return tp.provider.Tracer(name, opts...)
}

func (tp *TracerProvider) IsEnabled() bool {
	return tp.running()
}
