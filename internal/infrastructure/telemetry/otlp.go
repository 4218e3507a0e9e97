// Package telemetry wires OpenTelemetry traces, metrics and logs plus
// Pyroscope profiling into the sync service. Every provider is safe to use
// when disabled: it falls back to the global no-op implementation and its
// Shutdown does nothing.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.37.0"
	"go.uber.org/zap"
)

const (
	// DefaultServiceName is reported when no service name is configured
	DefaultServiceName = "attendance-sync"
	serviceVersion     = "1.0.0"

	shutdownTimeout = 10 * time.Second
)

func newResource(serviceName string) (*resource.Resource, error) {
	if serviceName == "" {
		serviceName = DefaultServiceName
	}
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(serviceVersion),
	))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}
	return res, nil
}

// lifecycle carries the flush and shutdown hooks of an SDK provider. The zero
// value belongs to a disabled provider.
type lifecycle struct {
	signal   string
	log      *zap.Logger
	flush    func(context.Context) error
	shutdown func(context.Context) error
}

func newLifecycle(signal string, log *zap.Logger) lifecycle {
	if log == nil {
		log = zap.NewNop()
	}
	return lifecycle{signal: signal, log: log}
}

func (l *lifecycle) started(flush, shutdown func(context.Context) error, fields ...zap.Field) {
	l.flush, l.shutdown = flush, shutdown
	l.log.Info("OTLP exporter started", append([]zap.Field{zap.String("signal", l.signal)}, fields...)...)
}

// ForceFlush exports everything still buffered
func (l *lifecycle) ForceFlush(ctx context.Context) error {
	if l.flush == nil {
		return nil
	}
	return l.flush(ctx)
}

// Shutdown flushes and stops the exporter, waiting at most ten seconds
func (l *lifecycle) Shutdown(ctx context.Context) error {
	if l.shutdown == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := l.shutdown(ctx); err != nil {
		l.log.Error("OTLP exporter shutdown failed", zap.String("signal", l.signal), zap.Error(err))
		return fmt.Errorf("shutdown %s provider: %w", l.signal, err)
	}
	l.log.Info("OTLP exporter stopped", zap.String("signal", l.signal))
	return nil
}

func (l *lifecycle) running() bool {
	return l.shutdown != nil
}
