package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

// Context keys. Values are strings except LoggerKey.
const (
	LoggerKey    contextKey = "logger"
	RequestIDKey contextKey = "request_id"
	RunIDKey     contextKey = "run_id"
	OperatorKey  contextKey = "operator"
)

// WithContext stores l in ctx for FromContext
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, l)
}

// FromContext returns the logger stored by WithContext, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRequestID records the HTTP request ID and returns a logger tagged with it.
// The tagged logger is also stored in the returned context.
func WithRequestID(ctx context.Context, l *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return tag(ctx, l, RequestIDKey, requestID)
}

// WithRunID does the same for the ID of an ingestion or reconciliation run
func WithRunID(ctx context.Context, l *zap.Logger, runID string) (context.Context, *zap.Logger) {
	return tag(ctx, l, RunIDKey, runID)
}

func tag(ctx context.Context, l *zap.Logger, key contextKey, value string) (context.Context, *zap.Logger) {
	tagged := l.With(zap.String(string(key), value))
	ctx = context.WithValue(ctx, key, value)
	return WithContext(ctx, tagged), tagged
}

// WithOperator records the operator who triggered the work
func WithOperator(ctx context.Context, operator string) context.Context {
	return context.WithValue(ctx, OperatorKey, operator)
}

func GetRequestID(ctx context.Context) string { return stringValue(ctx, RequestIDKey) }

func GetRunID(ctx context.Context) string { return stringValue(ctx, RunIDKey) }

func GetOperator(ctx context.Context) string { return stringValue(ctx, OperatorKey) }

func stringValue(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// WithTraceContext adds trace_id and span_id when ctx carries a valid span.
// Without one l is returned unchanged.
func WithTraceContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With(
		zap.Stringer("trace_id", sc.TraceID()),
		zap.Stringer("span_id", sc.SpanID()),
	)
}
