package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/log/global"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogsConfig holds configuration of the zap to OTLP log bridge
type LogsConfig struct {
	Enabled           bool
	CollectorEndpoint string
	ServiceName       string
	Insecure          bool
}

// LoggerProvider ships zap entries to the collector as OTLP log records
type LoggerProvider struct {
	lifecycle
	provider *sdklog.LoggerProvider
	scope    string
}

func NewLoggerProvider(ctx context.Context, cfg LogsConfig, log *zap.Logger) (*LoggerProvider, error) {
	lp := &LoggerProvider{lifecycle: newLifecycle("logs", log), scope: cfg.ServiceName}
	if lp.scope == "" {
		lp.scope = DefaultServiceName
	}
	if !cfg.Enabled {
		return lp, nil
	}

	opts := []otlploggrpc.Option{otlploggrpc.WithEndpoint(cfg.CollectorEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlploggrpc.WithInsecure())
	}
	exporter, err := otlploggrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create log exporter: %w", err)
	}
	res, err := newResource(cfg.ServiceName)
	if err != nil {
		return nil, err
	}

	lp.provider = sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	)
	global.SetLoggerProvider(lp.provider)
	lp.started(lp.provider.ForceFlush, lp.provider.Shutdown, zap.String("endpoint", cfg.CollectorEndpoint))
	return lp, nil
}

func (lp *LoggerProvider) IsEnabled() bool {
	return lp != nil && lp.running()
}

// Core returns a zap core forwarding entries at or above minLevel. Tee it
// with the console core through logger.WithCore. A disabled provider yields a
// no-op core.
func (lp *LoggerProvider) Core(minLevel zapcore.Level) zapcore.Core {
	if !lp.IsEnabled() {
		return zapcore.NewNopCore()
	}
	return &levelFilterCore{
		Core:     otelzap.NewCore(lp.scope, otelzap.WithLoggerProvider(lp.provider)),
		minLevel: minLevel,
	}
}

// levelFilterCore puts a floor under a core that accepts every level
type levelFilterCore struct {
	zapcore.Core
	minLevel zapcore.Level
}

func (c *levelFilterCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.minLevel && c.Core.Enabled(lvl)
}

func (c *levelFilterCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if e.Level < c.minLevel {
		return ce
	}
	return c.Core.Check(e, ce)
}

func (c *levelFilterCore) With(fields []zapcore.Field) zapcore.Core {
	return &levelFilterCore{Core: c.Core.With(fields), minLevel: c.minLevel}
}
