// Package logger builds the zap loggers used across the service and adapts
// them to gorm, gin and request or run scoped contexts.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects level, encoding and destination
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, or file path
	TimeFormat string
}

const defaultTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// DefaultConfig logs info and above to stdout in console format
func DefaultConfig() *Config {
	return &Config{
		Level:      "info",
		Format:     "console",
		Output:     "stdout",
		TimeFormat: defaultTimeFormat,
	}
}

// Option customizes the logger built by New
type Option func(*build)

type build struct {
	tees   []zapcore.Core
	fields []zap.Field
}

// WithCore tees entries into another core, such as the OTLP log bridge
func WithCore(core zapcore.Core) Option {
	return func(b *build) {
		if core != nil {
			b.tees = append(b.tees, core)
		}
	}
}

// WithFields attaches fields to every entry
func WithFields(fields ...zap.Field) Option {
	return func(b *build) { b.fields = append(b.fields, fields...) }
}

// New builds a logger from cfg; nil means DefaultConfig. Errors and above
// carry a stack trace.
func New(cfg *Config, opts ...Option) (*zap.Logger, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	var b build
	for _, opt := range opts {
		opt(&b)
	}

	out, err := sink(cfg.Output)
	if err != nil {
		return nil, err
	}
	var core zapcore.Core = zapcore.NewCore(createEncoder(cfg), out, ParseLevel(cfg.Level))
	if len(b.tees) > 0 {
		core = zapcore.NewTee(append([]zapcore.Core{core}, b.tees...)...)
	}

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).With(b.fields...), nil
}

// ParseLevel maps a configured level name to zap; unknown names mean info
func ParseLevel(level string) zapcore.Level {
	name := strings.ToLower(strings.TrimSpace(level))
	if name == "warning" {
		name = "warn"
	}
	lvl, err := zapcore.ParseLevel(name)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func createEncoder(cfg *Config) zapcore.Encoder {
	layout := cfg.TimeFormat
	if layout == "" {
		layout = defaultTimeFormat
	}

	ec := zap.NewProductionEncoderConfig()
	ec.TimeKey = "time"
	ec.EncodeTime = zapcore.TimeEncoderOfLayout(layout)
	ec.EncodeDuration = zapcore.MillisDurationEncoder

	if strings.EqualFold(cfg.Format, "console") {
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}

func sink(output string) (zapcore.WriteSyncer, error) {
	switch strings.ToLower(output) {
	case "", "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}
	f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return zapcore.AddSync(f), nil
}

// Sync flushes buffered entries. The error is dropped: syncing a terminal
// fails with EINVAL on some platforms.
func Sync(logger *zap.Logger) {
	_ = logger.Sync()
}
