package logger

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

const defaultSlowQuery = 200 * time.Millisecond

// GormLogger routes GORM output to zap. Statements carry the request and run
// correlation IDs so a sync run's queries can be grepped together.
type GormLogger struct {
	logger                    *zap.Logger
	logLevel                  gormlogger.LogLevel
	slowThreshold             time.Duration
	ignoreRecordNotFoundError bool
}

// GormLoggerOption configures a GormLogger
type GormLoggerOption func(*GormLogger)

// WithSlowThreshold sets the duration above which statements log at warn.
// Zero disables slow query reporting.
func WithSlowThreshold(threshold time.Duration) GormLoggerOption {
	return func(l *GormLogger) { l.slowThreshold = threshold }
}

// WithIgnoreRecordNotFoundError keeps lookups of missing rows out of the error log
func WithIgnoreRecordNotFoundError(ignore bool) GormLoggerOption {
	return func(l *GormLogger) { l.ignoreRecordNotFoundError = ignore }
}

func NewGormLogger(base *zap.Logger, level gormlogger.LogLevel, opts ...GormLoggerOption) *GormLogger {
	l := &GormLogger{
		logger:                    base.Named("db"),
		logLevel:                  level,
		slowThreshold:             defaultSlowQuery,
		ignoreRecordNotFoundError: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *GormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	clone := *l
	clone.logLevel = level
	return &clone
}

func (l *GormLogger) Info(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Info, zapcore.InfoLevel, msg, data)
}

func (l *GormLogger) Warn(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Warn, zapcore.WarnLevel, msg, data)
}

func (l *GormLogger) Error(ctx context.Context, msg string, data ...any) {
	l.printf(ctx, gormlogger.Error, zapcore.ErrorLevel, msg, data)
}

func (l *GormLogger) printf(ctx context.Context, min gormlogger.LogLevel, lvl zapcore.Level, msg string, data []any) {
	if l.logLevel < min {
		return
	}
	WithTraceContext(ctx, l.logger).Sugar().Logf(lvl, msg, data...)
}

// Trace logs one executed statement. Failures log at error, statements slower
// than the threshold at warn, and everything else at debug when GORM runs at
// Info.
func (l *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.logLevel <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	slow := l.slowThreshold > 0 && elapsed > l.slowThreshold

	var (
		lvl zapcore.Level
		msg string
	)
	switch {
	case err != nil:
		if l.logLevel < gormlogger.Error || (l.ignoreRecordNotFoundError && errors.Is(err, gormlogger.ErrRecordNotFound)) {
			return
		}
		lvl, msg = zapcore.ErrorLevel, "Query failed"
	case slow:
		if l.logLevel < gormlogger.Warn {
			return
		}
		lvl, msg = zapcore.WarnLevel, "Slow query"
	default:
		if l.logLevel < gormlogger.Info {
			return
		}
		lvl, msg = zapcore.DebugLevel, "Query"
	}

	stmt, rows := fc()
	fields := make([]zap.Field, 0, 7)
	fields = append(fields,
		zap.String("sql", stmt),
		zap.Int64("rows", rows),
		zap.Duration("elapsed", elapsed),
		zap.String("caller", utils.FileWithLineNum()),
	)
	if slow {
		fields = append(fields, zap.Duration("threshold", l.slowThreshold))
	}
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id := GetRunID(ctx); id != "" {
		fields = append(fields, zap.String("run_id", id))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	WithTraceContext(ctx, l.logger).Log(lvl, msg, fields...)
}

// MapGormLogLevel translates the application log level. Statements are only
// traced when the application runs at debug.
func MapGormLogLevel(level string) gormlogger.LogLevel {
	switch strings.ToLower(level) {
	case "silent":
		return gormlogger.Silent
	case "error":
		return gormlogger.Error
	case "debug":
		return gormlogger.Info
	default:
		return gormlogger.Warn
	}
}
