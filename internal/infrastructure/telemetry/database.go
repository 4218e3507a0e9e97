package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBConfig controls database instrumentation.
type DBConfig struct {
	TraceEnabled       bool          // register otelgorm spans
	MetricsEnabled     bool          // record query and pool metrics
	LogFullSQL         bool          // keep query variables in spans; development only
	SlowQueryThreshold time.Duration // default 200ms
	DBSystem           string        // default "postgresql"
}

// DefaultDBConfig returns metrics on, tracing off and a 200ms slow query threshold.
func DefaultDBConfig() DBConfig {
	return DBConfig{
		MetricsEnabled:     true,
		SlowQueryThreshold: 200 * time.Millisecond,
		DBSystem:           "postgresql",
	}
}

// DBInstrumentation annotates GORM operations with spans, span attributes
// and metrics. Close unregisters the pool callback.
type DBInstrumentation struct {
	cfg    DBConfig
	logger *zap.Logger

	queryTotal    *Counter
	queryDuration *Histogram
	slowQueries   *Counter
	poolReg       metric.Registration
}

type dbContextKey struct{}

// gormRegister is the part of GORM's unexported callback type we need.
type gormRegister interface {
	Register(name string, fn func(*gorm.DB)) error
}

// InstrumentDB registers tracing and metrics callbacks on db. meter may be
// nil when metrics are not wanted.
func InstrumentDB(db *gorm.DB, meter metric.Meter, cfg DBConfig, logger *zap.Logger) (*DBInstrumentation, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultDBConfig()
	if cfg.SlowQueryThreshold <= 0 {
		cfg.SlowQueryThreshold = defaults.SlowQueryThreshold
	}
	if cfg.DBSystem == "" {
		cfg.DBSystem = defaults.DBSystem
	}
	d := &DBInstrumentation{cfg: cfg, logger: logger}

	if cfg.TraceEnabled {
		opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
		if !cfg.LogFullSQL {
			opts = append(opts, otelgorm.WithoutQueryVariables())
		}
		if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
			return nil, fmt.Errorf("register otelgorm: %w", err)
		}
	}

	if cfg.MetricsEnabled && meter != nil {
		if err := d.initMetrics(db, meter); err != nil {
			return nil, err
		}
	}

	if err := d.registerCallbacks(db); err != nil {
		return nil, fmt.Errorf("register db telemetry callbacks: %w", err)
	}

	logger.Info("Database instrumentation enabled",
		zap.Bool("tracing", cfg.TraceEnabled),
		zap.Bool("metrics", d.queryTotal != nil),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return d, nil
}

func (d *DBInstrumentation) initMetrics(db *gorm.DB, meter metric.Meter) error {
	var err error
	if d.queryTotal, err = NewCounter(meter, "db_query_total",
		"Database queries by operation", "{query}"); err != nil {
		return err
	}
	if d.queryDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "db_query_duration_seconds",
		Description: "Database query latency",
		Unit:        "s",
		Boundaries:  DBDurationBuckets,
	}); err != nil {
		return err
	}
	if d.slowQueries, err = NewCounter(meter, "db_slow_query_total",
		"Database queries slower than the configured threshold", "{query}"); err != nil {
		return err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql.DB: %w", err)
	}
	pool, err := meter.Int64ObservableGauge("db_pool_connections",
		metric.WithDescription("Connections in the pool by state"),
		metric.WithUnit("{connection}"),
	)
	if err != nil {
		return fmt.Errorf("failed to create gauge db_pool_connections: %w", err)
	}
	d.poolReg, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(pool, int64(stats.Idle), metric.WithAttributes(AttrDBState.String("idle")))
		o.ObserveInt64(pool, int64(stats.InUse), metric.WithAttributes(AttrDBState.String("in_use")))
		o.ObserveInt64(pool, int64(stats.OpenConnections), metric.WithAttributes(AttrDBState.String("open")))
		return nil
	}, pool)
	if err != nil {
		return fmt.Errorf("register pool callback: %w", err)
	}
	return nil
}

func (d *DBInstrumentation) registerCallbacks(db *gorm.DB) error {
	cb := db.Callback()
	hooks := []struct {
		reg  gormRegister
		name string
		fn   func(*gorm.DB)
	}{
		{cb.Create().Before("gorm:create"), "before_create", d.before},
		{cb.Create().After("gorm:create"), "after_create", d.after("INSERT")},
		{cb.Query().Before("gorm:query"), "before_query", d.before},
		{cb.Query().After("gorm:query"), "after_query", d.after("SELECT")},
		{cb.Update().Before("gorm:update"), "before_update", d.before},
		{cb.Update().After("gorm:update"), "after_update", d.after("UPDATE")},
		{cb.Delete().Before("gorm:delete"), "before_delete", d.before},
		{cb.Delete().After("gorm:delete"), "after_delete", d.after("DELETE")},
		{cb.Row().Before("gorm:row"), "before_row", d.before},
		{cb.Row().After("gorm:row"), "after_row", d.after("")},
		{cb.Raw().Before("gorm:raw"), "before_raw", d.before},
		{cb.Raw().After("gorm:raw"), "after_raw", d.after("")},
	}
	for _, h := range hooks {
		if err := h.reg.Register("db_telemetry:"+h.name, h.fn); err != nil {
			return err
		}
	}
	return nil
}

func (d *DBInstrumentation) before(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		ctx = context.Background()
	}
	db.Statement.Context = context.WithValue(ctx, dbContextKey{}, time.Now())
}

// after returns the callback for op; an empty op is read from the SQL text
func (d *DBInstrumentation) after(op string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		ctx := db.Statement.Context
		if ctx == nil {
			return
		}
		operation := op
		if operation == "" {
			operation = detectOperation(db.Statement.SQL.String())
		}

		var elapsed time.Duration
		if started, ok := ctx.Value(dbContextKey{}).(time.Time); ok {
			elapsed = time.Since(started)
		}
		slow := elapsed > d.cfg.SlowQueryThreshold
		table := db.Statement.Table
		if table == "" {
			table = "unknown"
		}

		d.annotateSpan(trace.SpanFromContext(ctx), db, table, elapsed, slow)

		if d.queryTotal != nil {
			d.queryTotal.Inc(ctx, AttrDBOperation.String(operation))
			d.queryDuration.RecordDuration(ctx, elapsed, AttrDBOperation.String(operation))
			if slow {
				d.slowQueries.Inc(ctx, AttrDBTable.String(table))
			}
		}
	}
}

func (d *DBInstrumentation) annotateSpan(span trace.Span, db *gorm.DB, table string, elapsed time.Duration, slow bool) {
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.Int64("db.rows_affected", db.Statement.RowsAffected),
		attribute.String("db.sql.table", table),
	)
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
		span.SetStatus(codes.Error, db.Error.Error())
	}
	if slow {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("threshold_ms", d.cfg.SlowQueryThreshold.Milliseconds()),
		))
	}
}

// Close stops pool observation.
func (d *DBInstrumentation) Close() error {
	if d == nil || d.poolReg == nil {
		return nil
	}
	return d.poolReg.Unregister()
}

func detectOperation(sql string) string {
	sql = strings.ToUpper(strings.TrimSpace(sql))
	for _, op := range []string{"SELECT", "INSERT", "UPDATE", "DELETE"} {
		if strings.HasPrefix(sql, op) {
			return op
		}
	}
	return "OTHER"
}
