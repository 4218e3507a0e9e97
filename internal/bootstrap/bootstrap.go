// Package bootstrap wires configuration, telemetry, storage and the upstream
// clients into a reconciliation.Service. The server and the operator CLI
// share it.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/attendsync/backend/internal/application/reconciliation"
	"github.com/attendsync/backend/internal/domain/integration"
	"github.com/attendsync/backend/internal/infrastructure/auth"
	"github.com/attendsync/backend/internal/infrastructure/config"
	"github.com/attendsync/backend/internal/infrastructure/erpnext"
	"github.com/attendsync/backend/internal/infrastructure/logger"
	"github.com/attendsync/backend/internal/infrastructure/migration"
	"github.com/attendsync/backend/internal/infrastructure/persistence"
	"github.com/attendsync/backend/internal/infrastructure/storage"
	"github.com/attendsync/backend/internal/infrastructure/telemetry"
	"github.com/attendsync/backend/internal/infrastructure/zkbio"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// MeterName is the instrumentation scope of the sync metrics
const MeterName = "attendance-sync"

// Runtime holds the wired components. Close releases them in reverse order.
type Runtime struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *persistence.Database
	Service *reconciliation.Service

	Tracer   *telemetry.TracerProvider
	Meter    *telemetry.MeterProvider
	Logs     *telemetry.LoggerProvider
	Profiler *telemetry.Profiler

	// ERP is nil when the ERP credentials are missing
	ERP *erpnext.Client

	closers []func(context.Context) error
}

// Options tune New for the calling binary
type Options struct {
	// Telemetry starts the OTLP exporters and the profiler
	Telemetry bool
	// LogOverride replaces cfg.Log, e.g. a console logger for the CLI
	LogOverride *logger.Config
}

// New builds a Runtime from cfg. On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, opts Options) (rt *Runtime, err error) {
	rt = &Runtime{Config: cfg}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
			rt = nil
		}
	}()

	logCfg := opts.LogOverride
	if logCfg == nil {
		logCfg = &logger.Config{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			Output: cfg.Log.Output,
		}
	}
	service := logger.WithFields(zap.String("service", cfg.App.Name), zap.String("env", cfg.App.Env))
	base, err := logger.New(logCfg, service)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	rt.Logger = base
	rt.onClose(func(context.Context) error {
		logger.Sync(rt.Logger)
		return nil
	})

	if err := rt.initTelemetry(ctx, base, logCfg, opts.Telemetry, service); err != nil {
		return nil, err
	}
	log := rt.Logger

	if cfg.Database.AutoMigrate {
		if err := migration.Apply(cfg.Database.DSN(), log); err != nil {
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Database.SlowQueryThresh))
	db, err := persistence.NewDatabaseWithCustomLogger(&cfg.Database, gormLog)
	if err != nil {
		return nil, err
	}
	rt.DB = db
	rt.onClose(func(context.Context) error { return db.Close() })

	meter := rt.Meter.Meter(MeterName)
	dbCfg := telemetry.DefaultDBConfig()
	dbCfg.TraceEnabled = opts.Telemetry && cfg.Telemetry.DBTraceEnabled
	dbCfg.MetricsEnabled = opts.Telemetry && cfg.Telemetry.Enabled
	if cfg.Database.SlowQueryThresh > 0 {
		dbCfg.SlowQueryThreshold = cfg.Database.SlowQueryThresh
	}
	instr, err := telemetry.InstrumentDB(db.DB, meter, dbCfg, log)
	if err != nil {
		return nil, fmt.Errorf("instrument database: %w", err)
	}
	rt.onClose(func(context.Context) error { return instr.Close() })

	recorder, err := telemetry.NewSyncMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("init sync metrics: %w", err)
	}

	employees := persistence.NewGormEmployeeRepository(db.DB)
	facts := persistence.NewGormAttendanceRepository(db.DB, persistence.WithLocation(cfg.App.Location()))
	logs := persistence.NewGormSyncLogRepository(db.DB)

	source, err := rt.newSource()
	if err != nil {
		return nil, err
	}
	ledger, err := rt.newLedger()
	if err != nil {
		return nil, err
	}

	var archive reconciliation.PunchArchive = reconciliation.NopArchive{}
	if cfg.Sync.ArchiveRawPunches {
		archive, err = storage.NewPunchArchive(ctx, &cfg.Storage, log)
		if err != nil {
			return nil, fmt.Errorf("init punch archive: %w", err)
		}
	}

	ingestion := reconciliation.NewIngestionService(source, employees, facts, logs, archive, recorder, log)
	reconciler := reconciliation.NewReconciler(ledger, facts, logs, log,
		reconciliation.ReconcilerConfig{
			MaxRetries: cfg.ERP.MaxRetries,
			RetryDelay: cfg.ERP.RetryDelay,
		},
		reconciliation.WithRecorder(recorder),
	)
	orchestrator := reconciliation.NewOrchestrator(facts, ledger, reconciler, logs, log,
		reconciliation.OrchestratorConfig{DefaultMaxRecords: cfg.ERP.DefaultMaxRecords})
	stats := reconciliation.NewStatsService(employees, facts, logs)

	rt.Service = reconciliation.NewService(ingestion, orchestrator, stats, employees, facts, logs, log)
	return rt, nil
}

func (rt *Runtime) initTelemetry(ctx context.Context, base *zap.Logger, logCfg *logger.Config, enabled bool, fields logger.Option) error {
	cfg := rt.Config
	tc := cfg.Telemetry
	on := enabled && tc.Enabled

	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfig{
		Enabled:           on && tc.LogsEnabled,
		CollectorEndpoint: tc.CollectorEndpoint,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, base)
	if err != nil {
		return fmt.Errorf("init otel logs: %w", err)
	}
	rt.Logs = lp
	rt.onClose(lp.Shutdown)

	if lp.IsEnabled() {
		teed, err := logger.New(logCfg, fields, logger.WithCore(lp.Core(logger.ParseLevel(tc.LogsMinLevel))))
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		rt.Logger = teed
	}
	log := rt.Logger

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           on,
		CollectorEndpoint: tc.CollectorEndpoint,
		SamplingRatio:     tc.SamplingRatio,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	rt.Tracer = tp
	rt.onClose(tp.Shutdown)

	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           on,
		CollectorEndpoint: tc.CollectorEndpoint,
		ExportInterval:    tc.ExportInterval,
		ServiceName:       tc.ServiceName,
		Insecure:          tc.Insecure,
	}, log)
	if err != nil {
		return fmt.Errorf("init meter: %w", err)
	}
	rt.Meter = mp
	rt.onClose(mp.Shutdown)

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         enabled && tc.ProfilingEnabled,
		ServerAddress:   tc.ProfilingServerAddress,
		ApplicationName: tc.ServiceName,
	}, log)
	if err != nil {
		return fmt.Errorf("init profiler: %w", err)
	}
	rt.Profiler = profiler
	rt.onClose(func(context.Context) error { return profiler.Stop() })

	if profiler.IsEnabled() && tp.IsEnabled() {
		if err := tp.EnableSpanProfiles(); err != nil {
			log.Warn("Span profiles unavailable", zap.Error(err))
		}
	}
	return nil
}

func (rt *Runtime) newSource() (integration.PunchSource, error) {
	sc := rt.Config.Source
	client, err := zkbio.NewClient(zkbio.Config{
		BaseURL:           sc.BaseURL,
		Username:          sc.Username,
		Password:          sc.Password,
		Timeout:           sc.Timeout,
		PageSizeThreshold: sc.PageSizeThreshold,
		MaxPages:          sc.MaxPages,
		TokenTTL:          sc.TokenTTL,
	}, rt.Config.App.Location(), rt.Logger)
	if errors.Is(err, integration.ErrSourceNotConfigured) {
		rt.Logger.Warn("Source system is not configured; ingestion will fail until source.* is set")
		return unconfiguredSource{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("init source client: %w", err)
	}
	return client, nil
}

func (rt *Runtime) newLedger() (integration.AttendanceLedger, error) {
	ec := rt.Config.ERP
	client, err := erpnext.NewClient(erpnext.Config{
		BaseURL:   ec.BaseURL,
		APIKey:    ec.APIKey,
		APISecret: ec.APISecret,
		Timeout:   ec.Timeout,
	}, rt.Logger)
	if errors.Is(err, integration.ErrERPNotConfigured) {
		rt.Logger.Warn("ERP is not configured; pushes will fail until erp.* is set")
		return unconfiguredLedger{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("init ERP client: %w", err)
	}
	rt.ERP = client
	return client, nil
}

// OperatorTokens builds the operator token service with the configured
// revocation backend.
func (rt *Runtime) OperatorTokens() (*auth.OperatorTokens, error) {
	cfg := rt.Config
	var revocations auth.Revocations
	switch cfg.Auth.RevocationBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.onClose(func(context.Context) error { return client.Close() })
		revocations = auth.NewRedisRevocations(client)
	default:
		revocations = auth.NewInMemoryRevocations()
	}
	return auth.NewOperatorTokens(cfg.Auth, auth.WithRevocations(revocations))
}

// OnClose registers fn to run during Close
func (rt *Runtime) OnClose(fn func(context.Context) error) {
	rt.onClose(fn)
}

func (rt *Runtime) onClose(fn func(context.Context) error) {
	rt.closers = append(rt.closers, fn)
}

// Close releases resources in reverse order of creation
func (rt *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
