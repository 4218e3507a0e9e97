package router

import (
	"time"

	"github.com/attendsync/backend/internal/infrastructure/logger"
	"github.com/attendsync/backend/internal/infrastructure/telemetry"
	"github.com/attendsync/backend/internal/interfaces/http/handler"
	"github.com/attendsync/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// APIConfig wires the admin API
type APIConfig struct {
	Name           string
	Version        string
	Location       *time.Location
	MaxBodySize    int64
	TrustedProxies []string

	Logger           *zap.Logger
	MeterProvider    *telemetry.MeterProvider
	TracingEnabled   bool
	ProfilingEnabled bool

	// Tokens authenticates operators on mutating routes
	Tokens  middleware.TokenValidator
	Revoker handler.TokenRevoker
	// SyncLimiter throttles manual sync triggers; nil disables throttling
	SyncLimiter *middleware.RateLimiter

	Sync       handler.SyncService
	Attendance handler.AttendanceService
	// Jobs is nil when the scheduler is disabled
	Jobs      handler.JobRunner
	Readiness map[string]handler.ReadinessCheck
}

// NewEngine builds the gin engine serving the admin API.
//
// Reads are public. Sync triggers, resets, manual job runs and token
// management require an operator bearer token.
func NewEngine(cfg APIConfig) (*gin.Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.Secure(),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Name,
			Enabled:     cfg.TracingEnabled,
			SkipPaths:   []string{"/health", "/ready"},
		}),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: cfg.MeterProvider,
			Logger:        log,
		}),
		middleware.Profiling(middleware.ProfilingConfig{
			Enabled:   cfg.ProfilingEnabled,
			SkipPaths: []string{"/health", "/ready"},
		}),
		middleware.BodyLimit(cfg.MaxBodySize),
	)

	system := handler.NewSystemHandler(cfg.Name, cfg.Version, cfg.Readiness)
	engine.GET("/health", system.Health)
	engine.GET("/ready", system.Ready)

	r := NewRouter(engine)
	for _, g := range []*DomainGroup{publicRoutes(cfg), operatorRoutes(cfg, log)} {
		r.Register(g)
		for _, route := range g.Routes() {
			log.Debug("Route registered",
				zap.String("group", route.Group),
				zap.String("method", route.Method),
				zap.String("path", "/api/v1"+route.Path),
			)
		}
	}
	r.Setup()

	return engine, nil
}

func publicRoutes(cfg APIConfig) *DomainGroup {
	attendance := handler.NewAttendanceHandler(cfg.Attendance)
	sync := handler.NewSyncHandler(cfg.Sync, cfg.Location)

	g := NewDomainGroup("public", "")
	g.GET("/stats", attendance.Stats)
	g.GET("/attendance", attendance.List)
	g.GET("/attendance/:id", attendance.Get)
	g.GET("/employees", attendance.ListEmployees)
	g.GET("/sync/logs", sync.ListLogs)
	if cfg.Jobs != nil {
		g.GET("/scheduler/jobs", handler.NewSchedulerHandler(cfg.Jobs).ListJobs)
	}
	return g
}

func operatorRoutes(cfg APIConfig, log *zap.Logger) *DomainGroup {
	attendance := handler.NewAttendanceHandler(cfg.Attendance)
	sync := handler.NewSyncHandler(cfg.Sync, cfg.Location)
	auth := handler.NewAuthHandler(cfg.Revoker)

	g := NewDomainGroup("operator", "").Use(
		middleware.OperatorAuth(cfg.Tokens, log),
		middleware.TracingAttributeInjector(),
	)
	g.POST("/attendance/:id/reset", attendance.Reset)
	g.GET("/auth/me", auth.Me)
	g.POST("/auth/revoke", auth.Revoke)

	triggers := g.Group("sync-triggers", "")
	if cfg.SyncLimiter != nil {
		triggers.Use(middleware.RateLimit(cfg.SyncLimiter))
	}
	triggers.POST("/sync/employees", sync.SyncEmployees)
	triggers.POST("/sync/attendance", sync.SyncAttendance)
	triggers.POST("/sync/erp", sync.SyncERP)
	triggers.POST("/sync/full", sync.FullSync)
	if cfg.Jobs != nil {
		triggers.POST("/scheduler/jobs/:name/run", handler.NewSchedulerHandler(cfg.Jobs).RunJob)
	}
	return g
}
