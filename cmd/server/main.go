package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attendsync/backend/internal/bootstrap"
	"github.com/attendsync/backend/internal/infrastructure/cache"
	"github.com/attendsync/backend/internal/infrastructure/config"
	"github.com/attendsync/backend/internal/infrastructure/scheduler"
	"github.com/attendsync/backend/internal/interfaces/http/handler"
	"github.com/attendsync/backend/internal/interfaces/http/middleware"
	"github.com/attendsync/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	rt, err := bootstrap.New(ctx, cfg, bootstrap.Options{Telemetry: true})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start: %v\n", err)
		os.Exit(1)
	}
	log := rt.Logger

	log.Info("Starting attendance sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("timezone", cfg.App.Location().String()),
		zap.String("version", version),
	)

	tokens, err := rt.OperatorTokens()
	if err != nil {
		log.Fatal("Failed to initialize operator tokens", zap.Error(err))
	}

	var jobs handler.JobRunner
	var sched *scheduler.SyncScheduler
	if cfg.Scheduler.Enabled {
		lock, err := cache.NewRunLockFactory(cfg.Redis, cache.WithLogger(log)).Create(cfg.Scheduler.LockBackend)
		if err != nil {
			log.Fatal("Failed to create run lock", zap.Error(err))
		}
		rt.OnClose(func(context.Context) error { return lock.Close() })

		schedCfg := scheduler.DefaultConfig()
		schedCfg.Location = cfg.App.Location()
		if cfg.Scheduler.CheckInterval > 0 {
			schedCfg.CheckInterval = cfg.Scheduler.CheckInterval
		}
		if cfg.Scheduler.LockTTL > 0 {
			schedCfg.LockTTL = cfg.Scheduler.LockTTL
		}
		sched, err = scheduler.New(schedCfg,
			scheduler.DefaultJobs(rt.Service, time.Now, cfg.App.Location(), log),
			lock, log)
		if err != nil {
			log.Fatal("Failed to create scheduler", zap.Error(err))
		}
		jobs = sched
	} else {
		log.Info("Scheduler disabled")
	}

	var limiter *middleware.RateLimiter
	if cfg.HTTP.SyncRateLimit > 0 {
		limiter = middleware.NewRateLimiter(cfg.HTTP.SyncRateLimit, cfg.HTTP.SyncRateWindow)
		defer limiter.Stop()
	}

	readiness := map[string]handler.ReadinessCheck{
		"database": rt.DB.Ping,
	}
	if rt.ERP != nil {
		readiness["erp"] = rt.ERP.Ping
	}

	engine, err := router.NewEngine(router.APIConfig{
		Name:             cfg.App.Name,
		Version:          version,
		Location:         cfg.App.Location(),
		MaxBodySize:      cfg.HTTP.MaxBodySize,
		TrustedProxies:   cfg.HTTP.TrustedProxies,
		Logger:           log,
		MeterProvider:    rt.Meter,
		TracingEnabled:   rt.Tracer.IsEnabled(),
		ProfilingEnabled: rt.Profiler.IsEnabled(),
		Tokens:           tokens,
		Revoker:          tokens,
		SyncLimiter:      limiter,
		Sync:             rt.Service,
		Attendance:       rt.Service,
		Jobs:             jobs,
		Readiness:        readiness,
	})
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	if sched != nil {
		if err := sched.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if sched != nil {
		if err := sched.Stop(shutdownCtx); err != nil {
			log.Error("Scheduler did not stop cleanly", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
	if err := rt.Close(shutdownCtx); err != nil {
		fmt.Fprintf(os.Stderr, "Shutdown errors: %v\n", err)
	}
}
