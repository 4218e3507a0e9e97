package cache

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/attendsync/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// Lock backends
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// RunLock is a named, expiring mutual exclusion lock
type RunLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
	Close() error
}

// RunLockFactory creates run locks based on configuration
type RunLockFactory struct {
	redisConfig           config.RedisConfig
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// RunLockFactoryOption is a functional option for configuring the factory
type RunLockFactoryOption func(*RunLockFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) RunLockFactoryOption {
	return func(f *RunLockFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to an in-memory lock when Redis is unavailable.
// Default is true.
func WithInMemoryFallback(allow bool) RunLockFactoryOption {
	return func(f *RunLockFactory) {
		f.allowInMemoryFallback = allow
	}
}

// NewRunLockFactory creates a new factory
func NewRunLockFactory(cfg config.RedisConfig, opts ...RunLockFactoryOption) *RunLockFactory {
	f := &RunLockFactory{
		redisConfig:           cfg,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

// Create returns the lock for backend. The redis backend falls back to an
// in-memory lock when Redis cannot be reached and fallback is allowed.
func (f *RunLockFactory) Create(backend string) (RunLock, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendMemory:
		f.logger.Info("using in-memory run lock")
		return NewInMemoryRunLock(), nil
	case BackendRedis:
	default:
		return nil, fmt.Errorf("unknown run lock backend %q", backend)
	}

	lock, err := NewRedisRunLock(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	})
	if err == nil {
		f.logger.Info("using Redis run lock", zap.String("addr", f.redisConfig.Addr()))
		return lock, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("redis required for run locks but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory run lock. "+
		"Overlapping runs from other instances will not be prevented.",
		zap.Error(err),
	)
	return NewInMemoryRunLock(), nil
}

var (
	_ RunLock = (*InMemoryRunLock)(nil)
	_ RunLock = (*RedisRunLock)(nil)
)
