package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerProvider_Disabled(t *testing.T) {
	ctx := context.Background()
	lp, err := NewLoggerProvider(ctx, LogsConfig{Enabled: false, ServiceName: "attendance-sync-test"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	assert.False(t, lp.IsEnabled())
	assert.NoError(t, lp.ForceFlush(ctx))
	assert.NoError(t, lp.Shutdown(ctx))
}

func TestLoggerProvider_CoreWhenDisabled(t *testing.T) {
	lp, err := NewLoggerProvider(context.Background(), LogsConfig{}, nil)
	require.NoError(t, err)

	core := lp.Core(zapcore.InfoLevel)
	assert.False(t, core.Enabled(zapcore.ErrorLevel))

	var nilProvider *LoggerProvider
	assert.False(t, nilProvider.Core(zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))
}

func TestLevelFilterCore(t *testing.T) {
	inner, recorded := observer.New(zapcore.DebugLevel)
	core := &levelFilterCore{Core: inner, minLevel: zapcore.WarnLevel}

	assert.False(t, core.Enabled(zapcore.InfoLevel))
	assert.True(t, core.Enabled(zapcore.WarnLevel))

	logger := zap.New(core).With(zap.String("run_id", "r-1"))
	logger.Info("dropped")
	logger.Warn("kept")
	logger.Error("kept too")

	entries := recorded.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "kept", entries[0].Message)
	assert.Equal(t, "r-1", entries[0].ContextMap()["run_id"])
}
