package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/attendsync/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryRunLock_Acquire(t *testing.T) {
	lock := NewInMemoryRunLock()
	defer lock.Close()

	ctx := context.Background()

	t.Run("acquires a free lock", func(t *testing.T) {
		ok, err := lock.Acquire(ctx, "job-1", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("refuses a held lock", func(t *testing.T) {
		ok, err := lock.Acquire(ctx, "job-2", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = lock.Acquire(ctx, "job-2", time.Hour)
		require.NoError(t, err)
		assert.False(t, ok, "held lock should not be acquired twice")
	})

	t.Run("acquires again after release", func(t *testing.T) {
		ok, _ := lock.Acquire(ctx, "job-3", time.Hour)
		require.True(t, ok)
		require.NoError(t, lock.Release(ctx, "job-3"))

		ok, err := lock.Acquire(ctx, "job-3", time.Hour)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("acquires again after expiry", func(t *testing.T) {
		now := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
		lock.now = func() time.Time { return now }
		defer func() { lock.now = time.Now }()

		ok, _ := lock.Acquire(ctx, "job-4", time.Minute)
		require.True(t, ok)

		now = now.Add(time.Minute)
		ok, err := lock.Acquire(ctx, "job-4", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "expired lock should be acquirable")
	})

	t.Run("releasing an unknown lock is a no-op", func(t *testing.T) {
		assert.NoError(t, lock.Release(ctx, "never-taken"))
	})
}

func TestInMemoryRunLock_Concurrent(t *testing.T) {
	lock := NewInMemoryRunLock()
	defer lock.Close()

	var winners atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := lock.Acquire(context.Background(), "shared", time.Hour); ok {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), winners.Load())
}

func TestInMemoryRunLock_Cleanup(t *testing.T) {
	lock := NewInMemoryRunLock()
	defer lock.Close()

	now := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	lock.now = func() time.Time { return now }

	_, _ = lock.Acquire(context.Background(), "short", time.Second)
	_, _ = lock.Acquire(context.Background(), "long", time.Hour)
	require.Equal(t, 2, lock.Size())

	now = now.Add(time.Minute)
	lock.cleanup()
	assert.Equal(t, 1, lock.Size())
}

func TestInMemoryRunLock_CloseTwice(t *testing.T) {
	lock := NewInMemoryRunLock()
	assert.NoError(t, lock.Close())
	assert.NoError(t, lock.Close())
}

func TestRunLockFactory_Create(t *testing.T) {
	unreachable := config.RedisConfig{Host: "127.0.0.1", Port: 1}

	t.Run("memory backend", func(t *testing.T) {
		lock, err := NewRunLockFactory(unreachable).Create("memory")
		require.NoError(t, err)
		defer lock.Close()
		assert.IsType(t, &InMemoryRunLock{}, lock)
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := NewRunLockFactory(unreachable).Create("etcd")
		assert.Error(t, err)
	})

	t.Run("redis falls back to memory", func(t *testing.T) {
		lock, err := NewRunLockFactory(unreachable).Create("redis")
		require.NoError(t, err)
		defer lock.Close()
		assert.IsType(t, &InMemoryRunLock{}, lock)
	})

	t.Run("redis without fallback fails", func(t *testing.T) {
		_, err := NewRunLockFactory(unreachable, WithInMemoryFallback(false)).Create("redis")
		assert.Error(t, err)
	})
}
