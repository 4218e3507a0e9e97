//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err, "Failed to start Redis container")
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: endpoint})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())
	return client
}

func TestRedisRunLock(t *testing.T) {
	ctx := context.Background()
	client := newRedisClient(t)
	first := NewRedisRunLockWithClient(client, "test:")
	second := NewRedisRunLockWithClient(client, "test:")

	t.Run("only one instance holds the lock", func(t *testing.T) {
		ok, err := first.Acquire(ctx, "job", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = second.Acquire(ctx, "job", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		ttl, err := client.TTL(ctx, "test:job").Result()
		require.NoError(t, err)
		assert.Greater(t, ttl, time.Duration(0))
	})

	t.Run("a non owner cannot release", func(t *testing.T) {
		require.NoError(t, second.Release(ctx, "job"))
		exists, err := client.Exists(ctx, "test:job").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)
	})

	t.Run("owner release frees the lock", func(t *testing.T) {
		require.NoError(t, first.Release(ctx, "job"))
		ok, err := second.Acquire(ctx, "job", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		require.NoError(t, second.Release(ctx, "job"))
	})

	t.Run("stale owner does not release a lock taken after expiry", func(t *testing.T) {
		ok, err := first.Acquire(ctx, "short", 100*time.Millisecond)
		require.NoError(t, err)
		require.True(t, ok)

		time.Sleep(200 * time.Millisecond)
		ok, err = second.Acquire(ctx, "short", time.Minute)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, first.Release(ctx, "short"))
		exists, err := client.Exists(ctx, "test:short").Result()
		require.NoError(t, err)
		assert.Equal(t, int64(1), exists)
	})
}
