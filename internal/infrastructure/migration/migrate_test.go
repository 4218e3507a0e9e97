package migration

import (
	"errors"
	"io/fs"
	"os"
	"testing"

	"github.com/attendsync/backend/migrations"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestEmbeddedSource_HasPairedMigrations(t *testing.T) {
	src, err := iofs.New(migrations.FS, ".")
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })

	version, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	for {
		up, _, err := src.ReadUp(version)
		require.NoError(t, err, "up migration %d", version)
		_ = up.Close()
		down, _, err := src.ReadDown(version)
		require.NoError(t, err, "down migration %d", version)
		_ = down.Close()

		next, err := src.Next(version)
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
			break
		}
		require.NoError(t, err)
		version = next
	}
	assert.Equal(t, uint(3), version)
}

func TestOpen_Unreachable(t *testing.T) {
	_, err := Open("postgres://postgres@127.0.0.1:1/none?sslmode=disable&connect_timeout=1", "", zaptest.NewLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping database")
}
