package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSyncLogRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewGormSyncLogRepository(newSQLiteDB(t))
	base := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	employeeID := uuid.New()

	entries := []*attendance.SyncLogEntry{
		attendance.NewSyncLogEntry(attendance.LogCategoryERPSync, attendance.LogOutcomeSuccess, "created"),
		attendance.NewSyncLogEntry(attendance.LogCategoryERPSync, attendance.LogOutcomeInfo, "already existed").
			WithDetail("is_existing_record", true).
			ForEmployee(employeeID),
		attendance.NewSyncLogEntry(attendance.LogCategoryERPSync, attendance.LogOutcomeError, "HTTP 500"),
		attendance.NewSyncLogEntry(attendance.LogCategorySourceFetch, attendance.LogOutcomeSuccess, "fetched").
			Took(1500 * time.Millisecond),
	}
	for i, e := range entries {
		e.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, repo.Append(ctx, e))
	}

	t.Run("latest success honours outcomes", func(t *testing.T) {
		at, err := repo.LatestSuccess(ctx, attendance.LogCategoryERPSync)
		require.NoError(t, err)
		require.NotNil(t, at)
		assert.True(t, at.Equal(base))

		at, err = repo.LatestSuccess(ctx, attendance.LogCategoryERPSync, attendance.LogOutcomeSuccess, attendance.LogOutcomeInfo)
		require.NoError(t, err)
		require.NotNil(t, at)
		assert.True(t, at.Equal(base.Add(time.Minute)))
	})

	t.Run("no entry yields nil", func(t *testing.T) {
		at, err := repo.LatestSuccess(ctx, attendance.LogCategorySourceEmployees)
		require.NoError(t, err)
		assert.Nil(t, at)
	})

	t.Run("recent is newest first and keeps details", func(t *testing.T) {
		got, err := repo.Recent(ctx, attendance.LogCategoryERPSync, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "HTTP 500", got[0].Message)
		assert.Equal(t, "already existed", got[1].Message)
		assert.Equal(t, true, got[1].Details["is_existing_record"])
		require.NotNil(t, got[1].EmployeeID)
		assert.Equal(t, employeeID, *got[1].EmployeeID)

		all, err := repo.Recent(ctx, "", 0)
		require.NoError(t, err)
		assert.Len(t, all, 4)
		assert.Equal(t, 1500*time.Millisecond, all[0].Duration)
	})
}
