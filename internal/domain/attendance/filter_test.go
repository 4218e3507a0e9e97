package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSelectionFilter_Normalize(t *testing.T) {
	t.Run("Applies defaults", func(t *testing.T) {
		f := SelectionFilter{}.Normalize(0, 0)
		assert.Equal(t, DefaultMaxRecords, f.MaxRecords)
		assert.Equal(t, DefaultMaxAttempts, f.MaxAttempts)
		assert.Equal(t, []SyncStatus{SyncStatusPending, SyncStatusFailed}, f.EffectiveStatuses())
		assert.True(t, f.CapsAttempts())
	})

	t.Run("Drops unknown and repeated statuses", func(t *testing.T) {
		f := SelectionFilter{Statuses: []SyncStatus{"synced", "bogus", "synced"}}.Normalize(50, 3)
		assert.Equal(t, []SyncStatus{SyncStatusSynced}, f.Statuses)
		assert.False(t, f.CapsAttempts())
		assert.Equal(t, 50, f.MaxRecords)
	})

	t.Run("Retry only wins over status set", func(t *testing.T) {
		f := SelectionFilter{RetryFailedOnly: true, Statuses: []SyncStatus{SyncStatusPending}}.Normalize(0, 0)
		assert.Equal(t, []SyncStatus{SyncStatusFailed}, f.EffectiveStatuses())
		assert.True(t, f.CapsAttempts())
	})
}

func TestSelectionFilter_Matches(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	fact := func(status SyncStatus, attempts int) *AttendanceFact {
		return &AttendanceFact{EmployeeCode: "E1", Date: date, Status: status, SyncAttempts: attempts}
	}

	def := SelectionFilter{}.Normalize(100, 5)
	retry := SelectionFilter{RetryFailedOnly: true}.Normalize(100, 5)
	explicit := SelectionFilter{Statuses: []SyncStatus{SyncStatusFailed}}.Normalize(100, 5)

	assert.True(t, def.Matches(fact(SyncStatusPending, 0)))
	assert.True(t, def.Matches(fact(SyncStatusFailed, 4)))
	assert.False(t, def.Matches(fact(SyncStatusFailed, 5)))
	assert.False(t, def.Matches(fact(SyncStatusSynced, 0)))

	assert.False(t, retry.Matches(fact(SyncStatusPending, 0)))
	assert.True(t, retry.Matches(fact(SyncStatusFailed, 4)))
	assert.False(t, retry.Matches(fact(SyncStatusFailed, 5)))

	assert.True(t, explicit.Matches(fact(SyncStatusFailed, 9)))

	other := date.AddDate(0, 0, 1)
	byDate := SelectionFilter{Date: &other, EmployeeCode: " E1 "}.Normalize(0, 0)
	assert.Equal(t, "E1", byDate.EmployeeCode)
	assert.False(t, byDate.Matches(fact(SyncStatusPending, 0)))
}
