package persistence

import (
	"testing"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/attendsync/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// newSQLiteDB opens an in-memory database with the schema migrated.
// One connection only, every new connection to :memory: is a new database.
func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(sqlite.Open(":memory:"), nil)
	require.NoError(t, err)

	sqlDB, err := db.DB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.DB.AutoMigrate(
		&models.EmployeeModel{},
		&models.AttendanceFactModel{},
		&models.SyncLogModel{},
	))
	return db.DB
}

func newTestFact(t *testing.T, employeeID uuid.UUID, punches ...attendance.Punch) *attendance.AttendanceFact {
	t.Helper()
	result := attendance.Aggregate(punches)
	require.Len(t, result.Groups, 1)
	fact, err := attendance.NewAttendanceFact(employeeID, result.Groups[0])
	require.NoError(t, err)
	return fact
}

func punch(code, ref string, at time.Time) attendance.Punch {
	return attendance.Punch{EmployeeCode: code, Timestamp: at, TransactionRef: ref}
}
