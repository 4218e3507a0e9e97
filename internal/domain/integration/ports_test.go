package integration

import (
	"errors"
	"testing"
	"time"

	"github.com/attendsync/backend/internal/domain/attendance"
	"github.com/stretchr/testify/assert"
)

func TestNewAttendancePayload(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	loc := time.FixedZone("EAT", 3*60*60)

	t.Run("Formats date and times on the fact date", func(t *testing.T) {
		in := time.Date(2024, 3, 1, 8, 1, 0, 0, loc)
		out := time.Date(2024, 3, 1, 17, 45, 0, 0, loc)
		fact := &attendance.AttendanceFact{Date: date, InTime: &in, OutTime: &out}

		p := NewAttendancePayload("HR-EMP-00007", fact)

		assert.Equal(t, AttendancePayload{
			Employee:       "HR-EMP-00007",
			AttendanceDate: "2024-03-01",
			Status:         "Present",
			InTime:         "2024-03-01 08:01:00",
			OutTime:        "2024-03-01 17:45:00",
		}, p)
	})

	t.Run("Overnight out time lands on the next day", func(t *testing.T) {
		in := time.Date(2024, 3, 1, 22, 0, 0, 0, time.UTC)
		out := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
		fact := &attendance.AttendanceFact{Date: date, InTime: &in, OutTime: &out}

		p := NewAttendancePayload("E1", fact)

		assert.Equal(t, "2024-03-02 06:00:00", p.OutTime)
	})

	t.Run("Omits absent times", func(t *testing.T) {
		fact := &attendance.AttendanceFact{Date: date}
		p := NewAttendancePayload("E1", fact)
		assert.Empty(t, p.InTime)
		assert.Empty(t, p.OutTime)
	})
}

func TestPushResult(t *testing.T) {
	assert.True(t, PushResult{Kind: PushCreatedUnknownID}.Created())
	assert.True(t, PushResult{Kind: PushDuplicateUnresolved}.Duplicate())
	assert.Equal(t, "auth_failure (HTTP 401)", PushResult{Kind: PushAuthFailure, StatusCode: 401}.Error())
	assert.Equal(t, "boom", PushResult{Kind: PushTransientFailure, Err: errors.New("boom")}.Error())
	assert.Empty(t, PushResult{Kind: PushCreatedWithID, ERPRef: "X"}.Error())
}

type stubChecker struct{ err error }

func (s stubChecker) CheckConfigured() error { return s.err }

func TestCheckConfigured(t *testing.T) {
	assert.NoError(t, CheckConfigured(struct{}{}))
	assert.NoError(t, CheckConfigured(stubChecker{}))
	assert.ErrorIs(t, CheckConfigured(stubChecker{err: ErrERPNotConfigured}), ErrERPNotConfigured)
}
