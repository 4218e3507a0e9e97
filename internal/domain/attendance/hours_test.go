package attendance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkedDuration(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		in   string
		out  string
		want time.Duration
	}{
		{"Day shift", "2024-03-01 08:01:00", "2024-03-01 17:45:00", 9*time.Hour + 44*time.Minute},
		{"Overnight shift wraps to next day", "2024-03-01 22:00:00", "2024-03-01 06:00:00", 8 * time.Hour},
		{"Equal times", "2024-03-01 09:00:00", "2024-03-01 09:00:00", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WorkedDuration(date, at(t, tt.in), at(t, tt.out)))
		})
	}

	t.Run("Missing punch yields zero", func(t *testing.T) {
		assert.Equal(t, time.Duration(0), WorkedDuration(date, time.Time{}, at(t, "2024-03-01 06:00:00")))
	})
}

func TestTotalHours(t *testing.T) {
	date := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "9.73", TotalHours(date, at(t, "2024-03-01 08:01:00"), at(t, "2024-03-01 17:45:00")).StringFixed(2))
	assert.Equal(t, "8.00", TotalHours(date, at(t, "2024-03-01 22:00:00"), at(t, "2024-03-01 06:00:00")).StringFixed(2))
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-03-01")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("01/03/2024")
	assert.Error(t, err)
}
