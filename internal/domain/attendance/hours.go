package attendance

import (
	"time"

	"github.com/shopspring/decimal"
)

// DateOf returns the calendar date of t, read on t's own wall clock,
// as midnight UTC.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

const (
	// DateLayout is the wire format for calendar dates
	DateLayout = "2006-01-02"
	// DateTimeLayout is the wire format for timestamps
	DateTimeLayout = "2006-01-02 15:04:05"
)

// atClock places the wall clock of t onto date
func atClock(date, t time.Time) time.Time {
	h, m, s := t.Clock()
	y, mo, d := date.Date()
	return time.Date(y, mo, d, h, m, s, 0, time.UTC)
}

// ShiftOvernight anchors in and out on date. When the out clock is earlier
// than the in clock the out punch is moved to the next day.
func ShiftOvernight(date, in, out time.Time) (time.Time, time.Time) {
	inAt := atClock(date, in)
	outAt := atClock(date, out)
	if outAt.Before(inAt) {
		outAt = outAt.Add(24 * time.Hour)
	}
	return inAt, outAt
}

// WorkedDuration is the time between in and out on date, with the
// overnight correction applied. A missing in or out yields zero.
func WorkedDuration(date, in, out time.Time) time.Duration {
	if in.IsZero() || out.IsZero() {
		return 0
	}
	inAt, outAt := ShiftOvernight(date, in, out)
	return outAt.Sub(inAt)
}

// TotalHours converts WorkedDuration into hours rounded to two decimals
func TotalHours(date, in, out time.Time) decimal.Decimal {
	seconds := int64(WorkedDuration(date, in, out) / time.Second)
	return decimal.NewFromInt(seconds).Div(decimal.NewFromInt(3600)).Round(2)
}
