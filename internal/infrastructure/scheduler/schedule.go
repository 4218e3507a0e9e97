package scheduler

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// TimeOfDay is a wall clock slot
type TimeOfDay struct {
	Hour   int
	Minute int
}

// At returns the slot hour:minute
func At(hour, minute int) TimeOfDay {
	return TimeOfDay{Hour: hour, Minute: minute}
}

// ParseTimeOfDay parses "HH:MM"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("%w: time of day %q", ErrInvalidConfig, s)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// Hourly returns one slot at the top of every hour in [from, to]
func Hourly(from, to int) []TimeOfDay {
	slots := make([]TimeOfDay, 0, to-from+1)
	for h := from; h <= to; h++ {
		slots = append(slots, At(h, 0))
	}
	return slots
}

// Schedule is a set of daily slots, optionally restricted to one weekday
type Schedule struct {
	Times   []TimeOfDay
	Weekday *time.Weekday
}

// Daily runs at every given slot of every day
func Daily(times ...TimeOfDay) Schedule {
	return Schedule{Times: times}
}

// Weekly runs at the given slots on day only
func Weekly(day time.Weekday, times ...TimeOfDay) Schedule {
	return Schedule{Times: times, Weekday: &day}
}

// Validate reports an empty schedule or an out of range slot
func (s Schedule) Validate() error {
	if len(s.Times) == 0 {
		return fmt.Errorf("%w: schedule has no slots", ErrInvalidConfig)
	}
	for _, t := range s.Times {
		if !t.valid() {
			return fmt.Errorf("%w: slot %s out of range", ErrInvalidConfig, t)
		}
	}
	return nil
}

// Next returns the first slot strictly after after, in after's location.
// It returns the zero time for an invalid schedule.
func (s Schedule) Next(after time.Time) time.Time {
	if s.Validate() != nil {
		return time.Time{}
	}
	slots := append([]TimeOfDay(nil), s.Times...)
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].Hour != slots[j].Hour {
			return slots[i].Hour < slots[j].Hour
		}
		return slots[i].Minute < slots[j].Minute
	})

	y, m, d := after.Date()
	for offset := 0; offset <= 7; offset++ {
		day := time.Date(y, m, d+offset, 0, 0, 0, 0, after.Location())
		if s.Weekday != nil && day.Weekday() != *s.Weekday {
			continue
		}
		for _, slot := range slots {
			at := time.Date(day.Year(), day.Month(), day.Day(), slot.Hour, slot.Minute, 0, 0, after.Location())
			if at.After(after) {
				return at
			}
		}
	}
	return time.Time{}
}

func (s Schedule) String() string {
	parts := make([]string, len(s.Times))
	for i, t := range s.Times {
		parts[i] = t.String()
	}
	desc := "daily " + strings.Join(parts, ",")
	if s.Weekday != nil {
		desc = s.Weekday.String() + " " + strings.Join(parts, ",")
	}
	return desc
}
