// Package clock pins the calendar conventions for streaks and task cycles:
// all day and week boundaries are computed in UTC, and weeks start on the
// ISO Monday. Services take a Clock instead of reading the wall clock so
// day-boundary behavior is testable.
package clock

import "time"

const dayKeyLayout = "2006-01-02"

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// New returns the system clock, normalized to UTC.
func New() Clock { return systemClock{} }

// Fixed is a clock frozen at a single instant.
type Fixed struct {
	T time.Time
}

func (f Fixed) Now() time.Time { return f.T.UTC() }

// DayKey returns the UTC calendar-day key, e.g. "2024-01-01".
func DayKey(t time.Time) string {
	return t.UTC().Format(dayKeyLayout)
}

// PrevDayKey returns the key for the UTC day before t.
func PrevDayKey(t time.Time) string {
	return t.UTC().AddDate(0, 0, -1).Format(dayKeyLayout)
}

// WeekKey returns the day key of the Monday starting t's ISO week.
func WeekKey(t time.Time) string {
	u := t.UTC()
	offset := (int(u.Weekday()) + 6) % 7 // Monday = 0
	monday := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -offset)
	return monday.Format(dayKeyLayout)
}

// ParseDayKey parses a day key back into a UTC midnight instant.
func ParseDayKey(key string) (time.Time, error) {
	return time.ParseInLocation(dayKeyLayout, key, time.UTC)
}
