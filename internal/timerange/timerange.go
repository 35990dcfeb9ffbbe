// Package timerange parses wall-clock booking times and compares half-open ranges.
package timerange

import (
	"fmt"
	"time"
)

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"
)

// Range is a half-open [Start, End) interval of minutes since midnight.
type Range struct {
	Start int
	End   int
}

// Overlaps reports whether two half-open ranges intersect.
// Touching ranges (one ends exactly when the other starts) do not overlap.
func (r Range) Overlaps(o Range) bool {
	return r.Start < o.End && r.End > o.Start
}

func (r Range) Valid() bool { return r.Start < r.End }

// ParseClock parses "HH:mm" (a single-digit hour is accepted) into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse(ClockLayout, s)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, expected HH:mm", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes since midnight as zero-padded "HH:mm".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Parse builds a Range from two clock strings.
func Parse(start, end string) (Range, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Range{}, err
	}
	return Range{Start: s, End: e}, nil
}

// ParseDate parses a calendar date in the service's local zone.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	return d, nil
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WithinWindow reports whether date lies in [today, today+months] inclusive.
func WithinWindow(date, now time.Time, months int) bool {
	today := Day(now)
	limit := today.AddDate(0, months, 0)
	d := Day(date)
	return !d.Before(today) && !d.After(limit)
}

// StartsAt combines a date and clock minutes into an instant.
func StartsAt(date time.Time, minutes int) time.Time {
	return Day(date).Add(time.Duration(minutes) * time.Minute)
}
