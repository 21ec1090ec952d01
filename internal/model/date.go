package model

import "time"

// DateLayout is the calendar date format used on every boundary.
const DateLayout = "2006-01-02"

// DateOf drops the clock part of t and returns its calendar date at UTC midnight.
// The calendar date is taken in t's own location.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// LocalDate is the calendar date of t in the process's local time zone.
func LocalDate(t time.Time) time.Time {
	return DateOf(t.Local())
}

// Today returns the caller's local calendar date.
func Today(now time.Time) time.Time {
	return LocalDate(now)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(raw string) (time.Time, error) {
	t, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
