package utils

import "time"

// DayKey truncates a timestamp to its UTC calendar day. Daily grade samples
// that fall on the same day merge into one degradation event.
func DayKey(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SameCalendarDay reports whether two timestamps share a UTC calendar day.
func SameCalendarDay(a, b time.Time) bool {
	return DayKey(a).Equal(DayKey(b))
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
