package domain

import "time"

// Bounds for a persistable instant. Anything outside this window is treated
// as corrupt data rather than a real schedule.
var (
	minInstant = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.UTC)
	maxInstant = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
)

// MillisPerDay is the length of one scheduling day in milliseconds.
const MillisPerDay int64 = 86_400_000

// IsValidInstant reports whether t can be stored as a due date.
func IsValidInstant(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	return !t.Before(minInstant) && !t.After(maxInstant)
}

// AddDays returns t moved forward by n whole calendar days in UTC.
func AddDays(t time.Time, n int) time.Time {
	return t.UTC().AddDate(0, 0, n)
}

// AddMinutes returns t moved forward by a fractional number of minutes.
func AddMinutes(t time.Time, minutes float64) time.Time {
	return t.Add(time.Duration(minutes * float64(time.Minute)))
}
