package util

import "time"

// Truncate returns the UTC calendar date of t at midnight.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DateSteps returns the calendar dates start, start+step, ... up to and
// including end, in ascending order. A step below one day is treated as one.
// An inverted range yields nothing.
func DateSteps(start, end time.Time, stepDays int) []time.Time {
	if stepDays < 1 {
		stepDays = 1
	}
	start, end = Truncate(start), Truncate(end)

	var out []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, stepDays) {
		out = append(out, d)
	}
	return out
}
