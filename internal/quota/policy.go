package quota

import (
	"math"
	"time"
)

// Pure allowance arithmetic. Admission compares unrounded accumulators;
// rounding is applied only when a value is shown to a caller.

// AdmitMinutes reports whether a user at `used` minutes may start
// another conversation under `limit`. A total exactly at the limit denies.
func AdmitMinutes(used, limit float64) bool {
	return used < limit
}

// RemainingMinutes returns the non-negative allowance left.
func RemainingMinutes(used, limit float64) float64 {
	return math.Max(0, limit-used)
}

// AdmitCalls reports whether another unit-cost call is allowed.
func AdmitCalls(used, limit int) bool {
	return used < limit
}

// RemainingCalls returns the non-negative call count left.
func RemainingCalls(used, limit int) int {
	if used >= limit {
		return 0
	}
	return limit - used
}

// RoundMinutes rounds to two decimal places for display and costing.
func RoundMinutes(v float64) float64 {
	return math.Round(v*100) / 100
}

// Day truncates t to its calendar day in server-local terms.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// MonthStart returns the first day of t's calendar month, local midnight.
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
