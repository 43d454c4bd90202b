// Package sweep finds appointments entering their reminder window and sends
// at most one reminder each. The null reminder-sent timestamp is both the
// eligibility condition and the idempotency guard.
package sweep

import "time"

// Window is the half-open [From, To) slice of a calendar day eligible for
// reminders. Times are HH:MM strings, comparable lexicographically the way
// the ledger stores them.
type Window struct {
	Date string
	From string
	To   string
}

const (
	windowStart = 55 * time.Minute
	windowEnd   = 65 * time.Minute
)

// ComputeWindow returns the reminder window for a sweep running at now:
// appointments between 55 and 65 minutes ahead, the lower bound included and
// the upper bound excluded.
func ComputeWindow(now time.Time) Window {
	start := now.Add(windowStart)
	end := now.Add(windowEnd)
	return Window{
		Date: start.Format("2006-01-02"),
		From: start.Format("15:04"),
		To:   end.Format("15:04"),
	}
}

// Contains reports whether a stored (date, time) slot falls in the window.
func (w Window) Contains(date, timeOfDay string) bool {
	return date == w.Date && timeOfDay >= w.From && timeOfDay < w.To
}
