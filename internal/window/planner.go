package window

import (
	"errors"
	"time"
)

// ErrWrongDay is returned by Plan when the reference instant does not fall
// on the configured start day. It is a skip signal, not a failure: the
// weekly recurrence mechanism is treated as unreliable and Plan re-checks
// the day itself.
var ErrWrongDay = errors.New("window: not the configured start day")

// Window is an immutable weekly monitoring window. The window may wrap
// across the week boundary (EndDay numerically <= StartDay).
type Window struct {
	StartDay  Weekday
	StartTime TimeOfDay
	EndDay    Weekday
	EndTime   TimeOfDay
}

// Plan is the derived check schedule for a single cycle. Offsets are
// non-negative second offsets from the reference instant, ascending, one
// per whole hour of the window. TotalSeconds is the full window length and
// is used to schedule the end-of-window reset; it can exceed the span of
// Offsets when the early-stop rule trims the tail.
type Plan struct {
	Offsets      []int
	TotalSeconds int
}

// daysSpan returns the number of calendar days between start and end day.
// An end day numerically at or before the start day wraps into the next
// week, so equal days span a full week.
func (w Window) daysSpan() int {
	if w.EndDay > w.StartDay {
		return int(w.EndDay - w.StartDay)
	}
	return (7 - int(w.StartDay)) + int(w.EndDay)
}

// TotalHours returns the window length in whole hours. The math operates
// at hour granularity: minute and second components of the configured
// times are accepted but do not contribute. Keep it that way; the 5 minute
// check jitter already dwarfs the sub-hour error.
func (w Window) TotalHours() int {
	return w.daysSpan()*24 - w.StartTime.Hour + w.EndTime.Hour
}

// Plan computes the check schedule for a cycle starting at now.
//
// It fails with ErrWrongDay when now is not on the configured start day.
// Otherwise it emits one offset per whole hour of the window, stopping
// early once the projected wall-clock time reaches the end boundary.
// Degenerate windows (TotalHours <= 0) yield an empty plan.
func (w Window) Plan(now time.Time) (Plan, error) {
	if WeekdayOf(now) != w.StartDay {
		return Plan{}, ErrWrongDay
	}

	totalHours := w.TotalHours()
	if totalHours <= 0 {
		return Plan{}, nil
	}

	daysDiff := w.daysSpan()
	offsets := make([]int, 0, totalHours)
	for h := 0; h < totalHours; h++ {
		at := now.Add(time.Duration(h) * time.Hour)
		if daysDiff == 0 {
			if at.Hour() >= w.EndTime.Hour {
				break
			}
		} else if WeekdayOf(at) == w.EndDay && at.Hour() >= w.EndTime.Hour {
			break
		}
		offsets = append(offsets, h*3600)
	}

	return Plan{Offsets: offsets, TotalSeconds: totalHours * 3600}, nil
}
