// Package schedule holds the pure interval arithmetic behind availability:
// minute-of-day windows, half-open overlap tests and slot stepping. No I/O,
// no timezone lookups; callers convert between local wall clock and UTC.
package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Window is a half-open [Start,End) interval in minutes since local midnight.
type Window struct {
	Start int
	End   int
}

// Interval is a half-open [Start,End) interval of UTC instants.
type Interval struct {
	Start time.Time
	End   time.Time
}

// ParseClock converts an "HH:MM" string to minutes since midnight.
func ParseClock(s string) (int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid clock value %q", s)
	}
	if h < 0 || h > 23 || m < 0 || m > 59 {
		return 0, fmt.Errorf("clock value %q out of range", s)
	}
	return h*60 + m, nil
}

// Overlaps reports whether two half-open windows intersect. Touching edges
// do not overlap.
func (w Window) Overlaps(other Window) bool {
	return w.Start < other.End && w.End > other.Start
}

// OverlapsAny reports whether the window intersects any of the given windows.
func (w Window) OverlapsAny(windows []Window) bool {
	for _, b := range windows {
		if w.Overlaps(b) {
			return true
		}
	}
	return false
}

// Intersects reports whether two half-open UTC intervals overlap.
func (i Interval) Intersects(other Interval) bool {
	return i.Start.Before(other.End) && i.End.After(other.Start)
}

// IntersectsAny reports whether the interval overlaps any busy interval.
func (i Interval) IntersectsAny(busy []Interval) bool {
	for _, b := range busy {
		if i.Intersects(b) {
			return true
		}
	}
	return false
}

// CandidateStarts steps through a period in increments of durationMinutes
// from the period start, returning every start (minutes since midnight)
// whose slot fits before the period end and does not overlap a blocked
// window. Filtering against appointments and "now" happens after the local
// minutes are converted to UTC instants.
func CandidateStarts(period Window, durationMinutes int, blocked []Window) []int {
	if durationMinutes <= 0 || period.End <= period.Start {
		return nil
	}

	var starts []int
	for start := period.Start; start+durationMinutes <= period.End; start += durationMinutes {
		candidate := Window{Start: start, End: start + durationMinutes}
		if candidate.OverlapsAny(blocked) {
			continue
		}
		starts = append(starts, start)
	}
	return starts
}

// AtMinutes materializes minutes-since-midnight on a calendar day in loc and
// returns the UTC instant. DST transitions resolve the way time.Date does:
// a wall clock inside a spring-forward gap normalizes past the gap, so the
// returned instant can land on a different local minute than requested.
// Callers that must not emit the same instant twice check Materializes.
func AtMinutes(year int, month time.Month, day, minutes int, loc *time.Location) time.Time {
	return time.Date(year, month, day, minutes/60, minutes%60, 0, 0, loc).UTC()
}

// Materializes reports whether minutes-since-midnight exists as a wall clock
// on that day in loc. Minutes swallowed by a spring-forward transition do
// not round-trip and return false.
func Materializes(year int, month time.Month, day, minutes int, loc *time.Location) bool {
	local := time.Date(year, month, day, minutes/60, minutes%60, 0, 0, loc)
	return local.Hour()*60+local.Minute() == minutes && local.Day() == day
}
