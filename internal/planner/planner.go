// Package planner computes concrete publish instants for batches of posts.
// It is pure: it never touches the store or any platform integration, it only
// maps items to timestamps and reports what it skipped.
package planner

import (
	"fmt"
	"time"
)

// ValidationError reports invalid planner input. Nothing is persisted when
// one is returned.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Cadence is the spacing policy for a staggered batch.
type Cadence struct {
	Kind  string // "hourly", "daily" or "custom"
	Hours int    // interval in hours, used when Kind == "custom"
}

const (
	CadenceHourly = "hourly"
	CadenceDaily  = "daily"
	CadenceCustom = "custom"
)

func Hourly() Cadence { return Cadence{Kind: CadenceHourly} }

func Daily() Cadence { return Cadence{Kind: CadenceDaily} }

func CustomHours(n int) Cadence { return Cadence{Kind: CadenceCustom, Hours: n} }

// Interval resolves the cadence to a duration.
func (c Cadence) Interval() (time.Duration, error) {
	switch c.Kind {
	case CadenceHourly:
		return time.Hour, nil
	case CadenceDaily:
		return 24 * time.Hour, nil
	case CadenceCustom:
		if c.Hours < 1 {
			return 0, &ValidationError{Reason: fmt.Sprintf("custom cadence must be at least 1 hour, got %d", c.Hours)}
		}
		return time.Duration(c.Hours) * time.Hour, nil
	default:
		return 0, &ValidationError{Reason: fmt.Sprintf("unknown cadence %q", c.Kind)}
	}
}

// Entry assigns a publish instant to one input item, identified by its index
// in the caller's list.
type Entry struct {
	Index       int
	ScheduledAt time.Time
}

// Plan staggers the schedulable items of a batch from start, spaced by the
// cadence interval. Items whose platform the predicate rejects get no instant
// and are counted in skipped. An invalid cadence yields a ValidationError and
// no entries; an entirely non-schedulable batch is not an error.
func Plan(platforms []string, start time.Time, cadence Cadence, schedulable func(platform string) bool) ([]Entry, int, error) {
	interval, err := cadence.Interval()
	if err != nil {
		return nil, 0, err
	}

	var entries []Entry
	skipped := 0
	for i, platform := range platforms {
		if !schedulable(platform) {
			skipped++
			continue
		}
		entries = append(entries, Entry{
			Index:       i,
			ScheduledAt: start.Add(time.Duration(len(entries)) * interval),
		})
	}
	return entries, skipped, nil
}

// DayStart is the shared instant for day n (1-based) of a multi-day series:
// the series start plus (n-1) whole days. Items within the day share it
// unless the caller applies per-item offsets.
func DayStart(seriesStart time.Time, day int) (time.Time, error) {
	if day < 1 {
		return time.Time{}, &ValidationError{Reason: fmt.Sprintf("day number must be at least 1, got %d", day)}
	}
	return seriesStart.Add(time.Duration(day-1) * 24 * time.Hour), nil
}
