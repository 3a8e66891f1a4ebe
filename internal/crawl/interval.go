// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package crawl

import (
	"fmt"
	"time"
)

const day = 24 * time.Hour

// Interval is a closed date range at day granularity, the planner's working
// unit. Start and End are midnight UTC; End is inclusive.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds an interval from two timestamps, truncated to days.
func NewInterval(start, end time.Time) Interval {
	return Interval{Start: truncateDay(start), End: truncateDay(end)}
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Days returns the number of days the interval covers (>= 1 when valid).
func (iv Interval) Days() int {
	return int(iv.End.Sub(iv.Start)/day) + 1
}

// Splittable reports whether the interval spans more than one day.
func (iv Interval) Splittable() bool {
	return iv.End.After(iv.Start)
}

// Split divides the interval at its elapsed-time midpoint into two abutting
// halves: the second child starts exactly one day after the first child
// ends, and together they cover the parent with no gap or overlap.
func (iv Interval) Split() (Interval, Interval) {
	mid := truncateDay(iv.Start.Add(iv.End.Sub(iv.Start) / 2))
	if !mid.Before(iv.End) {
		mid = iv.End.Add(-day)
	}
	return Interval{Start: iv.Start, End: mid},
		Interval{Start: mid.Add(day), End: iv.End}
}

func (iv Interval) String() string {
	return fmt.Sprintf("%s..%s", iv.Start.Format("2006-01-02"), iv.End.Format("2006-01-02"))
}
