// Package interval implements an immutable algebra over ordered,
// non-overlapping half-open time intervals.
//
// All values are normalized to UTC. A Set never holds two intervals that
// overlap or touch: touching intervals are merged on construction.
package interval

import (
	"fmt"
	"sort"
	"time"
)

// Interval is the half-open span [Start, Stop).
type Interval struct {
	Start time.Time
	Stop  time.Time
}

// New returns the interval [start, stop) normalized to UTC.
func New(start, stop time.Time) Interval {
	return Interval{Start: start.UTC(), Stop: stop.UTC()}
}

// Valid reports whether Start is strictly before Stop.
func (i Interval) Valid() bool {
	return i.Start.Before(i.Stop)
}

// Duration returns the length of the interval, or zero when it is invalid.
func (i Interval) Duration() time.Duration {
	if !i.Valid() {
		return 0
	}
	return i.Stop.Sub(i.Start)
}

// Overlaps reports whether both intervals share at least one instant.
// Touching intervals do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.Stop) && o.Start.Before(i.Stop)
}

func (i Interval) String() string {
	return fmt.Sprintf("[%s, %s)", i.Start.Format(time.RFC3339Nano), i.Stop.Format(time.RFC3339Nano))
}

// Set is an ordered sequence of disjoint, non-adjacent intervals.
// The zero value is the empty set. Operations never mutate the receiver.
type Set struct {
	items []Interval
}

// NewSet builds a Set from arbitrary intervals. Invalid intervals are dropped,
// overlapping or touching intervals are merged.
func NewSet(intervals ...Interval) Set {
	return Set{items: sweep(intervals, nil, 1)}
}

// Intervals returns a copy of the ordered intervals in the set.
func (s Set) Intervals() []Interval {
	out := make([]Interval, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of disjoint runs in the set.
func (s Set) Len() int {
	return len(s.items)
}

// IsEmpty reports whether the set covers no time at all.
func (s Set) IsEmpty() bool {
	return len(s.items) == 0
}

// Equal reports whether both sets cover exactly the same instants.
func (s Set) Equal(o Set) bool {
	if len(s.items) != len(o.items) {
		return false
	}
	for i := range s.items {
		if !s.items[i].Start.Equal(o.items[i].Start) || !s.items[i].Stop.Equal(o.items[i].Stop) {
			return false
		}
	}
	return true
}

// Union returns the instants covered by either set.
func (s Set) Union(o Set) Set {
	return Set{items: sweep(s.items, o.items, 1)}
}

// Intersect returns the instants covered by both sets.
func (s Set) Intersect(o Set) Set {
	if s.IsEmpty() || o.IsEmpty() {
		return Set{}
	}
	return Set{items: sweep(s.items, o.items, 2)}
}

// Subtract returns the instants of s that are not covered by o.
func (s Set) Subtract(o Set) Set {
	if s.IsEmpty() || o.IsEmpty() {
		return Set{items: s.Intervals()}
	}

	var out []Interval
	j := 0
	for _, cur := range s.items {
		start := cur.Start
		// Skip holes that end before this interval begins.
		for j < len(o.items) && !o.items[j].Stop.After(start) {
			j++
		}
		k := j
		for k < len(o.items) && o.items[k].Start.Before(cur.Stop) {
			hole := o.items[k]
			if hole.Start.After(start) {
				out = append(out, Interval{Start: start, Stop: hole.Start})
			}
			if hole.Stop.After(start) {
				start = hole.Stop
			}
			if !start.Before(cur.Stop) {
				break
			}
			k++
		}
		if start.Before(cur.Stop) {
			out = append(out, Interval{Start: start, Stop: cur.Stop})
		}
	}
	return Set{items: out}
}

// Clip returns the portion of s that lies inside bounds.
func (s Set) Clip(bounds Interval) Set {
	if !bounds.Valid() {
		return Set{}
	}
	return s.Intersect(NewSet(bounds))
}

// Contains reports whether span lies entirely inside one contiguous run of s.
// A gap of any size, even a single nanosecond, breaks containment. Invalid
// spans are never contained.
func (s Set) Contains(span Interval) bool {
	span = New(span.Start, span.Stop)
	if !span.Valid() {
		return false
	}
	// First run that ends after the span starts.
	idx := sort.Search(len(s.items), func(i int) bool {
		return s.items[i].Stop.After(span.Start)
	})
	if idx == len(s.items) {
		return false
	}
	run := s.items[idx]
	return !run.Start.After(span.Start) && !span.Stop.After(run.Stop)
}

func (s Set) String() string {
	return fmt.Sprint(s.items)
}

type event struct {
	at    time.Time
	delta int
}

// sweep merges the boundary events of both inputs and emits the spans whose
// coverage count reaches threshold. At equal instants, openings are handled
// before closings for unions (touching runs merge) and after them for
// intersections (touching runs do not produce empty overlaps).
func sweep(a, b []Interval, threshold int) []Interval {
	events := make([]event, 0, 2*(len(a)+len(b)))
	for _, list := range [][]Interval{a, b} {
		for _, in := range list {
			in = New(in.Start, in.Stop)
			if !in.Valid() {
				continue
			}
			events = append(events, event{at: in.Start, delta: 1}, event{at: in.Stop, delta: -1})
		}
	}
	if len(events) == 0 {
		return nil
	}

	opensFirst := threshold == 1
	sort.Slice(events, func(i, j int) bool {
		if !events[i].at.Equal(events[j].at) {
			return events[i].at.Before(events[j].at)
		}
		if opensFirst {
			return events[i].delta > events[j].delta
		}
		return events[i].delta < events[j].delta
	})

	var out []Interval
	var start time.Time
	count := 0
	for _, ev := range events {
		before := count
		count += ev.delta
		switch {
		case before < threshold && count >= threshold:
			start = ev.at
		case before >= threshold && count < threshold:
			if start.Before(ev.at) {
				out = appendMerged(out, Interval{Start: start, Stop: ev.at})
			}
		}
	}
	return out
}

func appendMerged(out []Interval, in Interval) []Interval {
	if n := len(out); n > 0 && !out[n-1].Stop.Before(in.Start) {
		if in.Stop.After(out[n-1].Stop) {
			out[n-1].Stop = in.Stop
		}
		return out
	}
	return append(out, in)
}
