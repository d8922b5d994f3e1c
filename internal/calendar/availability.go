package calendar

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
)

// Loader fetches a calendar together with the leaves overlapping rng.
type Loader interface {
	Load(ctx context.Context, calendarID string, rng interval.Interval) (*Calendar, error)
}

// Availability returns the working time of cal within rng for resourceID.
// Global leaves always apply; resource-scoped leaves apply only when they
// belong to resourceID. Pass an empty resourceID to apply global leaves only.
func Availability(cal *Calendar, resourceID string, rng interval.Interval) (interval.Set, error) {
	rng = interval.New(rng.Start, rng.Stop)
	if !rng.Valid() || cal == nil {
		return interval.Set{}, nil
	}
	loc, err := cal.Location()
	if err != nil {
		return interval.Set{}, err
	}

	working := interval.NewSet(expand(cal.Attendances, rng, loc)...).Clip(rng)

	var leaves []interval.Interval
	for _, l := range cal.Leaves {
		if l.AppliesTo(resourceID) {
			leaves = append(leaves, interval.New(l.DateFrom, l.DateTo))
		}
	}
	return working.Subtract(interval.NewSet(leaves...)), nil
}

// Member is the calendar-relevant view of a combination member.
type Member struct {
	ResourceID string
	CalendarID string
}

// CombinationAvailability returns the working time shared by every member.
// When forcedCalendarID is set it replaces each member's own calendar, but
// resource-scoped leaves of that calendar still apply per member.
func CombinationAvailability(ctx context.Context, loader Loader, members []Member, forcedCalendarID string, rng interval.Interval) (interval.Set, error) {
	if len(members) == 0 {
		return interval.Set{}, nil
	}

	cache := make(map[string]*Calendar)
	load := func(id string) (*Calendar, error) {
		if cal, ok := cache[id]; ok {
			return cal, nil
		}
		cal, err := loader.Load(ctx, id, rng)
		if err != nil {
			return nil, fmt.Errorf("load calendar %s: %w", id, err)
		}
		cache[id] = cal
		return cal, nil
	}

	var result interval.Set
	for i, m := range members {
		calID := m.CalendarID
		if forcedCalendarID != "" {
			calID = forcedCalendarID
		}
		if calID == "" {
			// A member without any calendar is never available.
			return interval.Set{}, nil
		}
		cal, err := load(calID)
		if err != nil {
			return interval.Set{}, err
		}
		avail, err := Availability(cal, m.ResourceID, rng)
		if err != nil {
			return interval.Set{}, err
		}
		if i == 0 {
			result = avail
		} else {
			result = result.Intersect(avail)
		}
		if result.IsEmpty() {
			return result, nil
		}
	}
	return result, nil
}

// expand turns the weekly pattern into concrete intervals for every local day
// overlapping rng. Spans ending at hour 24 reach the next local midnight so
// consecutive all-day attendances merge into one run.
func expand(attendances []Attendance, rng interval.Interval, loc *time.Location) []interval.Interval {
	if len(attendances) == 0 {
		return nil
	}

	first := rng.Start.In(loc)
	last := rng.Stop.In(loc)
	day := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)

	var out []interval.Interval
	for !day.After(last) {
		y, m, d := day.Date()
		for _, a := range attendances {
			if a.Weekday != day.Weekday() || a.Validate() != nil {
				continue
			}
			out = append(out, interval.New(atHour(y, m, d, a.HourFrom, loc), atHour(y, m, d, a.HourTo, loc)))
		}
		day = time.Date(y, m, d+1, 0, 0, 0, 0, loc)
	}
	return out
}

// atHour resolves a fractional hour of a local day to an instant, rounded to
// the second.
func atHour(y int, m time.Month, d int, hour float64, loc *time.Location) time.Time {
	seconds := int(math.Round(hour * 3600))
	return time.Date(y, m, d, 0, 0, seconds, 0, loc)
}
