package availability

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/nekogravitycat/resource-booking-backend/internal/calendar"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/resource-booking-backend/internal/resource"
)

var ErrInvalidDuration = apperror.New(http.StatusBadRequest, "slot and booking durations must be positive")

// BusyReader reports when resources are already committed.
type BusyReader interface {
	Busy(ctx context.Context, members []*resource.Resource, rng interval.Interval, excludeBookingID string) (interval.Set, error)
}

// Descriptor is everything the engine needs to know about one candidate
// combination in the context of a booking type.
type Descriptor struct {
	CombinationID    string
	Members          []*resource.Resource
	ForcedCalendarID string
	TypeCalendarID   string
}

// ResourceIDs lists the member ids in order.
func (d Descriptor) ResourceIDs() []string {
	ids := make([]string, len(d.Members))
	for i, m := range d.Members {
		ids[i] = m.ID
	}
	return ids
}

// Engine answers availability questions. It holds no state between calls.
type Engine struct {
	calendars calendar.Loader
	busy      BusyReader
	now       func() time.Time
}

type EngineOption func(*Engine)

// WithClock makes EnumerateSlots skip slots starting before now().
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func NewEngine(calendars calendar.Loader, busy BusyReader, opts ...EngineOption) *Engine {
	e := &Engine{calendars: calendars, busy: busy}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CalendarIntervals is the working time shared by every member, restricted
// by the booking type calendar when there is one. Busy time is ignored.
func (e *Engine) CalendarIntervals(ctx context.Context, d Descriptor, rng interval.Interval) (interval.Set, error) {
	rng = interval.New(rng.Start, rng.Stop)
	if !rng.Valid() || len(d.Members) == 0 {
		return interval.Set{}, nil
	}

	members := make([]calendar.Member, len(d.Members))
	for i, m := range d.Members {
		members[i] = calendar.Member{ResourceID: m.ID, CalendarID: m.CalendarID}
	}
	avail, err := calendar.CombinationAvailability(ctx, e.calendars, members, d.ForcedCalendarID, rng)
	if err != nil {
		return interval.Set{}, err
	}
	if avail.IsEmpty() || d.TypeCalendarID == "" {
		return avail, nil
	}

	typeCal, err := e.calendars.Load(ctx, d.TypeCalendarID, rng)
	if err != nil {
		return interval.Set{}, fmt.Errorf("load type calendar %s: %w", d.TypeCalendarID, err)
	}
	typeAvail, err := calendar.Availability(typeCal, "", rng)
	if err != nil {
		return interval.Set{}, err
	}
	return avail.Intersect(typeAvail), nil
}

type freeOptions struct {
	excludeBookingID string
	extraBusy        interval.Set
}

type FreeOption func(*freeOptions)

// ExcludingBooking ignores the commitment of bookingID, so a booking never
// conflicts with itself.
func ExcludingBooking(bookingID string) FreeOption {
	return func(o *freeOptions) { o.excludeBookingID = bookingID }
}

// WithExtraBusy removes additional busy time supplied by the caller.
func WithExtraBusy(set interval.Set) FreeOption {
	return func(o *freeOptions) { o.extraBusy = set }
}

// FreeIntervals is the calendar time of d within rng minus everything that
// already keeps a member busy.
func (e *Engine) FreeIntervals(ctx context.Context, d Descriptor, rng interval.Interval, opts ...FreeOption) (interval.Set, error) {
	var o freeOptions
	for _, opt := range opts {
		opt(&o)
	}

	avail, err := e.CalendarIntervals(ctx, d, rng)
	if err != nil || avail.IsEmpty() {
		return avail, err
	}

	busy, err := e.busy.Busy(ctx, d.Members, rng, o.excludeBookingID)
	if err != nil {
		return interval.Set{}, err
	}
	return avail.Subtract(busy.Union(o.extraBusy)), nil
}

// IsFitting reports whether [start, stop) lies inside a single interval of set.
func IsFitting(set interval.Set, start, stop time.Time) bool {
	return set.Contains(interval.New(start, stop))
}

// EnumerateSlots lists the start times where a booking of bookingDuration
// fits, stepping by slotDuration from the start of every free run. Free time
// is computed from the local midnight of rng.Start so the grid does not
// depend on the exact query start. Slots are grouped by local date in loc.
func (e *Engine) EnumerateSlots(ctx context.Context, d Descriptor, rng interval.Interval, slotDuration, bookingDuration time.Duration, loc *time.Location) (Slots, error) {
	if slotDuration <= 0 || bookingDuration <= 0 {
		return nil, ErrInvalidDuration
	}
	if loc == nil {
		loc = time.UTC
	}
	rng = interval.New(rng.Start, rng.Stop)
	slots := Slots{}
	if !rng.Valid() {
		return slots, nil
	}

	local := rng.Start.In(loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)

	free, err := e.FreeIntervals(ctx, d, interval.New(dayStart, rng.Stop))
	if err != nil {
		return nil, err
	}

	lower := rng.Start
	if e.now != nil {
		if now := e.now(); now.After(lower) {
			lower = now
		}
	}

	for _, run := range free.Intervals() {
		for start := run.Start; !start.Add(bookingDuration).After(run.Stop); start = start.Add(slotDuration) {
			if start.Before(lower) {
				continue
			}
			slots.add(start.In(loc))
		}
	}
	return slots, nil
}

// Slots maps a local date (YYYY-MM-DD) to the ascending slot starts of that day.
type Slots map[string][]time.Time

const dayLayout = "2006-01-02"

func (s Slots) add(t time.Time) {
	day := t.Format(dayLayout)
	s[day] = append(s[day], t)
}

// Days returns the dates holding at least one slot, ascending.
func (s Slots) Days() []string {
	days := make([]string, 0, len(s))
	for day, starts := range s {
		if len(starts) > 0 {
			days = append(days, day)
		}
	}
	sort.Strings(days)
	return days
}

// Merge returns the union of s and o with duplicates removed.
func (s Slots) Merge(o Slots) Slots {
	out := make(Slots, len(s)+len(o))
	for _, src := range []Slots{s, o} {
		for day, starts := range src {
			out[day] = append(out[day], starts...)
		}
	}
	for day, starts := range out {
		sort.Slice(starts, func(i, j int) bool { return starts[i].Before(starts[j]) })
		uniq := starts[:0]
		for i, t := range starts {
			if i == 0 || !t.Equal(uniq[len(uniq)-1]) {
				uniq = append(uniq, t)
			}
		}
		out[day] = uniq
	}
	return out
}
