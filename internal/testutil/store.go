// Package testutil holds in-memory stand-ins for the Postgres repositories
// and a ready-made scheduling fixture for service and handler tests.
package testutil

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nekogravitycat/resource-booking-backend/internal/booking"
	"github.com/nekogravitycat/resource-booking-backend/internal/bookingtype"
	"github.com/nekogravitycat/resource-booking-backend/internal/busy"
	"github.com/nekogravitycat/resource-booking-backend/internal/calendar"
	"github.com/nekogravitycat/resource-booking-backend/internal/combination"
	"github.com/nekogravitycat/resource-booking-backend/internal/db"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
	"github.com/nekogravitycat/resource-booking-backend/internal/resource"
	"github.com/nekogravitycat/resource-booking-backend/internal/scheduling"
)

type state struct {
	calendars map[string]calendar.Calendar
	resources map[string]resource.Resource
	combos    map[string]combination.Combination
	types     map[string]bookingtype.BookingType
	bookings  map[string]booking.Booking
	meetings  []busy.Meeting
}

func newState() state {
	return state{
		calendars: map[string]calendar.Calendar{},
		resources: map[string]resource.Resource{},
		combos:    map[string]combination.Combination{},
		types:     map[string]bookingtype.BookingType{},
		bookings:  map[string]booking.Booking{},
	}
}

func (s state) clone() state {
	out := newState()
	for k, v := range s.calendars {
		v.Attendances = slices.Clone(v.Attendances)
		v.Leaves = slices.Clone(v.Leaves)
		out.calendars[k] = v
	}
	for k, v := range s.resources {
		out.resources[k] = v
	}
	for k, v := range s.combos {
		v.ResourceIDs = slices.Clone(v.ResourceIDs)
		out.combos[k] = v
	}
	for k, v := range s.types {
		v.Combinations = slices.Clone(v.Combinations)
		out.types[k] = v
	}
	for k, v := range s.bookings {
		v.ResourceIDs = slices.Clone(v.ResourceIDs)
		out.bookings[k] = v
	}
	out.meetings = slices.Clone(s.meetings)
	return out
}

// Store keeps every table in memory. Its repository views behave like the
// pgx repositories, including the exclusion constraint on booked resources.
type Store struct {
	mu    sync.Mutex
	state state
	clock time.Time

	// Locked collects every resource id passed to LockResources.
	Locked []string
}

func NewStore() *Store {
	return &Store{state: newState(), clock: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// tick hands out strictly increasing creation times so listings are stable.
func (s *Store) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

// ---- seeding ----

func (s *Store) PutCalendar(c calendar.Calendar) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	c.CreatedAt, c.UpdatedAt = s.tick(), s.clock
	s.state.calendars[c.ID] = c
	return c.ID
}

func (s *Store) PutResource(r resource.Resource) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = s.tick()
	s.state.resources[r.ID] = r
	return r.ID
}

func (s *Store) PutCombination(c combination.Combination) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.state.combos[c.ID] = c
	return c.ID
}

func (s *Store) PutBookingType(bt bookingtype.BookingType) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if bt.ID == "" {
		bt.ID = uuid.NewString()
	}
	bt.CreatedAt = s.tick()
	s.state.types[bt.ID] = bt
	return bt.ID
}

func (s *Store) PutMeeting(m busy.Meeting) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	s.state.meetings = append(s.state.meetings, m)
	return m.ID
}

// SetSequence changes the priority of a combination within a booking type.
func (s *Store) SetSequence(typeID, combinationID string, sequence int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bt := s.state.types[typeID]
	bt.Combinations = slices.Clone(bt.Combinations)
	for i := range bt.Combinations {
		if bt.Combinations[i].CombinationID == combinationID {
			bt.Combinations[i].Sequence = sequence
		}
	}
	s.state.types[typeID] = bt
}

// Booking returns a copy of the stored booking.
func (s *Store) Booking(id string) (booking.Booking, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.state.bookings[id]
	return b, ok
}

// ---- transactions ----

type txKey struct{}

// WithinTx snapshots the store and restores it when fn fails. Nested calls
// join the outer transaction.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(txKey{}) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	snapshot := s.state.clone()
	s.mu.Unlock()

	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		s.mu.Lock()
		s.state = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

func (s *Store) LockResources(ctx context.Context, resourceIDs []string) error {
	if ctx.Value(txKey{}) == nil {
		return db.ErrNoTransaction
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Locked = append(s.Locked, resourceIDs...)
	return nil
}

// ---- calendar.Repository ----

type calendarRepo struct{ s *Store }

func (s *Store) Calendars() calendar.Repository { return calendarRepo{s} }

func (r calendarRepo) GetByID(_ context.Context, id string) (*calendar.Calendar, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.state.calendars[id]
	if !ok {
		return nil, calendar.ErrNotFound
	}
	c.Attendances = slices.Clone(c.Attendances)
	c.Leaves = nil
	return &c, nil
}

func (r calendarRepo) Load(_ context.Context, id string, rng interval.Interval) (*calendar.Calendar, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.state.calendars[id]
	if !ok {
		return nil, calendar.ErrNotFound
	}
	c.Attendances = slices.Clone(c.Attendances)
	var leaves []calendar.Leave
	for _, l := range c.Leaves {
		if l.DateFrom.Before(rng.Stop) && l.DateTo.After(rng.Start) {
			leaves = append(leaves, l)
		}
	}
	c.Leaves = leaves
	return &c, nil
}

func (r calendarRepo) ReplaceAttendances(_ context.Context, calendarID string, attendances []calendar.Attendance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.state.calendars[calendarID]
	if !ok {
		return calendar.ErrNotFound
	}
	c.Attendances = slices.Clone(attendances)
	c.UpdatedAt = r.s.tick()
	r.s.state.calendars[calendarID] = c
	return nil
}

func (r calendarRepo) CreateLeave(_ context.Context, l *calendar.Leave) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.state.calendars[l.CalendarID]
	if !ok {
		return calendar.ErrNotFound
	}
	l.ID = uuid.NewString()
	c.Leaves = append(slices.Clone(c.Leaves), *l)
	r.s.state.calendars[l.CalendarID] = c
	return nil
}

// ---- resource.Repository ----

type resourceRepo struct{ s *Store }

func (s *Store) Resources() resource.Repository { return resourceRepo{s} }

func (r resourceRepo) Create(_ context.Context, res *resource.Resource) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res.ID = uuid.NewString()
	res.CreatedAt = r.s.tick()
	r.s.state.resources[res.ID] = *res
	return nil
}

func (r resourceRepo) GetByID(_ context.Context, id string) (*resource.Resource, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	res, ok := r.s.state.resources[id]
	if !ok {
		return nil, resource.ErrNotFound
	}
	return &res, nil
}

func (r resourceRepo) ListByIDs(_ context.Context, ids []string) ([]*resource.Resource, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*resource.Resource, 0, len(ids))
	for _, id := range ids {
		res, ok := r.s.state.resources[id]
		if !ok {
			return nil, resource.ErrNotFound
		}
		out = append(out, &res)
	}
	return out, nil
}

func (r resourceRepo) List(_ context.Context, filter resource.Filter) ([]*resource.Resource, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*resource.Resource
	for _, res := range r.s.state.resources {
		if filter.Type != "" && res.Type != filter.Type {
			continue
		}
		if filter.CalendarID != "" && res.CalendarID != filter.CalendarID {
			continue
		}
		all = append(all, &res)
	}
	sort.Slice(all, func(i, j int) bool {
		if filter.SortOrder == "ASC" {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, filter.Page, filter.PageSize), len(all), nil
}

// ---- combination.Repository ----

type combinationRepo struct{ s *Store }

func (s *Store) Combinations() combination.Repository { return combinationRepo{s} }

func (r combinationRepo) GetByID(_ context.Context, id string) (*combination.Combination, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.state.combos[id]
	if !ok {
		return nil, combination.ErrNotFound
	}
	c.ResourceIDs = slices.Clone(c.ResourceIDs)
	return &c, nil
}

func (r combinationRepo) ListByIDs(ctx context.Context, ids []string) ([]*combination.Combination, error) {
	out := make([]*combination.Combination, 0, len(ids))
	for _, id := range ids {
		c, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// ---- bookingtype.Repository ----

type bookingTypeRepo struct{ s *Store }

func (s *Store) BookingTypes() bookingtype.Repository { return bookingTypeRepo{s} }

func (r bookingTypeRepo) Create(_ context.Context, bt *bookingtype.BookingType) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bt.ID = uuid.NewString()
	bt.CreatedAt = r.s.tick()
	stored := *bt
	stored.Combinations = slices.Clone(bt.Combinations)
	r.s.state.types[bt.ID] = stored
	return nil
}

func (r bookingTypeRepo) GetByID(_ context.Context, id string) (*bookingtype.BookingType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	bt, ok := r.s.state.types[id]
	if !ok {
		return nil, bookingtype.ErrNotFound
	}
	bt.Combinations = slices.Clone(bt.Combinations)
	sort.SliceStable(bt.Combinations, func(i, j int) bool {
		return bt.Combinations[i].Sequence < bt.Combinations[j].Sequence
	})
	return &bt, nil
}

func (r bookingTypeRepo) List(ctx context.Context, filter bookingtype.Filter) ([]*bookingtype.BookingType, int, error) {
	r.s.mu.Lock()
	ids := make([]string, 0, len(r.s.state.types))
	for id := range r.s.state.types {
		ids = append(ids, id)
	}
	r.s.mu.Unlock()

	all := make([]*bookingtype.BookingType, 0, len(ids))
	for _, id := range ids {
		bt, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, 0, err
		}
		all = append(all, bt)
	}
	sort.Slice(all, func(i, j int) bool {
		if filter.SortOrder == "ASC" {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, filter.Page, filter.PageSize), len(all), nil
}

// ---- booking.Repository ----

type bookingRepo struct{ s *Store }

func (s *Store) Bookings() booking.Repository { return bookingRepo{s} }

func (r bookingRepo) Create(_ context.Context, b *booking.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b.ID = uuid.NewString()
	b.CreatedAt = r.s.tick()
	b.UpdatedAt = b.CreatedAt
	return r.store(b)
}

func (r bookingRepo) Update(_ context.Context, b *booking.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.state.bookings[b.ID]; !ok {
		return booking.ErrNotFound
	}
	b.UpdatedAt = r.s.tick()
	return r.store(b)
}

// store mirrors the booking_resources exclusion constraint. Callers hold mu.
func (r bookingRepo) store(b *booking.Booking) error {
	if b.Blocking() {
		for _, other := range r.s.state.bookings {
			if other.ID == b.ID || !other.Blocking() || !other.Span().Overlaps(b.Span()) {
				continue
			}
			if sharesAny(other.ResourceIDs, b.ResourceIDs) {
				return &scheduling.ConflictError{
					CombinationID: b.CombinationID,
					Start:         b.Start,
					Stop:          b.Stop,
					Reason:        scheduling.ReasonBusy,
				}
			}
		}
	}
	stored := *b
	stored.ResourceIDs = slices.Clone(b.ResourceIDs)
	r.s.state.bookings[b.ID] = stored
	return nil
}

func (r bookingRepo) GetByID(_ context.Context, id string) (*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.state.bookings[id]
	if !ok {
		return nil, booking.ErrNotFound
	}
	b.ResourceIDs = slices.Clone(b.ResourceIDs)
	return &b, nil
}

func (r bookingRepo) GetForUpdate(ctx context.Context, id string) (*booking.Booking, error) {
	return r.GetByID(ctx, id)
}

func (r bookingRepo) List(_ context.Context, filter booking.Filter) ([]*booking.Booking, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*booking.Booking
	for _, b := range r.s.state.bookings {
		switch {
		case filter.RequesterID != "" && b.RequesterID != filter.RequesterID:
			continue
		case filter.TypeID != "" && b.TypeID != filter.TypeID:
			continue
		case filter.State != "" && b.State != filter.State:
			continue
		case filter.From != nil && (!b.Scheduled() || !b.Stop.After(*filter.From)):
			continue
		case filter.To != nil && (!b.Scheduled() || !b.Start.Before(*filter.To)):
			continue
		}
		b.ResourceIDs = slices.Clone(b.ResourceIDs)
		all = append(all, &b)
	}
	sort.Slice(all, func(i, j int) bool {
		if filter.SortOrder == "ASC" {
			return all[i].CreatedAt.Before(all[j].CreatedAt)
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, filter.Page, filter.PageSize), len(all), nil
}

func (r bookingRepo) ListDependingOnCalendar(_ context.Context, calendarID string, from time.Time) ([]*booking.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*booking.Booking
	for _, b := range r.s.state.bookings {
		if !b.Blocking() || b.Start.Before(from) || !r.dependsOn(b, calendarID) {
			continue
		}
		b.ResourceIDs = slices.Clone(b.ResourceIDs)
		out = append(out, &b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (r bookingRepo) dependsOn(b booking.Booking, calendarID string) bool {
	if r.s.state.types[b.TypeID].CalendarID == calendarID {
		return true
	}
	combo, ok := r.s.state.combos[b.CombinationID]
	if !ok {
		return false
	}
	if combo.ForcedCalendarID == calendarID {
		return true
	}
	for _, id := range combo.ResourceIDs {
		if r.s.state.resources[id].CalendarID == calendarID {
			return true
		}
	}
	return false
}

// ---- busy.Source ----

type busySource struct{ s *Store }

func (s *Store) BusySource() busy.Source { return busySource{s} }

func (src busySource) Commitments(_ context.Context, resourceIDs, userIDs []string, rng interval.Interval, excludeBookingID string) ([]busy.Commitment, error) {
	src.s.mu.Lock()
	defer src.s.mu.Unlock()
	var out []busy.Commitment
	for _, b := range src.s.state.bookings {
		if !b.Blocking() || b.ID == excludeBookingID || !b.Span().Overlaps(rng) {
			continue
		}
		if !sharesAny(b.ResourceIDs, resourceIDs) && !slices.Contains(userIDs, b.RequesterID) {
			continue
		}
		out = append(out, busy.Commitment{
			BookingID:   b.ID,
			RequesterID: b.RequesterID,
			ResourceIDs: slices.Clone(b.ResourceIDs),
			Start:       b.Start,
			Stop:        b.Stop,
		})
	}
	return out, nil
}

func (src busySource) Meetings(_ context.Context, userIDs []string, _ interval.Interval) ([]busy.Meeting, error) {
	src.s.mu.Lock()
	defer src.s.mu.Unlock()
	var out []busy.Meeting
	for _, m := range src.s.state.meetings {
		if sharesAny(m.AttendeeIDs, userIDs) || slices.Contains(userIDs, m.OrganizerID) {
			out = append(out, m)
		}
	}
	return out, nil
}

func sharesAny(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}

func page[T any](items []T, page, size int) []T {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := min(start+size, len(items))
	return items[start:end]
}
