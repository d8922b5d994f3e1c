package calendar

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
)

type mapLoader map[string]*Calendar

func (m mapLoader) Load(_ context.Context, id string, _ interval.Interval) (*Calendar, error) {
	cal, ok := m[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cal, nil
}

func utc(month time.Month, day, hour, minute int) time.Time {
	return time.Date(2021, month, day, hour, minute, 0, 0, time.UTC)
}

func weekdays(from, to float64, days ...time.Weekday) []Attendance {
	out := make([]Attendance, 0, len(days))
	for _, d := range days {
		out = append(out, Attendance{Weekday: d, HourFrom: from, HourTo: to})
	}
	return out
}

func TestAvailabilityMondayOnly(t *testing.T) {
	cal := &Calendar{ID: "mon", Attendances: weekdays(8, 17, time.Monday)}

	got, err := Availability(cal, "", interval.New(utc(3, 1, 0, 0), utc(3, 8, 0, 0)))
	require.NoError(t, err)

	want := interval.NewSet(interval.New(utc(3, 1, 8, 0), utc(3, 1, 17, 0)))
	assert.True(t, want.Equal(got), "got %v", got)
}

func TestAvailabilityClipsToRange(t *testing.T) {
	cal := &Calendar{ID: "mon", Attendances: weekdays(8, 17, time.Monday)}

	got, err := Availability(cal, "", interval.New(utc(3, 1, 14, 15), utc(3, 8, 10, 0)))
	require.NoError(t, err)

	want := interval.NewSet(
		interval.New(utc(3, 1, 14, 15), utc(3, 1, 17, 0)),
		interval.New(utc(3, 8, 8, 0), utc(3, 8, 10, 0)),
	)
	assert.True(t, want.Equal(got), "got %v", got)
}

func TestAvailabilityMidnightSpanning(t *testing.T) {
	rng := interval.New(utc(3, 1, 0, 0), utc(3, 8, 0, 0))
	request := interval.New(utc(3, 5, 18, 0), utc(3, 7, 18, 0))

	t.Run("full days merge into one run", func(t *testing.T) {
		cal := &Calendar{Attendances: weekdays(0, 24, time.Friday, time.Saturday, time.Sunday)}

		got, err := Availability(cal, "", rng)
		require.NoError(t, err)

		require.Equal(t, 1, got.Len())
		assert.Equal(t, interval.New(utc(3, 5, 0, 0), utc(3, 8, 0, 0)), got.Intervals()[0])
		assert.True(t, got.Contains(request))
	})

	t.Run("ending before midnight breaks contiguity", func(t *testing.T) {
		cal := &Calendar{Attendances: weekdays(0, 23.96, time.Friday, time.Saturday, time.Sunday)}

		got, err := Availability(cal, "", rng)
		require.NoError(t, err)

		assert.Equal(t, 3, got.Len())
		assert.Equal(t, utc(3, 5, 23, 57).Add(36*time.Second), got.Intervals()[0].Stop)
		assert.False(t, got.Contains(request))
	})
}

func TestAvailabilityLeaves(t *testing.T) {
	cal := &Calendar{
		Attendances: weekdays(8, 17, time.Monday, time.Tuesday),
		Leaves: []Leave{
			{Name: "holiday", DateFrom: utc(3, 1, 0, 0), DateTo: utc(3, 2, 0, 0)},
			{Name: "dentist", ResourceID: "alice", DateFrom: utc(3, 2, 10, 0), DateTo: utc(3, 2, 12, 0)},
		},
	}
	rng := interval.New(utc(3, 1, 0, 0), utc(3, 3, 0, 0))

	t.Run("global leave applies to everyone", func(t *testing.T) {
		got, err := Availability(cal, "bob", rng)
		require.NoError(t, err)

		want := interval.NewSet(interval.New(utc(3, 2, 8, 0), utc(3, 2, 17, 0)))
		assert.True(t, want.Equal(got), "got %v", got)
	})

	t.Run("resource leave applies to its resource only", func(t *testing.T) {
		got, err := Availability(cal, "alice", rng)
		require.NoError(t, err)

		want := interval.NewSet(
			interval.New(utc(3, 2, 8, 0), utc(3, 2, 10, 0)),
			interval.New(utc(3, 2, 12, 0), utc(3, 2, 17, 0)),
		)
		assert.True(t, want.Equal(got), "got %v", got)
	})
}

func TestAvailabilityUsesCalendarTimezone(t *testing.T) {
	cal := &Calendar{Timezone: "Europe/Brussels", Attendances: weekdays(8, 17, time.Monday)}

	got, err := Availability(cal, "", interval.New(utc(3, 1, 0, 0), utc(3, 2, 0, 0)))
	require.NoError(t, err)

	want := interval.NewSet(interval.New(utc(3, 1, 7, 0), utc(3, 1, 16, 0)))
	assert.True(t, want.Equal(got), "got %v", got)
}

func TestAvailabilityInvalidTimezone(t *testing.T) {
	cal := &Calendar{Timezone: "Mars/Olympus", Attendances: weekdays(8, 17, time.Monday)}

	_, err := Availability(cal, "", interval.New(utc(3, 1, 0, 0), utc(3, 2, 0, 0)))
	assert.ErrorIs(t, err, ErrInvalidTimezone)
}

func TestCombinationAvailability(t *testing.T) {
	loader := mapLoader{
		"mon":    {ID: "mon", Attendances: weekdays(8, 17, time.Monday)},
		"tue":    {ID: "tue", Attendances: weekdays(8, 17, time.Tuesday)},
		"montue": {ID: "montue", Attendances: weekdays(8, 17, time.Monday, time.Tuesday)},
		"half": {
			ID:          "half",
			Attendances: weekdays(12, 20, time.Monday),
			Leaves:      []Leave{{ResourceID: "b", DateFrom: utc(3, 1, 12, 0), DateTo: utc(3, 1, 13, 0)}},
		},
	}
	rng := interval.New(utc(3, 1, 0, 0), utc(3, 8, 0, 0))
	ctx := context.Background()

	tests := []struct {
		name    string
		members []Member
		forced  string
		want    interval.Set
	}{
		{
			name:    "disjoint calendars give nothing",
			members: []Member{{ResourceID: "a", CalendarID: "mon"}, {ResourceID: "b", CalendarID: "tue"}},
			want:    interval.Set{},
		},
		{
			name:    "overlapping calendars intersect",
			members: []Member{{ResourceID: "a", CalendarID: "montue"}, {ResourceID: "b", CalendarID: "half"}},
			want:    interval.NewSet(interval.New(utc(3, 1, 13, 0), utc(3, 1, 17, 0))),
		},
		{
			name:    "forced calendar replaces member calendars",
			members: []Member{{ResourceID: "a", CalendarID: "mon"}, {ResourceID: "b", CalendarID: "tue"}},
			forced:  "montue",
			want: interval.NewSet(
				interval.New(utc(3, 1, 8, 0), utc(3, 1, 17, 0)),
				interval.New(utc(3, 2, 8, 0), utc(3, 2, 17, 0)),
			),
		},
		{
			name:    "member without calendar is never available",
			members: []Member{{ResourceID: "a", CalendarID: "mon"}, {ResourceID: "b"}},
			want:    interval.Set{},
		},
		{
			name: "no members",
			want: interval.Set{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CombinationAvailability(ctx, loader, tt.members, tt.forced, rng)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
		})
	}
}

func TestCombinationAvailabilityUnknownCalendar(t *testing.T) {
	_, err := CombinationAvailability(context.Background(), mapLoader{}, []Member{{ResourceID: "a", CalendarID: "nope"}}, "", interval.New(utc(3, 1, 0, 0), utc(3, 2, 0, 0)))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidateAttendances(t *testing.T) {
	tests := []struct {
		name string
		in   []Attendance
		want error
	}{
		{name: "valid", in: weekdays(8, 17, time.Monday, time.Friday)},
		{name: "full day", in: weekdays(0, 24, time.Sunday)},
		{name: "inverted hours", in: weekdays(17, 8, time.Monday), want: ErrInvalidAttendance},
		{name: "past midnight", in: weekdays(20, 25, time.Monday), want: ErrInvalidAttendance},
		{name: "empty span", in: weekdays(9, 9, time.Monday), want: ErrInvalidAttendance},
		{name: "bad weekday", in: []Attendance{{Weekday: 7, HourFrom: 8, HourTo: 9}}, want: ErrInvalidWeekday},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAttendances(tt.in)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
