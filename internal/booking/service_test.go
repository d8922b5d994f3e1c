package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/resource-booking-backend/internal/booking"
	"github.com/nekogravitycat/resource-booking-backend/internal/bookingtype"
	"github.com/nekogravitycat/resource-booking-backend/internal/busy"
	"github.com/nekogravitycat/resource-booking-backend/internal/calendar"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
	"github.com/nekogravitycat/resource-booking-backend/internal/scheduling"
	"github.com/nekogravitycat/resource-booking-backend/internal/testutil"
)

var utc = testutil.UTC

func boolPtr(v bool) *bool { return &v }

func calendarLeave(from, to time.Time) calendar.CreateLeaveRequest {
	return calendar.CreateLeaveRequest{Name: "closed", DateFrom: from, DateTo: to}
}

func clock(times []time.Time) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.Format("15:04")
	}
	return out
}

func requireConflict(t *testing.T, err error, reason scheduling.Reason) *scheduling.ConflictError {
	t.Helper()
	var conflict *scheduling.ConflictError
	require.True(t, errors.As(err, &conflict), "want ConflictError, got %v", err)
	assert.Equal(t, reason, conflict.Reason)
	return conflict
}

func TestCreateAutoAssignSorted(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()

	b, err := f.Bookings.Create(ctx, testutil.Customer("customer-1"), booking.SchedulingRequest{
		TypeID: f.Type,
		Start:  utc(3, 1, 9, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, f.C0, b.CombinationID)
	assert.ElementsMatch(t, []string{f.PersonMon, f.MaterialMon}, b.ResourceIDs)
	assert.Equal(t, booking.StateScheduled, b.State)
	assert.Equal(t, utc(3, 1, 10, 0), b.Stop, "type duration applies")
	assert.Equal(t, "Main office", b.Location)
	assert.Equal(t, "Videocall Main office", b.VideocallLocation)
	assert.Subset(t, f.Store.Locked, []string{f.PersonMon, f.MaterialMon})
}

func TestCreateFallsThroughBusyCombinations(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()
	f.Store.SetSequence(f.Type, f.C0, 10)

	// Marked as free, so it does not keep the MonTue person busy.
	f.Store.PutMeeting(busy.Meeting{
		Name:        "lunch and learn",
		Start:       utc(3, 1, 9, 0),
		Stop:        utc(3, 1, 10, 0),
		OrganizerID: "boss",
		AttendeeIDs: []string{f.UserMonTue},
		ShowAsFree:  true,
	})

	rb1, err := f.Bookings.Create(ctx, testutil.Customer("customer-1"), booking.SchedulingRequest{
		TypeID:   f.Type,
		Start:    utc(3, 1, 9, 0),
		Duration: time.Hour,
	})
	require.NoError(t, err)
	assert.Equal(t, f.C2, rb1.CombinationID)

	rb2, err := f.Bookings.Create(ctx, testutil.Customer("customer-2"), booking.SchedulingRequest{
		TypeID:   f.Type,
		Start:    utc(3, 1, 9, 0),
		Duration: 90 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, f.C0, rb2.CombinationID)

	_, err = f.Bookings.Create(ctx, testutil.Customer("customer-3"), booking.SchedulingRequest{
		TypeID:   f.Type,
		Start:    utc(3, 1, 9, 30),
		Duration: 30 * time.Minute,
	})
	var none *scheduling.NoAvailabilityError
	require.True(t, errors.As(err, &none), "got %v", err)
	assert.Equal(t, f.Type, none.TypeID)

	list, total, err := f.Bookings.List(ctx, booking.Filter{TypeID: f.Type})
	require.NoError(t, err)
	assert.Equal(t, 2, total, "failed request must not be stored")
	assert.Len(t, list, 2)
}

func TestAttendedMeetingBlocksPerson(t *testing.T) {
	f := testutil.NewFixture()
	f.Store.SetSequence(f.Type, f.C0, 10)
	f.Store.PutMeeting(busy.Meeting{
		Start:       utc(3, 1, 9, 0),
		Stop:        utc(3, 1, 10, 0),
		OrganizerID: "boss",
		AttendeeIDs: []string{f.UserMonTue},
	})

	b, err := f.Bookings.Create(context.Background(), testutil.Customer("customer-1"), booking.SchedulingRequest{
		TypeID: f.Type,
		Start:  utc(3, 1, 9, 0),
	})
	require.NoError(t, err)
	assert.Equal(t, f.C0, b.CombinationID)
}

func TestRequesterBusyOnlyAppliesToOwnCombination(t *testing.T) {
	f := testutil.NewFixture()

	b, err := f.Bookings.Create(context.Background(), testutil.Customer(f.UserMon), booking.SchedulingRequest{
		TypeID:        f.Type,
		Start:         utc(3, 1, 9, 0),
		RequesterBusy: interval.NewSet(interval.New(utc(3, 1, 9, 0), utc(3, 1, 10, 0))),
	})
	require.NoError(t, err)
	assert.Equal(t, f.C2, b.CombinationID)
}

func TestRecurringMeetingBlocksPinnedCombination(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()
	f.Store.PutMeeting(busy.Meeting{
		Name:        "weekly",
		Start:       utc(2, 22, 8, 0),
		Stop:        utc(2, 22, 9, 0),
		OrganizerID: "boss",
		AttendeeIDs: []string{f.UserMonTue},
		Recurrence:  &busy.Recurrence{Interval: 1, Count: 2},
	})

	pinned := func(start time.Time) (*booking.Booking, error) {
		return f.Bookings.Create(ctx, testutil.Customer("customer-1"), booking.SchedulingRequest{
			TypeID:        f.Type,
			Start:         start,
			CombinationID: f.C2,
		})
	}

	_, err := pinned(utc(3, 1, 8, 0))
	requireConflict(t, err, scheduling.ReasonBusy)

	b, err := pinned(utc(3, 1, 9, 0))
	require.NoError(t, err)
	assert.Equal(t, f.C2, b.CombinationID)
	assert.False(t, b.AutoAssign)

	// The series is over after two occurrences.
	_, err = pinned(utc(3, 8, 8, 0))
	require.NoError(t, err)
}

func TestRandomPolicyPicksAFreeCandidate(t *testing.T) {
	f := testutil.NewFixture()
	typeID := f.Store.PutBookingType(bookingtype.BookingType{
		Name:       "Any room",
		Assignment: scheduling.PolicyRandom,
		Combinations: []bookingtype.CombinationRel{
			{CombinationID: f.C0}, {CombinationID: f.C1}, {CombinationID: f.C2},
		},
		SlotDuration: 30 * time.Minute,
		Duration:     time.Hour,
	})

	b, err := f.Bookings.Create(context.Background(), testutil.Customer("customer-1"), booking.SchedulingRequest{
		TypeID: typeID,
		Start:  utc(3, 1, 9, 0),
	})
	require.NoError(t, err)
	assert.Contains(t, []string{f.C0, f.C2}, b.CombinationID, "Tuesday-only combination cannot host a Monday booking")
}

func TestCreateValidation(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()

	tests := []struct {
		name  string
		actor booking.Actor
		req   booking.SchedulingRequest
		want  error
	}{
		{
			name: "missing requester",
			req:  booking.SchedulingRequest{TypeID: f.Type},
			want: booking.ErrRequesterRequired,
		},
		{
			name:  "booking for someone else",
			actor: testutil.Customer("customer-1"),
			req:   booking.SchedulingRequest{TypeID: f.Type, RequesterID: "customer-2"},
			want:  booking.ErrPermissionDenied,
		},
		{
			name:  "manual assignment without combination",
			actor: testutil.Customer("customer-1"),
			req:   booking.SchedulingRequest{TypeID: f.Type, AutoAssign: boolPtr(false)},
			want:  booking.ErrCombinationRequired,
		},
		{
			name:  "foreign combination",
			actor: testutil.Customer("customer-1"),
			req:   booking.SchedulingRequest{TypeID: f.Type, CombinationID: "not-offered"},
			want:  bookingtype.ErrCombinationNotInType,
		},
		{
			name:  "unknown type",
			actor: testutil.Customer("customer-1"),
			req:   booking.SchedulingRequest{TypeID: "missing"},
			want:  bookingtype.ErrNotFound,
		},
		{
			name:  "stop before start",
			actor: testutil.Customer("customer-1"),
			req:   booking.SchedulingRequest{TypeID: f.Type, Start: utc(3, 1, 10, 0), Stop: utc(3, 1, 9, 0)},
			want:  booking.ErrInvalidTimeRange,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Bookings.Create(ctx, tt.actor, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestStaffBooksOnBehalfOfRequester(t *testing.T) {
	f := testutil.NewFixture()

	b, err := f.Bookings.Create(context.Background(), testutil.Staff, booking.SchedulingRequest{
		TypeID:      f.Type,
		RequesterID: "customer-9",
	})
	require.NoError(t, err)
	assert.Equal(t, "customer-9", b.RequesterID)
	assert.Equal(t, booking.StatePending, b.State)
	assert.Empty(t, b.CombinationID)
}

func TestLifecycle(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()
	owner := testutil.Customer("customer-1")

	b, err := f.Bookings.Create(ctx, owner, booking.SchedulingRequest{TypeID: f.Type, Name: " Kickoff "})
	require.NoError(t, err)
	require.Equal(t, booking.StatePending, b.State)
	assert.Equal(t, "Kickoff", b.Name)
	assert.Equal(t, time.Hour, b.Duration)

	_, err = f.Bookings.Confirm(ctx, owner, b.ID)
	assert.ErrorIs(t, err, booking.ErrNotScheduled)

	start := utc(3, 2, 10, 0)
	b, err = f.Bookings.Schedule(ctx, owner, b.ID, booking.ScheduleRequest{Start: &start})
	require.NoError(t, err)
	assert.Equal(t, booking.StateScheduled, b.State)
	assert.Equal(t, f.C1, b.CombinationID, "Tuesday goes to the first Tuesday combination")

	b, err = f.Bookings.Confirm(ctx, owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StateConfirmed, b.State)

	b, err = f.Bookings.Unschedule(ctx, owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatePending, b.State)
	assert.Empty(t, b.ResourceIDs)
	assert.Equal(t, f.C1, b.CombinationID)

	b, err = f.Bookings.Cancel(ctx, owner, b.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StateCanceled, b.State)
	assert.False(t, b.Active)

	b, err = f.Bookings.Cancel(ctx, owner, b.ID)
	require.NoError(t, err, "canceling twice is a no-op")
	assert.Equal(t, booking.StateCanceled, b.State)

	_, err = f.Bookings.Schedule(ctx, owner, b.ID, booking.ScheduleRequest{Start: &start})
	assert.ErrorIs(t, err, booking.ErrCanceled)
}

func TestRescheduleIgnoresOwnSlot(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()
	owner := testutil.Customer("customer-1")

	b, err := f.Bookings.Create(ctx, owner, booking.SchedulingRequest{TypeID: f.Type, Start: utc(3, 1, 9, 0)})
	require.NoError(t, err)
	require.Equal(t, f.C0, b.CombinationID)

	start := utc(3, 1, 9, 30)
	moved, err := f.Bookings.Schedule(ctx, owner, b.ID, booking.ScheduleRequest{Start: &start})
	require.NoError(t, err)
	assert.Equal(t, f.C0, moved.CombinationID)
	assert.Equal(t, utc(3, 1, 10, 30), moved.Stop)
}

func TestMovingConfirmedBookingNeedsReconfirmation(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()
	owner := testutil.Customer("customer-1")

	b, err := f.Bookings.Create(ctx, owner, booking.SchedulingRequest{TypeID: f.Type, Start: utc(3, 1, 9, 0)})
	require.NoError(t, err)
	_, err = f.Bookings.Confirm(ctx, owner, b.ID)
	require.NoError(t, err)

	renamed := "Room 12"
	b, err = f.Bookings.Schedule(ctx, owner, b.ID, booking.ScheduleRequest{Location: &renamed})
	require.NoError(t, err)
	assert.Equal(t, booking.StateConfirmed, b.State)

	start := utc(3, 1, 13, 0)
	b, err = f.Bookings.Schedule(ctx, owner, b.ID, booking.ScheduleRequest{Start: &start})
	require.NoError(t, err)
	assert.Equal(t, booking.StateScheduled, b.State)
}

func TestPinnedDoubleBookingRejected(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()
	req := booking.SchedulingRequest{TypeID: f.Type, Start: utc(3, 1, 9, 0), CombinationID: f.C0}

	_, err := f.Bookings.Create(ctx, testutil.Customer("customer-1"), req)
	require.NoError(t, err)

	_, err = f.Bookings.Create(ctx, testutil.Customer("customer-2"), req)
	requireConflict(t, err, scheduling.ReasonBusy)
}

func TestPermissions(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()

	b, err := f.Bookings.Create(ctx, testutil.Customer("customer-1"), booking.SchedulingRequest{TypeID: f.Type})
	require.NoError(t, err)

	_, err = f.Bookings.GetByID(ctx, testutil.Customer("customer-2"), b.ID)
	assert.ErrorIs(t, err, booking.ErrPermissionDenied)

	_, err = f.Bookings.Cancel(ctx, testutil.Customer("customer-2"), b.ID)
	assert.ErrorIs(t, err, booking.ErrPermissionDenied)

	got, err := f.Bookings.GetByID(ctx, testutil.Staff, b.ID)
	require.NoError(t, err)
	assert.Equal(t, b.ID, got.ID)

	_, err = f.Bookings.GetByID(ctx, testutil.Staff, "missing")
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestCalendarChangeRevalidatesFutureBookings(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()
	owner := testutil.Customer("customer-1")

	// Already happened; it must not hold the change back.
	_, err := f.Bookings.Create(ctx, owner, booking.SchedulingRequest{
		TypeID: f.Type, Start: utc(2, 22, 9, 0), CombinationID: f.C2,
	})
	require.NoError(t, err)

	future, err := f.Bookings.Create(ctx, owner, booking.SchedulingRequest{
		TypeID: f.Type, Start: utc(3, 1, 9, 0), CombinationID: f.C2,
	})
	require.NoError(t, err)
	_, err = f.Bookings.Confirm(ctx, owner, future.ID)
	require.NoError(t, err)

	later := testutil.Weekly(10, 17, time.Monday, time.Tuesday)

	_, err = f.Calendars.UpdateAttendances(ctx, f.CalMonTue, later)
	conflict := requireConflict(t, err, scheduling.ReasonOutsideCalendar)
	assert.Equal(t, []string{future.ID}, conflict.BookingIDs)

	cal, err := f.Calendars.GetByID(ctx, f.CalMonTue)
	require.NoError(t, err)
	assert.Equal(t, 8.0, cal.Attendances[0].HourFrom, "rejected change is rolled back")

	_, err = f.Bookings.Unschedule(ctx, owner, future.ID)
	require.NoError(t, err)

	cal, err = f.Calendars.UpdateAttendances(ctx, f.CalMonTue, later)
	require.NoError(t, err)
	assert.Equal(t, 10.0, cal.Attendances[0].HourFrom)

	start := utc(3, 1, 8, 0)
	_, err = f.Bookings.Schedule(ctx, owner, future.ID, booking.ScheduleRequest{Start: &start})
	requireConflict(t, err, scheduling.ReasonOutsideCalendar)
}

func TestLeaveRevalidatesFutureBookings(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()
	owner := testutil.Customer("customer-1")

	b, err := f.Bookings.Create(ctx, owner, booking.SchedulingRequest{TypeID: f.Type, Start: utc(3, 2, 9, 0), CombinationID: f.C1})
	require.NoError(t, err)

	_, err = f.Calendars.AddLeave(ctx, f.CalTue, calendarLeave(utc(3, 2, 0, 0), utc(3, 3, 0, 0)))
	conflict := requireConflict(t, err, scheduling.ReasonOutsideCalendar)
	assert.Equal(t, []string{b.ID}, conflict.BookingIDs)

	_, err = f.Calendars.AddLeave(ctx, f.CalTue, calendarLeave(utc(3, 9, 0, 0), utc(3, 10, 0, 0)))
	require.NoError(t, err)
}

func TestAvailableSlots(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()
	rng := interval.New(utc(3, 2, 14, 15), utc(3, 8, 10, 0))

	t.Run("any combination", func(t *testing.T) {
		slots, err := f.Bookings.AvailableSlots(ctx, booking.SchedulingRequest{TypeID: f.Type, Duration: 90 * time.Minute}, rng)
		require.NoError(t, err)

		assert.Equal(t, []string{"2021-03-02", "2021-03-08"}, slots.Days())
		assert.Equal(t, []string{"14:30", "15:00", "15:30"}, clock(slots["2021-03-02"]))
		assert.Equal(t, []string{"08:00", "08:30"}, clock(slots["2021-03-08"]))
	})

	t.Run("pinned combination", func(t *testing.T) {
		slots, err := f.Bookings.AvailableSlots(ctx, booking.SchedulingRequest{TypeID: f.Type, Duration: 90 * time.Minute, CombinationID: f.C1}, rng)
		require.NoError(t, err)
		assert.Equal(t, []string{"2021-03-02"}, slots.Days())
	})

	t.Run("unknown timezone", func(t *testing.T) {
		_, err := f.Bookings.AvailableSlots(ctx, booking.SchedulingRequest{TypeID: f.Type, Timezone: "Mars/Olympus"}, rng)
		assert.ErrorIs(t, err, booking.ErrInvalidTimezone)
	})
}
