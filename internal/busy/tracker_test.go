package busy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
	"github.com/nekogravitycat/resource-booking-backend/internal/resource"
)

type fakeSource struct {
	commitments []Commitment
	meetings    []Meeting
}

func (f *fakeSource) Commitments(_ context.Context, resourceIDs, userIDs []string, rng interval.Interval, exclude string) ([]Commitment, error) {
	var out []Commitment
	for _, c := range f.commitments {
		if c.BookingID == exclude || !interval.New(c.Start, c.Stop).Overlaps(rng) {
			continue
		}
		if containsAny(c.ResourceIDs, resourceIDs) || containsAny([]string{c.RequesterID}, userIDs) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeSource) Meetings(_ context.Context, userIDs []string, _ interval.Interval) ([]Meeting, error) {
	var out []Meeting
	for _, m := range f.meetings {
		if containsAny(m.AttendeeIDs, userIDs) || containsAny([]string{m.OrganizerID}, userIDs) {
			out = append(out, m)
		}
	}
	return out, nil
}

func containsAny(haystack, needles []string) bool {
	for _, h := range haystack {
		for _, n := range needles {
			if h == n {
				return true
			}
		}
	}
	return false
}

func TestTrackerBusy(t *testing.T) {
	alice := &resource.Resource{ID: "r-alice", Type: resource.TypePerson, UserID: "alice"}
	room := &resource.Resource{ID: "r-room", Type: resource.TypeMaterial}
	rng := interval.New(utc(3, 1, 0, 0), utc(3, 2, 0, 0))

	source := &fakeSource{
		commitments: []Commitment{
			{BookingID: "b-room", RequesterID: "carol", ResourceIDs: []string{"r-room", "r-bob"}, Start: utc(3, 1, 8, 0), Stop: utc(3, 1, 8, 30)},
			{BookingID: "b-alice-asked", RequesterID: "alice", ResourceIDs: []string{"r-other"}, Start: utc(3, 1, 10, 0), Stop: utc(3, 1, 11, 0)},
		},
		meetings: []Meeting{
			{ID: "standup", AttendeeIDs: []string{"alice"}, Start: utc(3, 1, 12, 0), Stop: utc(3, 1, 12, 15)},
			{ID: "organized", OrganizerID: "alice", AttendeeIDs: []string{"customer"}, Start: utc(3, 1, 13, 0), Stop: utc(3, 1, 14, 0)},
			{ID: "focus", AttendeeIDs: []string{"alice"}, ShowAsFree: true, Start: utc(3, 1, 15, 0), Stop: utc(3, 1, 16, 0)},
			{ID: "late", AttendeeIDs: []string{"alice"}, Start: utc(3, 1, 23, 0), Stop: utc(3, 2, 1, 0)},
		},
	}
	tracker := NewTracker(source, zap.NewNop())

	tests := []struct {
		name    string
		members []*resource.Resource
		exclude string
		want    interval.Set
	}{
		{
			name:    "material only sees its bookings",
			members: []*resource.Resource{room},
			want:    interval.NewSet(interval.New(utc(3, 1, 8, 0), utc(3, 1, 8, 30))),
		},
		{
			name:    "person sees requested bookings and attended meetings",
			members: []*resource.Resource{alice},
			want: interval.NewSet(
				interval.New(utc(3, 1, 10, 0), utc(3, 1, 11, 0)),
				interval.New(utc(3, 1, 12, 0), utc(3, 1, 12, 15)),
				interval.New(utc(3, 1, 23, 0), utc(3, 2, 0, 0)),
			),
		},
		{
			name:    "combination unions members and honours exclusion",
			members: []*resource.Resource{alice, room},
			exclude: "b-room",
			want: interval.NewSet(
				interval.New(utc(3, 1, 10, 0), utc(3, 1, 11, 0)),
				interval.New(utc(3, 1, 12, 0), utc(3, 1, 12, 15)),
				interval.New(utc(3, 1, 23, 0), utc(3, 2, 0, 0)),
			),
		},
		{
			name: "no members",
			want: interval.Set{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tracker.Busy(context.Background(), tt.members, rng, tt.exclude)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
		})
	}
}

func TestTrackerRecurringMeeting(t *testing.T) {
	alice := &resource.Resource{ID: "r-alice", UserID: "alice"}
	source := &fakeSource{meetings: []Meeting{{
		ID:          "weekly",
		AttendeeIDs: []string{"alice"},
		Start:       utc(2, 22, 8, 0),
		Stop:        utc(2, 22, 9, 0),
		Recurrence:  &Recurrence{Weekdays: []time.Weekday{time.Monday}, Count: 2},
	}}}

	got, err := NewTracker(source, zap.NewNop()).Busy(context.Background(), []*resource.Resource{alice}, interval.New(utc(3, 1, 0, 0), utc(3, 16, 0, 0)), "")
	require.NoError(t, err)

	assert.True(t, interval.NewSet(interval.New(utc(3, 1, 8, 0), utc(3, 1, 9, 0))).Equal(got), "got %v", got)
}
