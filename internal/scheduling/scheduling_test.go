package scheduling_test

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/resource-booking-backend/internal/availability"
	"github.com/nekogravitycat/resource-booking-backend/internal/booking"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
	"github.com/nekogravitycat/resource-booking-backend/internal/scheduling"
	"github.com/nekogravitycat/resource-booking-backend/internal/testutil"
)

var utc = testutil.UTC

func candidates(t *testing.T, f *testutil.Fixture) []scheduling.Candidate {
	t.Helper()
	bt, err := f.Types.GetByID(context.Background(), f.Type)
	require.NoError(t, err)
	cs, err := f.Types.Candidates(context.Background(), bt)
	require.NoError(t, err)
	return cs
}

func sequence(cs []scheduling.Candidate, combinationID string, seq int) {
	for i := range cs {
		if cs[i].CombinationID == combinationID {
			cs[i].Sequence = seq
		}
	}
}

func TestSelectSorted(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()

	tests := []struct {
		name       string
		start      time.Time
		demoteC0   bool
		wantCombo  func(f *testutil.Fixture) string
		wantNoSlot bool
	}{
		{name: "first fitting on Monday", start: utc(3, 1, 9, 0), wantCombo: func(f *testutil.Fixture) string { return f.C0 }},
		{name: "first fitting on Tuesday", start: utc(3, 2, 9, 0), wantCombo: func(f *testutil.Fixture) string { return f.C1 }},
		{name: "sequence decides", start: utc(3, 1, 9, 0), demoteC0: true, wantCombo: func(f *testutil.Fixture) string { return f.C2 }},
		{name: "Wednesday has nothing", start: utc(3, 3, 9, 0), wantNoSlot: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cs := candidates(t, f)
			if tt.demoteC0 {
				sequence(cs, f.C0, 10)
			}
			got, err := f.Selector.Select(ctx, f.Type, cs, tt.start, tt.start.Add(time.Hour), scheduling.PolicySorted, scheduling.Requester{}, "", nil)
			if tt.wantNoSlot {
				var noSlot *scheduling.NoAvailabilityError
				require.True(t, errors.As(err, &noSlot), "got %v", err)
				assert.Equal(t, f.Type, noSlot.TypeID)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCombo(f), got.CombinationID)
		})
	}
}

func TestSelectSortedSkipsConsumedCombination(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()
	start, stop := utc(3, 1, 9, 0), utc(3, 1, 10, 0)

	first, err := f.Bookings.Create(ctx, testutil.Customer("customer-1"), booking.SchedulingRequest{TypeID: f.Type, Start: start})
	require.NoError(t, err)
	assert.Equal(t, f.C0, first.CombinationID)

	got, err := f.Selector.Select(ctx, f.Type, candidates(t, f), start, stop, scheduling.PolicySorted, scheduling.Requester{}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, f.C2, got.CombinationID)
}

func TestSelectSortedKeepsOrderOnTies(t *testing.T) {
	f := testutil.NewFixture()
	cs := candidates(t, f)
	for i := range cs {
		cs[i].Sequence = 0
	}
	// C2 first, C0 second: both fit Monday morning.
	var reordered []scheduling.Candidate
	for _, c := range cs {
		if c.CombinationID == f.C2 {
			reordered = append([]scheduling.Candidate{c}, reordered...)
		} else {
			reordered = append(reordered, c)
		}
	}

	got, err := f.Selector.Select(context.Background(), f.Type, reordered, utc(3, 1, 9, 0), utc(3, 1, 10, 0), scheduling.PolicySorted, scheduling.Requester{}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, f.C2, got.CombinationID)
	assert.Equal(t, f.C2, reordered[0].CombinationID, "candidates are not reordered in place")
}

func TestSelectRandom(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()
	cs := candidates(t, f)
	start, stop := utc(3, 1, 9, 0), utc(3, 1, 10, 0)

	seen := map[string]bool{}
	for seed := uint64(0); seed < 32; seed++ {
		got, err := f.Selector.Select(ctx, f.Type, cs, start, stop, scheduling.PolicyRandom, scheduling.Requester{}, "", rand.New(rand.NewPCG(seed, seed)))
		require.NoError(t, err)
		assert.Contains(t, []string{f.C0, f.C2}, got.CombinationID)
		seen[got.CombinationID] = true
	}
	assert.Len(t, seen, 2, "both Monday combinations get picked over enough draws")

	first, err := f.Selector.Select(ctx, f.Type, cs, start, stop, scheduling.PolicyRandom, scheduling.Requester{}, "", rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)
	again, err := f.Selector.Select(ctx, f.Type, cs, start, stop, scheduling.PolicyRandom, scheduling.Requester{}, "", rand.New(rand.NewPCG(7, 7)))
	require.NoError(t, err)
	assert.Equal(t, first.CombinationID, again.CombinationID, "same seed, same pick")
}

func TestSelectRequesterBusy(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()
	start, stop := utc(3, 1, 9, 0), utc(3, 1, 10, 0)
	extra := interval.NewSet(interval.New(utc(3, 1, 8, 0), utc(3, 1, 12, 0)))

	cs := candidates(t, f)
	sequence(cs, f.C0, 10)

	t.Run("member requester skips own combination", func(t *testing.T) {
		got, err := f.Selector.Select(ctx, f.Type, cs, start, stop, scheduling.PolicySorted,
			scheduling.Requester{UserID: f.UserMonTue, ExtraBusy: extra}, "", nil)
		require.NoError(t, err)
		assert.Equal(t, f.C0, got.CombinationID)
	})

	t.Run("outside requester is ignored", func(t *testing.T) {
		got, err := f.Selector.Select(ctx, f.Type, cs, start, stop, scheduling.PolicySorted,
			scheduling.Requester{UserID: "customer-1", ExtraBusy: extra}, "", nil)
		require.NoError(t, err)
		assert.Equal(t, f.C2, got.CombinationID)
	})
}

func TestSelectInvalidSpan(t *testing.T) {
	f := testutil.NewFixture()
	_, err := f.Selector.Select(context.Background(), f.Type, candidates(t, f), utc(3, 1, 10, 0), utc(3, 1, 9, 0), scheduling.PolicySorted, scheduling.Requester{}, "", nil)

	var conflict *scheduling.ConflictError
	require.True(t, errors.As(err, &conflict))
	assert.Equal(t, scheduling.ReasonInvalidSpan, conflict.Reason)
}

func TestValidate(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()

	b, err := f.Bookings.Create(ctx, testutil.Customer("customer-1"), booking.SchedulingRequest{
		TypeID: f.Type, Start: utc(3, 1, 16, 0), CombinationID: f.C0,
	})
	require.NoError(t, err)

	bt, err := f.Types.GetByID(ctx, f.Type)
	require.NoError(t, err)
	descriptor := func(id string) availability.Descriptor {
		d, err := f.Types.Descriptor(ctx, bt, id)
		require.NoError(t, err)
		return d
	}

	tests := []struct {
		name        string
		combination string
		start, stop time.Time
		exclude     string
		want        scheduling.Reason
	}{
		{name: "free", combination: f.C0, start: utc(3, 1, 9, 0), stop: utc(3, 1, 10, 0)},
		{name: "touching the booking", combination: f.C0, start: utc(3, 1, 15, 0), stop: utc(3, 1, 16, 0)},
		{name: "wrong weekday", combination: f.C1, start: utc(3, 1, 9, 0), stop: utc(3, 1, 10, 0), want: scheduling.ReasonOutsideCalendar},
		{name: "overlapping the booking", combination: f.C0, start: utc(3, 1, 15, 30), stop: utc(3, 1, 16, 30), want: scheduling.ReasonBusy},
		{name: "calendar wins over busy", combination: f.C0, start: utc(3, 1, 16, 30), stop: utc(3, 1, 17, 30), want: scheduling.ReasonOutsideCalendar},
		{name: "own booking is ignored", combination: f.C0, start: utc(3, 1, 16, 0), stop: utc(3, 1, 17, 0), exclude: b.ID},
		{name: "empty span", combination: f.C0, start: utc(3, 1, 9, 0), stop: utc(3, 1, 9, 0), want: scheduling.ReasonInvalidSpan},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.Validator.Validate(ctx, descriptor(tt.combination), tt.start, tt.stop, tt.exclude)
			if tt.want == "" {
				assert.NoError(t, err)
				return
			}
			var conflict *scheduling.ConflictError
			require.True(t, errors.As(err, &conflict), "got %v", err)
			assert.Equal(t, tt.want, conflict.Reason)
			if tt.want != scheduling.ReasonInvalidSpan {
				assert.Equal(t, tt.combination, conflict.CombinationID)
			}
		})
	}
}
