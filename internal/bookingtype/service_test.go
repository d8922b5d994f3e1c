package bookingtype_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/resource-booking-backend/internal/bookingtype"
	"github.com/nekogravitycat/resource-booking-backend/internal/combination"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
	"github.com/nekogravitycat/resource-booking-backend/internal/scheduling"
	"github.com/nekogravitycat/resource-booking-backend/internal/testutil"
)

var utc = testutil.UTC

func TestCreate(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()

	t.Run("defaults", func(t *testing.T) {
		bt, err := f.Types.Create(ctx, bookingtype.CreateRequest{
			Name:         "  Quick call ",
			Combinations: []bookingtype.CombinationRel{{CombinationID: f.C2}},
		})
		require.NoError(t, err)
		assert.NotEmpty(t, bt.ID)
		assert.Equal(t, "Quick call", bt.Name)
		assert.Equal(t, scheduling.PolicySorted, bt.Assignment)
		assert.Equal(t, bookingtype.DefaultDuration, bt.SlotDuration)
		assert.Equal(t, bookingtype.DefaultDuration, bt.Duration)

		stored, err := f.Types.GetByID(ctx, bt.ID)
		require.NoError(t, err)
		assert.True(t, stored.Offers(f.C2))
		assert.False(t, stored.Offers(f.C0))
	})

	tests := []struct {
		name string
		req  bookingtype.CreateRequest
		want error
	}{
		{
			name: "blank name",
			req:  bookingtype.CreateRequest{Name: " ", Combinations: []bookingtype.CombinationRel{{CombinationID: f.C0}}},
			want: bookingtype.ErrNameRequired,
		},
		{
			name: "unknown assignment",
			req:  bookingtype.CreateRequest{Name: "x", Assignment: "round_robin", Combinations: []bookingtype.CombinationRel{{CombinationID: f.C0}}},
			want: bookingtype.ErrInvalidAssignment,
		},
		{
			name: "negative duration",
			req:  bookingtype.CreateRequest{Name: "x", Duration: -time.Minute, Combinations: []bookingtype.CombinationRel{{CombinationID: f.C0}}},
			want: bookingtype.ErrInvalidDuration,
		},
		{
			name: "no combinations",
			req:  bookingtype.CreateRequest{Name: "x"},
			want: bookingtype.ErrNoCombinations,
		},
		{
			name: "unknown combination",
			req:  bookingtype.CreateRequest{Name: "x", Combinations: []bookingtype.CombinationRel{{CombinationID: "missing"}}},
			want: combination.ErrNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.Types.Create(ctx, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCandidates(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()
	f.Store.SetSequence(f.Type, f.C1, 7)

	bt, err := f.Types.GetByID(ctx, f.Type)
	require.NoError(t, err)
	cs, err := f.Types.Candidates(ctx, bt)
	require.NoError(t, err)
	require.Len(t, cs, 4)

	byCombo := map[string]scheduling.Candidate{}
	for _, c := range cs {
		byCombo[c.CombinationID] = c
	}
	assert.Equal(t, 7, byCombo[f.C1].Sequence)
	assert.Equal(t, 2, byCombo[f.C2].Sequence)
	assert.Equal(t, f.CalMonTue, byCombo[f.C2].TypeCalendarID)
	assert.ElementsMatch(t, []string{f.PersonMonTue, f.MaterialMonTue}, byCombo[f.C2].ResourceIDs())
}

func TestDescriptorRejectsForeignCombination(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()

	other := f.Store.PutCombination(combination.Combination{Name: "other", ResourceIDs: []string{f.PersonMon}})
	bt, err := f.Types.GetByID(ctx, f.Type)
	require.NoError(t, err)

	_, err = f.Types.Descriptor(ctx, bt, other)
	assert.ErrorIs(t, err, bookingtype.ErrCombinationNotInType)

	_, err = f.Types.FreeIntervals(ctx, bt, other, interval.New(utc(3, 1, 0, 0), utc(3, 2, 0, 0)))
	assert.ErrorIs(t, err, bookingtype.ErrCombinationNotInType)
}

func TestSlotsUnionAcrossCombinations(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()
	bt, err := f.Types.GetByID(ctx, f.Type)
	require.NoError(t, err)

	slots, err := f.Types.Slots(ctx, bt, interval.New(utc(3, 1, 0, 0), utc(3, 3, 0, 0)), 0, time.UTC)
	require.NoError(t, err)

	assert.Equal(t, []string{"2021-03-01", "2021-03-02"}, slots.Days())
	// 08:00 to 16:00 every half hour, once even though two combinations fit.
	assert.Len(t, slots["2021-03-01"], 17)
	assert.Len(t, slots["2021-03-02"], 17)
	assert.Equal(t, utc(3, 1, 16, 0), slots["2021-03-01"][16])
}

func TestSearchHorizon(t *testing.T) {
	f := testutil.NewFixture()
	ctx := context.Background()
	s := f.Store
	week := bookingtype.NewService(s.BookingTypes(), s.Combinations(), s.Resources(), f.Engine, 7*24*time.Hour)

	bt, err := week.GetByID(ctx, f.Type)
	require.NoError(t, err)

	rng := interval.New(utc(3, 1, 0, 0), utc(4, 30, 0, 0))
	slots, err := week.Slots(ctx, bt, rng, time.Hour, time.UTC)
	require.NoError(t, err)
	assert.Equal(t, []string{"2021-03-01", "2021-03-02"}, slots.Days())

	free, err := week.FreeIntervals(ctx, bt, f.C2, rng)
	require.NoError(t, err)
	assert.Equal(t, 2, free.Len())
}
