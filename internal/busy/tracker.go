package busy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
	"github.com/nekogravitycat/resource-booking-backend/internal/resource"
)

// Source reads the records that make resources busy.
type Source interface {
	// Commitments returns active scheduled or confirmed bookings overlapping
	// rng whose combination holds any of resourceIDs or whose requester is
	// any of userIDs. The booking excludeBookingID is left out.
	Commitments(ctx context.Context, resourceIDs, userIDs []string, rng interval.Interval, excludeBookingID string) ([]Commitment, error)
	// Meetings returns meetings attended by any of userIDs that may occur
	// inside rng, recurring series included.
	Meetings(ctx context.Context, userIDs []string, rng interval.Interval) ([]Meeting, error)
}

// Tracker computes when a group of resources is already committed.
type Tracker struct {
	source Source
	log    *zap.Logger
}

func NewTracker(source Source, log *zap.Logger) *Tracker {
	return &Tracker{source: source, log: log.Named("busy")}
}

// Busy returns the union of every busy span of members within rng, clipped
// to rng. A resource is busy while a booking of a combination containing it
// is scheduled, and a person is also busy during bookings they requested and
// meetings they attend.
func (t *Tracker) Busy(ctx context.Context, members []*resource.Resource, rng interval.Interval, excludeBookingID string) (interval.Set, error) {
	rng = interval.New(rng.Start, rng.Stop)
	if !rng.Valid() || len(members) == 0 {
		return interval.Set{}, nil
	}

	resourceIDs := make([]string, 0, len(members))
	var userIDs []string
	users := make(map[string]struct{})
	for _, m := range members {
		resourceIDs = append(resourceIDs, m.ID)
		if m.UserID == "" {
			continue
		}
		if _, ok := users[m.UserID]; !ok {
			users[m.UserID] = struct{}{}
			userIDs = append(userIDs, m.UserID)
		}
	}

	commitments, err := t.source.Commitments(ctx, resourceIDs, userIDs, rng, excludeBookingID)
	if err != nil {
		return interval.Set{}, fmt.Errorf("load commitments: %w", err)
	}

	var spans []interval.Interval
	for _, c := range commitments {
		if c.BookingID != "" && c.BookingID == excludeBookingID {
			continue
		}
		spans = append(spans, interval.New(c.Start, c.Stop))
	}

	if len(userIDs) > 0 {
		meetings, err := t.source.Meetings(ctx, userIDs, rng)
		if err != nil {
			return interval.Set{}, fmt.Errorf("load meetings: %w", err)
		}
		for _, m := range meetings {
			if m.ShowAsFree || !attendsAny(m, users) {
				continue
			}
			occ, err := m.Occurrences(rng)
			if err != nil {
				// A malformed rule must not hide the meeting it belongs to.
				t.log.Warn("meeting recurrence ignored", zap.String("meeting_id", m.ID), zap.Error(err))
				occ = []interval.Interval{interval.New(m.Start, m.Stop)}
			}
			spans = append(spans, occ...)
		}
	}

	return interval.NewSet(spans...).Clip(rng), nil
}

func attendsAny(m Meeting, users map[string]struct{}) bool {
	for id := range users {
		if m.Attends(id) {
			return true
		}
	}
	return false
}
