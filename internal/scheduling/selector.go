package scheduling

import (
	"context"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/nekogravitycat/resource-booking-backend/internal/availability"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
)

// Policy decides the order in which candidate combinations are tried.
type Policy string

const (
	PolicySorted Policy = "sorted"
	PolicyRandom Policy = "random"
)

func (p Policy) Valid() bool {
	return p == PolicySorted || p == PolicyRandom
}

// Candidate is a combination offered by a booking type.
type Candidate struct {
	availability.Descriptor
	Sequence int
}

// Requester identifies who asks for the booking. ExtraBusy is time the
// requester declared unavailable; it only matters when the requester is one
// of the combination members.
type Requester struct {
	UserID    string
	ExtraBusy interval.Set
}

// Selector picks the combination that will host a booking.
type Selector struct {
	engine *availability.Engine
}

func NewSelector(engine *availability.Engine) *Selector {
	return &Selector{engine: engine}
}

// Select returns the first candidate whose free time contains [start, stop).
// With PolicySorted candidates are tried by ascending Sequence, ties keeping
// their given order. With PolicyRandom they are tried in an order drawn from
// rng. excludingBookingID lets a booking being moved ignore its own slot.
func (s *Selector) Select(ctx context.Context, typeID string, candidates []Candidate, start, stop time.Time, policy Policy, requester Requester, excludingBookingID string, rng *rand.Rand) (*Candidate, error) {
	span := interval.New(start, stop)
	if !span.Valid() {
		return nil, &ConflictError{Start: span.Start, Stop: span.Stop, Reason: ReasonInvalidSpan}
	}

	ordered := slices.Clone(candidates)
	switch policy {
	case PolicyRandom:
		if rng == nil {
			rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
		rng.Shuffle(len(ordered), func(i, j int) { ordered[i], ordered[j] = ordered[j], ordered[i] })
	default:
		slices.SortStableFunc(ordered, func(a, b Candidate) int { return a.Sequence - b.Sequence })
	}

	for i := range ordered {
		c := &ordered[i]
		opts := []availability.FreeOption{availability.ExcludingBooking(excludingBookingID)}
		if requester.UserID != "" && hasMemberUser(c.Descriptor, requester.UserID) {
			opts = append(opts, availability.WithExtraBusy(requester.ExtraBusy))
		}

		free, err := s.engine.FreeIntervals(ctx, c.Descriptor, span, opts...)
		if err != nil {
			return nil, err
		}
		if availability.IsFitting(free, span.Start, span.Stop) {
			return c, nil
		}
	}
	return nil, &NoAvailabilityError{TypeID: typeID, Start: span.Start, Stop: span.Stop}
}

func hasMemberUser(d availability.Descriptor, userID string) bool {
	for _, m := range d.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
