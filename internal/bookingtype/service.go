package bookingtype

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nekogravitycat/resource-booking-backend/internal/availability"
	"github.com/nekogravitycat/resource-booking-backend/internal/combination"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
	"github.com/nekogravitycat/resource-booking-backend/internal/resource"
	"github.com/nekogravitycat/resource-booking-backend/internal/scheduling"
)

type CreateRequest struct {
	Name              string
	CalendarID        string
	Assignment        scheduling.Policy
	Combinations      []CombinationRel
	SlotDuration      time.Duration
	Duration          time.Duration
	Location          string
	VideocallLocation string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*BookingType, error)
	GetByID(ctx context.Context, id string) (*BookingType, error)
	List(ctx context.Context, filter Filter) ([]*BookingType, int, error)

	// Candidates resolves every combination of bt into scheduling candidates.
	Candidates(ctx context.Context, bt *BookingType) ([]scheduling.Candidate, error)
	// Descriptor resolves one combination of bt.
	Descriptor(ctx context.Context, bt *BookingType, combinationID string) (availability.Descriptor, error)
	// Slots lists where a booking of bookingDuration could start within rng
	// on any combination of bt. A zero bookingDuration means bt.Duration.
	Slots(ctx context.Context, bt *BookingType, rng interval.Interval, bookingDuration time.Duration, loc *time.Location) (availability.Slots, error)
	// FreeIntervals is the free time of one combination of bt within rng.
	FreeIntervals(ctx context.Context, bt *BookingType, combinationID string, rng interval.Interval) (interval.Set, error)
}

type service struct {
	repo      Repository
	combos    combination.Repository
	resources resource.Repository
	engine    *availability.Engine
	horizon   time.Duration
}

// NewService builds the booking type service. Search windows longer than
// horizon are truncated; a zero horizon disables the limit.
func NewService(repo Repository, combos combination.Repository, resources resource.Repository, engine *availability.Engine, horizon time.Duration) Service {
	return &service{
		repo:      repo,
		combos:    combos,
		resources: resources,
		engine:    engine,
		horizon:   horizon,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*BookingType, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrNameRequired
	}
	if req.Assignment == "" {
		req.Assignment = scheduling.PolicySorted
	}
	if !req.Assignment.Valid() {
		return nil, ErrInvalidAssignment
	}
	if req.SlotDuration < 0 || req.Duration < 0 {
		return nil, ErrInvalidDuration
	}
	if req.SlotDuration == 0 {
		req.SlotDuration = DefaultDuration
	}
	if req.Duration == 0 {
		req.Duration = DefaultDuration
	}
	if len(req.Combinations) == 0 {
		return nil, ErrNoCombinations
	}

	ids := make([]string, len(req.Combinations))
	for i, rel := range req.Combinations {
		ids[i] = rel.CombinationID
	}
	if _, err := s.combos.ListByIDs(ctx, ids); err != nil {
		return nil, err
	}

	bt := &BookingType{
		Name:              strings.TrimSpace(req.Name),
		CalendarID:        req.CalendarID,
		Assignment:        req.Assignment,
		Combinations:      req.Combinations,
		SlotDuration:      req.SlotDuration,
		Duration:          req.Duration,
		Location:          req.Location,
		VideocallLocation: req.VideocallLocation,
	}
	if err := s.repo.Create(ctx, bt); err != nil {
		return nil, err
	}
	return bt, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*BookingType, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*BookingType, int, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) Candidates(ctx context.Context, bt *BookingType) ([]scheduling.Candidate, error) {
	ids := make([]string, len(bt.Combinations))
	seq := make(map[string]int, len(bt.Combinations))
	for i, rel := range bt.Combinations {
		ids[i] = rel.CombinationID
		seq[rel.CombinationID] = rel.Sequence
	}
	combos, err := s.combos.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	out := make([]scheduling.Candidate, len(combos))
	for i, c := range combos {
		d, err := s.describe(ctx, bt, c)
		if err != nil {
			return nil, err
		}
		out[i] = scheduling.Candidate{Descriptor: d, Sequence: seq[c.ID]}
	}
	return out, nil
}

func (s *service) Descriptor(ctx context.Context, bt *BookingType, combinationID string) (availability.Descriptor, error) {
	if !bt.Offers(combinationID) {
		return availability.Descriptor{}, ErrCombinationNotInType
	}
	c, err := s.combos.GetByID(ctx, combinationID)
	if err != nil {
		return availability.Descriptor{}, err
	}
	return s.describe(ctx, bt, c)
}

func (s *service) describe(ctx context.Context, bt *BookingType, c *combination.Combination) (availability.Descriptor, error) {
	if len(c.ResourceIDs) == 0 {
		return availability.Descriptor{}, fmt.Errorf("combination %s: %w", c.ID, combination.ErrEmpty)
	}
	members, err := s.resources.ListByIDs(ctx, c.ResourceIDs)
	if err != nil {
		return availability.Descriptor{}, err
	}
	return availability.Descriptor{
		CombinationID:    c.ID,
		Members:          members,
		ForcedCalendarID: c.ForcedCalendarID,
		TypeCalendarID:   bt.CalendarID,
	}, nil
}

func (s *service) Slots(ctx context.Context, bt *BookingType, rng interval.Interval, bookingDuration time.Duration, loc *time.Location) (availability.Slots, error) {
	if bookingDuration == 0 {
		bookingDuration = bt.Duration
	}
	slotDuration := bt.SlotDuration
	if slotDuration == 0 {
		slotDuration = DefaultDuration
	}
	rng = s.limit(rng)

	candidates, err := s.Candidates(ctx, bt)
	if err != nil {
		return nil, err
	}

	slots := availability.Slots{}
	for _, c := range candidates {
		found, err := s.engine.EnumerateSlots(ctx, c.Descriptor, rng, slotDuration, bookingDuration, loc)
		if err != nil {
			return nil, err
		}
		slots = slots.Merge(found)
	}
	return slots, nil
}

func (s *service) FreeIntervals(ctx context.Context, bt *BookingType, combinationID string, rng interval.Interval) (interval.Set, error) {
	d, err := s.Descriptor(ctx, bt, combinationID)
	if err != nil {
		return interval.Set{}, err
	}
	return s.engine.FreeIntervals(ctx, d, s.limit(rng))
}

func (s *service) limit(rng interval.Interval) interval.Interval {
	if s.horizon > 0 && rng.Stop.Sub(rng.Start) > s.horizon {
		return interval.New(rng.Start, rng.Start.Add(s.horizon))
	}
	return rng
}
