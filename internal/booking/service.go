package booking

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nekogravitycat/resource-booking-backend/internal/availability"
	"github.com/nekogravitycat/resource-booking-backend/internal/bookingtype"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
	"github.com/nekogravitycat/resource-booking-backend/internal/scheduling"
)

// TxRunner is the transactional boundary every commit runs in.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
	// LockResources serializes writers touching any of the resources until
	// the surrounding transaction ends.
	LockResources(ctx context.Context, resourceIDs []string) error
}

// Actor is the authenticated caller. Staff may act on every booking.
type Actor struct {
	UserID string
	Staff  bool
}

// ScheduleRequest moves, resizes or re-types a booking.
type ScheduleRequest struct {
	TypeID            *string
	Start             *time.Time
	Stop              *time.Time
	Duration          *time.Duration
	CombinationID     *string
	AutoAssign        *bool
	Location          *string
	VideocallLocation *string
	RequesterBusy     interval.Set
}

type Service interface {
	Create(ctx context.Context, actor Actor, req SchedulingRequest) (*Booking, error)
	GetByID(ctx context.Context, actor Actor, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	Schedule(ctx context.Context, actor Actor, id string, req ScheduleRequest) (*Booking, error)
	Unschedule(ctx context.Context, actor Actor, id string) (*Booking, error)
	Confirm(ctx context.Context, actor Actor, id string) (*Booking, error)
	Cancel(ctx context.Context, actor Actor, id string) (*Booking, error)
	// AvailableSlots searches rng for starts matching req's type, duration,
	// pinned combination and timezone.
	AvailableSlots(ctx context.Context, req SchedulingRequest, rng interval.Interval) (availability.Slots, error)
	// RevalidateCalendar fails when a future booking relying on calendarID
	// no longer fits. It must run inside the transaction that changed the
	// calendar.
	RevalidateCalendar(ctx context.Context, calendarID string) error
}

type service struct {
	repo      Repository
	types     bookingtype.Service
	selector  *scheduling.Selector
	validator *scheduling.Validator
	tx        TxRunner
	log       *zap.Logger
	now       func() time.Time
	newRand   func() *rand.Rand
}

type Option func(*service)

// WithClock overrides the time source used to tell past from future bookings.
func WithClock(now func() time.Time) Option {
	return func(s *service) { s.now = now }
}

// WithRand overrides the randomness used by the random assignment policy.
func WithRand(newRand func() *rand.Rand) Option {
	return func(s *service) { s.newRand = newRand }
}

func NewService(
	repo Repository,
	types bookingtype.Service,
	selector *scheduling.Selector,
	validator *scheduling.Validator,
	tx TxRunner,
	log *zap.Logger,
	opts ...Option,
) Service {
	s := &service{
		repo:      repo,
		types:     types,
		selector:  selector,
		validator: validator,
		tx:        tx,
		log:       log.Named("booking"),
		now:       time.Now,
		newRand: func() *rand.Rand {
			return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func canAct(actor Actor, b *Booking) bool {
	return actor.Staff || (actor.UserID != "" && actor.UserID == b.RequesterID)
}

func (s *service) Create(ctx context.Context, actor Actor, req SchedulingRequest) (*Booking, error) {
	if req.RequesterID == "" {
		req.RequesterID = actor.UserID
	}
	if req.RequesterID == "" {
		return nil, ErrRequesterRequired
	}
	if req.RequesterID != actor.UserID && !actor.Staff {
		return nil, ErrPermissionDenied
	}
	if req.Duration < 0 {
		return nil, ErrInvalidDuration
	}

	bt, err := s.types.GetByID(ctx, req.TypeID)
	if err != nil {
		return nil, err
	}

	autoAssign := req.AutoAssigned()
	if !autoAssign && req.CombinationID == "" {
		return nil, ErrCombinationRequired
	}
	if req.CombinationID != "" && !bt.Offers(req.CombinationID) {
		return nil, bookingtype.ErrCombinationNotInType
	}

	duration := req.Duration
	if duration == 0 {
		duration = bt.Duration
	}

	b := Booking{
		TypeID:            bt.ID,
		RequesterID:       req.RequesterID,
		Name:              strings.TrimSpace(req.Name),
		Duration:          duration,
		CombinationID:     req.CombinationID,
		AutoAssign:        autoAssign,
		State:             StatePending,
		Active:            true,
		Location:          bt.Location,
		VideocallLocation: bt.VideocallLocation,
	}

	if !req.Start.IsZero() {
		patch := Patch{Start: &req.Start}
		if !req.Stop.IsZero() {
			patch.Stop = &req.Stop
		}
		if b, err = DeriveSchedule(b, patch); err != nil {
			return nil, err
		}
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if b.Scheduled() {
			if err := s.place(ctx, bt, &b, req.RequesterBusy); err != nil {
				return err
			}
		}
		return s.repo.Create(ctx, &b)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking created",
		zap.String("booking_id", b.ID),
		zap.String("type_id", b.TypeID),
		zap.String("state", string(b.State)),
		zap.String("combination_id", b.CombinationID),
	)
	return &b, nil
}

// place picks or checks the combination hosting b and records its members.
// It must run inside a transaction.
func (s *service) place(ctx context.Context, bt *bookingtype.BookingType, b *Booking, requesterBusy interval.Set) error {
	var (
		candidates []scheduling.Candidate
		err        error
	)
	if b.AutoAssign {
		candidates, err = s.types.Candidates(ctx, bt)
	} else {
		var d availability.Descriptor
		d, err = s.types.Descriptor(ctx, bt, b.CombinationID)
		candidates = []scheduling.Candidate{{Descriptor: d}}
	}
	if err != nil {
		return err
	}

	var resourceIDs []string
	for _, c := range candidates {
		resourceIDs = append(resourceIDs, c.ResourceIDs()...)
	}
	if err := s.tx.LockResources(ctx, resourceIDs); err != nil {
		return err
	}

	chosen := &candidates[0]
	if b.AutoAssign {
		requester := scheduling.Requester{UserID: b.RequesterID, ExtraBusy: requesterBusy}
		chosen, err = s.selector.Select(ctx, bt.ID, candidates, b.Start, b.Stop, bt.Assignment, requester, b.ID, s.newRand())
		if err != nil {
			return err
		}
	}

	if err := s.validator.Validate(ctx, chosen.Descriptor, b.Start, b.Stop, b.ID); err != nil {
		return err
	}

	b.CombinationID = chosen.CombinationID
	b.ResourceIDs = chosen.ResourceIDs()
	return nil
}

func (s *service) GetByID(ctx context.Context, actor Actor, id string) (*Booking, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canAct(actor, b) {
		return nil, ErrPermissionDenied
	}
	return b, nil
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	return s.repo.List(ctx, filter)
}

// mutate loads the booking under a row lock, applies fn and stores the result.
func (s *service) mutate(ctx context.Context, actor Actor, id string, fn func(ctx context.Context, b *Booking) (Booking, error)) (*Booking, error) {
	var out Booking
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		b, err := s.repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !canAct(actor, b) {
			return ErrPermissionDenied
		}
		next, err := fn(ctx, b)
		if err != nil {
			return err
		}
		if err := s.repo.Update(ctx, &next); err != nil {
			return err
		}
		out = next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *service) Schedule(ctx context.Context, actor Actor, id string, req ScheduleRequest) (*Booking, error) {
	b, err := s.mutate(ctx, actor, id, func(ctx context.Context, b *Booking) (Booking, error) {
		typeID := b.TypeID
		if req.TypeID != nil {
			typeID = *req.TypeID
		}
		bt, err := s.types.GetByID(ctx, typeID)
		if err != nil {
			return Booking{}, err
		}

		patch := Patch{
			Start:             req.Start,
			Stop:              req.Stop,
			Duration:          req.Duration,
			CombinationID:     req.CombinationID,
			AutoAssign:        req.AutoAssign,
			Location:          req.Location,
			VideocallLocation: req.VideocallLocation,
		}
		if req.TypeID != nil {
			patch.Type = bt
		}

		next, err := DeriveSchedule(*b, patch)
		if err != nil {
			return Booking{}, err
		}
		if !next.AutoAssign && next.CombinationID == "" {
			return Booking{}, ErrCombinationRequired
		}
		if !next.AutoAssign && !bt.Offers(next.CombinationID) {
			return Booking{}, bookingtype.ErrCombinationNotInType
		}
		if NeedsPlacement(*b, next) {
			if err := s.place(ctx, bt, &next, req.RequesterBusy); err != nil {
				return Booking{}, err
			}
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("booking scheduled",
		zap.String("booking_id", b.ID),
		zap.String("state", string(b.State)),
		zap.String("combination_id", b.CombinationID),
	)
	return b, nil
}

func (s *service) Unschedule(ctx context.Context, actor Actor, id string) (*Booking, error) {
	return s.mutate(ctx, actor, id, func(_ context.Context, b *Booking) (Booking, error) {
		return DeriveSchedule(*b, Patch{ClearStart: true})
	})
}

// Confirm acknowledges a scheduled booking. The span is validated again
// because calendars or other commitments may have changed meanwhile.
func (s *service) Confirm(ctx context.Context, actor Actor, id string) (*Booking, error) {
	return s.mutate(ctx, actor, id, func(ctx context.Context, b *Booking) (Booking, error) {
		switch {
		case b.State == StateCanceled:
			return Booking{}, ErrCanceled
		case !b.Scheduled() || b.CombinationID == "":
			return Booking{}, ErrNotScheduled
		}

		bt, err := s.types.GetByID(ctx, b.TypeID)
		if err != nil {
			return Booking{}, err
		}
		d, err := s.types.Descriptor(ctx, bt, b.CombinationID)
		if err != nil {
			return Booking{}, err
		}
		if err := s.tx.LockResources(ctx, d.ResourceIDs()); err != nil {
			return Booking{}, err
		}
		if err := s.validator.Validate(ctx, d, b.Start, b.Stop, b.ID); err != nil {
			return Booking{}, err
		}

		next := *b
		next.State = StateConfirmed
		next.ResourceIDs = d.ResourceIDs()
		return next, nil
	})
}

// Cancel is terminal. Canceling twice is a no-op.
func (s *service) Cancel(ctx context.Context, actor Actor, id string) (*Booking, error) {
	return s.mutate(ctx, actor, id, func(_ context.Context, b *Booking) (Booking, error) {
		next := *b
		next.State = StateCanceled
		next.Active = false
		next.Start, next.Stop = time.Time{}, time.Time{}
		next.ResourceIDs = nil
		return next, nil
	})
}

func (s *service) AvailableSlots(ctx context.Context, req SchedulingRequest, rng interval.Interval) (availability.Slots, error) {
	loc, err := req.Location()
	if err != nil {
		return nil, ErrInvalidTimezone
	}
	bt, err := s.types.GetByID(ctx, req.TypeID)
	if err != nil {
		return nil, err
	}
	if req.AutoAssigned() {
		return s.types.Slots(ctx, bt, rng, req.Duration, loc)
	}
	if req.CombinationID == "" {
		return nil, ErrCombinationRequired
	}

	pinned := *bt
	pinned.Combinations = nil
	for _, rel := range bt.Combinations {
		if rel.CombinationID == req.CombinationID {
			pinned.Combinations = append(pinned.Combinations, rel)
		}
	}
	if len(pinned.Combinations) == 0 {
		return nil, bookingtype.ErrCombinationNotInType
	}
	return s.types.Slots(ctx, &pinned, rng, req.Duration, loc)
}

func (s *service) RevalidateCalendar(ctx context.Context, calendarID string) error {
	bookings, err := s.repo.ListDependingOnCalendar(ctx, calendarID, s.now())
	if err != nil {
		return err
	}

	var (
		first  *scheduling.ConflictError
		failed []string
	)
	for _, b := range bookings {
		bt, err := s.types.GetByID(ctx, b.TypeID)
		if err != nil {
			return err
		}
		d, err := s.types.Descriptor(ctx, bt, b.CombinationID)
		if err != nil {
			return err
		}
		if err := s.tx.LockResources(ctx, d.ResourceIDs()); err != nil {
			return err
		}

		err = s.validator.Validate(ctx, d, b.Start, b.Stop, b.ID)
		var conflict *scheduling.ConflictError
		switch {
		case err == nil:
			continue
		case errors.As(err, &conflict):
			if first == nil {
				first = conflict
			}
			failed = append(failed, b.ID)
		default:
			return err
		}
	}

	if first == nil {
		return nil
	}
	s.log.Info("calendar change breaks bookings",
		zap.String("calendar_id", calendarID),
		zap.Strings("booking_ids", failed),
	)
	first.BookingIDs = failed
	return first
}
