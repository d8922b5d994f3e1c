package calendar

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Revalidator re-checks the bookings that depend on a calendar after its
// working time shrank. It returns an error when any of them no longer fits.
type Revalidator interface {
	RevalidateCalendar(ctx context.Context, calendarID string) error
}

// TxRunner runs fn in a single transaction.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type CreateLeaveRequest struct {
	ResourceID string
	Name       string
	DateFrom   time.Time
	DateTo     time.Time
}

type Service interface {
	GetByID(ctx context.Context, id string) (*Calendar, error)
	UpdateAttendances(ctx context.Context, id string, attendances []Attendance) (*Calendar, error)
	AddLeave(ctx context.Context, calendarID string, req CreateLeaveRequest) (*Leave, error)
}

type service struct {
	repo        Repository
	tx          TxRunner
	revalidator Revalidator
	log         *zap.Logger
}

func NewService(repo Repository, tx TxRunner, revalidator Revalidator, log *zap.Logger) Service {
	return &service{
		repo:        repo,
		tx:          tx,
		revalidator: revalidator,
		log:         log.Named("calendar"),
	}
}

func (s *service) GetByID(ctx context.Context, id string) (*Calendar, error) {
	return s.repo.GetByID(ctx, id)
}

// UpdateAttendances replaces the weekly pattern. The change is rolled back
// when a future booking relying on the calendar would stop fitting.
func (s *service) UpdateAttendances(ctx context.Context, id string, attendances []Attendance) (*Calendar, error) {
	if err := ValidateAttendances(attendances); err != nil {
		return nil, err
	}

	var updated *Calendar
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repo.ReplaceAttendances(ctx, id, attendances); err != nil {
			return err
		}
		if err := s.revalidator.RevalidateCalendar(ctx, id); err != nil {
			return err
		}
		var err error
		updated, err = s.repo.GetByID(ctx, id)
		return err
	})
	if err != nil {
		s.log.Info("attendance update rejected", zap.String("calendar_id", id), zap.Error(err))
		return nil, err
	}

	s.log.Info("attendances updated", zap.String("calendar_id", id), zap.Int("count", len(attendances)))
	return updated, nil
}

// AddLeave records time off and applies the same re-validation as a pattern
// change.
func (s *service) AddLeave(ctx context.Context, calendarID string, req CreateLeaveRequest) (*Leave, error) {
	if !req.DateFrom.Before(req.DateTo) {
		return nil, ErrInvalidLeave
	}

	leave := &Leave{
		CalendarID: calendarID,
		ResourceID: req.ResourceID,
		Name:       req.Name,
		DateFrom:   req.DateFrom.UTC(),
		DateTo:     req.DateTo.UTC(),
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.repo.GetByID(ctx, calendarID); err != nil {
			return err
		}
		if err := s.repo.CreateLeave(ctx, leave); err != nil {
			return err
		}
		return s.revalidator.RevalidateCalendar(ctx, calendarID)
	})
	if err != nil {
		return nil, err
	}
	return leave, nil
}
