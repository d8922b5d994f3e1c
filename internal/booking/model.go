package booking

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound            = apperror.New(http.StatusNotFound, "booking not found")
	ErrInvalidTimeRange    = apperror.New(http.StatusBadRequest, "start time must be before stop time")
	ErrInvalidDuration     = apperror.New(http.StatusBadRequest, "duration must be positive")
	ErrRequesterRequired   = apperror.New(http.StatusBadRequest, "requester is required")
	ErrCombinationRequired = apperror.New(http.StatusBadRequest, "combination is required when auto assignment is off")
	ErrNotScheduled        = apperror.New(http.StatusConflict, "booking has no schedule")
	ErrCanceled            = apperror.New(http.StatusConflict, "booking is canceled")
	ErrPermissionDenied    = apperror.New(http.StatusForbidden, "permission denied")
	ErrInvalidState        = apperror.New(http.StatusBadRequest, "invalid booking state")
	ErrInvalidTimezone     = apperror.New(http.StatusBadRequest, "unknown timezone")
)

type State string

const (
	StatePending   State = "pending"
	StateScheduled State = "scheduled"
	StateConfirmed State = "confirmed"
	StateCanceled  State = "canceled"
)

func (s State) Valid() bool {
	switch s {
	case StatePending, StateScheduled, StateConfirmed, StateCanceled:
		return true
	}
	return false
}

// Booking asks for one combination of a booking type during [Start, Stop).
// Start and Stop are zero while the booking is pending. CombinationID
// survives unscheduling and is re-validated on the next schedule.
type Booking struct {
	ID                string
	TypeID            string
	RequesterID       string
	Name              string
	Start             time.Time
	Stop              time.Time
	Duration          time.Duration
	CombinationID     string
	ResourceIDs       []string
	AutoAssign        bool
	State             State
	Active            bool
	Location          string
	VideocallLocation string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Scheduled reports whether the booking holds a concrete span.
func (b *Booking) Scheduled() bool {
	return !b.Start.IsZero()
}

// Span returns the booked interval. It is invalid for pending bookings.
func (b *Booking) Span() interval.Interval {
	return interval.New(b.Start, b.Stop)
}

// Blocking reports whether the booking consumes its resources' time.
func (b *Booking) Blocking() bool {
	return b.Active && b.Scheduled() && (b.State == StateScheduled || b.State == StateConfirmed)
}

type Filter struct {
	RequesterID string
	TypeID      string
	State       State
	From        *time.Time // Bookings ending after this time
	To          *time.Time // Bookings starting before this time
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}
