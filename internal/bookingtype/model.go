package bookingtype

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/resource-booking-backend/internal/scheduling"
)

var (
	ErrNotFound             = apperror.New(http.StatusNotFound, "booking type not found")
	ErrNameRequired         = apperror.New(http.StatusBadRequest, "name is required")
	ErrInvalidAssignment    = apperror.New(http.StatusBadRequest, "assignment must be sorted or random")
	ErrInvalidDuration      = apperror.New(http.StatusBadRequest, "durations must be positive")
	ErrNoCombinations       = apperror.New(http.StatusBadRequest, "booking type needs at least one combination")
	ErrCombinationNotInType = apperror.New(http.StatusUnprocessableEntity, "combination is not offered by this booking type")
)

// DefaultDuration is used for both the slot grid and the booking length
// when a type does not set them.
const DefaultDuration = 30 * time.Minute

// CombinationRel offers a combination within a type. Lower sequences are
// preferred by the sorted assignment.
type CombinationRel struct {
	CombinationID string
	Sequence      int
}

// BookingType describes what can be booked and how combinations are chosen.
type BookingType struct {
	ID                string
	Name              string
	CalendarID        string
	Assignment        scheduling.Policy
	Combinations      []CombinationRel
	SlotDuration      time.Duration
	Duration          time.Duration
	Location          string
	VideocallLocation string
	CreatedAt         time.Time
}

// Offers reports whether combinationID belongs to the type.
func (bt *BookingType) Offers(combinationID string) bool {
	for _, rel := range bt.Combinations {
		if rel.CombinationID == combinationID {
			return true
		}
	}
	return false
}

// Filter defines parameters for listing booking types.
type Filter struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
