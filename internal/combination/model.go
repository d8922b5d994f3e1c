package combination

import (
	"net/http"

	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound = apperror.New(http.StatusNotFound, "combination not found")
	ErrEmpty    = apperror.New(http.StatusUnprocessableEntity, "combination has no resources")
)

// Combination is a set of resources that must all be free for a booking.
// ForcedCalendarID, when set, replaces the members' own calendars.
type Combination struct {
	ID               string
	Name             string
	ResourceIDs      []string
	ForcedCalendarID string
}
