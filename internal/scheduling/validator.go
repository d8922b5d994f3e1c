package scheduling

import (
	"context"
	"time"

	"github.com/nekogravitycat/resource-booking-backend/internal/availability"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
)

// Validator re-checks a concrete span against one combination right before
// it is committed.
type Validator struct {
	engine *availability.Engine
}

func NewValidator(engine *availability.Engine) *Validator {
	return &Validator{engine: engine}
}

// Validate returns nil when [start, stop) fits the calendars of d and none of
// its members is busy, ignoring the booking excludingBookingID itself.
// Calendar fitness is checked first so the reason reported is the most
// fundamental one. Any lookup failure is returned as is and must be treated
// as a rejection.
func (v *Validator) Validate(ctx context.Context, d availability.Descriptor, start, stop time.Time, excludingBookingID string) error {
	span := interval.New(start, stop)
	conflict := &ConflictError{CombinationID: d.CombinationID, Start: span.Start, Stop: span.Stop}
	if !span.Valid() {
		conflict.Reason = ReasonInvalidSpan
		return conflict
	}

	cal, err := v.engine.CalendarIntervals(ctx, d, span)
	if err != nil {
		return err
	}
	if !availability.IsFitting(cal, span.Start, span.Stop) {
		conflict.Reason = ReasonOutsideCalendar
		return conflict
	}

	free, err := v.engine.FreeIntervals(ctx, d, span, availability.ExcludingBooking(excludingBookingID))
	if err != nil {
		return err
	}
	if !availability.IsFitting(free, span.Start, span.Stop) {
		conflict.Reason = ReasonBusy
		return conflict
	}
	return nil
}
