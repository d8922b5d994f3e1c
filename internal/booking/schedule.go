package booking

import (
	"time"

	"github.com/nekogravitycat/resource-booking-backend/internal/bookingtype"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
)

// SchedulingRequest lists every option accepted when asking for a booking.
//
// Defaults: a zero Start leaves the booking pending; a zero Stop is derived
// from Duration; a zero Duration takes the booking type's; a nil AutoAssign
// means true unless CombinationID pins a combination; an empty Timezone
// means UTC. RequesterBusy is extra time the requester cannot attend.
type SchedulingRequest struct {
	TypeID        string
	RequesterID   string
	Name          string
	Start         time.Time
	Stop          time.Time
	Duration      time.Duration
	CombinationID string
	AutoAssign    *bool
	Timezone      string
	RequesterBusy interval.Set
}

// AutoAssigned resolves the AutoAssign default.
func (r SchedulingRequest) AutoAssigned() bool {
	if r.AutoAssign != nil {
		return *r.AutoAssign
	}
	return r.CombinationID == ""
}

// Location resolves Timezone.
func (r SchedulingRequest) Location() (*time.Location, error) {
	if r.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(r.Timezone)
}

// Patch is one external change to a booking. Nil fields are left alone.
type Patch struct {
	Type              *bookingtype.BookingType
	Start             *time.Time
	Stop              *time.Time
	Duration          *time.Duration
	ClearStart        bool
	CombinationID     *string
	AutoAssign        *bool
	Location          *string
	VideocallLocation *string
}

// DeriveSchedule applies p to b and returns the resulting booking without
// touching b. Setting Start derives Stop from the duration unless Stop is
// also given, in which case the duration follows the span. Clearing the
// start returns the booking to pending and keeps its combination. Switching
// type resets both locations to the type's. Any change of span leaves the
// booking scheduled, so a confirmed booking that moves needs confirming again.
func DeriveSchedule(b Booking, p Patch) (Booking, error) {
	if b.State == StateCanceled {
		return b, ErrCanceled
	}
	out := b
	out.ResourceIDs = append([]string(nil), b.ResourceIDs...)

	if p.Type != nil && p.Type.ID != b.TypeID {
		out.TypeID = p.Type.ID
		out.Location = p.Type.Location
		out.VideocallLocation = p.Type.VideocallLocation
		if p.Duration == nil && p.Type.Duration > 0 {
			out.Duration = p.Type.Duration
		}
		if out.CombinationID != "" && !p.Type.Offers(out.CombinationID) {
			out.CombinationID = ""
			out.AutoAssign = true
		}
	}
	if p.Location != nil {
		out.Location = *p.Location
	}
	if p.VideocallLocation != nil {
		out.VideocallLocation = *p.VideocallLocation
	}
	if p.CombinationID != nil {
		out.CombinationID = *p.CombinationID
	}
	if p.AutoAssign != nil {
		out.AutoAssign = *p.AutoAssign
	}

	if p.Duration != nil {
		if *p.Duration <= 0 {
			return b, ErrInvalidDuration
		}
		out.Duration = *p.Duration
	}

	switch {
	case p.ClearStart:
		out.Start, out.Stop = time.Time{}, time.Time{}
	case p.Start != nil:
		out.Start = p.Start.UTC()
		if p.Stop != nil {
			out.Stop = p.Stop.UTC()
			out.Duration = out.Stop.Sub(out.Start)
		} else {
			out.Stop = out.Start.Add(out.Duration)
		}
	case p.Stop != nil && out.Scheduled():
		out.Stop = p.Stop.UTC()
		out.Duration = out.Stop.Sub(out.Start)
	case out.Scheduled() && out.Duration != b.Duration:
		out.Stop = out.Start.Add(out.Duration)
	}

	if out.Duration <= 0 {
		if out.Scheduled() {
			return b, ErrInvalidTimeRange
		}
		return b, ErrInvalidDuration
	}

	switch {
	case !out.Scheduled():
		out.State = StatePending
		out.ResourceIDs = nil
	case !out.Start.Equal(b.Start) || !out.Stop.Equal(b.Stop) || out.CombinationID != b.CombinationID:
		out.State = StateScheduled
	}
	return out, nil
}

// NeedsPlacement reports whether next must go through selection and
// validation before it is stored.
func NeedsPlacement(prev, next Booking) bool {
	if !next.Scheduled() {
		return false
	}
	return !next.Start.Equal(prev.Start) ||
		!next.Stop.Equal(prev.Stop) ||
		next.CombinationID != prev.CombinationID ||
		next.TypeID != prev.TypeID ||
		next.AutoAssign != prev.AutoAssign ||
		len(next.ResourceIDs) == 0
}
