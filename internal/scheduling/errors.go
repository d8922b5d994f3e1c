package scheduling

import (
	"fmt"
	"net/http"
	"time"
)

// NoAvailabilityError means no candidate combination could host the span.
type NoAvailabilityError struct {
	TypeID string
	Start  time.Time
	Stop   time.Time
}

func (e *NoAvailabilityError) Error() string {
	return fmt.Sprintf("no combination available between %s and %s",
		e.Start.UTC().Format(time.RFC3339), e.Stop.UTC().Format(time.RFC3339))
}

func (e *NoAvailabilityError) StatusCode() int { return http.StatusUnprocessableEntity }

func (e *NoAvailabilityError) Details() map[string]any {
	return map[string]any{
		"type_id": e.TypeID,
		"start":   e.Start.UTC(),
		"stop":    e.Stop.UTC(),
	}
}

// Reason tells why a span was rejected for a combination.
type Reason string

const (
	ReasonOutsideCalendar Reason = "outside_calendar"
	ReasonBusy            Reason = "busy"
	ReasonInvalidSpan     Reason = "invalid_span"
)

// ConflictError means a combination cannot host a span.
// BookingIDs lists the bookings that stopped fitting, when a calendar change
// was rejected.
type ConflictError struct {
	CombinationID string
	Start         time.Time
	Stop          time.Time
	Reason        Reason
	BookingIDs    []string
}

func (e *ConflictError) Error() string {
	switch e.Reason {
	case ReasonOutsideCalendar:
		return fmt.Sprintf("combination %s is not available between %s and %s",
			e.CombinationID, e.Start.UTC().Format(time.RFC3339), e.Stop.UTC().Format(time.RFC3339))
	case ReasonBusy:
		return fmt.Sprintf("combination %s is busy between %s and %s",
			e.CombinationID, e.Start.UTC().Format(time.RFC3339), e.Stop.UTC().Format(time.RFC3339))
	default:
		return "booking start must be before its stop"
	}
}

func (e *ConflictError) StatusCode() int { return http.StatusConflict }

func (e *ConflictError) Details() map[string]any {
	d := map[string]any{
		"combination_id": e.CombinationID,
		"start":          e.Start.UTC(),
		"stop":           e.Stop.UTC(),
		"reason":         string(e.Reason),
	}
	if len(e.BookingIDs) > 0 {
		d["booking_ids"] = e.BookingIDs
	}
	return d
}
