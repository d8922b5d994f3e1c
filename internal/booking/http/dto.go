package http

import (
	"time"

	"github.com/nekogravitycat/resource-booking-backend/internal/booking"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/request"
)

// ListBookingsRequest defines query parameters for listing bookings.
type ListBookingsRequest struct {
	request.ListParams
	TypeID      string     `form:"booking_type_id" binding:"omitempty,uuid"`
	State       string     `form:"state" binding:"omitempty,oneof=pending scheduled confirmed canceled"`
	RequesterID string     `form:"requester_id"`
	From        *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To          *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	SortBy      string     `form:"sort_by" binding:"omitempty,oneof=start_time stop_time created_at state"`
}

// Validate performs custom validation for ListBookingsRequest.
func (r *ListBookingsRequest) Validate() error {
	if r.From != nil && r.To != nil && r.From.After(*r.To) {
		return booking.ErrInvalidTimeRange
	}
	return nil
}

type IntervalBody struct {
	Start time.Time `json:"start" binding:"required"`
	Stop  time.Time `json:"stop" binding:"required"`
}

func toSet(items []IntervalBody) (interval.Set, error) {
	spans := make([]interval.Interval, 0, len(items))
	for _, it := range items {
		if !it.Start.Before(it.Stop) {
			return interval.Set{}, booking.ErrInvalidTimeRange
		}
		spans = append(spans, interval.New(it.Start, it.Stop))
	}
	return interval.NewSet(spans...), nil
}

type CreateBookingRequest struct {
	TypeID          string         `json:"booking_type_id" binding:"required,uuid"`
	RequesterID     string         `json:"requester_id"`
	Name            string         `json:"name" binding:"max=200"`
	Start           *time.Time     `json:"start"`
	Stop            *time.Time     `json:"stop"`
	DurationMinutes int            `json:"duration_minutes" binding:"min=0"`
	CombinationID   string         `json:"combination_id" binding:"omitempty,uuid"`
	AutoAssign      *bool          `json:"auto_assign"`
	Timezone        string         `json:"timezone"`
	RequesterBusy   []IntervalBody `json:"requester_busy" binding:"omitempty,dive"`
}

// Validate performs custom validation for CreateBookingRequest.
func (r *CreateBookingRequest) Validate() error {
	if r.Stop != nil && r.Start == nil {
		return booking.ErrInvalidTimeRange
	}
	if r.Start != nil && r.Stop != nil && !r.Start.Before(*r.Stop) {
		return booking.ErrInvalidTimeRange
	}
	return nil
}

func (r *CreateBookingRequest) toModel() (booking.SchedulingRequest, error) {
	busy, err := toSet(r.RequesterBusy)
	if err != nil {
		return booking.SchedulingRequest{}, err
	}
	req := booking.SchedulingRequest{
		TypeID:        r.TypeID,
		RequesterID:   r.RequesterID,
		Name:          r.Name,
		Duration:      time.Duration(r.DurationMinutes) * time.Minute,
		CombinationID: r.CombinationID,
		AutoAssign:    r.AutoAssign,
		Timezone:      r.Timezone,
		RequesterBusy: busy,
	}
	if r.Start != nil {
		req.Start = *r.Start
	}
	if r.Stop != nil {
		req.Stop = *r.Stop
	}
	return req, nil
}

// ScheduleBookingRequest moves a booking. Omitted fields keep their value.
type ScheduleBookingRequest struct {
	TypeID            *string        `json:"booking_type_id" binding:"omitempty,uuid"`
	Start             *time.Time     `json:"start"`
	Stop              *time.Time     `json:"stop"`
	DurationMinutes   *int           `json:"duration_minutes" binding:"omitempty,min=1"`
	CombinationID     *string        `json:"combination_id" binding:"omitempty,uuid"`
	AutoAssign        *bool          `json:"auto_assign"`
	Location          *string        `json:"location"`
	VideocallLocation *string        `json:"videocall_location"`
	RequesterBusy     []IntervalBody `json:"requester_busy" binding:"omitempty,dive"`
}

func (r *ScheduleBookingRequest) toModel() (booking.ScheduleRequest, error) {
	busy, err := toSet(r.RequesterBusy)
	if err != nil {
		return booking.ScheduleRequest{}, err
	}
	req := booking.ScheduleRequest{
		TypeID:            r.TypeID,
		Start:             r.Start,
		Stop:              r.Stop,
		CombinationID:     r.CombinationID,
		AutoAssign:        r.AutoAssign,
		Location:          r.Location,
		VideocallLocation: r.VideocallLocation,
		RequesterBusy:     busy,
	}
	if r.DurationMinutes != nil {
		d := time.Duration(*r.DurationMinutes) * time.Minute
		req.Duration = &d
	}
	return req, nil
}

// BookingSlotsRequest searches new start times for an existing booking.
type BookingSlotsRequest struct {
	request.TimeRange
	Timezone string `form:"tz"`
}

type BookingResponse struct {
	ID                string     `json:"id"`
	TypeID            string     `json:"booking_type_id"`
	RequesterID       string     `json:"requester_id"`
	Name              string     `json:"name"`
	Start             *time.Time `json:"start"`
	Stop              *time.Time `json:"stop"`
	DurationMinutes   int        `json:"duration_minutes"`
	CombinationID     string     `json:"combination_id,omitempty"`
	ResourceIDs       []string   `json:"resource_ids"`
	AutoAssign        bool       `json:"auto_assign"`
	State             string     `json:"state"`
	Active            bool       `json:"active"`
	Location          string     `json:"location"`
	VideocallLocation string     `json:"videocall_location"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	resp := BookingResponse{
		ID:                b.ID,
		TypeID:            b.TypeID,
		RequesterID:       b.RequesterID,
		Name:              b.Name,
		DurationMinutes:   int(b.Duration / time.Minute),
		CombinationID:     b.CombinationID,
		ResourceIDs:       b.ResourceIDs,
		AutoAssign:        b.AutoAssign,
		State:             string(b.State),
		Active:            b.Active,
		Location:          b.Location,
		VideocallLocation: b.VideocallLocation,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
	if resp.ResourceIDs == nil {
		resp.ResourceIDs = []string{}
	}
	if b.Scheduled() {
		start, stop := b.Start, b.Stop
		resp.Start, resp.Stop = &start, &stop
	}
	return resp
}
