package http

import (
	"time"

	"github.com/nekogravitycat/resource-booking-backend/internal/calendar"
)

type AttendanceBody struct {
	Weekday  *int    `json:"weekday" binding:"required,min=0,max=6"`
	HourFrom float64 `json:"hour_from" binding:"min=0,max=24"`
	HourTo   float64 `json:"hour_to" binding:"required,gt=0,max=24"`
}

type UpdateAttendancesRequest struct {
	Attendances []AttendanceBody `json:"attendances" binding:"dive"`
}

// Validate performs custom validation for UpdateAttendancesRequest.
func (r *UpdateAttendancesRequest) Validate() error {
	return calendar.ValidateAttendances(r.toModel())
}

func (r *UpdateAttendancesRequest) toModel() []calendar.Attendance {
	out := make([]calendar.Attendance, len(r.Attendances))
	for i, a := range r.Attendances {
		out[i] = calendar.Attendance{Weekday: time.Weekday(*a.Weekday), HourFrom: a.HourFrom, HourTo: a.HourTo}
	}
	return out
}

type CreateLeaveRequest struct {
	ResourceID string    `json:"resource_id" binding:"omitempty,uuid"`
	Name       string    `json:"name" binding:"max=200"`
	DateFrom   time.Time `json:"date_from" binding:"required"`
	DateTo     time.Time `json:"date_to" binding:"required"`
}

// Validate performs custom validation for CreateLeaveRequest.
func (r *CreateLeaveRequest) Validate() error {
	if !r.DateFrom.Before(r.DateTo) {
		return calendar.ErrInvalidLeave
	}
	return nil
}

type AttendanceResponse struct {
	Weekday  int     `json:"weekday"`
	HourFrom float64 `json:"hour_from"`
	HourTo   float64 `json:"hour_to"`
}

type CalendarResponse struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Timezone    string               `json:"timezone"`
	Attendances []AttendanceResponse `json:"attendances"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func NewCalendarResponse(c *calendar.Calendar) CalendarResponse {
	atts := make([]AttendanceResponse, len(c.Attendances))
	for i, a := range c.Attendances {
		atts[i] = AttendanceResponse{Weekday: int(a.Weekday), HourFrom: a.HourFrom, HourTo: a.HourTo}
	}
	return CalendarResponse{
		ID:          c.ID,
		Name:        c.Name,
		Timezone:    c.Timezone,
		Attendances: atts,
		UpdatedAt:   c.UpdatedAt,
	}
}

type LeaveResponse struct {
	ID         string    `json:"id"`
	CalendarID string    `json:"calendar_id"`
	ResourceID string    `json:"resource_id,omitempty"`
	Name       string    `json:"name"`
	DateFrom   time.Time `json:"date_from"`
	DateTo     time.Time `json:"date_to"`
}

func NewLeaveResponse(l *calendar.Leave) LeaveResponse {
	return LeaveResponse{
		ID:         l.ID,
		CalendarID: l.CalendarID,
		ResourceID: l.ResourceID,
		Name:       l.Name,
		DateFrom:   l.DateFrom,
		DateTo:     l.DateTo,
	}
}
