package http

import (
	"time"

	"github.com/nekogravitycat/resource-booking-backend/internal/availability"
	"github.com/nekogravitycat/resource-booking-backend/internal/bookingtype"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/request"
)

// ListBookingTypesRequest defines query parameters for listing booking types.
type ListBookingTypesRequest struct {
	request.ListParams
	SortBy string `form:"sort_by" binding:"omitempty,oneof=name created_at"`
}

type CombinationRelBody struct {
	CombinationID string `json:"combination_id" binding:"required,uuid"`
	Sequence      int    `json:"sequence"`
}

type CreateRequest struct {
	Name                string               `json:"name" binding:"required,min=1,max=100"`
	CalendarID          string               `json:"calendar_id" binding:"omitempty,uuid"`
	Assignment          string               `json:"assignment" binding:"omitempty,oneof=sorted random"`
	Combinations        []CombinationRelBody `json:"combinations" binding:"required,min=1,dive"`
	SlotDurationMinutes int                  `json:"slot_duration_minutes" binding:"min=0"`
	DurationMinutes     int                  `json:"duration_minutes" binding:"min=0"`
	Location            string               `json:"location"`
	VideocallLocation   string               `json:"videocall_location"`
}

// SlotsRequest defines query parameters for the slot search.
type SlotsRequest struct {
	request.TimeRange
	DurationMinutes int    `form:"duration" binding:"min=0"`
	Timezone        string `form:"tz"`
}

type CombinationURI struct {
	ID            string `uri:"id" binding:"required,uuid"`
	CombinationID string `uri:"cid" binding:"required,uuid"`
}

type CombinationRelResponse struct {
	CombinationID string `json:"combination_id"`
	Sequence      int    `json:"sequence"`
}

type BookingTypeResponse struct {
	ID                  string                   `json:"id"`
	Name                string                   `json:"name"`
	CalendarID          string                   `json:"calendar_id,omitempty"`
	Assignment          string                   `json:"assignment"`
	Combinations        []CombinationRelResponse `json:"combinations"`
	SlotDurationMinutes int                      `json:"slot_duration_minutes"`
	DurationMinutes     int                      `json:"duration_minutes"`
	Location            string                   `json:"location"`
	VideocallLocation   string                   `json:"videocall_location"`
	CreatedAt           time.Time                `json:"created_at"`
}

func NewResponse(bt *bookingtype.BookingType) BookingTypeResponse {
	rels := make([]CombinationRelResponse, len(bt.Combinations))
	for i, rel := range bt.Combinations {
		rels[i] = CombinationRelResponse{CombinationID: rel.CombinationID, Sequence: rel.Sequence}
	}
	return BookingTypeResponse{
		ID:                  bt.ID,
		Name:                bt.Name,
		CalendarID:          bt.CalendarID,
		Assignment:          string(bt.Assignment),
		Combinations:        rels,
		SlotDurationMinutes: int(bt.SlotDuration / time.Minute),
		DurationMinutes:     int(bt.Duration / time.Minute),
		Location:            bt.Location,
		VideocallLocation:   bt.VideocallLocation,
		CreatedAt:           bt.CreatedAt,
	}
}

type DaySlots struct {
	Date  string      `json:"date"`
	Slots []time.Time `json:"slots"`
}

type SlotsResponse struct {
	Timezone string     `json:"timezone"`
	Days     []DaySlots `json:"days"`
}

func NewSlotsResponse(slots availability.Slots, loc *time.Location) SlotsResponse {
	days := slots.Days()
	out := SlotsResponse{Timezone: loc.String(), Days: make([]DaySlots, len(days))}
	for i, day := range days {
		out.Days[i] = DaySlots{Date: day, Slots: slots[day]}
	}
	return out
}

type IntervalResponse struct {
	Start time.Time `json:"start"`
	Stop  time.Time `json:"stop"`
}

type FreeResponse struct {
	CombinationID string             `json:"combination_id"`
	Intervals     []IntervalResponse `json:"intervals"`
}

func NewFreeResponse(combinationID string, set interval.Set) FreeResponse {
	items := set.Intervals()
	out := FreeResponse{CombinationID: combinationID, Intervals: make([]IntervalResponse, len(items))}
	for i, it := range items {
		out.Intervals[i] = IntervalResponse{Start: it.Start, Stop: it.Stop}
	}
	return out
}
