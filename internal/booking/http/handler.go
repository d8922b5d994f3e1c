package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/resource-booking-backend/internal/auth"
	"github.com/nekogravitycat/resource-booking-backend/internal/booking"
	btHttp "github.com/nekogravitycat/resource-booking-backend/internal/bookingtype/http"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/response"
)

type Handler struct {
	service booking.Service
}

func NewHandler(service booking.Service) *Handler {
	return &Handler{service: service}
}

func actor(c *gin.Context) booking.Actor {
	return booking.Actor{UserID: auth.GetUserID(c), Staff: auth.IsStaff(c)}
}

func (h *Handler) List(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	// Staff may list anyone's bookings; others only see their own.
	a := actor(c)
	requesterID := a.UserID
	if a.Staff {
		requesterID = req.RequesterID
	}

	filter := booking.Filter{
		RequesterID: requesterID,
		TypeID:      req.TypeID,
		State:       booking.State(req.State),
		From:        req.From,
		To:          req.To,
		Page:        req.Page,
		PageSize:    req.PageSize,
		SortBy:      req.SortBy,
		SortOrder:   req.NormalizedSortOrder("DESC"),
	}

	bookings, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewBookingResponse(b)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	if err := body.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	req, err := body.toModel()
	if err != nil {
		response.Error(c, err)
		return
	}

	b, err := h.service.Create(c.Request.Context(), actor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewBookingResponse(b))
}

func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	b, err := h.service.GetByID(c.Request.Context(), actor(c), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

func (h *Handler) Schedule(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	var body ScheduleBookingRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	req, err := body.toModel()
	if err != nil {
		response.Error(c, err)
		return
	}

	b, err := h.service.Schedule(c.Request.Context(), actor(c), uri.ID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

// transition binds the booking id and applies one state change.
func (h *Handler) transition(c *gin.Context, fn func(ctx context.Context, a booking.Actor, id string) (*booking.Booking, error)) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	b, err := fn(c.Request.Context(), actor(c), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewBookingResponse(b))
}

func (h *Handler) Unschedule(c *gin.Context) {
	h.transition(c, h.service.Unschedule)
}

func (h *Handler) Confirm(c *gin.Context) {
	h.transition(c, h.service.Confirm)
}

func (h *Handler) Cancel(c *gin.Context) {
	h.transition(c, h.service.Cancel)
}

// Slots lists where the booking could be moved, honouring its type, its
// duration and its pinned combination.
func (h *Handler) Slots(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	var req BookingSlotsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	if !req.Start.Before(req.Stop) {
		response.BadRequest(c, "start must be before end", nil)
		return
	}

	ctx := c.Request.Context()
	b, err := h.service.GetByID(ctx, actor(c), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	autoAssign := b.AutoAssign
	sr := booking.SchedulingRequest{
		TypeID:        b.TypeID,
		Duration:      b.Duration,
		CombinationID: b.CombinationID,
		AutoAssign:    &autoAssign,
		Timezone:      req.Timezone,
	}
	loc, err := sr.Location()
	if err != nil {
		response.BadRequest(c, "invalid timezone", err)
		return
	}

	slots, err := h.service.AvailableSlots(ctx, sr, interval.New(req.Start, req.Stop))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, btHttp.NewSlotsResponse(slots, loc))
}
