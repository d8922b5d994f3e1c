package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/resource-booking-backend/internal/bookingtype"
	"github.com/nekogravitycat/resource-booking-backend/internal/interval"
	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/resource-booking-backend/internal/scheduling"
)

type Handler struct {
	service     bookingtype.Service
	defaultZone *time.Location
}

func NewHandler(service bookingtype.Service, defaultZone *time.Location) *Handler {
	if defaultZone == nil {
		defaultZone = time.UTC
	}
	return &Handler{service: service, defaultZone: defaultZone}
}

func (h *Handler) List(c *gin.Context) {
	var req ListBookingTypesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	filter := bookingtype.Filter{
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortBy:    req.SortBy,
		SortOrder: req.NormalizedSortOrder("DESC"),
	}

	types, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]BookingTypeResponse, len(types))
	for i, bt := range types {
		items[i] = NewResponse(bt)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	bt, err := h.service.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewResponse(bt))
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	rels := make([]bookingtype.CombinationRel, len(body.Combinations))
	for i, rel := range body.Combinations {
		rels[i] = bookingtype.CombinationRel{CombinationID: rel.CombinationID, Sequence: rel.Sequence}
	}

	bt, err := h.service.Create(c.Request.Context(), bookingtype.CreateRequest{
		Name:              body.Name,
		CalendarID:        body.CalendarID,
		Assignment:        scheduling.Policy(body.Assignment),
		Combinations:      rels,
		SlotDuration:      time.Duration(body.SlotDurationMinutes) * time.Minute,
		Duration:          time.Duration(body.DurationMinutes) * time.Minute,
		Location:          body.Location,
		VideocallLocation: body.VideocallLocation,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewResponse(bt))
}

// Slots lists bookable start times grouped by local date.
func (h *Handler) Slots(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	var req SlotsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	if !req.Start.Before(req.Stop) {
		response.BadRequest(c, "start must be before end", nil)
		return
	}

	loc := h.defaultZone
	if req.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(req.Timezone); err != nil {
			response.BadRequest(c, "invalid timezone", err)
			return
		}
	}

	ctx := c.Request.Context()
	bt, err := h.service.GetByID(ctx, uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	slots, err := h.service.Slots(ctx, bt, interval.New(req.Start, req.Stop), time.Duration(req.DurationMinutes)*time.Minute, loc)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewSlotsResponse(slots, loc))
}

// Free returns the free intervals of one combination of the type.
func (h *Handler) Free(c *gin.Context) {
	var uri CombinationURI
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	var req request.TimeRange
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}
	if !req.Start.Before(req.Stop) {
		response.BadRequest(c, "start must be before end", nil)
		return
	}

	ctx := c.Request.Context()
	bt, err := h.service.GetByID(ctx, uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	free, err := h.service.FreeIntervals(ctx, bt, uri.CombinationID, interval.New(req.Start, req.Stop))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewFreeResponse(uri.CombinationID, free))
}
