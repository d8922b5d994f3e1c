package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/resource-booking-backend/internal/calendar"
	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/response"
)

type Handler struct {
	service calendar.Service
}

func NewHandler(service calendar.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Get(c *gin.Context) {
	var req request.ByIDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	cal, err := h.service.GetByID(c.Request.Context(), req.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewCalendarResponse(cal))
}

func (h *Handler) UpdateAttendances(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	var body UpdateAttendancesRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	if err := body.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	cal, err := h.service.UpdateAttendances(c.Request.Context(), uri.ID, body.toModel())
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewCalendarResponse(cal))
}

func (h *Handler) AddLeave(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid request", err)
		return
	}

	var body CreateLeaveRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}
	if err := body.Validate(); err != nil {
		response.Error(c, err)
		return
	}

	leave, err := h.service.AddLeave(c.Request.Context(), uri.ID, calendar.CreateLeaveRequest{
		ResourceID: body.ResourceID,
		Name:       body.Name,
		DateFrom:   body.DateFrom,
		DateTo:     body.DateTo,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewLeaveResponse(leave))
}
