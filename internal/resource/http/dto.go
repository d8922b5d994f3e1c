package http

import (
	"time"

	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/resource-booking-backend/internal/resource"
)

// ListResourcesRequest defines query parameters for listing resources.
type ListResourcesRequest struct {
	request.ListParams
	Type       string `form:"type" binding:"omitempty,oneof=person material"`
	CalendarID string `form:"calendar_id" binding:"omitempty,uuid"`
}

type ResourceResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	CalendarID string    `json:"calendar_id,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ResourceTag is the compact form embedded in other responses.
type ResourceTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func NewResponse(r *resource.Resource) ResourceResponse {
	return ResourceResponse{
		ID:         r.ID,
		Name:       r.Name,
		Type:       string(r.Type),
		CalendarID: r.CalendarID,
		UserID:     r.UserID,
		CreatedAt:  r.CreatedAt,
	}
}

func NewTag(r *resource.Resource) ResourceTag {
	return ResourceTag{ID: r.ID, Name: r.Name, Type: string(r.Type)}
}

type CreateRequest struct {
	Name       string `json:"name" binding:"required,max=100"`
	Type       string `json:"type" binding:"required,oneof=person material"`
	CalendarID string `json:"calendar_id" binding:"omitempty,uuid"`
	UserID     string `json:"user_id" binding:"max=100"`
}
