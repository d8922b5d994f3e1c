package resource

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/resource-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound    = apperror.New(http.StatusNotFound, "resource not found")
	ErrEmptyName   = apperror.New(http.StatusBadRequest, "name cannot be empty")
	ErrInvalidType = apperror.New(http.StatusBadRequest, "resource type must be person or material")
)

// Type tags a resource. The engine never branches on it.
type Type string

const (
	TypePerson   Type = "person"
	TypeMaterial Type = "material"
)

func (t Type) Valid() bool {
	return t == TypePerson || t == TypeMaterial
}

// Resource is a person or a thing that can be booked.
// CalendarID is empty when the resource has no working time at all.
// UserID links a person to the identity that attends meetings and requests bookings.
type Resource struct {
	ID         string
	Name       string
	Type       Type
	CalendarID string
	UserID     string
	CreatedAt  time.Time
}

// Filter defines parameters for listing resources.
type Filter struct {
	Type       Type
	CalendarID string
	Page       int
	PageSize   int
	SortOrder  string
}
