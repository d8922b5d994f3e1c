package request

import (
	"strings"
	"time"
)

// ByIDRequest is a common struct for endpoints that require an ID path parameter.
type ByIDRequest struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// Validate performs custom validation for ByIDRequest.
func (r *ByIDRequest) Validate() error {
	return nil
}

// ListParams carries the pagination and ordering shared by list endpoints.
type ListParams struct {
	Page      int    `form:"page,default=1" binding:"min=1"`
	PageSize  int    `form:"page_size,default=20" binding:"min=1,max=100"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc ASC DESC"`
}

// NormalizedSortOrder returns the upper-cased sort order, defaulting to def.
func (p ListParams) NormalizedSortOrder(def string) string {
	if p.SortOrder == "" {
		return def
	}
	return strings.ToUpper(p.SortOrder)
}

// TimeRange is a query-string window used by the search endpoints.
type TimeRange struct {
	Start time.Time `form:"start" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	Stop  time.Time `form:"end" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}
