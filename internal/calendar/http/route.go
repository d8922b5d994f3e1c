package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers calendar related routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffMiddleware gin.HandlerFunc) {
	group := g.Group("/calendars")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("/:id", h.Get)
	}

	// === Staff Routes ===
	staffGroup := group.Group("")
	staffGroup.Use(staffMiddleware)
	{
		staffGroup.PUT("/:id/attendances", h.UpdateAttendances) // Replace weekly pattern
		staffGroup.POST("/:id/leaves", h.AddLeave)              // Record time off
	}
}
