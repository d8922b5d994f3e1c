package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers booking-type related routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffMiddleware gin.HandlerFunc) {
	group := g.Group("/booking-types")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)                            // List booking types
		group.GET("/:id", h.Get)                         // Get booking type details
		group.GET("/:id/slots", h.Slots)                 // Search bookable slots
		group.GET("/:id/combinations/:cid/free", h.Free) // Free time of one combination
	}

	// === Staff Routes ===
	staffGroup := group.Group("")
	staffGroup.Use(staffMiddleware)
	{
		staffGroup.POST("", h.Create) // Create booking type
	}
}
