package http

import (
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers resource-related routes.
func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware, staffMiddleware gin.HandlerFunc) {
	group := g.Group("/resources")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)    // List resources
		group.GET("/:id", h.Get) // Get resource details
	}

	// === Staff Routes ===
	staffGroup := group.Group("")
	staffGroup.Use(staffMiddleware)
	{
		staffGroup.POST("", h.Create) // Create resource
	}
}
