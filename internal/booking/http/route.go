package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, authMiddleware gin.HandlerFunc) {
	group := g.Group("/bookings")

	// === Authenticated Routes ===
	group.Use(authMiddleware)
	{
		group.GET("", h.List)
		group.POST("", h.Create)
		group.GET("/:id", h.Get)
		group.GET("/:id/slots", h.Slots)
		group.POST("/:id/schedule", h.Schedule)
		group.POST("/:id/unschedule", h.Unschedule)
		group.POST("/:id/confirm", h.Confirm)
		group.POST("/:id/cancel", h.Cancel)
	}
}
