package works

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the catalog read routes with the Echo router
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api/works")
	g.GET("/search", h.Search)
	g.GET("/:id", h.GetByID)
	g.GET("/:id/episodes", h.ListEpisodes)
}
