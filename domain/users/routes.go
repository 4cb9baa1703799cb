package users

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers the user routes with the Echo router
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api/users")

	g.POST("", h.Touch)
	g.GET("/:telegram_id", h.Get)

	g.GET("/:telegram_id/favorites", h.ListFavorites)
	g.PUT("/:telegram_id/favorites/:work_id", h.AddFavorite)
	g.DELETE("/:telegram_id/favorites/:work_id", h.RemoveFavorite)

	g.PUT("/:telegram_id/ratings/:work_id", h.SetRating)

	g.POST("/:telegram_id/history", h.RecordWatch)
	g.GET("/:telegram_id/history", h.WatchHistory)

	g.GET("/:telegram_id/works/:work_id", h.WorkStatus)
}
