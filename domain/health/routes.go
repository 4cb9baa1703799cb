package health

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers health check and pipeline ops routes
func RegisterRoutes(e *echo.Echo, h *Handler, p *PipelineHandler) {
	e.GET("/health", h.Health)
	e.GET("/healthz", h.Healthz)
	e.GET("/ready", h.Ready)
	e.GET("/debug", h.Debug)
	e.GET("/api/health", h.Health)
	e.GET("/api/diagnostics", h.Diagnose)

	e.GET("/api/stats/pipeline", p.Pipeline)
	e.POST("/api/admin/sync", p.TriggerSync)
}
