package router

import (
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/layered-api/internal/handler"
)

// registerSystemRoutes mounts the endpoints that are not part of the API:
// health, metrics and documentation.
func registerSystemRoutes(r *echo.Echo, h *handler.Handlers, openAPI *handler.OpenAPIHandler) {
	r.GET("/status", h.Health.CheckHealth)

	if h.Metrics != nil {
		r.GET("/metrics", echo.WrapHandler(h.Metrics.Handler()))
	}

	r.GET("/openapi.json", openAPI.ServeDocument)
	r.GET("/docs", openAPI.ServeUI)
}
