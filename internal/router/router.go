// Package router mounts the route registry on Echo.
//
// Every request under /api goes through one Echo handler that resolves it in
// the Registry and hands it to the controller; Echo's own router only serves
// the system routes.
package router

import (
	"fmt"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/layered-api/internal/handler"
	"github.com/deppfellow/layered-api/internal/middleware"
	"github.com/deppfellow/layered-api/internal/server"
	"github.com/deppfellow/layered-api/internal/validation"
)

// Version is reported in the OpenAPI document.
const Version = "1.0.0"

// RouteSource contributes routes to the registry.
type RouteSource interface {
	Routes(catalog *validation.Catalog) ([]handler.Route, error)
}

// BuildRegistry registers the routes of every source and freezes the result.
func BuildRegistry(catalog *validation.Catalog, sources ...RouteSource) (*Registry, error) {
	reg := NewRegistry()
	for _, src := range sources {
		routes, err := src.Routes(catalog)
		if err != nil {
			return nil, err
		}
		if err := reg.RegisterAll(routes); err != nil {
			return nil, err
		}
	}
	reg.Freeze()
	return reg, nil
}

// NewRouter builds the Echo instance serving reg through h.Controller.
func NewRouter(s *server.Server, h *handler.Handlers, reg *Registry) (*echo.Echo, error) {
	if !reg.Frozen() {
		return nil, fmt.Errorf("route registry must be frozen before serving")
	}
	statuses, err := s.Config.Errors.Statuses()
	if err != nil {
		return nil, err
	}
	openAPI, err := handler.NewOpenAPIHandler("Layered API", Version, reg.Routes())
	if err != nil {
		return nil, err
	}

	mw := middleware.NewMiddlewares(s, statuses)

	router := echo.New()
	router.HideBanner = true
	router.HTTPErrorHandler = mw.Global.GlobalErrorHandler

	router.Use(
		mw.Global.Recover(),
		middleware.RequestID(),
		mw.Tracing.NewRelicMiddleware(),
		mw.Tracing.EnhanceTracing(),
		mw.ContextEnhancer.EnhanceContext(),
		mw.Global.RequestLogger(),
		mw.Global.CORS(),
		mw.Global.Secure(),
		mw.Global.BodyLimit(),
	)

	registerSystemRoutes(router, h, openAPI)

	api := router.Group("/api")
	if s.Config.Auth.Enabled {
		api.Use(mw.Auth.RequireAuth)
	}
	dispatcher := NewDispatcher(reg, h.Controller)
	api.Any("", dispatcher.Handle)
	api.Any("/*", dispatcher.Handle)

	return router, nil
}
