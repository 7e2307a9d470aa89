package handler

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/middleware"
	"github.com/deppfellow/layered-api/internal/repository"
	"github.com/deppfellow/layered-api/internal/server"
)

const healthCheckTimeout = 5 * time.Second

// HealthHandler reports the reachability of every bound backend.
type HealthHandler struct {
	server   *server.Server
	checks   map[string]repository.Pinger
	bindings map[string]string
}

func NewHealthHandler(s *server.Server, repos *repository.Repositories) *HealthHandler {
	return &HealthHandler{
		server:   s,
		checks:   repos.Checks(),
		bindings: repos.Bindings(),
	}
}

// CheckHealth returns 200 when every check passes and 503 otherwise. The
// memory and local file adapters have nothing to check.
func (h *HealthHandler) CheckHealth(c echo.Context) error {
	start := time.Now()
	logger := middleware.GetLogger(c).With().
		Str("operation", "health_check").
		Logger()

	checks := make(map[string]any, len(h.checks))
	healthy := true

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ctx, cancel := context.WithTimeout(c.Request().Context(), healthCheckTimeout)
		checkStart := time.Now()
		err := h.checks[name].Ping(ctx)
		cancel()
		elapsed := time.Since(checkStart)

		if err != nil {
			healthy = false
			checks[name] = map[string]any{
				"status":        "unhealthy",
				"response_time": elapsed.String(),
				"error":         errs.Describe(err).Message,
			}
			logger.Error().Err(err).Str("check", name).Dur("response_time", elapsed).Msg("health check failed")
			h.recordFailure(name, elapsed, err)
			continue
		}

		checks[name] = map[string]any{
			"status":        "healthy",
			"response_time": elapsed.String(),
		}
		logger.Debug().Str("check", name).Dur("response_time", elapsed).Msg("health check passed")
	}

	response := map[string]any{
		"status":      "healthy",
		"timestamp":   time.Now().UTC(),
		"environment": h.server.Config.Primary.Env,
		"bindings":    h.bindings,
		"checks":      checks,
	}

	if !healthy {
		response["status"] = "unhealthy"
		logger.Warn().Dur("total_duration", time.Since(start)).Msg("health check failed")
		return c.JSON(http.StatusServiceUnavailable, response)
	}
	return c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) recordFailure(check string, elapsed time.Duration, err error) {
	if h.server.LoggerService == nil || h.server.LoggerService.GetApplication() == nil {
		return
	}
	h.server.LoggerService.GetApplication().RecordCustomEvent("HealthCheckError", map[string]any{
		"check_type":       check,
		"operation":        "health_check",
		"response_time_ms": elapsed.Milliseconds(),
		"error_message":    err.Error(),
	})
}
