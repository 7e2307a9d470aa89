package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/layered-api/internal/config"
	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/repository"
	"github.com/deppfellow/layered-api/internal/server"
)

type pingerFunc func(context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func checkHealth(t *testing.T, checks map[string]repository.Pinger) (int, map[string]any) {
	t.Helper()
	logger := zerolog.Nop()
	h := &HealthHandler{
		server:   &server.Server{Config: &config.Config{Primary: config.Primary{Env: "test"}}, Logger: &logger},
		checks:   checks,
		bindings: map[string]string{"users": "memory"},
	}

	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/status", nil), rec)
	require.NoError(t, h.CheckHealth(c))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestHealthWithoutChecks(t *testing.T) {
	code, body := checkHealth(t, nil)

	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "test", body["environment"])
}

func TestHealthReportsFailingBackend(t *testing.T) {
	code, body := checkHealth(t, map[string]repository.Pinger{
		"database": pingerFunc(func(context.Context) error { return nil }),
		"redis": pingerFunc(func(context.Context) error {
			return errs.NewUnavailableError("redis.ping", errors.New("dial tcp 10.0.0.7:6379: refused"))
		}),
	})

	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"].(map[string]any)["status"])
	redis := checks["redis"].(map[string]any)
	assert.Equal(t, "unhealthy", redis["status"])
	assert.NotContains(t, redis["error"], "10.0.0.7")
}
