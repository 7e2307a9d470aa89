package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/layered-api/internal/config"
	"github.com/deppfellow/layered-api/internal/errs"
	"github.com/deppfellow/layered-api/internal/handler"
	"github.com/deppfellow/layered-api/internal/lib/job"
	"github.com/deppfellow/layered-api/internal/metrics"
	"github.com/deppfellow/layered-api/internal/repository"
	"github.com/deppfellow/layered-api/internal/repository/memory"
	"github.com/deppfellow/layered-api/internal/server"
	"github.com/deppfellow/layered-api/internal/service"
	"github.com/deppfellow/layered-api/internal/validation"
)

func newTestAPI(t *testing.T) *echo.Echo {
	t.Helper()
	logger := zerolog.Nop()
	s := &server.Server{
		Config: &config.Config{
			Primary: config.Primary{Env: "test"},
			Server: config.ServerConfig{
				RequestTimeout:     time.Second,
				CORSAllowedOrigins: []string{"*"},
			},
			Retry: config.RetryConfig{MaxAttempts: 1},
		},
		Logger: &logger,
	}

	repos := repository.NewStatic(memory.NewUserStore(), memory.NewFileStore(), job.NoopQueue{})
	services, err := service.NewServices(s, repos)
	require.NoError(t, err)
	h, err := handler.NewHandlers(s, repos, services, metrics.New())
	require.NoError(t, err)

	catalog, err := validation.NewCatalog()
	require.NoError(t, err)
	reg, err := BuildRegistry(catalog, h.Users)
	require.NoError(t, err)

	e, err := NewRouter(s, h, reg)
	require.NoError(t, err)
	return e
}

func do(e *echo.Echo, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func descriptor(t *testing.T, rec *httptest.ResponseRecorder) errs.Descriptor {
	t.Helper()
	var d errs.Descriptor
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d), rec.Body.String())
	return d
}

func TestRegisterValidationError(t *testing.T) {
	e := newTestAPI(t)

	rec := do(e, http.MethodPost, "/api/v1/users", `{"name":"","email":"a@b.com"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	d := descriptor(t, rec)
	assert.Equal(t, errs.KindValidation, d.Kind)
	assert.Contains(t, d.Details, "name")
}

func TestRegisterAndFetchUser(t *testing.T) {
	e := newTestAPI(t)

	rec := do(e, http.MethodPost, "/api/v1/users", `{"name":"Ada","email":"ada@x.com"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var user map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.NotEmpty(t, user["id"])
	assert.Equal(t, "Ada", user["name"])
	assert.Equal(t, "ada@x.com", user["email"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec = do(e, http.MethodGet, "/api/v1/users/"+user["id"].(string), "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(e, http.MethodDelete, "/api/v1/users/"+user["id"].(string), "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.Bytes())
}

func TestUnregisteredRouteIsNotFound(t *testing.T) {
	e := newTestAPI(t)

	for _, c := range [][2]string{
		{http.MethodGet, "/api/v1/unknown"},
		{http.MethodPost, "/api/v1/users/123"},
		{http.MethodGet, "/api"},
		{http.MethodGet, "/nowhere"},
	} {
		rec := do(e, c[0], c[1], "")
		assert.Equal(t, http.StatusNotFound, rec.Code, c)
		assert.Equal(t, errs.KindNotFound, descriptor(t, rec).Kind, c)
	}
}

func TestMalformedBody(t *testing.T) {
	e := newTestAPI(t)

	for _, body := range []string{
		`{"name":`,
		`[1,2]`,
		`{"name":"Ada","email":"ada@x.com"} garbage`,
		`{"name":"Ada","email":"ada@x.com"}{"name":"Bob"}`,
	} {
		rec := do(e, http.MethodPost, "/api/v1/users", body)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code, body)
		assert.Equal(t, map[string]string{"body": "must be a JSON object"}, descriptor(t, rec).Details, body)
	}

	rec := do(e, http.MethodPost, "/api/v1/users", "{\"name\":\"Ada\",\"email\":\"ada@x.com\"}\n")
	assert.Equal(t, http.StatusCreated, rec.Code, "trailing whitespace is fine")
}

func TestConcurrentRegistrationsConflict(t *testing.T) {
	e := newTestAPI(t)
	const n = 6

	codes := make(chan int, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			codes <- do(e, http.MethodPost, "/api/v1/users", `{"name":"Ada","email":"same@x.com"}`).Code
		}()
	}
	wg.Wait()
	close(codes)

	counts := map[int]int{}
	for c := range codes {
		counts[c]++
	}
	assert.Equal(t, 1, counts[http.StatusCreated])
	assert.Equal(t, n-1, counts[http.StatusConflict])
}

func TestSystemRoutes(t *testing.T) {
	e := newTestAPI(t)

	rec := do(e, http.MethodGet, "/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	do(e, http.MethodGet, "/api/v1/users/x", "")
	rec = do(e, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `api_requests_total{kind="ValidationError",method="GET",route="users.get"} 1`)

	rec = do(e, http.MethodGet, "/openapi.json", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.Contains(rec.Body.Bytes(), []byte(`"/api/v1/users/{id}/avatar"`)))

	rec = do(e, http.MethodGet, "/docs", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewRouterRequiresFrozenRegistry(t *testing.T) {
	_, err := NewRouter(&server.Server{Config: &config.Config{}}, &handler.Handlers{}, NewRegistry())
	assert.Error(t, err)
}
