package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildOpenAPIFromUserRoutes(t *testing.T) {
	api := newUserAPI(t)
	routes := make([]Route, 0, len(api.routes))
	for _, r := range api.routes {
		routes = append(routes, r)
	}

	doc, err := BuildOpenAPI("Layered API", "1.0.0", routes)
	require.NoError(t, err)

	item := doc.Paths.Value("/api/v1/users/{id}")
	require.NotNil(t, item)
	require.NotNil(t, item.Get)
	require.NotNil(t, item.Patch)
	require.NotNil(t, item.Delete)
	assert.Equal(t, "users.get", item.Get.OperationID)
	assert.Nil(t, item.Get.RequestBody)

	register := doc.Paths.Value("/api/v1/users").Post
	require.NotNil(t, register)
	body := register.RequestBody.Value.Content.Get("application/json").Schema.Value
	assert.ElementsMatch(t, []string{"name", "email"}, body.Required)
	assert.Equal(t, "email", body.Properties["email"].Value.Format)
	require.NotNil(t, register.Responses.Status(http.StatusCreated))
}

func TestOpenAPIHandlerServesDocumentAndUI(t *testing.T) {
	h, err := NewOpenAPIHandler("Layered API", "1.0.0", nil)
	require.NoError(t, err)
	e := echo.New()

	rec := httptest.NewRecorder()
	require.NoError(t, h.ServeDocument(e.NewContext(httptest.NewRequest(http.MethodGet, "/openapi.json", nil), rec)))
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.0.3", doc["openapi"])

	rec = httptest.NewRecorder()
	require.NoError(t, h.ServeUI(e.NewContext(httptest.NewRequest(http.MethodGet, "/docs", nil), rec)))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), "/openapi.json")
}

func TestOpenAPIPath(t *testing.T) {
	path, params := openAPIPath("/api/v1/users/:id/avatar")
	assert.Equal(t, "/api/v1/users/{id}/avatar", path)
	assert.Equal(t, []string{"id"}, params)
}
