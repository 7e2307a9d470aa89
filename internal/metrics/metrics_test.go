package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	m := New()

	m.Observe("users.get", http.MethodGet, "", 10*time.Millisecond)
	m.Observe("users.get", http.MethodGet, "NotFound", 5*time.Millisecond)
	m.Observe("users.get", http.MethodGet, "NotFound", 5*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("users.get", "GET", OutcomeOK)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("users.get", "GET", "NotFound")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() { m.Observe("x", "GET", "", time.Second) })
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.Observe("users.register", http.MethodPost, "", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `api_requests_total{kind="ok",method="POST",route="users.register"} 1`)
	assert.Contains(t, rec.Body.String(), "api_request_duration_seconds_bucket")
}
