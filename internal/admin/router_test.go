package admin

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"meshtranslator/internal/observability/logging"
)

func TestProbes(t *testing.T) {
	var ready atomic.Bool
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	router := New(metrics, ready.Load, logging.Discard())

	get := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	assert.Equal(t, http.StatusOK, get("/healthz").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get("/readyz").Code)

	ready.Store(true)
	assert.Equal(t, http.StatusOK, get("/readyz").Code)

	rec := get("/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# metrics", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get("/nope").Code)
}

func TestProbesRejectWrites(t *testing.T) {
	router := New(http.NotFoundHandler(), nil, logging.Discard())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRouteLabelsAreBounded(t *testing.T) {
	router := New(http.NotFoundHandler(), nil, logging.Discard())

	tests := map[string]struct {
		method string
		path   string
		label  string
	}{
		"metrics":          {http.MethodGet, "/metrics", "/metrics"},
		"readiness":        {http.MethodGet, "/readyz", "/readyz"},
		"unknown path":     {http.MethodGet, "/some/random/path/123", RouteNotFound},
		"wrong method":     {http.MethodDelete, "/healthz", RouteNotFound},
		"query is ignored": {http.MethodGet, "/healthz?verbose=1", "/healthz"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.label, router.Route(httptest.NewRequest(tt.method, tt.path, nil)))
		})
	}
}
