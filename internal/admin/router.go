// Package admin serves metrics and probes.
package admin

import (
	"net/http"

	"github.com/gorilla/mux"

	"meshtranslator/internal/observability/logging"
)

// ReadinessFunc reports whether the process is ready to serve checks
type ReadinessFunc func() bool

// Router exposes /metrics, /healthz and /readyz
type Router struct {
	*mux.Router
	ready  ReadinessFunc
	logger *logging.Logger
}

// New creates the admin router. metricsHandler serves /metrics.
func New(metricsHandler http.Handler, ready ReadinessFunc, logger *logging.Logger) *Router {
	r := &Router{
		Router: mux.NewRouter(),
		ready:  ready,
		logger: logger.WithModule("admin"),
	}

	r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", r.healthz).Methods(http.MethodGet)
	r.HandleFunc("/readyz", r.readyz).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.logger.Debug("Request received for undefined route", "path", req.URL.Path)
		http.Error(w, "404 page not found", http.StatusNotFound)
	})

	return r
}

// RouteNotFound labels requests that match no route
const RouteNotFound = "not_found"

// Route returns the path template req matches, or RouteNotFound. It keeps
// metric labels bounded to the registered routes.
func (r *Router) Route(req *http.Request) string {
	var match mux.RouteMatch
	if !r.Match(req, &match) || match.MatchErr != nil || match.Route == nil {
		return RouteNotFound
	}
	template, err := match.Route.GetPathTemplate()
	if err != nil {
		return RouteNotFound
	}
	return template
}

func (r *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func (r *Router) readyz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if r.ready == nil || !r.ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	_, _ = w.Write([]byte("ready"))
}
