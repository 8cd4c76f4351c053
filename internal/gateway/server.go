package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	if g.deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(g.deps.Metrics.Registry(), promhttp.HandlerOpts{}))
	}

	// API endpoints require auth. Not mounted if no token is configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth))
			r.Get("/status", g.handleStatus())
			r.Route("/api", func(r chi.Router) {
				r.Post("/runs", g.handleTriggerRun())
				r.Get("/runs", g.handleListRuns())
				r.Get("/runs/{id}", g.handleGetRun())
				r.Get("/runs/{id}/log", g.handleRunLog())
				r.Get("/artifacts", g.handleListArtifacts())
				r.Get("/artifacts/{id}", g.handleGetArtifact())
				r.Get("/artifacts/{id}/files/{name}", g.handleDownloadArtifact())
			})
			r.Get("/ws/runs/{id}/log", g.handleRunLogStream())
		})
	}

	return r
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
