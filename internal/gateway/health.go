package gateway

import "net/http"

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status  string `json:"status"` // "ok" or "degraded"
	Version string `json:"version,omitempty"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 when the run store answers, 503 when it does not.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:  "ok",
			Version: g.deps.Version,
		}

		if g.deps.Runs != nil {
			if _, err := g.deps.Runs.ListRuns(r.Context(), 1); err != nil {
				resp.Status = "degraded"
			}
		}

		code := http.StatusOK
		if resp.Status == "degraded" {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, resp)
	}
}
