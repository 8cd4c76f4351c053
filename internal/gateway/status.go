package gateway

import (
	"net/http"
	"time"

	"optbrief/internal/pipeline"
)

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Status        string               `json:"status"`
	Version       string               `json:"version,omitempty"`
	Pipeline      string               `json:"pipeline"`
	Schedule      string               `json:"schedule,omitempty"`
	Timezone      string               `json:"timezone,omitempty"`
	UptimeSeconds float64              `json:"uptime_seconds"`
	NextRuns      map[string]time.Time `json:"next_runs,omitempty"`
	LastRun       *pipeline.Run        `json:"last_run,omitempty"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Status:        "ok",
			Version:       g.deps.Version,
			Pipeline:      g.deps.Pipeline.Name,
			Schedule:      g.deps.Pipeline.Schedule,
			Timezone:      g.deps.Pipeline.Timezone,
			UptimeSeconds: time.Since(g.startedAt).Truncate(time.Second).Seconds(),
		}

		if g.deps.Schedule != nil {
			resp.NextRuns = g.deps.Schedule.NextRuns()
		}

		if g.deps.Runs != nil {
			runs, err := g.deps.Runs.ListRuns(r.Context(), 1)
			if err == nil && len(runs) > 0 {
				resp.LastRun = &runs[0]
			}
		}

		writeJSON(w, http.StatusOK, resp)
	}
}
