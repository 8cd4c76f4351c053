package gateway

import (
	"errors"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"optbrief/internal/pipeline"
)

// triggerResponse is the JSON response for POST /api/runs.
type triggerResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// handleTriggerRun starts a run in the background and returns its ID.
func (g *Gateway) handleTriggerRun() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.deps.Launcher == nil {
			http.Error(w, "pipeline not available", http.StatusServiceUnavailable)
			return
		}

		id := g.deps.Launcher.Launch(pipeline.TriggerAPI)
		g.logger.Info("run triggered via api", "run", id)
		writeJSON(w, http.StatusAccepted, triggerResponse{ID: id, Status: "accepted"})
	}
}

// handleListRuns returns recent runs, newest first.
func (g *Gateway) handleListRuns() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := g.deps.Runs.ListRuns(r.Context(), parseLimit(r))
		if err != nil {
			g.logger.Error("listing runs failed", "error", err)
			http.Error(w, "failed to list runs", http.StatusInternalServerError)
			return
		}
		if runs == nil {
			runs = []pipeline.Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

// handleGetRun returns one run with its step results.
func (g *Gateway) handleGetRun() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := g.deps.Runs.GetRun(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, pipeline.ErrRunNotFound) {
				http.Error(w, "run not found", http.StatusNotFound)
				return
			}
			g.logger.Error("loading run failed", "error", err)
			http.Error(w, "failed to load run", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, run)
	}
}

// handleRunLog streams the stored run log as plain text.
func (g *Gateway) handleRunLog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := g.deps.Runs.GetRun(r.Context(), id); err != nil {
			if errors.Is(err, pipeline.ErrRunNotFound) {
				http.Error(w, "run not found", http.StatusNotFound)
				return
			}
			g.logger.Error("loading run failed", "error", err)
			http.Error(w, "failed to load run", http.StatusInternalServerError)
			return
		}

		f, err := os.Open(pipeline.RunLogPath(g.deps.DataDir, id))
		if err != nil {
			http.Error(w, "run log not found", http.StatusNotFound)
			return
		}
		defer func() { _ = f.Close() }()

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.Copy(w, f)
	}
}

// parseLimit reads the limit query parameter, bounded so one request
// cannot page the whole history.
func parseLimit(r *http.Request) int {
	const def, most = 20, 100
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return min(n, most)
}
