package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"optbrief/internal/artifact"
)

// handleListArtifacts returns recent artifact sets, newest first.
func (g *Gateway) handleListArtifacts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sets, err := g.deps.Artifacts.ListArtifacts(r.Context(), parseLimit(r))
		if err != nil {
			g.logger.Error("listing artifacts failed", "error", err)
			http.Error(w, "failed to list artifacts", http.StatusInternalServerError)
			return
		}
		if sets == nil {
			sets = []artifact.Set{}
		}
		writeJSON(w, http.StatusOK, sets)
	}
}

// handleGetArtifact returns one artifact set's metadata.
func (g *Gateway) handleGetArtifact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set, err := g.deps.Artifacts.GetArtifact(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, artifact.ErrSetNotFound) {
				http.Error(w, "artifact not found", http.StatusNotFound)
				return
			}
			g.logger.Error("loading artifact failed", "error", err)
			http.Error(w, "failed to load artifact", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, set)
	}
}

// handleDownloadArtifact serves one archived file. The file store rejects
// names outside the set, so path traversal dies here with a 404.
func (g *Gateway) handleDownloadArtifact() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set, err := g.deps.Artifacts.GetArtifact(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			if errors.Is(err, artifact.ErrSetNotFound) {
				http.Error(w, "artifact not found", http.StatusNotFound)
				return
			}
			g.logger.Error("loading artifact failed", "error", err)
			http.Error(w, "failed to load artifact", http.StatusInternalServerError)
			return
		}

		name := chi.URLParam(r, "name")
		f, err := g.deps.Files.Open(set, name)
		if err != nil {
			if errors.Is(err, artifact.ErrFileNotInSet) {
				http.Error(w, "file not in artifact set", http.StatusNotFound)
				return
			}
			g.logger.Error("opening artifact file failed", "artifact", set.ID, "error", err)
			http.Error(w, "failed to open file", http.StatusInternalServerError)
			return
		}
		defer func() { _ = f.Close() }()

		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		http.ServeContent(w, r, name, set.CreatedAt, f)
	}
}
