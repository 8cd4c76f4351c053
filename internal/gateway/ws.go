package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"optbrief/internal/pipeline"
)

// logPollInterval is how often the log stream checks for appended bytes.
const logPollInterval = 500 * time.Millisecond

// handleRunLogStream upgrades to a WebSocket and follows the run log
// until the run reaches a terminal state or the client goes away.
func (g *Gateway) handleRunLogStream() http.HandlerFunc {
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

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Error("websocket accept failed", "error", err)
			return
		}
		defer func() { _ = conn.CloseNow() }()

		g.streamRunLog(r.Context(), conn, id)
	}
}

// streamRunLog sends the current log content, then polls for growth. Once
// the run is terminal the remainder is flushed and the connection closes
// normally with the final status as the reason.
func (g *Gateway) streamRunLog(ctx context.Context, conn *websocket.Conn, runID string) {
	path := pipeline.RunLogPath(g.deps.DataDir, runID)
	var offset int64

	ticker := time.NewTicker(logPollInterval)
	defer ticker.Stop()

	for {
		next, err := g.sendLogChunk(ctx, conn, path, offset)
		if err != nil {
			return
		}
		offset = next

		run, err := g.deps.Runs.GetRun(ctx, runID)
		if err == nil && run.Status.Terminal() {
			// Flush anything written between the read and the status check.
			if _, err := g.sendLogChunk(ctx, conn, path, offset); err == nil {
				_ = conn.Close(websocket.StatusNormalClosure, string(run.Status))
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// sendLogChunk writes log bytes past offset to the connection and returns
// the new offset. A missing log file is not an error: the run may not
// have opened it yet.
func (g *Gateway) sendLogChunk(ctx context.Context, conn *websocket.Conn, path string, offset int64) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return offset, nil
		}
		return offset, err
	}
	defer func() { _ = f.Close() }()

	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return offset, err
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return offset, err
	}
	if len(data) == 0 {
		return offset, nil
	}

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return offset, err
	}
	return offset + int64(len(data)), nil
}
