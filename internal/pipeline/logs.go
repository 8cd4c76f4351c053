package pipeline

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunFinder looks up a persisted run. Lookup misses match ErrRunNotFound.
// Implemented by the run store.
type RunFinder interface {
	GetRun(ctx context.Context, id string) (*Run, error)
}

// LogPruner removes run logs that no longer earn their disk: logs whose
// run record is gone, and logs of terminal runs that finished more than
// maxAge ago. In-flight runs always keep their log.
type LogPruner struct {
	dataDir string
	runs    RunFinder
	maxAge  time.Duration
	logger  *slog.Logger
}

// NewLogPruner returns a LogPruner over dataDir's log directory. A
// non-positive maxAge selects the default artifact retention.
func NewLogPruner(dataDir string, runs RunFinder, maxAge time.Duration, logger *slog.Logger) *LogPruner {
	if maxAge <= 0 {
		maxAge = DefaultRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPruner{dataDir: dataDir, runs: runs, maxAge: maxAge, logger: logger}
}

// SweepLogs deletes stale run logs and reports how many were removed. A
// missing log directory means nothing has run yet and is not an error.
func (p *LogPruner) SweepLogs(ctx context.Context, now time.Time) (int, error) {
	dir := filepath.Join(p.dataDir, "logs")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}

	cutoff := now.Add(-p.maxAge)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".log") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".log")

		run, err := p.runs.GetRun(ctx, id)
		switch {
		case errors.Is(err, ErrRunNotFound):
			// Orphan: the run row is gone, nothing references the log.
		case err != nil:
			return removed, err
		case !run.Status.Terminal():
			continue
		case run.FinishedAt.After(cutoff):
			continue
		}

		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			p.logger.Warn("run log removal failed", "run", id, "error", err)
			continue
		}
		removed++
	}
	return removed, nil
}
