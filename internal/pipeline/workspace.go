package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
)

// workspace is the per-run working area. Steps execute in Dir; their
// combined output goes to LogPath, which lives outside the workspace so
// it survives teardown.
type workspace struct {
	Dir     string
	LogPath string
	root    string
}

// RunLogPath returns the run log location for a run ID.
func RunLogPath(dataDir, runID string) string {
	return filepath.Join(dataDir, "logs", runID+".log")
}

// provisionWorkspace creates the isolated working directory and the log
// directory for one run. Two runs never share a workspace.
func provisionWorkspace(dataDir, runID string) (*workspace, error) {
	root := filepath.Join(dataDir, "runs", runID)
	dir := filepath.Join(root, "work")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("pipeline: provision workspace: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "logs"), 0o700); err != nil {
		return nil, fmt.Errorf("pipeline: provision log directory: %w", err)
	}
	return &workspace{
		Dir:     dir,
		LogPath: RunLogPath(dataDir, runID),
		root:    root,
	}, nil
}

// Remove tears the workspace down. Artifacts and the run log are stored
// elsewhere and survive.
func (w *workspace) Remove() error {
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("pipeline: remove workspace: %w", err)
	}
	return nil
}
