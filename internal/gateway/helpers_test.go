package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"optbrief/internal/artifact"
	"optbrief/internal/metrics"
	"optbrief/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeLauncher hands out a canned run ID and records triggers.
type fakeLauncher struct {
	mu       sync.Mutex
	id       string
	triggers []pipeline.Trigger
}

func (f *fakeLauncher) Launch(trigger pipeline.Trigger) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers = append(f.triggers, trigger)
	return f.id
}

func (f *fakeLauncher) launched() []pipeline.Trigger {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.triggers)
}

// memRuns is an in-memory RunStore.
type memRuns struct {
	mu   sync.Mutex
	runs map[string]pipeline.Run
	err  error // when set, every call fails
}

func newMemRuns() *memRuns {
	return &memRuns{runs: make(map[string]pipeline.Run)}
}

func (m *memRuns) put(run pipeline.Run) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
}

func (m *memRuns) GetRun(_ context.Context, id string) (*pipeline.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	run, ok := m.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", pipeline.ErrRunNotFound, id)
	}
	return &run, nil
}

func (m *memRuns) ListRuns(_ context.Context, limit int) ([]pipeline.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var list []pipeline.Run
	for _, run := range m.runs {
		list = append(list, run)
	}
	slices.SortFunc(list, func(a, b pipeline.Run) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// memArtifacts is an in-memory ArtifactIndex.
type memArtifacts struct {
	mu   sync.Mutex
	sets map[string]artifact.Set
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{sets: make(map[string]artifact.Set)}
}

func (m *memArtifacts) put(set artifact.Set) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sets[set.ID] = set
}

func (m *memArtifacts) GetArtifact(_ context.Context, id string) (*artifact.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", artifact.ErrSetNotFound, id)
	}
	return &set, nil
}

func (m *memArtifacts) ListArtifacts(_ context.Context, limit int) ([]artifact.Set, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var list []artifact.Set
	for _, set := range m.sets {
		list = append(list, set)
	}
	slices.SortFunc(list, func(a, b artifact.Set) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

// fixedSchedule implements Schedule with a static map.
type fixedSchedule map[string]time.Time

func (s fixedSchedule) NextRuns() map[string]time.Time { return s }

// testEnv bundles a Gateway with its fakes and directories.
type testEnv struct {
	gateway  *Gateway
	launcher *fakeLauncher
	runs     *memRuns
	arts     *memArtifacts
	files    *artifact.Store
	artRoot  string
	dataDir  string
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()

	dir := t.TempDir()
	artRoot := filepath.Join(dir, "artifacts")
	files, err := artifact.NewStore(artRoot, nil, testLogger())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}

	env := &testEnv{
		launcher: &fakeLauncher{id: "run_new"},
		runs:     newMemRuns(),
		arts:     newMemArtifacts(),
		files:    files,
		artRoot:  artRoot,
		dataDir:  filepath.Join(dir, "data"),
	}
	env.gateway = New(cfg, Deps{
		Launcher:  env.launcher,
		Runs:      env.runs,
		Artifacts: env.arts,
		Files:     env.files,
		Metrics:   metrics.New(),
		Pipeline: pipeline.Config{
			Name:     "daily-brief",
			Schedule: "50 23 * * *",
			Timezone: "UTC",
		},
		DataDir: env.dataDir,
		Version: "test",
		Logger:  testLogger(),
	})
	return env
}

// writeRunLog creates the log file the runner would have written.
func (e *testEnv) writeRunLog(t *testing.T, runID, content string) {
	t.Helper()
	path := pipeline.RunLogPath(e.dataDir, runID)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write log: %v", err)
	}
}

// writeArtifactFile places a file inside a set's directory on disk.
func (e *testEnv) writeArtifactFile(t *testing.T, setID, name, content string) {
	t.Helper()
	dir := filepath.Join(e.artRoot, setID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("mkdir artifact dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write artifact file: %v", err)
	}
}

// authedConfig returns a Config with a bearer token on an ephemeral port.
func authedConfig() Config {
	return Config{
		Bind: "127.0.0.1:0",
		Auth: AuthConfig{Token: "test-token"},
	}
}

// doGet makes a GET request with context.
func doGet(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

// doGetWithBearer makes a GET request with a bearer token.
func doGetWithBearer(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}
