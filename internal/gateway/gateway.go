// Package gateway provides the daemon's HTTP surface: health and status
// probes, the runs and artifacts API, Prometheus metrics, and a WebSocket
// tail of live run logs. It binds to loopback by default.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"optbrief/internal/artifact"
	"optbrief/internal/metrics"
	"optbrief/internal/pipeline"
)

// RunLauncher starts pipeline runs without blocking. Implemented by the
// pipeline runner.
type RunLauncher interface {
	Launch(trigger pipeline.Trigger) string
}

// RunStore reads persisted runs. GetRun returns an error matching
// pipeline.ErrRunNotFound for unknown IDs.
type RunStore interface {
	GetRun(ctx context.Context, id string) (*pipeline.Run, error)
	ListRuns(ctx context.Context, limit int) ([]pipeline.Run, error)
}

// ArtifactIndex reads persisted artifact sets. GetArtifact returns an
// error matching artifact.ErrSetNotFound for unknown IDs.
type ArtifactIndex interface {
	GetArtifact(ctx context.Context, id string) (*artifact.Set, error)
	ListArtifacts(ctx context.Context, limit int) ([]artifact.Set, error)
}

// ArtifactFiles opens archived files for download.
type ArtifactFiles interface {
	Open(set *artifact.Set, name string) (*os.File, error)
}

// Schedule reports the next fire time of each registered job. Implemented
// by the scheduler; defined here to avoid a circular dependency.
type Schedule interface {
	NextRuns() map[string]time.Time
}

// Deps wires the gateway's collaborators. Schedule and Metrics may be
// nil; their routes degrade gracefully.
type Deps struct {
	Launcher  RunLauncher
	Runs      RunStore
	Artifacts ArtifactIndex
	Files     ArtifactFiles
	Schedule  Schedule
	Metrics   *metrics.Metrics
	Pipeline  pipeline.Config
	DataDir   string
	Version   string
	Logger    *slog.Logger
}

// Gateway is the HTTP server. It is a leaf of the daemon; nothing
// imports it back.
type Gateway struct {
	config    Config
	deps      Deps
	logger    *slog.Logger
	server    *http.Server
	addr      net.Addr
	startedAt time.Time
}

// New creates a Gateway. Defaults are applied to cfg.
func New(cfg Config, deps Deps) *Gateway {
	cfg.ApplyDefaults()
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		config: cfg,
		deps:   deps,
		logger: logger,
	}
}

// Start binds the listener and serves in the background.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Handler:      g.buildRouter(),
		ReadTimeout:  g.config.ReadTimeout.Std(),
		WriteTimeout: g.config.WriteTimeout.Std(),
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen on %s: %w", g.config.Bind, err)
	}
	g.addr = ln.Addr()

	go func() {
		g.logger.Info("gateway listening", "addr", g.addr.String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listener address once Start has succeeded, which
// matters when Bind uses port 0.
func (g *Gateway) Addr() string {
	if g.addr == nil {
		return g.config.Bind
	}
	return g.addr.String()
}

// Stop shuts the server down gracefully within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout.Std())
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
