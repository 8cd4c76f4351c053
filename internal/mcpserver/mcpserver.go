// Package mcpserver exposes the daemon's operations as MCP tools over
// stdio: triggering a pipeline run, inspecting run history, and reading
// the latest archived report.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"optbrief/internal/artifact"
	"optbrief/internal/pipeline"
)

// RunPipeline executes one pipeline run to completion.
type RunPipeline interface {
	Run(ctx context.Context, trigger pipeline.Trigger) (*pipeline.Run, error)
}

// RunStore reads run history. Lookup misses match pipeline.ErrRunNotFound.
type RunStore interface {
	GetRun(ctx context.Context, id string) (*pipeline.Run, error)
	ListRuns(ctx context.Context, limit int) ([]pipeline.Run, error)
}

// ArtifactIndex lists archived artifact sets, newest first.
type ArtifactIndex interface {
	ListArtifacts(ctx context.Context, limit int) ([]artifact.Set, error)
}

// ArtifactFiles opens files belonging to an artifact set.
type ArtifactFiles interface {
	Open(set *artifact.Set, name string) (*os.File, error)
}

// Deps wires the server's collaborators.
type Deps struct {
	Runner    RunPipeline
	Runs      RunStore
	Artifacts ArtifactIndex
	Files     ArtifactFiles
	Version   string
}

// Server is the MCP tool server.
type Server struct {
	deps Deps
	mcp  *server.MCPServer
}

// New builds the server and registers its tools.
func New(deps Deps) *Server {
	s := &Server{deps: deps}

	srv := server.NewMCPServer("optbrief", deps.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)

	srv.AddTool(mcp.NewTool("trigger_run",
		mcp.WithDescription("Run the report pipeline now and wait for it to finish. Returns the run record as JSON."),
	), s.handleTriggerRun)

	srv.AddTool(mcp.NewTool("get_run",
		mcp.WithDescription("Fetch one pipeline run by ID, including its step results."),
		mcp.WithString("id", mcp.Required(), mcp.Description("Run ID, as returned by trigger_run or list_runs.")),
	), s.handleGetRun)

	srv.AddTool(mcp.NewTool("list_runs",
		mcp.WithDescription("List recent pipeline runs, newest first."),
		mcp.WithNumber("limit", mcp.Description("Maximum number of runs to return. Default 10, max 100.")),
	), s.handleListRuns)

	srv.AddTool(mcp.NewTool("latest_report",
		mcp.WithDescription("Return the Markdown text of the most recently archived report."),
	), s.handleLatestReport)

	s.mcp = srv
	return s
}

// ServeStdio serves MCP over stdin and stdout until the stream closes.
func (s *Server) ServeStdio() error {
	if err := server.ServeStdio(s.mcp); err != nil {
		return fmt.Errorf("mcpserver: %w", err)
	}
	return nil
}

func (s *Server) handleTriggerRun(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.deps.Runner == nil {
		return mcp.NewToolResultError("pipeline not available"), nil
	}
	run, err := s.deps.Runner.Run(ctx, pipeline.TriggerMCP)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("run did not start", err), nil
	}
	return jsonResult(run)
}

func (s *Server) handleGetRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	run, err := s.deps.Runs.GetRun(ctx, id)
	if errors.Is(err, pipeline.ErrRunNotFound) {
		return mcp.NewToolResultError("run not found: " + id), nil
	}
	if err != nil {
		return mcp.NewToolResultErrorFromErr("loading run", err), nil
	}
	return jsonResult(run)
}

func (s *Server) handleListRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := req.GetInt("limit", 10)
	if limit < 1 {
		limit = 10
	}
	limit = min(limit, 100)

	runs, err := s.deps.Runs.ListRuns(ctx, limit)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("listing runs", err), nil
	}
	if runs == nil {
		runs = []pipeline.Run{}
	}
	return jsonResult(runs)
}

// handleLatestReport scans recent artifact sets for the newest Markdown
// file and returns its content.
func (s *Server) handleLatestReport(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sets, err := s.deps.Artifacts.ListArtifacts(ctx, 20)
	if err != nil {
		return mcp.NewToolResultErrorFromErr("listing artifacts", err), nil
	}
	for _, set := range sets {
		for _, name := range set.Files {
			if !strings.HasSuffix(name, ".md") {
				continue
			}
			f, err := s.deps.Files.Open(&set, name)
			if err != nil {
				return mcp.NewToolResultErrorFromErr("opening report", err), nil
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return mcp.NewToolResultErrorFromErr("reading report", err), nil
			}
			return mcp.NewToolResultText(string(data)), nil
		}
	}
	return mcp.NewToolResultError("no archived reports"), nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("mcpserver: encode result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
