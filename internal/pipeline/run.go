package pipeline

import (
	"errors"
	"time"
)

// ErrRunNotFound is returned by run lookups for unknown run IDs.
var ErrRunNotFound = errors.New("pipeline: run not found")

// Status is the lifecycle state of a run or a step.
type Status string

// Run and step states.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped:
		return true
	}
	return false
}

// Trigger identifies what started a run.
type Trigger string

// Run triggers.
const (
	TriggerSchedule Trigger = "schedule"
	TriggerManual   Trigger = "manual"
	TriggerAPI      Trigger = "api"
	TriggerMCP      Trigger = "mcp"
)

// Run is one execution of a pipeline.
type Run struct {
	ID         string       `json:"id"`
	Pipeline   string       `json:"pipeline"`
	Trigger    Trigger      `json:"trigger"`
	Status     Status       `json:"status"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at,omitzero"`
	Error      string       `json:"error,omitempty"`
	Workspace  string       `json:"workspace,omitempty"`
	Steps      []StepResult `json:"steps,omitempty"`
}

// StepResult records the outcome of one step within a run.
type StepResult struct {
	Name       string    `json:"name"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Error      string    `json:"error,omitempty"`
}

// Duration returns the wall time of a finished run, or zero while running.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
