package session

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/step"
)

// ErrNotFound is returned by Get for unknown run IDs.
var ErrNotFound = errors.New("run not found")

// Status is the lifecycle state of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Done reports whether the run has finished.
func (s Status) Done() bool { return s != StatusRunning && s != "" }

// Run is the persisted record of one flow execution.
type Run struct {
	ID       string         `json:"id"`
	FlowCode string         `json:"flow_code"`
	Status   Status         `json:"status"`
	Input    string         `json:"input,omitempty"`
	Inputs   map[string]any `json:"inputs,omitempty"`
	Output   core.Output    `json:"output,omitempty"`
	Error    string         `json:"error,omitempty"`
	// FailedAt locates the innermost failing node.
	FailedAt    step.Path         `json:"failed_at,omitempty"`
	Converged   bool              `json:"converged"`
	Unconverged []step.Path       `json:"unconverged,omitempty"`
	Trace       []core.TraceEvent `json:"trace,omitempty"`
	Invocations int               `json:"invocations"`
	StartedAt   time.Time         `json:"started_at"`
	FinishedAt  time.Time         `json:"finished_at,omitempty"`
}

// Clone returns a copy that shares no slices or maps with r.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}
	out := *r
	if r.Inputs != nil {
		out.Inputs = make(map[string]any, len(r.Inputs))
		for k, v := range r.Inputs {
			out.Inputs[k] = v
		}
	}
	out.FailedAt = slices.Clone(r.FailedAt)
	out.Unconverged = slices.Clone(r.Unconverged)
	out.Trace = slices.Clone(r.Trace)
	return &out
}

// Filter narrows List results. Zero fields match everything.
type Filter struct {
	FlowCode string
	Status   Status
	// Limit caps the number of returned runs; 0 means no limit.
	Limit int
}

// Match reports whether r passes the flow and status constraints.
func (f Filter) Match(r *Run) bool {
	if f.FlowCode != "" && r.FlowCode != f.FlowCode {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// Store persists run records. Save inserts or replaces by ID. List returns
// runs newest first by StartedAt.
type Store interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, id string) (*Run, error)
	List(ctx context.Context, filter Filter) ([]*Run, error)
}
