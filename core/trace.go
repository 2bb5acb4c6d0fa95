package core

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CatchTheTornado/agent-doodle/step"
)

// NodeState is the lifecycle state of a node within one run:
// Pending → Running → Succeeded or Failed.
//
// Pending is never recorded. Every node of a run starts pending, and a node
// with no trace events is pending; Trace.State reports it as such. A node
// whose run is cancelled before it starts stays pending.
type NodeState string

const (
	StatePending   NodeState = "pending"
	StateRunning   NodeState = "running"
	StateSucceeded NodeState = "succeeded"
	StateFailed    NodeState = "failed"
)

// TraceEvent records one state transition of a node.
type TraceEvent struct {
	ID    string    `json:"id"`
	RunID string    `json:"run_id"`
	Path  step.Path `json:"path"`
	Agent string    `json:"agent"`
	State NodeState `json:"state"`
	// Iteration is the optimize attempt (1-based) the node ran under, or 0.
	Iteration int    `json:"iteration,omitempty"`
	Output    string `json:"output,omitempty"`
	Error     string `json:"error,omitempty"`
	// Converged is set on the final event of an optimize node that passed
	// (true) or ran out of iterations (false). It stays nil when the node
	// failed for any other reason.
	Converged *bool         `json:"converged,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
	Duration  time.Duration `json:"duration,omitempty"`
}

// Trace is the ordered, concurrency-safe record of a run's node events.
type Trace struct {
	runID     string
	mu        sync.Mutex
	events    []TraceEvent
	observers []func(TraceEvent)
}

// NewTrace creates a trace for runID. Observers are called synchronously
// for every recorded event, in registration order.
func NewTrace(runID string, observers ...func(TraceEvent)) *Trace {
	return &Trace{runID: runID, observers: observers}
}

// NewID returns a new random identifier.
func NewID() string { return uuid.NewString() }

// RunID returns the run the trace belongs to.
func (t *Trace) RunID() string { return t.runID }

// Record appends ev, filling in ID, RunID and Timestamp when unset. A nil
// trace discards events.
func (t *Trace) Record(ev TraceEvent) {
	if t == nil {
		return
	}
	if ev.ID == "" {
		ev.ID = NewID()
	}
	if ev.RunID == "" {
		ev.RunID = t.runID
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	ev.Path = append(step.Path{}, ev.Path...)

	t.mu.Lock()
	t.events = append(t.events, ev)
	observers := t.observers
	t.mu.Unlock()

	for _, fn := range observers {
		fn(ev)
	}
}

// Events returns a copy of all recorded events.
func (t *Trace) Events() []TraceEvent {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]TraceEvent(nil), t.events...)
}

// State returns the latest state recorded for the node at p, or
// StatePending if it never started.
func (t *Trace) State(p step.Path) NodeState {
	if t == nil {
		return StatePending
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.events) - 1; i >= 0; i-- {
		if t.events[i].Path.Equal(p) {
			return t.events[i].State
		}
	}
	return StatePending
}

// Unconverged returns the distinct paths of optimize nodes that exhausted
// their iterations without passing, in the order they finished.
func (t *Trace) Unconverged() []step.Path {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []step.Path
	seen := map[string]bool{}
	for _, ev := range t.events {
		if ev.Converged == nil || *ev.Converged {
			continue
		}
		key := ev.Path.String()
		if !seen[key] {
			seen[key] = true
			out = append(out, ev.Path)
		}
	}
	return out
}
