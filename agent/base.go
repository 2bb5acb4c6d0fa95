package agent

import (
	"fmt"
	"time"

	"github.com/CatchTheTornado/agent-doodle/core"
)

// BaseAgent bundles the identity and run bookkeeping shared by every node.
// Embed it in concrete nodes and wrap the node body with execute so trace
// events, callbacks and logs are produced uniformly.
type BaseAgent struct {
	name        string // operator or user agent name
	description string
}

// NewBaseAgent constructs a BaseAgent with a generated description
// (customizable via SetDescription).
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
	}
}

// Name returns the operator or agent name of the node.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a human-readable description of the node.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the node's description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// execute runs body for the node located at rc.Path. It records the
// Running and Succeeded/Failed transitions in the run trace, invokes the run
// hooks and logs start and completion. annotate, when non-nil, may amend
// the final trace event.
func (b *BaseAgent) execute(
	rc *core.RunContext,
	body func(rc *core.RunContext) (core.Output, error),
	annotate func(ev *core.TraceEvent),
) (core.Output, error) {
	if err := rc.Err(); err != nil {
		// never started; the node stays pending
		return nil, err
	}

	start := time.Now()
	rc.Trace.Record(core.TraceEvent{Path: rc.Path, Agent: b.name, State: core.StateRunning, Iteration: rc.Attempt})
	rc.LogDebug("agent.run.start", "agent", b.name, "path", rc.Path.String())

	if rc.Hooks != nil {
		if err := rc.Hooks.BeforeNode(rc, b.name); err != nil {
			return nil, b.fail(rc, start, core.NewNodeError(core.ErrRejected, rc.Path, b.name, err), annotate)
		}
	}

	out, err := body(rc)
	if err != nil {
		return nil, b.fail(rc, start, err, annotate)
	}

	ev := core.TraceEvent{
		Path:      rc.Path,
		Agent:     b.name,
		State:     core.StateSucceeded,
		Iteration: rc.Attempt,
		Output:    core.Text(out),
		Duration:  time.Since(start),
	}
	if annotate != nil {
		annotate(&ev)
	}
	rc.Trace.Record(ev)

	if rc.Hooks != nil {
		rc.Hooks.AfterNode(rc, b.name, out)
	}
	rc.LogDebug("agent.run.complete", "agent", b.name, "path", rc.Path.String(), "duration", ev.Duration)

	return out, nil
}

func (b *BaseAgent) fail(rc *core.RunContext, start time.Time, err error, annotate func(ev *core.TraceEvent)) error {
	ev := core.TraceEvent{
		Path:      rc.Path,
		Agent:     b.name,
		State:     core.StateFailed,
		Iteration: rc.Attempt,
		Error:     err.Error(),
		Duration:  time.Since(start),
	}
	if annotate != nil {
		annotate(&ev)
	}
	rc.Trace.Record(ev)

	if rc.Hooks != nil {
		rc.Hooks.OnError(rc, b.name, err)
	}
	rc.LogDebug("agent.run.error", "agent", b.name, "path", rc.Path.String(), "error", err)

	return err
}

// childError attributes a child failure to the composite node at rc.Path.
func (b *BaseAgent) childError(rc *core.RunContext, child int, err error) error {
	return &core.NodeError{Kind: core.ErrComposite, Path: rc.Path, Agent: b.name, Child: child, Err: err}
}
