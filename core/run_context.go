package core

import (
	"context"
	"maps"

	"github.com/CatchTheTornado/agent-doodle/logging"
	"github.com/CatchTheTornado/agent-doodle/step"
)

// Hooks observe node execution. The engine installs its callback manager
// here; a non-nil error from BeforeNode fails the node.
type Hooks interface {
	BeforeNode(rc *RunContext, agent string) error
	AfterNode(rc *RunContext, agent string, out Output)
	OnError(rc *RunContext, agent string, err error)
}

// RunContext is the execution snapshot handed to a node. It is never
// mutated after construction: the With* and Child helpers return copies
// with their own slices and maps, so concurrent branches cannot observe
// each other's state. The Limiter, Trace and Hooks are shared by the whole
// run and are safe for concurrent use.
type RunContext struct {
	Context  context.Context
	RunID    string
	FlowCode string
	// Path locates the node this context was derived for.
	Path step.Path
	// Inputs are the resolved program input variables.
	Inputs map[string]any
	// Previous is the output of the preceding step (or the run input).
	Previous Output
	// History holds every output produced before Previous in enclosing
	// sequences, oldest first, ending with Previous.
	History []Output
	// Item and Index are set inside a forEach sub-flow.
	Item    any
	HasItem bool
	Index   int
	// Feedback and Attempt are set inside an optimize sub-flow.
	Feedback string
	Attempt  int

	Limiter *Limiter
	Trace   *Trace
	Hooks   Hooks

	*loggerAdapter
}

// NewRunContext constructs the root context of a run. Input becomes the
// initial Previous value.
func NewRunContext(
	ctx context.Context,
	runID, flowCode string,
	input Output,
	inputs map[string]any,
	limiter *Limiter,
	trace *Trace,
	hooks Hooks,
	logger logging.Logger,
) *RunContext {
	if ctx == nil {
		ctx = context.Background()
	}
	var history []Output
	if input != nil {
		history = []Output{input}
	}
	return &RunContext{
		Context:       ctx,
		RunID:         runID,
		FlowCode:      flowCode,
		Path:          step.Root,
		Inputs:        maps.Clone(inputs),
		Previous:      input,
		History:       history,
		Limiter:       limiter,
		Trace:         trace,
		Hooks:         hooks,
		loggerAdapter: newLoggerAdapter(logger),
	}
}

// Done returns a channel closed when the underlying context is cancelled.
func (rc *RunContext) Done() <-chan struct{} { return rc.Context.Done() }

// Err returns the cancellation error (if any) from the underlying context.
func (rc *RunContext) Err() error { return rc.Context.Err() }

func (rc *RunContext) clone() *RunContext {
	c := *rc
	c.Path = append(step.Path{}, rc.Path...)
	c.History = append([]Output(nil), rc.History...)
	c.Inputs = maps.Clone(rc.Inputs)
	return &c
}

// Child derives the context for child i of the current node.
func (rc *RunContext) Child(i int) *RunContext {
	c := rc.clone()
	c.Path = rc.Path.Child(i)
	return c
}

// WithPrevious derives a context whose Previous is out, appending out to
// History.
func (rc *RunContext) WithPrevious(out Output) *RunContext {
	c := rc.clone()
	c.Previous = out
	c.History = append(c.History, out)
	return c
}

// WithItem derives the context of one forEach element. The element also
// becomes Previous so leaves see it as their input.
func (rc *RunContext) WithItem(index int, item any) *RunContext {
	c := rc.WithPrevious(item)
	c.Item = item
	c.HasItem = true
	c.Index = index
	return c
}

// WithFeedback derives the context of an optimize attempt.
func (rc *RunContext) WithFeedback(attempt int, feedback string) *RunContext {
	c := rc.clone()
	c.Attempt = attempt
	c.Feedback = feedback
	return c
}

// WithContext derives a context bound to ctx.
func (rc *RunContext) WithContext(ctx context.Context) *RunContext {
	c := rc.clone()
	c.Context = ctx
	return c
}

// TemplateData returns the values available to leaf input, condition and
// criteria templates. Program input variables are also exposed at the top
// level unless they collide with a built-in key.
func (rc *RunContext) TemplateData() map[string]any {
	history := make([]string, len(rc.History))
	for i, h := range rc.History {
		history[i] = Text(h)
	}

	data := make(map[string]any, len(rc.Inputs)+8)
	for k, v := range rc.Inputs {
		data[k] = v
	}

	data["input"] = Text(rc.Previous)
	data["previous"] = rc.Previous
	data["history"] = history
	data["feedback"] = rc.Feedback
	data["attempt"] = rc.Attempt
	data["inputs"] = maps.Clone(rc.Inputs)
	data["run_id"] = rc.RunID
	if rc.HasItem {
		data["item"] = rc.Item
		data["index"] = rc.Index
	}

	return data
}
