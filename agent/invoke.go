package agent

import (
	"fmt"
	"time"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/internal/util"
	"github.com/CatchTheTornado/agent-doodle/logging"
)

// InvokeAgent is the leaf node of a flow: it renders its literal input
// against the run context and hands it to the named user agent. Leaves are
// never retried.
type InvokeAgent struct {
	BaseAgent
	input   string
	invoker core.Invoker
}

// NewInvokeAgent creates a leaf invoking agentName through invoker.
func NewInvokeAgent(agentName, input string, invoker core.Invoker) *InvokeAgent {
	return &InvokeAgent{
		BaseAgent: NewBaseAgent(agentName),
		input:     input,
		invoker:   invoker,
	}
}

// Input returns the unrendered input template.
func (a *InvokeAgent) Input() string { return a.input }

// Run implements core.Node.
func (a *InvokeAgent) Run(rc *core.RunContext) (core.Output, error) {
	return a.execute(rc, a.invoke, nil)
}

func (a *InvokeAgent) invoke(rc *core.RunContext) (core.Output, error) {
	text, err := util.RenderTemplate(a.input, rc.TemplateData())
	if err != nil {
		return nil, core.NewNodeError(core.ErrAgentInvocation, rc.Path, a.Name(), fmt.Errorf("render input: %w", err))
	}

	if err := rc.Limiter.Increment(); err != nil {
		return nil, core.NewNodeError(core.ErrBudgetExceeded, rc.Path, a.Name(), err)
	}

	start := time.Now()
	out, err := a.invoker.Invoke(rc, a.Name(), text)
	if sl, ok := rc.Logger().(*logging.StructuredLogger); ok {
		sl.LogAgentCall(a.Name(), time.Since(start), err == nil, err)
	}

	// a result that arrives after cancellation is discarded
	if ctxErr := rc.Err(); ctxErr != nil {
		return nil, core.NewNodeError(core.ErrAgentInvocation, rc.Path, a.Name(), ctxErr)
	}
	if err != nil {
		return nil, core.NewNodeError(core.ErrAgentInvocation, rc.Path, a.Name(), err)
	}

	return out, nil
}
