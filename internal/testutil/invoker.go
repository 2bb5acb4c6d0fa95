package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/step"
)

// Call is one recorded agent invocation.
type Call struct {
	Agent string
	Input string
	Path  step.Path
	// Item is the forEach element the call ran under, if any.
	Item any
}

// AgentFunc scripts the behavior of one agent.
type AgentFunc func(rc *core.RunContext, input string) (core.Output, error)

// Invoker is a scripted core.Invoker. Unscripted agents answer
// "<agent>(<input>)" unless Strict is set, in which case they are unknown.
//
// Example:
//
//	inv := testutil.NewInvoker().Returns("writer", "draft").Fails("critic", errBoom)
type Invoker struct {
	Strict bool

	mu     sync.Mutex
	script map[string]AgentFunc
	calls  []Call
}

// NewInvoker creates an empty scripted invoker.
func NewInvoker() *Invoker {
	return &Invoker{script: make(map[string]AgentFunc)}
}

// On scripts agent with fn (chainable).
func (i *Invoker) On(agent string, fn AgentFunc) *Invoker {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.script[agent] = fn
	return i
}

// Returns scripts agent to always return out (chainable).
func (i *Invoker) Returns(agent string, out core.Output) *Invoker {
	return i.On(agent, func(*core.RunContext, string) (core.Output, error) { return out, nil })
}

// Sequence scripts agent to return outs in turn, repeating the last one
// (chainable).
func (i *Invoker) Sequence(agent string, outs ...core.Output) *Invoker {
	var (
		mu sync.Mutex
		n  int
	)
	return i.On(agent, func(*core.RunContext, string) (core.Output, error) {
		mu.Lock()
		defer mu.Unlock()
		out := outs[min(n, len(outs)-1)]
		n++
		return out, nil
	})
}

// Echo scripts agent to return its rendered input (chainable).
func (i *Invoker) Echo(agent string) *Invoker {
	return i.On(agent, func(_ *core.RunContext, input string) (core.Output, error) { return input, nil })
}

// Fails scripts agent to always fail with err (chainable).
func (i *Invoker) Fails(agent string, err error) *Invoker {
	return i.On(agent, func(*core.RunContext, string) (core.Output, error) { return nil, err })
}

// Blocks scripts agent to wait for cancellation of its context (chainable).
func (i *Invoker) Blocks(agent string) *Invoker {
	return i.On(agent, func(rc *core.RunContext, _ string) (core.Output, error) {
		<-rc.Done()
		return nil, context.Cause(rc.Context)
	})
}

// Invoke implements core.Invoker.
func (i *Invoker) Invoke(rc *core.RunContext, agentName, input string) (core.Output, error) {
	i.mu.Lock()
	i.calls = append(i.calls, Call{Agent: agentName, Input: input, Path: append(step.Path{}, rc.Path...), Item: rc.Item})
	fn, ok := i.script[agentName]
	i.mu.Unlock()

	if !ok {
		if i.Strict {
			return nil, fmt.Errorf("%w: %q", core.ErrUnknownAgent, agentName)
		}
		return fmt.Sprintf("%s(%s)", agentName, input), nil
	}
	return fn(rc, input)
}

// Calls returns a snapshot of every recorded invocation in call order.
func (i *Invoker) Calls() []Call {
	i.mu.Lock()
	defer i.mu.Unlock()
	return append([]Call(nil), i.calls...)
}

// Agents returns the invoked agent names in call order.
func (i *Invoker) Agents() []string {
	calls := i.Calls()
	names := make([]string, len(calls))
	for n, c := range calls {
		names[n] = c.Agent
	}
	return names
}

// Count returns how often agent was invoked.
func (i *Invoker) Count(agent string) int {
	n := 0
	for _, c := range i.Calls() {
		if c.Agent == agent {
			n++
		}
	}
	return n
}
