package agent

import (
	"fmt"
	"sort"
	"sync"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/definition"
)

// Registry maps agent names to user agents. It implements core.Invoker and
// is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	agents map[string]core.Agent
}

// NewRegistry creates a registry holding agents. It panics on a name the
// registry would reject; use Register for fallible registration.
func NewRegistry(agents ...core.Agent) *Registry {
	r := &Registry{agents: make(map[string]core.Agent, len(agents))}
	for _, a := range agents {
		if err := r.Register(a); err != nil {
			panic(err)
		}
	}
	return r
}

// Register adds or replaces an agent. Empty names and operator names are
// rejected.
func (r *Registry) Register(a core.Agent) error {
	name := a.Name()
	if name == "" {
		return fmt.Errorf("agent name is required")
	}
	if definition.IsOperator(name) {
		return fmt.Errorf("agent name %q is reserved", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[name] = a
	return nil
}

// Get returns the agent registered under name.
func (r *Registry) Get(name string) (core.Agent, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[name]
	return a, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.agents))
	for n := range r.agents {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Invoke implements core.Invoker.
func (r *Registry) Invoke(rc *core.RunContext, agentName, input string) (core.Output, error) {
	a, ok := r.Get(agentName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownAgent, agentName)
	}
	return a.Invoke(rc, input)
}

// Func adapts a plain function into a core.Agent.
type Func struct {
	name string
	fn   func(rc *core.RunContext, input string) (core.Output, error)
}

// NewFunc creates a function-backed agent.
func NewFunc(name string, fn func(rc *core.RunContext, input string) (core.Output, error)) *Func {
	return &Func{name: name, fn: fn}
}

// Name implements core.Agent.
func (f *Func) Name() string { return f.name }

// Invoke implements core.Agent.
func (f *Func) Invoke(rc *core.RunContext, input string) (core.Output, error) {
	return f.fn(rc, input)
}
