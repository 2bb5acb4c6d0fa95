package engine

import (
	"errors"
	"fmt"

	"github.com/CatchTheTornado/agent-doodle/agent"
	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/definition"
	"github.com/CatchTheTornado/agent-doodle/step"
)

// Build turns a definition into an executable node tree. Shape violations
// are reported as ErrStructural node errors; unknown agent names are not
// checked here and fail at invocation time (see Validate).
func (e *Engine) Build(def definition.Definition) (core.Node, error) {
	return e.build(def, step.Root)
}

func (e *Engine) build(def definition.Definition, path step.Path) (core.Node, error) {
	structural := func(format string, args ...any) error {
		return core.NewNodeError(core.ErrStructural, path, def.Agent, fmt.Errorf(format, args...))
	}

	children := func() ([]core.Node, error) {
		nodes := make([]core.Node, len(def.Children))
		for i, c := range def.Children {
			n, err := e.build(c, path.Child(i))
			if err != nil {
				return nil, err
			}
			nodes[i] = n
		}
		return nodes, nil
	}

	switch def.Agent {
	case "":
		return nil, structural("empty definition")

	case definition.SequenceAgent:
		nodes, err := children()
		if err != nil {
			return nil, err
		}
		return agent.NewSequentialAgent(nodes...), nil

	case definition.ParallelAgent:
		nodes, err := children()
		if err != nil {
			return nil, err
		}
		return agent.NewParallelAgent(nodes...), nil

	case definition.OneOfAgent:
		if len(def.Conditions) != len(def.Children) {
			return nil, structural("%d conditions for %d branches", len(def.Conditions), len(def.Children))
		}
		if e.conditions == nil && len(def.Conditions) > 0 {
			return nil, structural("no condition evaluator configured")
		}
		nodes, err := children()
		if err != nil {
			return nil, err
		}
		return agent.NewOneOfAgent(e.conditions, append([]string(nil), def.Conditions...), nodes), nil

	case definition.ForEachAgent:
		if len(def.Children) != 1 {
			return nil, structural("expected exactly one sub-flow, got %d", len(def.Children))
		}
		nodes, err := children()
		if err != nil {
			return nil, err
		}
		return agent.NewForEachAgent(def.Item, nodes[0], func(o *agent.ForEachOptions) {
			o.Concurrency = e.config.ForEachConcurrency
		}), nil

	case definition.OptimizeAgent:
		if len(def.Children) != 1 {
			return nil, structural("expected exactly one sub-flow, got %d", len(def.Children))
		}
		if e.judge == nil {
			return nil, structural("no judge configured")
		}
		nodes, err := children()
		if err != nil {
			return nil, err
		}
		maxIterations := e.config.DefaultMaxIterations
		if def.MaxIterations != nil && *def.MaxIterations > 0 {
			maxIterations = *def.MaxIterations
		}
		return agent.NewOptimizeAgent(e.judge, def.Criteria, maxIterations, nodes[0], func(o *agent.OptimizeOptions) {
			o.FailOnNonConvergence = e.config.FailOnNonConvergence
		}), nil

	case definition.BestOfAllAgent:
		if e.judge == nil && len(def.Children) > 1 {
			return nil, structural("no judge configured")
		}
		nodes, err := children()
		if err != nil {
			return nil, err
		}
		return agent.NewBestOfAllAgent(e.judge, def.Criteria, nodes...), nil
	}

	if len(def.Children) > 0 {
		return nil, structural("leaf agent %q has sub-flows", def.Agent)
	}
	return agent.NewInvokeAgent(def.Agent, def.Text, e.invoker), nil
}

// Validate checks def for structural errors and, when known is non-nil,
// for leaves naming agents that known does not contain. All problems are
// returned joined.
func (e *Engine) Validate(def definition.Definition, known func(name string) bool) error {
	var errs []error
	if _, err := e.Build(def); err != nil {
		errs = append(errs, err)
	}
	if known != nil {
		walk(def, step.Root, func(d definition.Definition, p step.Path) {
			if d.Agent == "" || definition.IsOperator(d.Agent) || known(d.Agent) {
				return
			}
			errs = append(errs, core.NewNodeError(core.ErrStructural, p, d.Agent,
				fmt.Errorf("%w: %q", core.ErrUnknownAgent, d.Agent)))
		})
	}
	return errors.Join(errs...)
}

func walk(def definition.Definition, path step.Path, fn func(d definition.Definition, p step.Path)) {
	fn(def, path)
	for i, c := range def.Children {
		walk(c, path.Child(i), fn)
	}
}

// countNodes returns the number of nodes in def.
func countNodes(def definition.Definition) int {
	n := 0
	walk(def, step.Root, func(definition.Definition, step.Path) { n++ })
	return n
}
