package agent

import (
	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/definition"
)

// OneOfAgent evaluates its branch conditions in declaration order and runs
// the flow of the first branch whose condition holds. Later conditions are
// not evaluated once a branch matched. The output is the output of the
// chosen flow.
type OneOfAgent struct {
	BaseAgent
	conditions []string
	children   []core.Node
	evaluator  core.ConditionEvaluator
}

// NewOneOfAgent creates a conditional node. conditions and children are
// index-aligned.
func NewOneOfAgent(evaluator core.ConditionEvaluator, conditions []string, children []core.Node) *OneOfAgent {
	return &OneOfAgent{
		BaseAgent:  NewBaseAgent(definition.OneOfAgent),
		conditions: conditions,
		children:   children,
		evaluator:  evaluator,
	}
}

// Run implements core.Node.
func (o *OneOfAgent) Run(rc *core.RunContext) (core.Output, error) {
	return o.execute(rc, func(rc *core.RunContext) (core.Output, error) {
		for i, cond := range o.conditions {
			ok, err := o.evaluator.Evaluate(rc, cond)
			if err != nil {
				return nil, &core.NodeError{Kind: core.ErrJudgmentFailure, Path: rc.Path, Agent: o.Name(), Child: i, Err: err}
			}
			if !ok {
				continue
			}

			rc.LogDebug("agent.oneof.selected", "path", rc.Path.String(), "branch", i)
			out, err := o.children[i].Run(rc.Child(i))
			if err != nil {
				return nil, o.childError(rc, i, err)
			}
			return out, nil
		}

		return nil, core.NewNodeError(core.ErrNoBranchMatched, rc.Path, o.Name(), nil)
	}, nil)
}
