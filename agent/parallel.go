package agent

import (
	"golang.org/x/sync/errgroup"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/definition"
)

// ParallelAgent runs all children concurrently on isolated copies of the
// run context.
//
// The output is a []any holding each child's output in declaration order,
// regardless of completion order. The first child failure cancels the
// remaining siblings through the shared context and is reported with the
// failing child's index.
type ParallelAgent struct {
	BaseAgent
	children []core.Node
}

// NewParallelAgent creates a parallel fan-out over children.
func NewParallelAgent(children ...core.Node) *ParallelAgent {
	return &ParallelAgent{
		BaseAgent: NewBaseAgent(definition.ParallelAgent),
		children:  children,
	}
}

// Run implements core.Node.
func (p *ParallelAgent) Run(rc *core.RunContext) (core.Output, error) {
	return p.execute(rc, func(rc *core.RunContext) (core.Output, error) {
		g, ctx := errgroup.WithContext(rc.Context)
		branch := rc.WithContext(ctx)

		outs := make([]any, len(p.children))
		for i, child := range p.children {
			g.Go(func() error {
				o, err := child.Run(branch.Child(i))
				if err != nil {
					return p.childError(rc, i, err)
				}
				outs[i] = o
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
		return outs, nil
	}, nil)
}
