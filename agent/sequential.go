package agent

import (
	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/definition"
)

// SequentialAgent executes its children strictly in order.
//
// Child i receives the output of child i-1 as Previous (the first child
// receives the sequence's own Previous) and every earlier output in
// History. The first failure aborts the sequence; no later child starts
// and the sequence reports no output. The output of a sequence is the
// output of its last child; an empty sequence passes its Previous through.
type SequentialAgent struct {
	BaseAgent
	children []core.Node
}

// NewSequentialAgent creates a sequence over children.
func NewSequentialAgent(children ...core.Node) *SequentialAgent {
	return &SequentialAgent{
		BaseAgent: NewBaseAgent(definition.SequenceAgent),
		children:  children,
	}
}

// Run implements core.Node.
func (s *SequentialAgent) Run(rc *core.RunContext) (core.Output, error) {
	return s.execute(rc, func(rc *core.RunContext) (core.Output, error) {
		cur := rc
		out := rc.Previous
		for i, child := range s.children {
			o, err := child.Run(cur.Child(i))
			if err != nil {
				return nil, s.childError(rc, i, err)
			}
			out = o
			cur = cur.WithPrevious(o)
		}
		return out, nil
	}, nil)
}
