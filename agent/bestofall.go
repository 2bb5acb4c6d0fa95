package agent

import (
	"errors"
	"fmt"
	"sync"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/definition"
	"github.com/CatchTheTornado/agent-doodle/internal/util"
)

// BestOfAllAgent runs every candidate flow concurrently and asks a judge to
// pick the output that best satisfies the criteria.
//
// A failing candidate does not cancel its siblings; it is dropped from the
// candidate set. When exactly one candidate survives it wins without
// consulting the judge. When none survives the node fails with
// ErrEmptyCandidateSet.
type BestOfAllAgent struct {
	BaseAgent
	criteria string
	children []core.Node
	judge    core.Judge
}

// NewBestOfAllAgent creates a bestOfAll node.
func NewBestOfAllAgent(judge core.Judge, criteria string, children ...core.Node) *BestOfAllAgent {
	return &BestOfAllAgent{
		BaseAgent: NewBaseAgent(definition.BestOfAllAgent),
		criteria:  criteria,
		children:  children,
		judge:     judge,
	}
}

// Run implements core.Node.
func (b *BestOfAllAgent) Run(rc *core.RunContext) (core.Output, error) {
	return b.execute(rc, func(rc *core.RunContext) (core.Output, error) {
		outs := make([]core.Output, len(b.children))
		errs := make([]error, len(b.children))

		var wg sync.WaitGroup
		for i, child := range b.children {
			wg.Add(1)
			go func() {
				defer wg.Done()
				outs[i], errs[i] = child.Run(rc.Child(i))
			}()
		}
		wg.Wait()

		if err := rc.Err(); err != nil {
			return nil, err
		}

		var (
			candidates []core.Output
			failures   []error
		)
		for i := range b.children {
			if errs[i] != nil {
				rc.LogWarn("agent.bestofall.candidate.failed", "path", rc.Path.String(), "candidate", i, "error", errs[i])
				failures = append(failures, b.childError(rc, i, errs[i]))
				continue
			}
			candidates = append(candidates, outs[i])
		}

		switch len(candidates) {
		case 0:
			cause := errors.Join(failures...)
			if cause == nil {
				cause = errors.New("no candidates")
			}
			return nil, core.NewNodeError(core.ErrEmptyCandidateSet, rc.Path, b.Name(), cause)
		case 1:
			return candidates[0], nil
		}

		criteria, err := util.RenderTemplate(b.criteria, rc.TemplateData())
		if err != nil {
			return nil, core.NewNodeError(core.ErrJudgmentFailure, rc.Path, b.Name(), fmt.Errorf("render criteria: %w", err))
		}

		idx, err := b.judge.Select(rc, criteria, candidates)
		if err != nil {
			return nil, core.NewNodeError(core.ErrJudgmentFailure, rc.Path, b.Name(), err)
		}
		if idx < 0 || idx >= len(candidates) {
			return nil, core.NewNodeError(core.ErrJudgmentFailure, rc.Path, b.Name(),
				fmt.Errorf("selected index %d out of range [0,%d)", idx, len(candidates)))
		}

		rc.LogDebug("agent.bestofall.selected", "path", rc.Path.String(), "index", idx, "candidates", len(candidates))
		return candidates[idx], nil
	}, nil)
}
