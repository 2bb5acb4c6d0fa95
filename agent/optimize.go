package agent

import (
	"fmt"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/definition"
	"github.com/CatchTheTornado/agent-doodle/internal/util"
)

// OptimizeAgent repeatedly runs its sub-flow and asks a judge whether the
// result meets the criteria. The verdict's reason is handed to the next
// attempt as feedback.
//
// The sub-flow runs at most maxIterations times. When the criteria are met
// the node succeeds with the passing output. Otherwise the node either
// fails with ErrNotConverged or, by default, returns the last output and
// records the node as unconverged in the trace.
type OptimizeAgent struct {
	BaseAgent
	criteria      string
	maxIterations int
	child         core.Node
	judge         core.Judge
	failOnMiss    bool
}

// OptimizeOptions configures an OptimizeAgent.
type OptimizeOptions struct {
	// FailOnNonConvergence turns an exhausted iteration budget into an
	// ErrNotConverged failure.
	FailOnNonConvergence bool
}

// NewOptimizeAgent creates an optimize node. maxIterations below 1 is
// treated as 1.
func NewOptimizeAgent(judge core.Judge, criteria string, maxIterations int, child core.Node, optFns ...func(o *OptimizeOptions)) *OptimizeAgent {
	opts := OptimizeOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	if maxIterations < 1 {
		maxIterations = 1
	}

	return &OptimizeAgent{
		BaseAgent:     NewBaseAgent(definition.OptimizeAgent),
		criteria:      criteria,
		maxIterations: maxIterations,
		child:         child,
		judge:         judge,
		failOnMiss:    opts.FailOnNonConvergence,
	}
}

// MaxIterations returns the resolved iteration bound.
func (o *OptimizeAgent) MaxIterations() int { return o.maxIterations }

// Run implements core.Node.
func (o *OptimizeAgent) Run(rc *core.RunContext) (core.Output, error) {
	// nil unless the node passed or ran out of iterations
	var converged *bool
	return o.execute(rc, func(rc *core.RunContext) (core.Output, error) {
		var (
			out      core.Output
			feedback string
		)
		for attempt := 1; attempt <= o.maxIterations; attempt++ {
			var err error
			out, err = o.child.Run(rc.WithFeedback(attempt, feedback).Child(0))
			if err != nil {
				return nil, o.childError(rc, 0, fmt.Errorf("iteration %d: %w", attempt, err))
			}

			criteria, err := util.RenderTemplate(o.criteria, rc.WithPrevious(out).TemplateData())
			if err != nil {
				return nil, core.NewNodeError(core.ErrJudgmentFailure, rc.Path, o.Name(), fmt.Errorf("render criteria: %w", err))
			}

			verdict, err := o.judge.Judge(rc.WithFeedback(attempt, feedback), criteria, []core.Output{out})
			if err != nil {
				return nil, core.NewNodeError(core.ErrJudgmentFailure, rc.Path, o.Name(), err)
			}

			rc.LogDebug("agent.optimize.iteration", "path", rc.Path.String(), "attempt", attempt, "passed", verdict.Passed)
			if verdict.Passed {
				converged = boolPtr(true)
				return out, nil
			}
			feedback = verdict.Reason
		}

		converged = boolPtr(false)
		if o.failOnMiss {
			return nil, core.NewNodeError(core.ErrNotConverged, rc.Path, o.Name(),
				fmt.Errorf("%d iterations exhausted", o.maxIterations))
		}

		rc.LogWarn("agent.optimize.unconverged", "path", rc.Path.String(), "max_iterations", o.maxIterations)
		return out, nil
	}, func(ev *core.TraceEvent) {
		ev.Converged = converged
	})
}

func boolPtr(b bool) *bool { return &b }
