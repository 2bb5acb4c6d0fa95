package evaluation

import (
	"strings"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/internal/util"
)

// Conditions implements core.ConditionEvaluator.
//
// A condition is first rendered as a template against the run context.
// Literal answers are decided locally: true, yes, 1 hold and false, no, 0
// do not; else, otherwise and default mark an explicit catch-all branch and
// always hold. A blank condition is an error: there is no implicit default
// branch. Any other text is handed to the judge as a criterion on the
// current input.
type Conditions struct {
	judge core.Judge
}

var _ core.ConditionEvaluator = (*Conditions)(nil)

// NewConditions creates a condition evaluator. judge may be nil when all
// conditions are literal.
func NewConditions(judge core.Judge) *Conditions {
	return &Conditions{judge: judge}
}

// Evaluate implements core.ConditionEvaluator.
func (c *Conditions) Evaluate(rc *core.RunContext, condition string) (bool, error) {
	if strings.TrimSpace(condition) == "" {
		return false, ErrEmptyCondition
	}

	text, err := util.RenderTemplate(condition, rc.TemplateData())
	if err != nil {
		return false, err
	}

	if v, ok := literal(text); ok {
		return v, nil
	}

	if c.judge == nil {
		return false, ErrNoJudge
	}

	verdict, err := c.judge.Judge(rc, text, []core.Output{rc.Previous})
	if err != nil {
		return false, err
	}

	rc.LogDebug("condition.evaluated", "condition", text, "result", verdict.Passed)
	return verdict.Passed, nil
}

func literal(s string) (value, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "else", "otherwise", "default", "true", "yes", "1":
		return true, true
	case "", "false", "no", "0":
		return false, true
	}
	return false, false
}
