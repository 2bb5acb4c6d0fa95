package testutil

import (
	"errors"
	"sync"

	"github.com/CatchTheTornado/agent-doodle/core"
)

// Judge is a scripted core.Judge. Judge calls consume Verdicts in order
// and repeat the last one; with no verdicts every candidate fails.
type Judge struct {
	Verdicts  []core.Verdict
	JudgeErr  error
	Index     int
	SelectErr error

	mu          sync.Mutex
	judgeCalls  int
	selectCalls int
	criteria    []string
	candidates  [][]core.Output
	feedback    []string
}

// Judge implements core.Judge.
func (j *Judge) Judge(rc *core.RunContext, criteria string, candidates []core.Output) (core.Verdict, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	n := j.judgeCalls
	j.judgeCalls++
	j.criteria = append(j.criteria, criteria)
	j.feedback = append(j.feedback, rc.Feedback)

	if j.JudgeErr != nil {
		return core.Verdict{}, j.JudgeErr
	}
	if len(j.Verdicts) == 0 {
		return core.Verdict{Reason: "not good enough"}, nil
	}
	return j.Verdicts[min(n, len(j.Verdicts)-1)], nil
}

// Select implements core.Judge.
func (j *Judge) Select(_ *core.RunContext, criteria string, candidates []core.Output) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.selectCalls++
	j.criteria = append(j.criteria, criteria)
	j.candidates = append(j.candidates, append([]core.Output(nil), candidates...))
	if j.SelectErr != nil {
		return 0, j.SelectErr
	}
	return j.Index, nil
}

// JudgeCalls returns how often Judge was called.
func (j *Judge) JudgeCalls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.judgeCalls
}

// SelectCalls returns how often Select was called.
func (j *Judge) SelectCalls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.selectCalls
}

// Criteria returns every rendered criterion received, in call order.
func (j *Judge) Criteria() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.criteria...)
}

// Feedback returns the feedback visible to each Judge call.
func (j *Judge) Feedback() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.feedback...)
}

// Candidates returns the candidate sets passed to Select.
func (j *Judge) Candidates() [][]core.Output {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([][]core.Output(nil), j.candidates...)
}

// ErrUnknownCondition is returned by Conditions for unscripted conditions.
var ErrUnknownCondition = errors.New("unknown condition")

// Conditions is a table-driven core.ConditionEvaluator.
type Conditions struct {
	mu        sync.Mutex
	table     map[string]bool
	evaluated []string
}

// NewConditions creates an evaluator answering from table.
func NewConditions(table map[string]bool) *Conditions {
	return &Conditions{table: table}
}

// Evaluate implements core.ConditionEvaluator.
func (c *Conditions) Evaluate(_ *core.RunContext, condition string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evaluated = append(c.evaluated, condition)
	v, ok := c.table[condition]
	if !ok {
		return false, ErrUnknownCondition
	}
	return v, nil
}

// Evaluated returns the conditions evaluated so far, in order.
func (c *Conditions) Evaluated() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.evaluated...)
}
