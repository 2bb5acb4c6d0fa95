package core

import (
	"encoding/json"
	"fmt"
)

// Output is the value produced by a node. Leaves usually produce strings;
// parallel and forEach produce []any in declaration order.
type Output = any

// Agent is a named user agent that turns a textual input into an output.
//
// Implementations must respect cancellation of rc.Context and must not
// retain rc beyond the call.
type Agent interface {
	Name() string
	Invoke(rc *RunContext, input string) (Output, error)
}

// Node is an executable node of a compiled flow: a combinator or a leaf
// bound to an agent name.
type Node interface {
	Name() string
	Run(rc *RunContext) (Output, error)
}

// Invoker resolves agent names and executes them.
type Invoker interface {
	Invoke(rc *RunContext, agentName, input string) (Output, error)
}

// Verdict is the outcome of judging candidates against a criterion. Reason
// is handed back to the next optimize iteration as feedback.
type Verdict struct {
	Passed bool   `json:"passed"`
	Reason string `json:"reason,omitempty"`
}

// Judge decides whether outputs satisfy a criterion and picks the best of a
// candidate set.
type Judge interface {
	// Judge reports whether the candidates satisfy criteria. The optimize
	// operator always passes a single candidate.
	Judge(rc *RunContext, criteria string, candidates []Output) (Verdict, error)
	// Select returns the index of the candidate that best satisfies criteria.
	Select(rc *RunContext, criteria string, candidates []Output) (int, error)
}

// ConditionEvaluator decides oneOf branch conditions.
type ConditionEvaluator interface {
	Evaluate(rc *RunContext, condition string) (bool, error)
}

// Text renders an output as text. Strings pass through; nil is empty; other
// values are JSON encoded.
func Text(o Output) string {
	switch v := o.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	case fmt.Stringer:
		return v.String()
	}
	b, err := json.Marshal(o)
	if err != nil {
		return fmt.Sprint(o)
	}
	return string(b)
}
