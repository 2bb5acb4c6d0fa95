// Package definition holds the executable form of a flow and the compiler
// that produces it from an editable step tree.
//
// A Definition is a recursive record discriminated by its Agent field. The
// reserved operator names below select a combinator; any other non-empty
// name is a leaf that invokes the user agent of that name. The JSON encoding
// produced by Marshal is a stable contract consumed by external executors.
package definition

import (
	"errors"
)

// Reserved operator agent names.
const (
	SequenceAgent  = "sequenceAgent"
	ParallelAgent  = "parallelAgent"
	OneOfAgent     = "oneOfAgent"
	ForEachAgent   = "forEachAgent"
	OptimizeAgent  = "optimizeAgent"
	BestOfAllAgent = "bestOfAllAgent"
)

// Operators lists the reserved operator names.
var Operators = []string{SequenceAgent, ParallelAgent, OneOfAgent, ForEachAgent, OptimizeAgent, BestOfAllAgent}

// ErrMalformed is returned when a definition cannot be decoded or does not
// have the shape its operator requires.
var ErrMalformed = errors.New("malformed definition")

// IsOperator reports whether name is reserved for a combinator.
func IsOperator(name string) bool {
	for _, op := range Operators {
		if op == name {
			return true
		}
	}
	return false
}

// Definition is one node of an executable flow.
type Definition struct {
	// Agent is the operator name or, for leaves, the user agent name.
	Agent string
	// Text is the literal input of a leaf.
	Text string
	// Children are the sub-definitions. ForEach and optimize nodes have
	// exactly one.
	Children []Definition
	// Conditions are index-aligned with Children on oneOf nodes.
	Conditions []string
	// Item is the element type or schema of a forEach node.
	Item string
	// Criteria is the judgment criterion of optimize and bestOfAll nodes.
	Criteria string
	// MaxIterations bounds an optimize node. Nil means the engine default.
	MaxIterations *int
}

// IsEmpty reports whether d is the empty definition produced for a missing
// step.
func (d Definition) IsEmpty() bool {
	return d.Agent == "" && d.Text == "" && len(d.Children) == 0 && len(d.Conditions) == 0 &&
		d.Item == "" && d.Criteria == "" && d.MaxIterations == nil
}

// IsLeaf reports whether d invokes a user agent.
func (d Definition) IsLeaf() bool {
	return d.Agent != "" && !IsOperator(d.Agent)
}

// Agents returns the distinct user agent names referenced under d in
// depth-first order.
func Agents(d Definition) []string {
	seen := map[string]bool{}
	var names []string
	var walk func(Definition)
	walk = func(n Definition) {
		if n.IsLeaf() && !seen[n.Agent] {
			seen[n.Agent] = true
			names = append(names, n.Agent)
		}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(d)
	return names
}
