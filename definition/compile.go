package definition

import (
	"fmt"

	"github.com/CatchTheTornado/agent-doodle/step"
)

// Compile converts an editable step tree into its executable definition.
// It never fails: a nil step compiles to the empty definition, and empty
// child lists compile to empty (non-nil) lists. The result is shaped like
// the input tree node for node.
func Compile(s step.Step) Definition {
	switch v := s.(type) {
	case step.Call:
		return Definition{Agent: v.Agent, Text: v.Input}
	case step.Sequence:
		return Definition{Agent: SequenceAgent, Children: compileList(v.Steps)}
	case step.Parallel:
		return Definition{Agent: ParallelAgent, Children: compileList(v.Steps)}
	case step.OneOf:
		d := Definition{
			Agent:      OneOfAgent,
			Children:   make([]Definition, len(v.Branches)),
			Conditions: make([]string, len(v.Branches)),
		}
		for i, b := range v.Branches {
			d.Children[i] = Compile(b.Flow)
			d.Conditions[i] = b.When
		}
		return d
	case step.ForEach:
		return Definition{Agent: ForEachAgent, Item: v.Item, Children: []Definition{Compile(v.InputFlow)}}
	case step.Evaluator:
		d := Definition{Agent: OptimizeAgent, Criteria: v.Criteria, Children: []Definition{Compile(v.SubFlow)}}
		if v.MaxIterations != nil {
			n := *v.MaxIterations
			d.MaxIterations = &n
		}
		return d
	case step.BestOfAll:
		return Definition{Agent: BestOfAllAgent, Criteria: v.Criteria, Children: compileList(v.Steps)}
	}
	return Definition{}
}

func compileList(steps []step.Step) []Definition {
	out := make([]Definition, len(steps))
	for i, s := range steps {
		out[i] = Compile(s)
	}
	return out
}

// Decompile recovers the step tree a definition was compiled from. A nil
// step and an unset leaf both compile to the empty definition; it
// decompiles to the unset leaf, which is what the editor creates.
func Decompile(d Definition) (step.Step, error) {
	return decompile(d, step.Root)
}

func decompile(d Definition, p step.Path) (step.Step, error) {
	switch d.Agent {
	case SequenceAgent, ParallelAgent, BestOfAllAgent:
		steps := make([]step.Step, len(d.Children))
		for i, c := range d.Children {
			s, err := decompile(c, p.Child(i))
			if err != nil {
				return nil, err
			}
			steps[i] = s
		}
		switch d.Agent {
		case SequenceAgent:
			return step.Sequence{Steps: steps}, nil
		case ParallelAgent:
			return step.Parallel{Steps: steps}, nil
		default:
			return step.BestOfAll{Criteria: d.Criteria, Steps: steps}, nil
		}
	case OneOfAgent:
		if len(d.Conditions) != len(d.Children) {
			return nil, fmt.Errorf("%w at %s: %d conditions for %d branches", ErrMalformed, p, len(d.Conditions), len(d.Children))
		}
		branches := make([]step.Branch, len(d.Children))
		for i, c := range d.Children {
			s, err := decompile(c, p.Child(i))
			if err != nil {
				return nil, err
			}
			branches[i] = step.Branch{When: d.Conditions[i], Flow: s}
		}
		return step.OneOf{Branches: branches}, nil
	case ForEachAgent, OptimizeAgent:
		if len(d.Children) != 1 {
			return nil, fmt.Errorf("%w at %s: %s requires exactly one input, got %d", ErrMalformed, p, d.Agent, len(d.Children))
		}
		s, err := decompile(d.Children[0], p.Child(0))
		if err != nil {
			return nil, err
		}
		if d.Agent == ForEachAgent {
			return step.ForEach{Item: d.Item, InputFlow: s}, nil
		}
		ev := step.Evaluator{Criteria: d.Criteria, SubFlow: s}
		if d.MaxIterations != nil {
			ev.MaxIterations = step.Iterations(*d.MaxIterations)
		}
		return ev, nil
	}
	if len(d.Children) > 0 {
		return nil, fmt.Errorf("%w at %s: leaf %q has nested input", ErrMalformed, p, d.Agent)
	}
	return step.Call{Agent: d.Agent, Input: d.Text}, nil
}
