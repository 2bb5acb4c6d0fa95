package step

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownType is returned when a serialized step carries an unrecognized
// `type` tag.
var ErrUnknownType = errors.New("unknown step type")

// Wire is the persisted, type-tagged form of a Step. It is shared by the
// JSON and YAML encodings of flows.
type Wire struct {
	Type          Type         `json:"type" yaml:"type"`
	Agent         string       `json:"agent,omitempty" yaml:"agent,omitempty"`
	Input         string       `json:"input,omitempty" yaml:"input,omitempty"`
	Steps         []Wire       `json:"steps,omitempty" yaml:"steps,omitempty"`
	Branches      []WireBranch `json:"branches,omitempty" yaml:"branches,omitempty"`
	Item          string       `json:"item,omitempty" yaml:"item,omitempty"`
	InputFlow     *Wire        `json:"inputFlow,omitempty" yaml:"inputFlow,omitempty"`
	Criteria      string       `json:"criteria,omitempty" yaml:"criteria,omitempty"`
	MaxIterations *int         `json:"max_iterations,omitempty" yaml:"max_iterations,omitempty"`
	SubFlow       *Wire        `json:"subFlow,omitempty" yaml:"subFlow,omitempty"`
}

// WireBranch is the persisted form of a Branch.
type WireBranch struct {
	When string `json:"when" yaml:"when"`
	Flow *Wire  `json:"flow,omitempty" yaml:"flow,omitempty"`
}

// ToWire converts s to its persisted form. A nil step yields nil.
func ToWire(s Step) *Wire {
	switch v := s.(type) {
	case Call:
		return &Wire{Type: TypeCall, Agent: v.Agent, Input: v.Input}
	case Sequence:
		return &Wire{Type: TypeSequence, Steps: wireList(v.Steps)}
	case Parallel:
		return &Wire{Type: TypeParallel, Steps: wireList(v.Steps)}
	case BestOfAll:
		return &Wire{Type: TypeBestOfAll, Criteria: v.Criteria, Steps: wireList(v.Steps)}
	case OneOf:
		w := &Wire{Type: TypeOneOf, Branches: make([]WireBranch, len(v.Branches))}
		for i, b := range v.Branches {
			w.Branches[i] = WireBranch{When: b.When, Flow: ToWire(b.Flow)}
		}
		return w
	case ForEach:
		return &Wire{Type: TypeForEach, Item: v.Item, InputFlow: ToWire(v.InputFlow)}
	case Evaluator:
		return &Wire{Type: TypeEvaluator, Criteria: v.Criteria, MaxIterations: v.MaxIterations, SubFlow: ToWire(v.SubFlow)}
	}
	return nil
}

func wireList(steps []Step) []Wire {
	out := make([]Wire, 0, len(steps))
	for _, s := range steps {
		if w := ToWire(s); w != nil {
			out = append(out, *w)
		}
	}
	return out
}

// FromWire converts the persisted form back into a Step. A nil wire yields
// a nil step.
func FromWire(w *Wire) (Step, error) {
	if w == nil {
		return nil, nil
	}
	switch w.Type {
	case TypeCall:
		return Call{Agent: w.Agent, Input: w.Input}, nil
	case TypeSequence:
		steps, err := fromWireList(w.Steps)
		if err != nil {
			return nil, err
		}
		return Sequence{Steps: steps}, nil
	case TypeParallel:
		steps, err := fromWireList(w.Steps)
		if err != nil {
			return nil, err
		}
		return Parallel{Steps: steps}, nil
	case TypeBestOfAll:
		steps, err := fromWireList(w.Steps)
		if err != nil {
			return nil, err
		}
		return BestOfAll{Criteria: w.Criteria, Steps: steps}, nil
	case TypeOneOf:
		branches := make([]Branch, len(w.Branches))
		for i, b := range w.Branches {
			flow, err := FromWire(b.Flow)
			if err != nil {
				return nil, err
			}
			branches[i] = Branch{When: b.When, Flow: flow}
		}
		return OneOf{Branches: branches}, nil
	case TypeForEach:
		flow, err := FromWire(w.InputFlow)
		if err != nil {
			return nil, err
		}
		return ForEach{Item: w.Item, InputFlow: flow}, nil
	case TypeEvaluator:
		flow, err := FromWire(w.SubFlow)
		if err != nil {
			return nil, err
		}
		var max *int
		if w.MaxIterations != nil {
			max = Iterations(*w.MaxIterations)
		}
		return Evaluator{Criteria: w.Criteria, MaxIterations: max, SubFlow: flow}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, w.Type)
}

func fromWireList(ws []Wire) ([]Step, error) {
	out := make([]Step, len(ws))
	for i := range ws {
		s, err := FromWire(&ws[i])
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// Marshal encodes s as editor JSON.
func Marshal(s Step) ([]byte, error) {
	w := ToWire(s)
	if w == nil {
		return []byte("null"), nil
	}
	return json.Marshal(w)
}

// Unmarshal decodes editor JSON into a Step.
func Unmarshal(data []byte) (Step, error) {
	var w *Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode step: %w", err)
	}
	return FromWire(w)
}
