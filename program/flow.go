package program

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/CatchTheTornado/agent-doodle/definition"
	"github.com/CatchTheTornado/agent-doodle/step"
)

// Flow is a named, coded step tree. The code identifies the flow within a
// program and selects it for runs.
type Flow struct {
	Name string
	Code string
	Flow step.Step
}

// NewFlow creates a flow holding an empty sequence.
func NewFlow(name, code string) Flow {
	return Flow{Name: name, Code: code, Flow: step.Sequence{}}
}

// Definition compiles the flow's step tree.
func (f Flow) Definition() definition.Definition {
	return definition.Compile(f.Flow)
}

type flowWire struct {
	Name string     `json:"name" yaml:"name"`
	Code string     `json:"code" yaml:"code"`
	Flow *step.Wire `json:"flow" yaml:"flow"`
}

func (f Flow) wire() flowWire {
	return flowWire{Name: f.Name, Code: f.Code, Flow: step.ToWire(f.Flow)}
}

func (f *Flow) fromWire(w flowWire) error {
	s, err := step.FromWire(w.Flow)
	if err != nil {
		return fmt.Errorf("flow %q: %w", w.Code, err)
	}
	*f = Flow{Name: w.Name, Code: w.Code, Flow: s}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f Flow) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.wire())
}

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flow) UnmarshalJSON(data []byte) error {
	var w flowWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	return f.fromWire(w)
}

// MarshalYAML implements yaml.Marshaler.
func (f Flow) MarshalYAML() (any, error) {
	return f.wire(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (f *Flow) UnmarshalYAML(value *yaml.Node) error {
	var w flowWire
	if err := value.Decode(&w); err != nil {
		return err
	}
	return f.fromWire(w)
}
