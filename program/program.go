package program

import (
	"errors"
	"fmt"
	"slices"

	"github.com/CatchTheTornado/agent-doodle/step"
)

var (
	ErrNameRequired  = errors.New("flow name is required")
	ErrCodeRequired  = errors.New("flow code is required")
	ErrDuplicateCode = errors.New("flow with this code already exists")
	ErrFlowNotFound  = errors.New("flow not found")
)

// ToolSetting enables a named tool for an agent.
type ToolSetting struct {
	Name    string         `json:"name" yaml:"name"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// AgentDefinition declares a user agent: the model that backs it and its
// system prompt.
type AgentDefinition struct {
	Name        string        `json:"name" yaml:"name"`
	Model       string        `json:"model" yaml:"model"`
	System      string        `json:"system" yaml:"system"`
	Temperature *float64      `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	Tools       []ToolSetting `json:"tools,omitempty" yaml:"tools,omitempty"`
}

// Program is a set of agents and the flows that orchestrate them.
type Program struct {
	Name        string            `json:"name,omitempty" yaml:"name,omitempty"`
	Agents      []AgentDefinition `json:"agents" yaml:"agents"`
	Flows       []Flow            `json:"flows" yaml:"flows"`
	DefaultFlow string            `json:"defaultFlow,omitempty" yaml:"defaultFlow,omitempty"`
	Inputs      []InputVariable   `json:"inputs,omitempty" yaml:"inputs,omitempty"`
}

// Agent returns the agent definition named name.
func (p Program) Agent(name string) (AgentDefinition, bool) {
	for _, a := range p.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentDefinition{}, false
}

// AgentNames returns the declared agent names in declaration order.
func (p Program) AgentNames() []string {
	names := make([]string, len(p.Agents))
	for i, a := range p.Agents {
		names[i] = a.Name
	}
	return names
}

// Flow returns the flow with the given code.
func (p Program) Flow(code string) (Flow, bool) {
	i := p.indexOf(code)
	if i < 0 {
		return Flow{}, false
	}
	return p.Flows[i], true
}

// Default returns the default flow, or the first flow when no default is
// set.
func (p Program) Default() (Flow, bool) {
	if p.DefaultFlow != "" {
		if f, ok := p.Flow(p.DefaultFlow); ok {
			return f, true
		}
	}
	if len(p.Flows) > 0 {
		return p.Flows[0], true
	}
	return Flow{}, false
}

// AddFlow appends f. The first flow of a program becomes its default.
func (p Program) AddFlow(f Flow) (Program, error) {
	if err := checkIdentity(f.Name, f.Code); err != nil {
		return p, err
	}
	if p.indexOf(f.Code) >= 0 {
		return p, fmt.Errorf("%w: %q", ErrDuplicateCode, f.Code)
	}
	if f.Flow == nil {
		f.Flow = step.Sequence{}
	}

	out := p.clone()
	out.Flows = append(out.Flows, f)
	if len(out.Flows) == 1 {
		out.DefaultFlow = f.Code
	}
	return out, nil
}

// UpdateFlow renames the flow identified by code and may change its code.
func (p Program) UpdateFlow(code, name, newCode string) (Program, error) {
	i := p.indexOf(code)
	if i < 0 {
		return p, fmt.Errorf("%w: %q", ErrFlowNotFound, code)
	}
	if err := checkIdentity(name, newCode); err != nil {
		return p, err
	}
	if j := p.indexOf(newCode); j >= 0 && j != i {
		return p, fmt.Errorf("%w: %q", ErrDuplicateCode, newCode)
	}

	out := p.clone()
	out.Flows[i].Name = name
	out.Flows[i].Code = newCode
	if out.DefaultFlow == code {
		out.DefaultFlow = newCode
	}
	return out, nil
}

// ReplaceFlowStep replaces the whole step tree of the flow identified by
// code.
func (p Program) ReplaceFlowStep(code string, s step.Step) (Program, error) {
	i := p.indexOf(code)
	if i < 0 {
		return p, fmt.Errorf("%w: %q", ErrFlowNotFound, code)
	}

	out := p.clone()
	out.Flows[i].Flow = s
	return out, nil
}

// EditFlow applies fn to the step tree of the flow identified by code,
// typically one of the step edit operations.
func (p Program) EditFlow(code string, fn func(step.Step) (step.Step, error)) (Program, error) {
	f, ok := p.Flow(code)
	if !ok {
		return p, fmt.Errorf("%w: %q", ErrFlowNotFound, code)
	}
	s, err := fn(f.Flow)
	if err != nil {
		return p, err
	}
	return p.ReplaceFlowStep(code, s)
}

// RemoveFlow deletes the flow identified by code. Removing the default
// flow makes the first remaining flow the default.
func (p Program) RemoveFlow(code string) (Program, error) {
	i := p.indexOf(code)
	if i < 0 {
		return p, fmt.Errorf("%w: %q", ErrFlowNotFound, code)
	}

	out := p.clone()
	out.Flows = slices.Delete(out.Flows, i, i+1)
	if out.DefaultFlow == code {
		out.DefaultFlow = ""
		if len(out.Flows) > 0 {
			out.DefaultFlow = out.Flows[0].Code
		}
	}
	return out, nil
}

// SetDefaultFlow marks the flow identified by code as default.
func (p Program) SetDefaultFlow(code string) (Program, error) {
	if p.indexOf(code) < 0 {
		return p, fmt.Errorf("%w: %q", ErrFlowNotFound, code)
	}
	out := p.clone()
	out.DefaultFlow = code
	return out, nil
}

func (p Program) indexOf(code string) int {
	return slices.IndexFunc(p.Flows, func(f Flow) bool { return f.Code == code })
}

func (p Program) clone() Program {
	out := p
	out.Agents = slices.Clone(p.Agents)
	out.Flows = slices.Clone(p.Flows)
	out.Inputs = slices.Clone(p.Inputs)
	return out
}

func checkIdentity(name, code string) error {
	if name == "" {
		return ErrNameRequired
	}
	if code == "" {
		return ErrCodeRequired
	}
	return nil
}
