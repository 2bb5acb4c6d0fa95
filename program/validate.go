package program

import (
	"errors"
	"fmt"
	"strings"

	"github.com/CatchTheTornado/agent-doodle/definition"
	"github.com/CatchTheTornado/agent-doodle/step"
)

// ValidationError reports one problem found by Validate. Flow and Path are
// empty for program-level problems.
type ValidationError struct {
	Flow    string
	Path    step.Path
	Message string
}

// Error implements error.
func (e *ValidationError) Error() string {
	if e.Flow == "" {
		return e.Message
	}
	return fmt.Sprintf("flow %q at %s: %s", e.Flow, e.Path, e.Message)
}

// Validate checks the program before it is saved or run. All problems are
// returned joined; use errors.As to inspect them.
func (p Program) Validate() error {
	var errs []error
	add := func(flow string, path step.Path, format string, args ...any) {
		errs = append(errs, &ValidationError{Flow: flow, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	known := make(map[string]bool, len(p.Agents))
	for i, a := range p.Agents {
		switch {
		case a.Name == "":
			add("", nil, "agent %d: name is required", i)
		case definition.IsOperator(a.Name):
			add("", nil, "agent %q: name is reserved", a.Name)
		case known[a.Name]:
			add("", nil, "agent %q: duplicate name", a.Name)
		}
		known[a.Name] = true
	}

	codes := make(map[string]bool, len(p.Flows))
	for i, f := range p.Flows {
		if f.Name == "" {
			add("", nil, "flow %d: %v", i, ErrNameRequired)
		}
		if f.Code == "" {
			add("", nil, "flow %d: %v", i, ErrCodeRequired)
		} else if codes[f.Code] {
			add("", nil, "flow %d: %v: %q", i, ErrDuplicateCode, f.Code)
		}
		codes[f.Code] = true

		validateTree(f, known, add)
	}

	if p.DefaultFlow != "" && !codes[p.DefaultFlow] {
		add("", nil, "default flow %q does not exist", p.DefaultFlow)
	}

	names := make(map[string]bool, len(p.Inputs))
	for i, in := range p.Inputs {
		switch {
		case in.Name == "":
			add("", nil, "input %d: name is required", i)
		case names[in.Name]:
			add("", nil, "input %q: duplicate name", in.Name)
		}
		names[in.Name] = true
		if !in.Type.Valid() {
			add("", nil, "input %q: unknown type %q", in.Name, in.Type)
		}
	}

	return errors.Join(errs...)
}

func validateTree(f Flow, known map[string]bool, add func(flow string, path step.Path, format string, args ...any)) {
	if f.Flow == nil {
		add(f.Code, step.Root, "flow is empty")
		return
	}

	step.Walk(f.Flow, func(p step.Path, s step.Step) bool {
		for i, c := range step.Children(s) {
			if c == nil {
				add(f.Code, p.Child(i), "step is empty")
			}
		}

		switch v := s.(type) {
		case step.Call:
			switch {
			case v.Agent == "":
				add(f.Code, p, "agent is required")
			case !known[v.Agent]:
				add(f.Code, p, "unknown agent %q", v.Agent)
			}
		case step.Sequence:
			if len(v.Steps) == 0 {
				add(f.Code, p, "sequence has no steps")
			}
		case step.Parallel:
			if len(v.Steps) == 0 {
				add(f.Code, p, "parallel has no steps")
			}
		case step.BestOfAll:
			if len(v.Steps) == 0 {
				add(f.Code, p, "bestOfAll has no candidates")
			}
		case step.OneOf:
			if len(v.Branches) == 0 {
				add(f.Code, p, "oneOf has no branches")
			}
			for i, b := range v.Branches {
				if strings.TrimSpace(b.When) == "" {
					add(f.Code, p.Child(i), "condition is required")
				}
			}
		case step.Evaluator:
			if v.MaxIterations != nil && *v.MaxIterations < 1 {
				add(f.Code, p, "max_iterations must be positive")
			}
		}
		return true
	})
}
