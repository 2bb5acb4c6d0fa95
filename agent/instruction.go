package agent

import "github.com/CatchTheTornado/agent-doodle/core"

// Provider supplies dynamic instruction text at runtime.
// Implementations can derive instructions from run inputs, environment, etc.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// InstructionFunc is a functional adapter to allow ordinary functions to be
// used as Providers.
type InstructionFunc func(*core.RunContext) (string, error)

// Instruction implements Provider.
func (f InstructionFunc) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction represents either a static instruction string or a dynamic provider.
// Static text may contain template markers; they are expanded per invocation.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText creates an Instruction from a static string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider creates an Instruction from a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc creates an Instruction from a function.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: InstructionFunc(f)}
}

// IsStatic returns true if the instruction is backed by a static string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, invoking the provider if needed.
func (i Instruction) Resolve(rc *core.RunContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc)
	}
	return i.text, nil
}
