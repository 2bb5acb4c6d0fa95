package core

import (
	"errors"
	"fmt"

	"github.com/CatchTheTornado/agent-doodle/step"
)

// Failure kinds. Every engine failure is a *NodeError whose Kind is one of
// these, so callers can branch with errors.Is.
var (
	ErrStructural        = errors.New("structural error")
	ErrAgentInvocation   = errors.New("agent invocation failed")
	ErrUnknownAgent      = errors.New("unknown agent")
	ErrNoBranchMatched   = errors.New("no branch matched")
	ErrSchemaMismatch    = errors.New("schema mismatch")
	ErrEmptyCandidateSet = errors.New("all candidates failed")
	ErrJudgmentFailure   = errors.New("judgment failed")
	ErrComposite         = errors.New("child failed")
	ErrNotConverged      = errors.New("criteria not met within max iterations")
	ErrBudgetExceeded    = errors.New("invocation budget exceeded")
	ErrRejected          = errors.New("rejected by callback")
)

// NoChild marks a NodeError that is not attributed to a child index.
const NoChild = -1

// NodeError describes the failure of one node of a running flow.
type NodeError struct {
	// Kind is one of the failure sentinels of this package.
	Kind error
	// Path locates the failing node.
	Path step.Path
	// Agent is the operator or user agent name of the node.
	Agent string
	// Child is the index of the failed child for composite failures, or
	// NoChild.
	Child int
	// Err is the underlying cause, possibly another *NodeError.
	Err error
}

// NewNodeError builds a NodeError that is not attributed to a child.
func NewNodeError(kind error, path step.Path, agent string, err error) *NodeError {
	return &NodeError{Kind: kind, Path: path, Agent: agent, Child: NoChild, Err: err}
}

// Error implements error.
func (e *NodeError) Error() string {
	msg := fmt.Sprintf("%s at %s", e.Agent, e.Path)
	// the cause already names the kind
	if e.Err == nil || e.Kind == nil || !errors.Is(e.Err, e.Kind) {
		msg += fmt.Sprintf(": %v", e.Kind)
	}
	if e.Child != NoChild {
		msg += fmt.Sprintf(" (child %d)", e.Child)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *NodeError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// FailingNode returns the innermost NodeError in err's chain, which is the
// node that originally failed. An empty candidate set is reported at the
// bestOfAll node itself since every child failed. Returns nil if err holds
// no NodeError.
func FailingNode(err error) *NodeError {
	var ne *NodeError
	if !errors.As(err, &ne) {
		return nil
	}
	for ne.Kind != ErrEmptyCandidateSet {
		var inner *NodeError
		if ne.Err == nil || !errors.As(ne.Err, &inner) {
			break
		}
		ne = inner
	}
	return ne
}
