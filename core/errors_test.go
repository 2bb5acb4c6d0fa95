package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CatchTheTornado/agent-doodle/step"
)

func TestNodeError_Error(t *testing.T) {
	leaf := NewNodeError(ErrAgentInvocation, step.Path{0, 1}, "writer", errors.New("timeout"))
	assert.Equal(t, "writer at $.0.1: agent invocation failed: timeout", leaf.Error())

	parent := &NodeError{Kind: ErrComposite, Path: step.Path{0}, Agent: "parallelAgent", Child: 1, Err: leaf}
	assert.Equal(t, "parallelAgent at $.0: child failed (child 1): writer at $.0.1: agent invocation failed: timeout", parent.Error())

	// the kind is not repeated when the cause already carries it
	budget := NewNodeError(ErrBudgetExceeded, step.Root, "a", fmt.Errorf("%w: max 1 invocations", ErrBudgetExceeded))
	assert.Equal(t, "a at $: invocation budget exceeded: max 1 invocations", budget.Error())
}

func TestNodeError_Is(t *testing.T) {
	cause := errors.New("boom")
	leaf := NewNodeError(ErrAgentInvocation, step.Path{1}, "critic", cause)
	parent := &NodeError{Kind: ErrComposite, Path: step.Root, Agent: "sequenceAgent", Child: 1, Err: leaf}

	assert.ErrorIs(t, parent, ErrComposite)
	assert.ErrorIs(t, parent, ErrAgentInvocation)
	assert.ErrorIs(t, parent, cause)
	assert.NotErrorIs(t, parent, ErrStructural)
}

func TestFailingNode(t *testing.T) {
	assert.Nil(t, FailingNode(errors.New("plain")))
	assert.Nil(t, FailingNode(nil))

	leaf := NewNodeError(ErrAgentInvocation, step.Path{0, 2}, "writer", errors.New("x"))
	mid := &NodeError{Kind: ErrComposite, Path: step.Path{0}, Agent: "parallelAgent", Child: 2, Err: leaf}
	root := &NodeError{Kind: ErrComposite, Path: step.Root, Agent: "sequenceAgent", Child: 0, Err: mid}

	got := FailingNode(fmt.Errorf("run: %w", root))
	require.NotNil(t, got)
	assert.Equal(t, "$.0.2", got.Path.String())

	empty := NewNodeError(ErrEmptyCandidateSet, step.Path{3}, "bestOfAllAgent", errors.Join(leaf))
	wrapped := &NodeError{Kind: ErrComposite, Path: step.Root, Agent: "sequenceAgent", Child: 3, Err: empty}
	got = FailingNode(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, "$.3", got.Path.String(), "an empty candidate set is reported at the bestOfAll node")
}

func TestLimiter(t *testing.T) {
	l := NewLimiter(2)
	require.NoError(t, l.Increment())
	assert.Equal(t, 1, l.Remaining())
	require.NoError(t, l.Increment())
	assert.Equal(t, 0, l.Remaining())

	err := l.Increment()
	assert.ErrorIs(t, err, ErrBudgetExceeded)
	assert.Equal(t, 3, l.Count())

	unlimited := NewLimiter(0)
	for range 10 {
		require.NoError(t, unlimited.Increment())
	}
	assert.Equal(t, -1, unlimited.Remaining())

	var none *Limiter
	assert.NoError(t, none.Increment())
	assert.Equal(t, 0, none.Count())
	assert.Equal(t, -1, none.Remaining())
}
