package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/engine"
	"github.com/CatchTheTornado/agent-doodle/internal/testutil"
	"github.com/CatchTheTornado/agent-doodle/program"
	"github.com/CatchTheTornado/agent-doodle/session"
	"github.com/CatchTheTornado/agent-doodle/step"
)

func testProgram() program.Program {
	return program.Program{
		Agents: []program.AgentDefinition{{Name: "writer"}, {Name: "critic"}, {Name: "slow"}},
		Flows: []program.Flow{
			{Name: "Draft", Code: "draft", Flow: step.Sequence{Steps: []step.Step{
				step.Call{Agent: "writer", Input: "about {{.topic}}"},
				step.Call{Agent: "critic", Input: "{{.input}}"},
			}}},
			{Name: "Slow", Code: "slow", Flow: step.Call{Agent: "slow"}},
			{Name: "Broken", Code: "broken", Flow: step.Call{Agent: "ghost"}},
		},
		DefaultFlow: "draft",
		Inputs:      []program.InputVariable{{Name: "topic", Required: true}},
	}
}

func newRunner(inv *testutil.Invoker, optFns ...func(o *Options)) *Runner {
	return New(testProgram(), engine.New(inv), optFns...)
}

func TestRun_DefaultFlow(t *testing.T) {
	inv := testutil.NewInvoker()
	r := newRunner(inv)

	run, err := r.Run(context.Background(), Request{RunID: "r1", Inputs: map[string]any{"topic": "go"}})
	require.NoError(t, err)

	assert.Equal(t, "draft", run.FlowCode)
	assert.Equal(t, session.StatusSucceeded, run.Status)
	assert.Equal(t, "critic(writer(about go))", run.Output)
	assert.Equal(t, 2, run.Invocations)
	assert.True(t, run.Converged)
	assert.False(t, run.FinishedAt.Before(run.StartedAt))

	stored, err := r.Get(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, run.Output, stored.Output)
	assert.NotEmpty(t, stored.Trace)
}

func TestRun_Rejections(t *testing.T) {
	r := newRunner(testutil.NewInvoker())
	ctx := context.Background()

	_, err := r.Run(ctx, Request{FlowCode: "missing", Inputs: map[string]any{"topic": "go"}})
	assert.ErrorIs(t, err, program.ErrFlowNotFound)

	_, err = r.Run(ctx, Request{})
	assert.ErrorIs(t, err, program.ErrMissingInput)

	_, err = r.Run(ctx, Request{FlowCode: "broken", Inputs: map[string]any{"topic": "go"}})
	assert.ErrorIs(t, err, core.ErrUnknownAgent)

	runs, err := r.List(ctx, session.Filter{})
	require.NoError(t, err)
	assert.Empty(t, runs, "rejected requests are not persisted")
}

func TestRun_Failure(t *testing.T) {
	boom := errors.New("boom")
	r := newRunner(testutil.NewInvoker().Fails("critic", boom))

	run, err := r.Run(context.Background(), Request{RunID: "r1", Inputs: map[string]any{"topic": "go"}})
	require.ErrorIs(t, err, boom)
	require.NotNil(t, run)

	assert.Equal(t, session.StatusFailed, run.Status)
	assert.Nil(t, run.Output)
	assert.Contains(t, run.Error, "boom")
	assert.Equal(t, "$.1", run.FailedAt.String())
}

func TestRun_Timeout(t *testing.T) {
	r := newRunner(testutil.NewInvoker().Blocks("slow"), func(o *Options) { o.Timeout = 20 * time.Millisecond })

	run, err := r.Run(context.Background(), Request{FlowCode: "slow", Inputs: map[string]any{"topic": "go"}})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, session.StatusFailed, run.Status)
}

func TestStart_Cancel(t *testing.T) {
	inv := testutil.NewInvoker().Blocks("slow")
	r := newRunner(inv, func(o *Options) { o.MaxConcurrentRuns = 1 })
	ctx := context.Background()

	id, done, err := r.Start(ctx, Request{RunID: "r1", FlowCode: "slow", Inputs: map[string]any{"topic": "go"}})
	require.NoError(t, err)
	assert.Equal(t, "r1", id)

	require.Eventually(t, func() bool { return inv.Count("slow") == 1 }, time.Second, 5*time.Millisecond)

	running, err := r.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusRunning, running.Status)

	_, _, err = r.Start(ctx, Request{FlowCode: "slow", Inputs: map[string]any{"topic": "go"}})
	assert.ErrorIs(t, err, ErrTooManyRuns)

	require.NoError(t, r.Cancel("r1"))

	select {
	case run := <-done:
		require.NotNil(t, run)
		assert.Equal(t, session.StatusCancelled, run.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("run was not cancelled")
	}

	_, ok := <-done
	assert.False(t, ok, "done channel is closed")
	assert.ErrorIs(t, r.Cancel("r1"), ErrRunNotFound)

	stored, err := r.Get(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, session.StatusCancelled, stored.Status)
}

func TestList_ByFlow(t *testing.T) {
	r := newRunner(testutil.NewInvoker().Returns("slow", "fast enough"))
	ctx := context.Background()
	inputs := map[string]any{"topic": "go"}

	_, err := r.Run(ctx, Request{RunID: "a", Inputs: inputs})
	require.NoError(t, err)
	_, err = r.Run(ctx, Request{RunID: "b", FlowCode: "slow", Inputs: inputs})
	require.NoError(t, err)

	runs, err := r.List(ctx, session.Filter{FlowCode: "slow"})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, "fast enough", runs[0].Output)
}
