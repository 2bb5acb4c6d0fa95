package engine

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/definition"
	"github.com/CatchTheTornado/agent-doodle/internal/testutil"
	"github.com/CatchTheTornado/agent-doodle/logging"
	"github.com/CatchTheTornado/agent-doodle/step"
)

var errBoom = errors.New("boom")

func intPtr(n int) *int { return &n }

func newEngine(inv core.Invoker, judge core.Judge, conds core.ConditionEvaluator, optFns ...func(o *Options)) *Engine {
	return New(inv, append([]func(o *Options){func(o *Options) {
		o.Judge = judge
		o.Conditions = conds
	}}, optFns...)...)
}

func TestExecute_SequenceOrdering(t *testing.T) {
	inv := testutil.NewInvoker()
	eng := newEngine(inv, nil, nil)

	flow := step.Sequence{Steps: []step.Step{
		step.Call{Agent: "researcher", Input: "topic"},
		step.Call{Agent: "writer", Input: "{{.input}}"},
		step.Call{Agent: "editor", Input: "{{.input}}"},
	}}

	res, err := eng.ExecuteStep(context.Background(), flow, Request{RunID: "r1", FlowCode: "blog"})
	require.NoError(t, err)
	assert.Equal(t, "editor(writer(researcher(topic)))", res.Output)
	assert.Equal(t, []string{"researcher", "writer", "editor"}, inv.Agents())
	assert.Equal(t, "r1", res.RunID)
	assert.Equal(t, 3, res.Invocations)
	assert.True(t, res.Converged)

	for _, ev := range res.Trace {
		assert.Equal(t, "r1", ev.RunID)
		assert.NotEmpty(t, ev.ID)
	}
}

func TestExecute_InputAndVariables(t *testing.T) {
	inv := testutil.NewInvoker().Echo("echo")
	eng := newEngine(inv, nil, nil)

	res, err := eng.ExecuteStep(context.Background(), step.Call{Agent: "echo", Input: "{{.input}} for {{.audience}}"}, Request{
		Input:  "a story",
		Inputs: map[string]any{"audience": "kids"},
	})
	require.NoError(t, err)
	assert.Equal(t, "a story for kids", res.Output)
	assert.NotEmpty(t, res.RunID)
}

// stateOf returns the last recorded state of the node at p.
func stateOf(trace []core.TraceEvent, p step.Path) core.NodeState {
	state := core.StatePending
	for _, ev := range trace {
		if ev.Path.Equal(p) {
			state = ev.State
		}
	}
	return state
}

func TestExecute_ParallelFailFast(t *testing.T) {
	var inFlight sync.WaitGroup
	inFlight.Add(2)
	cancelled := make(chan error, 2)

	slow := func(rc *core.RunContext, _ string) (core.Output, error) {
		inFlight.Done()
		<-rc.Done()
		cancelled <- rc.Err()
		return "too late", nil
	}
	inv := testutil.NewInvoker().
		On("slow1", slow).
		On("slow2", slow).
		On("broken", func(*core.RunContext, string) (core.Output, error) {
			inFlight.Wait()
			return nil, errBoom
		})
	eng := newEngine(inv, nil, nil)

	flow := step.Sequence{Steps: []step.Step{
		step.Parallel{Steps: []step.Step{
			step.Call{Agent: "slow1"},
			step.Call{Agent: "broken"},
			step.Call{Agent: "slow2"},
		}},
		step.Call{Agent: "after"},
	}}

	res, err := eng.ExecuteStep(context.Background(), flow, Request{})
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Nil(t, res.Output)
	assert.ErrorIs(t, err, errBoom)
	assert.ErrorIs(t, err, core.ErrAgentInvocation)
	assert.ErrorIs(t, err, core.ErrComposite)
	assert.Equal(t, 0, inv.Count("after"))

	require.Len(t, cancelled, 2)
	for range 2 {
		assert.ErrorIs(t, <-cancelled, context.Canceled)
	}

	for _, p := range []step.Path{{0, 0}, {0, 2}} {
		for _, ev := range res.Trace {
			if ev.Path.Equal(p) {
				assert.NotEqual(t, core.StateSucceeded, ev.State, p.String())
			}
		}
		assert.Equal(t, core.StateFailed, stateOf(res.Trace, p), p.String())
	}

	failing := core.FailingNode(err)
	require.NotNil(t, failing)
	assert.Equal(t, "$.0.1", failing.Path.String())
	assert.Contains(t, err.Error(), "$.0.1")
}

func TestExecute_OneOfFirstTrue(t *testing.T) {
	inv := testutil.NewInvoker()
	conds := testutil.NewConditions(map[string]bool{"short": false, "long": true, "any": true})
	eng := newEngine(inv, nil, conds)

	flow := step.OneOf{Branches: []step.Branch{
		{When: "short", Flow: step.Call{Agent: "a"}},
		{When: "long", Flow: step.Call{Agent: "b"}},
		{When: "any", Flow: step.Call{Agent: "c"}},
	}}

	res, err := eng.ExecuteStep(context.Background(), flow, Request{})
	require.NoError(t, err)
	assert.Equal(t, "b()", res.Output)
	assert.Equal(t, []string{"b"}, inv.Agents())
}

func TestExecute_OptimizeExactlyN(t *testing.T) {
	inv := testutil.NewInvoker()
	judge := &testutil.Judge{}
	eng := newEngine(inv, judge, nil)

	flow := step.Sequence{Steps: []step.Step{
		step.Evaluator{Criteria: "perfect", MaxIterations: intPtr(3), SubFlow: step.Call{Agent: "writer"}},
	}}

	res, err := eng.ExecuteStep(context.Background(), flow, Request{})
	require.NoError(t, err)
	assert.Equal(t, 3, inv.Count("writer"))
	assert.Equal(t, 3, judge.JudgeCalls())
	assert.False(t, res.Converged)
	assert.Equal(t, []step.Path{{0}}, res.Unconverged)
	assert.Equal(t, "writer()", res.Output)
}

func TestExecute_OptimizeDefaultIterations(t *testing.T) {
	inv := testutil.NewInvoker()
	judge := &testutil.Judge{}
	eng := newEngine(inv, judge, nil)

	res, err := eng.ExecuteStep(context.Background(), step.Evaluator{Criteria: "x", SubFlow: step.Call{Agent: "w"}}, Request{})
	require.NoError(t, err)
	assert.Equal(t, 1, inv.Count("w"))
	assert.False(t, res.Converged)
}

func TestExecute_FailOnNonConvergence(t *testing.T) {
	inv := testutil.NewInvoker()
	eng := newEngine(inv, &testutil.Judge{}, nil, func(o *Options) {
		o.Config.FailOnNonConvergence = true
		o.Config.DefaultMaxIterations = 2
	})

	res, err := eng.ExecuteStep(context.Background(), step.Evaluator{Criteria: "x", SubFlow: step.Call{Agent: "w"}}, Request{})
	assert.ErrorIs(t, err, core.ErrNotConverged)
	assert.Equal(t, 2, inv.Count("w"))
	assert.False(t, res.Converged)
}

func TestExecute_FailedOptimizeCandidateIsNotUnconverged(t *testing.T) {
	inv := testutil.NewInvoker().Fails("broken", errBoom).Returns("ok", "OK")
	judge := &testutil.Judge{}
	eng := newEngine(inv, judge, nil)

	flow := step.BestOfAll{Criteria: "best", Steps: []step.Step{
		step.Evaluator{Criteria: "good", MaxIterations: intPtr(3), SubFlow: step.Call{Agent: "broken"}},
		step.Call{Agent: "ok"},
	}}

	res, err := eng.ExecuteStep(context.Background(), flow, Request{})
	require.NoError(t, err)
	assert.Equal(t, "OK", res.Output)
	assert.Equal(t, 0, judge.JudgeCalls())
	assert.Equal(t, 0, judge.SelectCalls())
	assert.True(t, res.Converged)
	assert.Empty(t, res.Unconverged)
	assert.Equal(t, core.StateFailed, stateOf(res.Trace, step.Path{0}))
}

func TestExecute_BestOfAllSingleSelect(t *testing.T) {
	inv := testutil.NewInvoker().Returns("a", "A").Returns("b", "B").Returns("c", "C")
	judge := &testutil.Judge{Index: 2}
	eng := newEngine(inv, judge, nil)

	flow := step.BestOfAll{Criteria: "funniest", Steps: []step.Step{
		step.Call{Agent: "a"}, step.Call{Agent: "b"}, step.Call{Agent: "c"},
	}}

	res, err := eng.ExecuteStep(context.Background(), flow, Request{})
	require.NoError(t, err)
	assert.Equal(t, "C", res.Output)
	assert.Equal(t, 1, judge.SelectCalls())
	assert.Equal(t, []string{"funniest"}, judge.Criteria())
}

func TestExecute_ForEach(t *testing.T) {
	inv := testutil.NewInvoker().
		Returns("splitter", `["a","b","c"]`).
		On("translator", func(rc *core.RunContext, input string) (core.Output, error) {
			return input + "!", nil
		})
	eng := newEngine(inv, nil, nil, func(o *Options) { o.Config.ForEachConcurrency = 2 })

	flow := step.Sequence{Steps: []step.Step{
		step.Call{Agent: "splitter"},
		step.ForEach{Item: "string", InputFlow: step.Call{Agent: "translator", Input: "{{.item}}"}},
	}}

	res, err := eng.ExecuteStep(context.Background(), flow, Request{})
	require.NoError(t, err)
	assert.Equal(t, []any{"a!", "b!", "c!"}, res.Output)
}

func TestExecute_UnknownAgent(t *testing.T) {
	inv := testutil.NewInvoker()
	inv.Strict = true
	eng := newEngine(inv, nil, nil)

	_, err := eng.ExecuteStep(context.Background(), step.Call{Agent: "ghost"}, Request{})
	assert.ErrorIs(t, err, core.ErrUnknownAgent)
	assert.ErrorIs(t, err, core.ErrAgentInvocation)
}

func TestExecute_Budget(t *testing.T) {
	inv := testutil.NewInvoker()
	eng := newEngine(inv, nil, nil, func(o *Options) { o.Config.MaxInvocations = 2 })

	flow := step.Sequence{Steps: []step.Step{step.Call{Agent: "a"}, step.Call{Agent: "b"}, step.Call{Agent: "c"}}}
	res, err := eng.ExecuteStep(context.Background(), flow, Request{})
	assert.ErrorIs(t, err, core.ErrBudgetExceeded)
	assert.Equal(t, []string{"a", "b"}, inv.Agents())
	assert.Equal(t, 3, res.Invocations)
}

func TestBuild_Structural(t *testing.T) {
	eng := newEngine(testutil.NewInvoker(), &testutil.Judge{}, testutil.NewConditions(nil))

	tests := []struct {
		name string
		def  definition.Definition
		path string
	}{
		{"empty", definition.Definition{}, "$"},
		{"nil step in sequence", definition.Compile(step.Sequence{Steps: []step.Step{step.Call{Agent: "a"}, nil}}), "$.1"},
		{"misaligned oneOf", definition.Definition{
			Agent:      definition.OneOfAgent,
			Children:   []definition.Definition{{Agent: "a"}},
			Conditions: []string{},
		}, "$"},
		{"forEach without sub-flow", definition.Definition{Agent: definition.ForEachAgent, Children: []definition.Definition{}}, "$"},
		{"optimize with two sub-flows", definition.Definition{
			Agent:    definition.OptimizeAgent,
			Children: []definition.Definition{{Agent: "a"}, {Agent: "b"}},
		}, "$"},
		{"leaf with children", definition.Definition{Agent: "a", Children: []definition.Definition{{Agent: "b"}}}, "$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Build(tt.def)
			require.Error(t, err)
			assert.ErrorIs(t, err, core.ErrStructural)

			var ne *core.NodeError
			require.ErrorAs(t, err, &ne)
			assert.Equal(t, tt.path, ne.Path.String())
		})
	}
}

func TestBuild_RequiresJudge(t *testing.T) {
	eng := newEngine(testutil.NewInvoker(), nil, nil)

	_, err := eng.ExecuteStep(context.Background(), step.Evaluator{Criteria: "x", SubFlow: step.Call{Agent: "a"}}, Request{})
	assert.ErrorIs(t, err, core.ErrStructural)

	_, err = eng.Build(definition.Compile(step.BestOfAll{Steps: []step.Step{step.Call{Agent: "a"}}}))
	assert.NoError(t, err)
}

func TestExecute_StructuralErrorReturnsResult(t *testing.T) {
	eng := newEngine(testutil.NewInvoker(), nil, nil)

	res, err := eng.Execute(context.Background(), definition.Definition{}, Request{RunID: "r9"})
	assert.ErrorIs(t, err, core.ErrStructural)
	require.NotNil(t, res)
	assert.Equal(t, "r9", res.RunID)
	assert.Empty(t, res.Trace)
}

func TestValidate(t *testing.T) {
	eng := newEngine(testutil.NewInvoker(), nil, nil)
	known := func(name string) bool { return name == "writer" }

	def := definition.Compile(step.Sequence{Steps: []step.Step{
		step.Call{Agent: "writer"},
		step.Call{Agent: "ghost"},
	}})
	err := eng.Validate(def, known)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrUnknownAgent)
	assert.Contains(t, err.Error(), "$.1")

	assert.NoError(t, eng.Validate(definition.Compile(step.Call{Agent: "writer"}), known))
	assert.NoError(t, eng.Validate(definition.Compile(step.Call{Agent: "ghost"}), nil))
}

func TestExecute_Callbacks(t *testing.T) {
	inv := testutil.NewInvoker()
	var (
		mu     sync.Mutex
		before []string
		failed []string
	)
	cm := NewCallbackManager(
		NewFunctionCallback(CallbackBeforeNode, func(_ context.Context, cc *CallbackContext) error {
			mu.Lock()
			defer mu.Unlock()
			before = append(before, cc.Agent+"@"+cc.Path.String())
			return nil
		}),
		NewAllowAgentsCallback("writer"),
		NewLoggingCallback(CallbackOnError, func(msg string) {
			mu.Lock()
			defer mu.Unlock()
			failed = append(failed, msg)
		}),
	)
	eng := newEngine(inv, nil, nil, func(o *Options) { o.Callbacks = cm })

	flow := step.Sequence{Steps: []step.Step{step.Call{Agent: "writer"}, step.Call{Agent: "hacker"}}}
	_, err := eng.ExecuteStep(context.Background(), flow, Request{})
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRejected)
	assert.Equal(t, []string{"writer"}, inv.Agents())
	assert.Equal(t, []string{"sequenceAgent@$", "writer@$.0", "hacker@$.1"}, before)
	require.Len(t, failed, 2)
	assert.Contains(t, failed[0], "[on_error] hacker at $.1")
	assert.Equal(t, 1, cm.Len(CallbackOnError))
}

func TestExecute_Observers(t *testing.T) {
	var (
		mu     sync.Mutex
		states []core.NodeState
	)
	eng := newEngine(testutil.NewInvoker(), nil, nil, func(o *Options) {
		o.Observers = append(o.Observers, func(ev core.TraceEvent) {
			mu.Lock()
			defer mu.Unlock()
			states = append(states, ev.State)
		})
	})

	_, err := eng.ExecuteStep(context.Background(), step.Call{Agent: "a"}, Request{})
	require.NoError(t, err)
	assert.Equal(t, []core.NodeState{core.StateRunning, core.StateSucceeded}, states)
}

func TestCancel(t *testing.T) {
	inv := testutil.NewInvoker().Blocks("slow")
	eng := newEngine(inv, nil, nil)

	done := make(chan error, 1)
	go func() {
		_, err := eng.ExecuteStep(context.Background(), step.Call{Agent: "slow"}, Request{RunID: "r1"})
		done <- err
	}()

	require.Eventually(t, func() bool { return eng.Active("r1") && len(inv.Calls()) == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, eng.Cancel("r1"))

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("run was not cancelled")
	}
	assert.False(t, eng.Active("r1"))
	assert.ErrorIs(t, eng.Cancel("r1"), ErrRunNotFound)
}

func TestExecute_StructuredLogging(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &buf})
	eng := newEngine(testutil.NewInvoker(), nil, nil, func(o *Options) { o.Logger = logger })

	_, err := eng.ExecuteStep(context.Background(), step.Call{Agent: "a"}, Request{RunID: "r7", FlowCode: "demo"})
	require.NoError(t, err)

	var found bool
	for _, line := range bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n")) {
		if gjson.GetBytes(line, "msg").String() == "run.execute.complete" {
			found = true
			assert.Equal(t, "r7", gjson.GetBytes(line, "run_id").String())
			assert.Equal(t, "demo", gjson.GetBytes(line, "flow").String())
		}
	}
	assert.True(t, found, buf.String())
}
