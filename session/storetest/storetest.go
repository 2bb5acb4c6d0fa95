// Package storetest provides a conformance test shared by session.Store
// implementations.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/session"
	"github.com/CatchTheTornado/agent-doodle/step"
)

// Run exercises store against the session.Store contract. newStore must
// return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) session.Store) {
	t.Run("SaveGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run := sampleRun("r1", "draft", session.StatusSucceeded, time.Unix(100, 0).UTC())
		require.NoError(t, s.Save(ctx, run))

		got, err := s.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, "draft", got.FlowCode)
		assert.Equal(t, session.StatusSucceeded, got.Status)
		assert.Equal(t, "final text", got.Output)
		assert.Equal(t, "go", got.Inputs["topic"])
		assert.Equal(t, 3, got.Invocations)
		assert.False(t, got.Converged)
		require.Len(t, got.Unconverged, 1)
		assert.Equal(t, "$.1", got.Unconverged[0].String())
		require.Len(t, got.Trace, 2)
		assert.Equal(t, core.StateSucceeded, got.Trace[1].State)
		assert.Equal(t, "$.0", got.Trace[0].Path.String())
		assert.True(t, run.StartedAt.Equal(got.StartedAt))
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		run := sampleRun("r1", "draft", session.StatusRunning, time.Unix(100, 0).UTC())
		require.NoError(t, s.Save(ctx, run))

		run.Status = session.StatusFailed
		run.Error = "boom"
		require.NoError(t, s.Save(ctx, run))

		got, err := s.Get(ctx, "r1")
		require.NoError(t, err)
		assert.Equal(t, session.StatusFailed, got.Status)
		assert.Equal(t, "boom", got.Error)

		all, err := s.List(ctx, session.Filter{})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("GetMissing", func(t *testing.T) {
		_, err := newStore(t).Get(context.Background(), "nope")
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run("List", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		require.NoError(t, s.Save(ctx, sampleRun("a", "draft", session.StatusSucceeded, time.Unix(100, 0).UTC())))
		require.NoError(t, s.Save(ctx, sampleRun("b", "review", session.StatusFailed, time.Unix(200, 0).UTC())))
		require.NoError(t, s.Save(ctx, sampleRun("c", "draft", session.StatusFailed, time.Unix(300, 0).UTC())))

		all, err := s.List(ctx, session.Filter{})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "b", "a"}, ids(all))

		drafts, err := s.List(ctx, session.Filter{FlowCode: "draft"})
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "a"}, ids(drafts))

		failed, err := s.List(ctx, session.Filter{Status: session.StatusFailed, Limit: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"c"}, ids(failed))

		none, err := s.List(ctx, session.Filter{FlowCode: "missing"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})
}

func sampleRun(id, flow string, status session.Status, started time.Time) *session.Run {
	return &session.Run{
		ID:          id,
		FlowCode:    flow,
		Status:      status,
		Input:       "hello",
		Inputs:      map[string]any{"topic": "go"},
		Output:      "final text",
		Converged:   false,
		Unconverged: []step.Path{{1}},
		Trace: []core.TraceEvent{
			{ID: "e1", RunID: id, Path: step.Path{0}, Agent: "writer", State: core.StateRunning, Timestamp: started},
			{ID: "e2", RunID: id, Path: step.Path{0}, Agent: "writer", State: core.StateSucceeded, Output: "final text", Timestamp: started},
		},
		Invocations: 3,
		StartedAt:   started,
		FinishedAt:  started.Add(time.Second),
	}
}

func ids(runs []*session.Run) []string {
	out := make([]string, len(runs))
	for i, r := range runs {
		out[i] = r.ID
	}
	return out
}
