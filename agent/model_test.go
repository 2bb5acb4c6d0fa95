package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/internal/testutil"
	"github.com/CatchTheTornado/agent-doodle/model"
)

func TestModelAgent_Invoke(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.AddResponse("hello", "hi there")

	a := NewModelAgent("greeter", llm)
	out, err := a.Invoke(testutil.RunContext(context.Background(), nil), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hi there", out)

	reqs := llm.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "You are greeter, a helpful AI assistant.", reqs[0].System)
	assert.Equal(t, []model.Message{{Role: model.RoleUser, Text: "hello"}}, reqs[0].Messages)
}

func TestModelAgent_TemplatedInstructionAndHistory(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	temp := 0.2

	a := NewModelAgent("writer", llm, func(o *ModelAgentOptions) {
		o.Instruction = NewInstructionFromText("Write for {{.audience}}.")
		o.Temperature = &temp
		o.MaxHistoryMessages = 1
	})

	rc := core.NewRunContext(context.Background(), "r1", "f", "first", map[string]any{"audience": "kids"}, nil, nil, nil, nil)
	rc = rc.WithPrevious("second")

	_, err := a.Invoke(rc, "go")
	require.NoError(t, err)

	req := llm.Requests()[0]
	assert.Equal(t, "Write for kids.", req.System)
	assert.Same(t, &temp, req.Temperature)
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Text, "second")
	assert.NotContains(t, req.Messages[0].Text, "first")
	assert.Contains(t, req.Messages[0].Text, "Task:\ngo")
}

func TestModelAgent_Streaming(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.AddResponse("stream", "abc")

	a := NewModelAgent("s", llm, func(o *ModelAgentOptions) { o.EnableStreaming = true })
	assert.True(t, a.IsStreamingEnabled())

	out, err := a.Invoke(testutil.RunContext(context.Background(), nil), "stream")
	require.NoError(t, err)
	assert.Equal(t, "abc", out)
}

func TestModelAgent_Error(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	llm.AddError("x", errBoom)

	_, err := NewModelAgent("a", llm).Invoke(testutil.RunContext(context.Background(), nil), "x")
	assert.ErrorIs(t, err, errBoom)
}

func TestModelAgent_AsLeaf(t *testing.T) {
	llm := model.NewMockModel("mock", "test")
	reg := NewRegistry(NewModelAgent("writer", llm))

	out, err := NewInvokeAgent("writer", "topic", reg).Run(testutil.RunContext(context.Background(), nil))
	require.NoError(t, err)
	assert.Equal(t, "Mock response to: topic", out)
}
