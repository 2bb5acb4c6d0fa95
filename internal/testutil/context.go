package testutil

import (
	"context"

	"github.com/CatchTheTornado/agent-doodle/core"
)

// RunContext builds a root run context carrying input and a fresh trace.
func RunContext(ctx context.Context, input core.Output) *core.RunContext {
	if ctx == nil {
		ctx = context.Background()
	}
	return core.NewRunContext(ctx, "run-test", "test", input, nil, nil, core.NewTrace("run-test"), nil, nil)
}
