package agent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/internal/testutil"
)

func upper(name string) *Func {
	return NewFunc(name, func(_ *core.RunContext, input string) (core.Output, error) {
		return strings.ToUpper(input), nil
	})
}

func TestRegistry_Invoke(t *testing.T) {
	reg := NewRegistry(upper("shout"))

	out, err := reg.Invoke(testutil.RunContext(context.Background(), nil), "shout", "hey")
	require.NoError(t, err)
	assert.Equal(t, "HEY", out)
}

func TestRegistry_UnknownAgent(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Invoke(testutil.RunContext(context.Background(), nil), "ghost", "x")
	assert.ErrorIs(t, err, core.ErrUnknownAgent)
	assert.Contains(t, err.Error(), `"ghost"`)
}

func TestRegistry_Register(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(upper("b")))
	require.NoError(t, reg.Register(upper("a")))
	assert.Error(t, reg.Register(upper("")))
	assert.Error(t, reg.Register(upper("sequenceAgent")))

	assert.True(t, reg.Has("a"))
	assert.False(t, reg.Has("sequenceAgent"))
	assert.Equal(t, []string{"a", "b"}, reg.Names())

	a, ok := reg.Get("a")
	require.True(t, ok)
	assert.Equal(t, "a", a.Name())
}

func TestNewRegistry_PanicsOnReservedName(t *testing.T) {
	assert.Panics(t, func() { NewRegistry(upper("parallelAgent")) })
}
