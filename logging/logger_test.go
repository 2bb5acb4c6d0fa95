package logging

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func newBufferLogger(level LogLevel) (*StructuredLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	cfg := DefaultLoggerConfig()
	cfg.Output = &buf
	cfg.Level = level
	return NewLogger(cfg), &buf
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, LogLevelDebug, lvl)

	lvl, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, LogLevelInfo, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)
	assert.Equal(t, "WARN", LogLevelWarn.String())
}

func TestStructuredLogger_KeyValueAttrs(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)

	l.WithComponent("engine").WithRun("run-1", "main").Info("engine.node.start", "agent", "writer", "path", "$.0")

	line := buf.String()
	assert.Equal(t, "engine.node.start", gjson.Get(line, "msg").String())
	assert.Equal(t, "engine", gjson.Get(line, "component").String())
	assert.Equal(t, "run-1", gjson.Get(line, "run_id").String())
	assert.Equal(t, "main", gjson.Get(line, "flow").String())
	assert.Equal(t, "writer", gjson.Get(line, "agent").String())
	assert.Equal(t, "$.0", gjson.Get(line, "path").String())
}

func TestStructuredLogger_LevelFilter(t *testing.T) {
	l, buf := newBufferLogger(LogLevelWarn)

	l.Debug("hidden")
	l.Info("hidden")
	assert.Empty(t, buf.String())

	l.Warn("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestStructuredLogger_WithContextDoesNotLeak(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)

	child := l.WithContext("k", "v")
	l.Info("parent")
	assert.False(t, gjson.Get(buf.String(), "k").Exists())

	buf.Reset()
	child.Info("child")
	assert.Equal(t, "v", gjson.Get(buf.String(), "k").String())
}

func TestStructuredLogger_DomainHelpers(t *testing.T) {
	l, buf := newBufferLogger(LogLevelInfo)

	l.LogAgentCall("writer", time.Millisecond, false, errors.New("boom"))
	line := buf.String()
	assert.Equal(t, "agent.invoke.failed", gjson.Get(line, "msg").String())
	assert.Equal(t, "ERROR", gjson.Get(line, "level").String())
	assert.Equal(t, "boom", gjson.Get(line, "error").String())

	buf.Reset()
	l.LogRunExecution("main", 4, time.Second, true, nil)
	assert.Equal(t, int64(4), gjson.Get(buf.String(), "nodes").Int())

	buf.Reset()
	l.LogModelCall("gpt-4o", 42, time.Second, true, nil)
	line = buf.String()
	assert.Equal(t, "model.call.complete", gjson.Get(line, "msg").String())
	assert.Equal(t, int64(42), gjson.Get(line, "token_count").Int())
}

func TestNewSlogLogger_TextFormat(t *testing.T) {
	l := NewSlogLogger(LogLevelDebug, "text", false)
	assert.Equal(t, LogLevelDebug, l.level)
}

func TestNoOpLogger(t *testing.T) {
	var l Logger = NoOpLogger{}
	assert.NotPanics(t, func() { l.Error("x", "k", 1) })
}
