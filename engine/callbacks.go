package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/definition"
	"github.com/CatchTheTornado/agent-doodle/step"
)

// CallbackType defines the lifecycle points where callbacks can be executed.
//
// Callbacks hook into node execution without modifying the operators. They
// run synchronously on the goroutine executing the node, so concurrent
// branches may call them concurrently.
type CallbackType string

const (
	// CallbackBeforeNode is triggered before a node starts. An error fails
	// the node with core.ErrRejected.
	CallbackBeforeNode CallbackType = "before_node"

	// CallbackAfterNode is triggered after a node succeeded.
	CallbackAfterNode CallbackType = "after_node"

	// CallbackOnError is triggered when a node failed.
	CallbackOnError CallbackType = "on_error"
)

// CallbackContext provides the information a callback might need.
type CallbackContext struct {
	// RunContext is the context the node runs with.
	RunContext *core.RunContext

	// Agent is the operator or user agent name of the node.
	Agent string

	// Path locates the node within the flow.
	Path step.Path

	// Output is set for CallbackAfterNode.
	Output core.Output

	// Err is set for CallbackOnError.
	Err error

	// CallbackType indicates which callback type triggered this execution.
	CallbackType CallbackType

	// Metadata provides extensible storage for custom callback data.
	Metadata map[string]any
}

// Callback defines the interface for execution lifecycle hooks.
//
// Implementations should be fast and safe for concurrent use.
type Callback interface {
	// Type returns the callback type this implementation handles.
	Type() CallbackType

	// Execute performs the callback logic with the provided context.
	Execute(ctx context.Context, callbackCtx *CallbackContext) error
}

// FunctionCallback wraps a function as a callback implementation.
//
// Example:
//
//	audit := NewFunctionCallback(
//	    CallbackBeforeNode,
//	    func(ctx context.Context, cc *CallbackContext) error {
//	        log.Printf("node %s at %s", cc.Agent, cc.Path)
//	        return nil
//	    },
//	)
type FunctionCallback struct {
	callbackType CallbackType
	fn           func(ctx context.Context, callbackCtx *CallbackContext) error
}

// NewFunctionCallback creates a new function-based callback.
func NewFunctionCallback(
	callbackType CallbackType,
	fn func(ctx context.Context, callbackCtx *CallbackContext) error,
) *FunctionCallback {
	return &FunctionCallback{
		callbackType: callbackType,
		fn:           fn,
	}
}

// Type returns the callback type this function handles.
func (c *FunctionCallback) Type() CallbackType {
	return c.callbackType
}

// Execute calls the wrapped function with the provided context.
func (c *FunctionCallback) Execute(ctx context.Context, callbackCtx *CallbackContext) error {
	return c.fn(ctx, callbackCtx)
}

// CallbackManager orchestrates callback execution throughout a run and
// implements core.Hooks.
//
// Callbacks are executed in registration order; the first error stops the
// remaining callbacks of that type.
type CallbackManager struct {
	mu        sync.RWMutex
	callbacks map[CallbackType][]Callback
}

var _ core.Hooks = (*CallbackManager)(nil)

// NewCallbackManager creates a new callback manager instance.
func NewCallbackManager(callbacks ...Callback) *CallbackManager {
	cm := &CallbackManager{
		callbacks: make(map[CallbackType][]Callback),
	}
	for _, cb := range callbacks {
		cm.RegisterCallback(cb)
	}
	return cm
}

// RegisterCallback adds a callback to the manager for its type.
func (cm *CallbackManager) RegisterCallback(callback Callback) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	callbackType := callback.Type()
	cm.callbacks[callbackType] = append(cm.callbacks[callbackType], callback)
}

// Len returns the number of callbacks registered for callbackType.
func (cm *CallbackManager) Len(callbackType CallbackType) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.callbacks[callbackType])
}

// ExecuteCallbacks executes all registered callbacks registered for callbackType.
func (cm *CallbackManager) ExecuteCallbacks(
	ctx context.Context,
	callbackType CallbackType,
	callbackCtx *CallbackContext,
) error {
	cm.mu.RLock()
	callbacks := cm.callbacks[callbackType]
	cm.mu.RUnlock()

	callbackCtx.CallbackType = callbackType
	for _, callback := range callbacks {
		if err := callback.Execute(ctx, callbackCtx); err != nil {
			return err
		}
	}

	return nil
}

// BeforeNode implements core.Hooks.
func (cm *CallbackManager) BeforeNode(rc *core.RunContext, agent string) error {
	return cm.ExecuteCallbacks(rc.Context, CallbackBeforeNode, &CallbackContext{
		RunContext: rc,
		Agent:      agent,
		Path:       rc.Path,
	})
}

// AfterNode implements core.Hooks. Callback errors are logged.
func (cm *CallbackManager) AfterNode(rc *core.RunContext, agent string, out core.Output) {
	err := cm.ExecuteCallbacks(rc.Context, CallbackAfterNode, &CallbackContext{
		RunContext: rc,
		Agent:      agent,
		Path:       rc.Path,
		Output:     out,
	})
	if err != nil {
		rc.LogWarn("engine.callback.error", "type", CallbackAfterNode, "agent", agent, "error", err)
	}
}

// OnError implements core.Hooks. Callback errors are logged.
func (cm *CallbackManager) OnError(rc *core.RunContext, agent string, nodeErr error) {
	err := cm.ExecuteCallbacks(rc.Context, CallbackOnError, &CallbackContext{
		RunContext: rc,
		Agent:      agent,
		Path:       rc.Path,
		Err:        nodeErr,
	})
	if err != nil {
		rc.LogWarn("engine.callback.error", "type", CallbackOnError, "agent", agent, "error", err)
	}
}

// LoggingCallback forwards lifecycle events to a logging function.
//
// Example:
//
//	callback := NewLoggingCallback(CallbackOnError, func(msg string) {
//	    log.Printf("[ENGINE] %s", msg)
//	})
type LoggingCallback struct {
	callbackType CallbackType
	logger       func(message string)
}

// NewLoggingCallback creates a new logging callback.
func NewLoggingCallback(callbackType CallbackType, logger func(message string)) *LoggingCallback {
	return &LoggingCallback{
		callbackType: callbackType,
		logger:       logger,
	}
}

// Type returns the callback type this logger handles.
func (c *LoggingCallback) Type() CallbackType {
	return c.callbackType
}

// Execute logs the lifecycle event. Without a logger function it silently
// succeeds.
func (c *LoggingCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if c.logger == nil {
		return nil
	}

	message := fmt.Sprintf("[%s] %s at %s", c.callbackType, callbackCtx.Agent, callbackCtx.Path)
	if callbackCtx.Err != nil {
		message += fmt.Sprintf(": %v", callbackCtx.Err)
	}
	c.logger(message)
	return nil
}

// AllowAgentsCallback rejects leaves whose agent is not in an allow list.
// Operator nodes always pass.
type AllowAgentsCallback struct {
	allowed map[string]bool
}

// NewAllowAgentsCallback creates a CallbackBeforeNode guard for agents.
func NewAllowAgentsCallback(agents ...string) *AllowAgentsCallback {
	allowed := make(map[string]bool, len(agents))
	for _, a := range agents {
		allowed[a] = true
	}
	return &AllowAgentsCallback{allowed: allowed}
}

// Type returns CallbackBeforeNode.
func (c *AllowAgentsCallback) Type() CallbackType { return CallbackBeforeNode }

// Execute rejects disallowed agents.
func (c *AllowAgentsCallback) Execute(_ context.Context, callbackCtx *CallbackContext) error {
	if definition.IsOperator(callbackCtx.Agent) || c.allowed[callbackCtx.Agent] {
		return nil
	}
	return fmt.Errorf("agent %q is not allowed", callbackCtx.Agent)
}
