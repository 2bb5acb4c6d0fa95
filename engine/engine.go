package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/CatchTheTornado/agent-doodle/agent"
	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/definition"
	"github.com/CatchTheTornado/agent-doodle/logging"
	"github.com/CatchTheTornado/agent-doodle/step"
)

// ErrRunNotFound is returned by Cancel for unknown or finished runs.
var ErrRunNotFound = errors.New("run not found")

// Config defines tuning parameters for flow execution.
type Config struct {
	// DefaultMaxIterations bounds optimize nodes whose definition carries
	// no positive max_iterations.
	DefaultMaxIterations int

	// FailOnNonConvergence makes an optimize node fail with
	// core.ErrNotConverged instead of returning its last output.
	FailOnNonConvergence bool

	// ForEachConcurrency bounds parallel element processing of forEach
	// nodes.
	ForEachConcurrency int

	// MaxInvocations caps agent and judge invocations per run. Set to 0
	// for unlimited.
	MaxInvocations int
}

// DefaultConfig provides the default execution configuration.
var DefaultConfig = Config{
	DefaultMaxIterations: 1,
	FailOnNonConvergence: false,
	ForEachConcurrency:   agent.DefaultForEachConcurrency,
	MaxInvocations:       100,
}

// Options configures an Engine instance using the functional options pattern.
type Options struct {
	// Config contains operational parameters. Defaults to DefaultConfig.
	Config Config

	// Judge decides optimize and bestOfAll nodes. Definitions using those
	// operators fail to build without one.
	Judge core.Judge

	// Conditions decides oneOf branch conditions.
	Conditions core.ConditionEvaluator

	// Callbacks are run around every node. May be nil.
	Callbacks *CallbackManager

	// Observers receive every trace event as it is recorded.
	Observers []func(core.TraceEvent)

	// Logger provides structured logging. Defaults to a NoOp logger.
	Logger logging.Logger
}

// Request describes one execution of a definition.
type Request struct {
	// RunID identifies the run. Generated when empty.
	RunID string
	// FlowCode names the executed flow for logs and traces.
	FlowCode string
	// Input is the initial Previous value.
	Input core.Output
	// Inputs are the resolved program input variables.
	Inputs map[string]any
}

// Result is the outcome of a run. It is returned even when the run failed
// so callers can show partial traces.
type Result struct {
	RunID    string
	FlowCode string
	// Output is the root node's output; nil when the run failed.
	Output core.Output
	// Converged is false when an optimize node exhausted its iterations.
	Converged bool
	// Unconverged lists the optimize nodes that did not converge.
	Unconverged []step.Path
	// Trace holds every node state transition in recording order.
	Trace []core.TraceEvent
	// Invocations counts agent and judge invocations.
	Invocations int
	Duration    time.Duration
}

// Engine compiles definitions into node trees and executes them.
//
// An Engine is safe for concurrent use; every Execute call owns its own run
// context, trace and invocation budget.
type Engine struct {
	invoker    core.Invoker
	judge      core.Judge
	conditions core.ConditionEvaluator
	callbacks  *CallbackManager
	observers  []func(core.TraceEvent)
	logger     logging.Logger
	config     Config

	activeRuns map[string]context.CancelFunc
	runsMu     sync.Mutex
}

// New creates an Engine that resolves leaf agents through invoker.
func New(invoker core.Invoker, optFns ...func(o *Options)) *Engine {
	opts := Options{
		Config: DefaultConfig,
		Logger: logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Config.DefaultMaxIterations < 1 {
		opts.Config.DefaultMaxIterations = 1
	}
	if opts.Config.ForEachConcurrency < 1 {
		opts.Config.ForEachConcurrency = agent.DefaultForEachConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}

	return &Engine{
		invoker:    invoker,
		judge:      opts.Judge,
		conditions: opts.Conditions,
		callbacks:  opts.Callbacks,
		observers:  opts.Observers,
		logger:     opts.Logger,
		config:     opts.Config,
		activeRuns: make(map[string]context.CancelFunc),
	}
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.config }

// Execute builds def and runs it to completion. The returned Result is
// never nil.
func (e *Engine) Execute(ctx context.Context, def definition.Definition, req Request) (*Result, error) {
	runID := req.RunID
	if runID == "" {
		runID = core.NewID()
	}
	res := &Result{RunID: runID, FlowCode: req.FlowCode, Converged: true}

	node, err := e.Build(def)
	if err != nil {
		e.logger.Warn("run.build.failed", "run_id", runID, "flow", req.FlowCode, "error", err)
		return res, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.runsMu.Lock()
	e.activeRuns[runID] = cancel
	e.runsMu.Unlock()
	defer func() {
		e.runsMu.Lock()
		delete(e.activeRuns, runID)
		e.runsMu.Unlock()
	}()

	logger := e.logger
	if sl, ok := logger.(*logging.StructuredLogger); ok {
		logger = sl.WithRun(runID, req.FlowCode)
	}

	limiter := core.NewLimiter(e.config.MaxInvocations)
	trace := core.NewTrace(runID, e.observers...)

	var hooks core.Hooks
	if e.callbacks != nil {
		hooks = e.callbacks
	}

	rc := core.NewRunContext(ctx, runID, req.FlowCode, req.Input, req.Inputs, limiter, trace, hooks, logger)

	start := time.Now()
	logger.Info("run.execute.start", "run_id", runID, "flow", req.FlowCode)

	out, err := node.Run(rc)

	res.Duration = time.Since(start)
	res.Trace = trace.Events()
	res.Unconverged = trace.Unconverged()
	res.Converged = len(res.Unconverged) == 0
	res.Invocations = limiter.Count()

	if sl, ok := logger.(*logging.StructuredLogger); ok {
		sl.LogRunExecution(req.FlowCode, countNodes(def), res.Duration, err == nil, err)
	} else if err != nil {
		logger.Error("run.execute.failed", "run_id", runID, "flow", req.FlowCode, "error", err)
	} else {
		logger.Info("run.execute.complete", "run_id", runID, "flow", req.FlowCode, "duration", res.Duration)
	}

	if err != nil {
		return res, err
	}

	res.Output = out
	return res, nil
}

// ExecuteStep compiles a step tree and executes it.
func (e *Engine) ExecuteStep(ctx context.Context, s step.Step, req Request) (*Result, error) {
	return e.Execute(ctx, definition.Compile(s), req)
}

// Cancel stops an active run.
func (e *Engine) Cancel(runID string) error {
	e.runsMu.Lock()
	cancel, exists := e.activeRuns[runID]
	e.runsMu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	cancel()
	return nil
}

// Active reports whether runID is currently executing.
func (e *Engine) Active(runID string) bool {
	e.runsMu.Lock()
	defer e.runsMu.Unlock()
	_, ok := e.activeRuns[runID]
	return ok
}
