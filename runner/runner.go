package runner

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/definition"
	"github.com/CatchTheTornado/agent-doodle/engine"
	"github.com/CatchTheTornado/agent-doodle/logging"
	"github.com/CatchTheTornado/agent-doodle/program"
	"github.com/CatchTheTornado/agent-doodle/session"
)

var (
	// ErrTooManyRuns is returned when MaxConcurrentRuns runs are active.
	ErrTooManyRuns = errors.New("too many concurrent runs")
	// ErrRunNotFound is returned by Cancel for unknown or finished runs.
	ErrRunNotFound = errors.New("run not found")
)

// DefaultTimeout bounds a run when Options.Timeout is unset.
const DefaultTimeout = 10 * time.Minute

// Options holds dependency and configuration overrides passed to New().
type Options struct {
	// Store persists run records. Defaults to a session.InMemoryStore.
	Store session.Store
	// Timeout bounds each run. Defaults to DefaultTimeout.
	Timeout time.Duration
	// MaxConcurrentRuns limits active runs; 0 means unlimited.
	MaxConcurrentRuns int
	// Logger defaults to a NoOp logger.
	Logger logging.Logger
}

// Request selects a flow and supplies its input.
type Request struct {
	// RunID is generated when empty.
	RunID string
	// FlowCode selects the flow; empty selects the default flow.
	FlowCode string
	// Input is the text handed to the first step.
	Input string
	// Inputs are values for the program's input variables.
	Inputs map[string]any
}

// Runner coordinates flow execution and run persistence. Public methods
// are safe for concurrent use.
type Runner struct {
	program program.Program
	engine  *engine.Engine

	store             session.Store
	timeout           time.Duration
	maxConcurrentRuns int
	logger            logging.Logger

	activeRuns map[string]context.CancelFunc
	mu         sync.Mutex
}

// New constructs a Runner executing flows of p on eng.
func New(p program.Program, eng *engine.Engine, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Timeout: DefaultTimeout,
		Logger:  logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Store == nil {
		opts.Store = session.NewInMemoryStore()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if sl, ok := opts.Logger.(*logging.StructuredLogger); ok {
		opts.Logger = sl.WithComponent("runner")
	}

	return &Runner{
		program:           p,
		engine:            eng,
		store:             opts.Store,
		timeout:           opts.Timeout,
		maxConcurrentRuns: opts.MaxConcurrentRuns,
		logger:            opts.Logger,
		activeRuns:        make(map[string]context.CancelFunc),
	}
}

// Program returns the program the runner executes.
func (r *Runner) Program() program.Program { return r.program }

// Store returns the run store.
func (r *Runner) Store() session.Store { return r.store }

// Run executes a flow and waits for it. The persisted run record is
// returned together with the run error; it is nil only when the run could
// not be started.
func (r *Runner) Run(ctx context.Context, req Request) (*session.Run, error) {
	run, job, err := r.prepare(ctx, req)
	if err != nil {
		return nil, err
	}
	return r.execute(run, job)
}

// Start launches a flow in the background and returns its run ID. The
// returned channel yields the final run record once and is then closed.
func (r *Runner) Start(ctx context.Context, req Request) (string, <-chan *session.Run, error) {
	run, job, err := r.prepare(ctx, req)
	if err != nil {
		return "", nil, err
	}

	done := make(chan *session.Run, 1)
	go func() {
		defer close(done)
		final, _ := r.execute(run, job)
		done <- final
	}()

	return run.ID, done, nil
}

// Cancel stops an active run. The run is persisted as cancelled.
func (r *Runner) Cancel(runID string) error {
	r.mu.Lock()
	cancel, exists := r.activeRuns[runID]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	cancel()
	return nil
}

// Get returns a persisted run.
func (r *Runner) Get(ctx context.Context, runID string) (*session.Run, error) {
	return r.store.Get(ctx, runID)
}

// List returns persisted runs, newest first.
func (r *Runner) List(ctx context.Context, filter session.Filter) ([]*session.Run, error) {
	return r.store.List(ctx, filter)
}

type job struct {
	ctx    context.Context
	cancel context.CancelFunc
	def    definition.Definition
}

// prepare validates req, registers the run and saves its initial record.
func (r *Runner) prepare(ctx context.Context, req Request) (*session.Run, job, error) {
	flow, ok := r.flow(req.FlowCode)
	if !ok {
		return nil, job{}, fmt.Errorf("%w: %q", program.ErrFlowNotFound, req.FlowCode)
	}

	inputs, err := r.program.ResolveInputs(req.Inputs)
	if err != nil {
		return nil, job{}, err
	}

	def := flow.Definition()
	if err := r.engine.Validate(def, r.known); err != nil {
		return nil, job{}, err
	}

	runID := req.RunID
	if runID == "" {
		runID = core.NewID()
	}

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)

	r.mu.Lock()
	if _, dup := r.activeRuns[runID]; dup {
		r.mu.Unlock()
		cancel()
		return nil, job{}, fmt.Errorf("run %s is already active", runID)
	}
	if r.maxConcurrentRuns > 0 && len(r.activeRuns) >= r.maxConcurrentRuns {
		r.mu.Unlock()
		cancel()
		return nil, job{}, fmt.Errorf("%w: limit %d", ErrTooManyRuns, r.maxConcurrentRuns)
	}
	r.activeRuns[runID] = cancel
	r.mu.Unlock()

	run := &session.Run{
		ID:        runID,
		FlowCode:  flow.Code,
		Status:    session.StatusRunning,
		Input:     req.Input,
		Inputs:    inputs,
		Converged: true,
		StartedAt: time.Now().UTC(),
	}
	if err := r.store.Save(ctx, run); err != nil {
		r.release(runID)
		cancel()
		return nil, job{}, fmt.Errorf("save run %s: %w", runID, err)
	}

	r.logger.Info("runner.run.start", "run_id", runID, "flow", flow.Code)
	return run, job{ctx: runCtx, cancel: cancel, def: def}, nil
}

func (r *Runner) execute(run *session.Run, j job) (*session.Run, error) {
	defer r.release(run.ID)
	defer j.cancel()

	var input core.Output
	if run.Input != "" {
		input = run.Input
	}

	res, err := r.engine.Execute(j.ctx, j.def, engine.Request{
		RunID:    run.ID,
		FlowCode: run.FlowCode,
		Input:    input,
		Inputs:   run.Inputs,
	})

	run.FinishedAt = time.Now().UTC()
	run.Trace = res.Trace
	run.Invocations = res.Invocations
	run.Converged = res.Converged
	run.Unconverged = res.Unconverged

	switch {
	case err == nil:
		run.Status = session.StatusSucceeded
		run.Output = res.Output
	case errors.Is(err, context.Canceled):
		run.Status = session.StatusCancelled
		run.Error = err.Error()
	default:
		run.Status = session.StatusFailed
		run.Error = err.Error()
	}
	if n := core.FailingNode(err); n != nil {
		run.FailedAt = n.Path
	}

	// The run context may be done already; persisting must not depend on it.
	if saveErr := r.store.Save(context.WithoutCancel(j.ctx), run); saveErr != nil {
		r.logger.Error("runner.run.save_failed", "run_id", run.ID, "error", saveErr)
		if err == nil {
			err = fmt.Errorf("save run %s: %w", run.ID, saveErr)
		}
	}

	r.logger.Info("runner.run.complete", "run_id", run.ID, "flow", run.FlowCode, "status", run.Status)
	return run.Clone(), err
}

func (r *Runner) release(runID string) {
	r.mu.Lock()
	delete(r.activeRuns, runID)
	r.mu.Unlock()
}

func (r *Runner) flow(code string) (program.Flow, bool) {
	if code == "" {
		return r.program.Default()
	}
	return r.program.Flow(code)
}

func (r *Runner) known(name string) bool {
	_, ok := r.program.Agent(name)
	return ok
}
