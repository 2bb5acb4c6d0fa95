// Package doodle wires a program into a runnable system: one model-backed
// agent per program agent, a model judge for optimize and bestOfAll steps,
// condition evaluation for oneOf steps, the execution engine, a run store
// and the runner. Most applications interact with this package by:
//  1. Loading a program with program.Load
//  2. Creating a Doodle via New() (optionally overriding models and stores)
//  3. Running flows synchronously (Run) or in the background (Start)
//
// All defaults are safe for local development; production deployments
// typically supply a durable run store and a structured logger.
package doodle

import (
	"context"
	"fmt"
	"strings"
	"time"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/CatchTheTornado/agent-doodle/agent"
	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/engine"
	"github.com/CatchTheTornado/agent-doodle/evaluation"
	"github.com/CatchTheTornado/agent-doodle/logging"
	"github.com/CatchTheTornado/agent-doodle/model"
	"github.com/CatchTheTornado/agent-doodle/model/anthropic"
	"github.com/CatchTheTornado/agent-doodle/model/openai"
	"github.com/CatchTheTornado/agent-doodle/program"
	"github.com/CatchTheTornado/agent-doodle/runner"
	"github.com/CatchTheTornado/agent-doodle/session"
)

// DefaultJudgeModel backs the judge when Options.JudgeModel is empty.
const DefaultJudgeModel = "gpt-4o-mini"

// ModelResolver returns the model backing an agent definition.
type ModelResolver func(def program.AgentDefinition) (model.Model, error)

// DefaultModelResolver picks Anthropic for "claude*" model names and
// OpenAI for everything else. API keys come from the environment.
func DefaultModelResolver(def program.AgentDefinition) (model.Model, error) {
	name := strings.TrimSpace(def.Model)
	if strings.HasPrefix(strings.ToLower(name), "claude") {
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(name)
			if def.Temperature != nil {
				o.Temperature = *def.Temperature
			}
		}), nil
	}
	return openai.NewModel(func(o *openai.Options) {
		if name != "" {
			o.Model = name
		}
		if def.Temperature != nil {
			o.Temperature = *def.Temperature
		}
	}), nil
}

// Options configures the Doodle instance.
type Options struct {
	// EngineConfig tunes flow execution.
	EngineConfig engine.Config

	// Models resolves agent and judge models. Defaults to
	// DefaultModelResolver.
	Models ModelResolver

	// JudgeModel names the model used by the default judge.
	JudgeModel string

	// Judge overrides the model judge.
	Judge core.Judge

	// Conditions overrides oneOf condition evaluation.
	Conditions core.ConditionEvaluator

	// Callbacks run around every node.
	Callbacks *engine.CallbackManager

	// Store persists runs (defaults to an in-memory store).
	Store session.Store

	// Timeout bounds a single run.
	Timeout time.Duration

	// MaxConcurrentRuns limits active runs; 0 means unlimited.
	MaxConcurrentRuns int

	// Logger (defaults to NoOp logger if nil)
	Logger logging.Logger
}

// Doodle is the high-level facade aggregating registry, engine and runner.
type Doodle struct {
	program  program.Program
	registry *agent.Registry
	engine   *engine.Engine
	runner   *runner.Runner
}

// New validates p and builds the runtime around it.
func New(p program.Program, optFns ...func(o *Options)) (*Doodle, error) {
	opts := Options{
		EngineConfig: engine.DefaultConfig,
		Models:       DefaultModelResolver,
		JudgeModel:   DefaultJudgeModel,
		Logger:       logging.NoOpLogger{},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	if opts.Models == nil {
		opts.Models = DefaultModelResolver
	}

	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("invalid program: %w", err)
	}

	registry := agent.NewRegistry()
	for _, def := range p.Agents {
		llm, err := opts.Models(def)
		if err != nil {
			return nil, fmt.Errorf("agent %q: %w", def.Name, err)
		}
		if err := registry.Register(newModelAgent(def, llm)); err != nil {
			return nil, err
		}
		if len(def.Tools) > 0 {
			opts.Logger.Warn("doodle.agent.tools_ignored", "agent", def.Name, "tools", len(def.Tools))
		}
	}

	judge := opts.Judge
	if judge == nil {
		llm, err := opts.Models(program.AgentDefinition{Name: "judge", Model: opts.JudgeModel})
		if err != nil {
			return nil, fmt.Errorf("judge: %w", err)
		}
		judge = evaluation.NewModelJudge(llm)
	}

	conditions := opts.Conditions
	if conditions == nil {
		conditions = evaluation.NewConditions(judge)
	}

	eng := engine.New(registry, func(o *engine.Options) {
		o.Config = opts.EngineConfig
		o.Judge = judge
		o.Conditions = conditions
		o.Callbacks = opts.Callbacks
		o.Logger = opts.Logger
	})

	r := runner.New(p, eng, func(o *runner.Options) {
		o.Store = opts.Store
		o.Timeout = opts.Timeout
		o.MaxConcurrentRuns = opts.MaxConcurrentRuns
		o.Logger = opts.Logger
	})

	return &Doodle{program: p, registry: registry, engine: eng, runner: r}, nil
}

func newModelAgent(def program.AgentDefinition, llm model.Model) *agent.ModelAgent {
	a := agent.NewModelAgent(def.Name, llm, func(o *agent.ModelAgentOptions) {
		if def.System != "" {
			o.Instruction = agent.NewInstructionFromText(def.System)
		}
		o.Temperature = def.Temperature
	})
	a.SetDescription(def.System)
	return a
}

// Program returns the program being run.
func (d *Doodle) Program() program.Program { return d.program }

// Registry returns the agent registry.
func (d *Doodle) Registry() *agent.Registry { return d.registry }

// Engine returns the execution engine.
func (d *Doodle) Engine() *engine.Engine { return d.engine }

// Run executes a flow and waits for it.
func (d *Doodle) Run(ctx context.Context, req runner.Request) (*session.Run, error) {
	return d.runner.Run(ctx, req)
}

// Start launches a flow in the background.
func (d *Doodle) Start(ctx context.Context, req runner.Request) (string, <-chan *session.Run, error) {
	return d.runner.Start(ctx, req)
}

// Cancel stops an active run.
func (d *Doodle) Cancel(runID string) error { return d.runner.Cancel(runID) }

// Get returns a persisted run.
func (d *Doodle) Get(ctx context.Context, runID string) (*session.Run, error) {
	return d.runner.Get(ctx, runID)
}

// Runs lists persisted runs, newest first.
func (d *Doodle) Runs(ctx context.Context, filter session.Filter) ([]*session.Run, error) {
	return d.runner.List(ctx, filter)
}
