package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/internal/util"
	"github.com/CatchTheTornado/agent-doodle/logging"
	"github.com/CatchTheTornado/agent-doodle/model"
)

// ModelAgentOptions configures a ModelAgent instance.
//
// Use functional options with NewModelAgent to override defaults.
type ModelAgentOptions struct {
	Instruction        Instruction
	Temperature        *float64
	EnableStreaming    bool
	MaxHistoryMessages int
}

// ModelAgent is a user agent backed by a language model.
//
// Each invocation sends the resolved system instruction, the outputs of
// the preceding steps (bounded by MaxHistoryMessages) and the rendered
// step input, and returns the model's final text.
type ModelAgent struct {
	BaseAgent
	llm                model.Model
	instruction        Instruction
	temperature        *float64
	enableStreaming    bool
	maxHistoryMessages int
}

// NewModelAgent creates a new model-based agent with sensible defaults.
func NewModelAgent(name string, llm model.Model, optFns ...func(o *ModelAgentOptions)) *ModelAgent {
	opts := ModelAgentOptions{
		Instruction:        NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		EnableStreaming:    false,
		MaxHistoryMessages: 20,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelAgent{
		BaseAgent:          NewBaseAgent(name),
		llm:                llm,
		instruction:        opts.Instruction,
		temperature:        opts.Temperature,
		enableStreaming:    opts.EnableStreaming,
		maxHistoryMessages: opts.MaxHistoryMessages,
	}
}

// Model returns the language model instance.
func (a *ModelAgent) Model() model.Model { return a.llm }

// IsStreamingEnabled returns whether streaming responses are enabled.
func (a *ModelAgent) IsStreamingEnabled() bool { return a.enableStreaming }

// MaxHistoryMessages returns the maximum number of prior outputs included
// in the prompt.
func (a *ModelAgent) MaxHistoryMessages() int { return a.maxHistoryMessages }

// ResolveInstructions produces the final system prompt by resolving the
// instruction source and expanding templates against the run context.
func (a *ModelAgent) ResolveInstructions(rc *core.RunContext) (string, error) {
	text, err := a.instruction.Resolve(rc)
	if err != nil {
		return "", err
	}
	return util.RenderTemplate(text, rc.TemplateData())
}

// Invoke implements core.Agent.
func (a *ModelAgent) Invoke(rc *core.RunContext, input string) (core.Output, error) {
	system, err := a.ResolveInstructions(rc)
	if err != nil {
		return nil, fmt.Errorf("resolve instructions: %w", err)
	}

	req := model.Request{
		System:      system,
		Messages:    a.buildMessages(rc, input),
		Temperature: a.temperature,
		Stream:      a.enableStreaming,
	}

	info := a.llm.Info()
	start := time.Now()
	rc.LogDebug("agent.model.request", "agent", a.Name(), "model", info.Name, "provider", info.Provider, "messages", len(req.Messages))

	respCh, errCh := a.llm.Generate(rc.Context, req)
	resp, err := model.Collect(rc.Context, respCh, errCh)
	if err != nil {
		if sl, ok := rc.Logger().(*logging.StructuredLogger); ok {
			sl.LogModelCall(info.Name, 0, time.Since(start), false, err)
		} else {
			rc.LogError("agent.model.error", "agent", a.Name(), "model", info.Name, "error", err)
		}
		return nil, err
	}

	tokens := 0
	if resp.Usage != nil {
		tokens = resp.Usage.TotalTokens
	}
	if sl, ok := rc.Logger().(*logging.StructuredLogger); ok {
		sl.LogModelCall(info.Name, tokens, time.Since(start), true, nil)
	} else {
		rc.LogDebug("agent.model.response", "agent", a.Name(), "model", info.Name,
			"duration", time.Since(start), "total_tokens", tokens)
	}

	return resp.Text, nil
}

// buildMessages builds the single user turn: prior step outputs as context
// followed by the current input.
func (a *ModelAgent) buildMessages(rc *core.RunContext, input string) []model.Message {
	history := rc.History
	if a.maxHistoryMessages > 0 && len(history) > a.maxHistoryMessages {
		history = history[len(history)-a.maxHistoryMessages:]
	}
	if len(history) == 0 {
		return []model.Message{{Role: model.RoleUser, Text: input}}
	}

	var sb strings.Builder
	sb.WriteString("Context from previous steps:\n")
	for i, h := range history {
		fmt.Fprintf(&sb, "\n[%d] %s\n", i+1, core.Text(h))
	}
	sb.WriteString("\nTask:\n")
	sb.WriteString(input)

	return []model.Message{{Role: model.RoleUser, Text: sb.String()}}
}
