package evaluation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/CatchTheTornado/agent-doodle/core"
	"github.com/CatchTheTornado/agent-doodle/internal/util"
	"github.com/CatchTheTornado/agent-doodle/model"
)

var (
	// ErrInvalidReply is returned when a model reply does not hold the
	// requested JSON object.
	ErrInvalidReply = errors.New("invalid judge reply")

	// ErrNoJudge is returned by Conditions for non-literal conditions when
	// no judge is configured.
	ErrNoJudge = errors.New("no judge configured for condition")

	// ErrEmptyCondition is returned by Conditions for a blank branch
	// condition.
	ErrEmptyCondition = errors.New("empty condition")
)

const defaultInstruction = "You are a strict reviewer. Judge the candidate outputs of an AI workflow " +
	"against the given criteria. Reply with a single JSON object and nothing else."

type verdictReply struct {
	Passed bool   `json:"passed" description:"true when the candidate fully satisfies the criteria"`
	Reason string `json:"reason,omitempty" description:"what is missing or wrong, used as feedback"`
}

type selectionReply struct {
	Index  int    `json:"index" description:"zero-based index of the best candidate"`
	Reason string `json:"reason,omitempty" description:"why this candidate was chosen"`
}

// JudgeOptions configures a ModelJudge.
type JudgeOptions struct {
	// Instruction is the system prompt preceding the reply format.
	Instruction string
	// Temperature overrides the model default when set.
	Temperature *float64
}

// ModelJudge implements core.Judge with a language model. Every call
// counts against the run's invocation budget.
type ModelJudge struct {
	llm         model.Model
	instruction string
	temperature *float64
}

var _ core.Judge = (*ModelJudge)(nil)

// NewModelJudge creates a judge backed by llm.
func NewModelJudge(llm model.Model, optFns ...func(o *JudgeOptions)) *ModelJudge {
	opts := JudgeOptions{Instruction: defaultInstruction}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &ModelJudge{
		llm:         llm,
		instruction: opts.Instruction,
		temperature: opts.Temperature,
	}
}

// Judge implements core.Judge.
func (j *ModelJudge) Judge(rc *core.RunContext, criteria string, candidates []core.Output) (core.Verdict, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Criteria:\n%s\n", criteria)
	if rc.Feedback != "" {
		fmt.Fprintf(&sb, "\nFeedback given on the previous attempt:\n%s\n", rc.Feedback)
	}
	writeCandidates(&sb, candidates)
	sb.WriteString("\nDoes the candidate satisfy the criteria?")

	obj, err := j.ask(rc, verdictReply{}, sb.String())
	if err != nil {
		return core.Verdict{}, err
	}

	return core.Verdict{
		Passed: obj.Get("passed").Bool(),
		Reason: obj.Get("reason").String(),
	}, nil
}

// Select implements core.Judge.
func (j *ModelJudge) Select(rc *core.RunContext, criteria string, candidates []core.Output) (int, error) {
	if len(candidates) == 0 {
		return 0, core.ErrEmptyCandidateSet
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Criteria:\n%s\n", criteria)
	writeCandidates(&sb, candidates)
	fmt.Fprintf(&sb, "\nWhich candidate best satisfies the criteria? Answer with an index from 0 to %d.", len(candidates)-1)

	obj, err := j.ask(rc, selectionReply{}, sb.String())
	if err != nil {
		return 0, err
	}

	idx := int(obj.Get("index").Int())
	rc.LogDebug("judge.select", "index", idx, "reason", obj.Get("reason").String())
	return idx, nil
}

// ask sends prompt and returns the reply object validated against the
// schema of reply.
func (j *ModelJudge) ask(rc *core.RunContext, reply any, prompt string) (gjson.Result, error) {
	if err := rc.Limiter.Increment(); err != nil {
		return gjson.Result{}, err
	}

	schema := util.CreateSchema(reply)
	format, err := json.Marshal(schema)
	if err != nil {
		return gjson.Result{}, err
	}

	req := model.Request{
		System:      j.instruction + "\n\nReply format (JSON schema):\n" + string(format),
		Messages:    []model.Message{{Role: model.RoleUser, Text: prompt}},
		Temperature: j.temperature,
	}

	respCh, errCh := j.llm.Generate(rc.Context, req)
	resp, err := model.Collect(rc.Context, respCh, errCh)
	if err != nil {
		return gjson.Result{}, err
	}

	return parseReply(resp.Text, schema)
}

// parseReply extracts the first JSON object of text and validates it.
func parseReply(text string, schema map[string]any) (gjson.Result, error) {
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return gjson.Result{}, fmt.Errorf("%w: no JSON object in %q", ErrInvalidReply, truncate(text, 80))
	}

	raw := text[start : end+1]
	if !gjson.Valid(raw) {
		return gjson.Result{}, fmt.Errorf("%w: malformed JSON %q", ErrInvalidReply, truncate(raw, 80))
	}

	obj := gjson.Parse(raw)
	fields, _ := obj.Value().(map[string]any)
	if err := util.ValidateParameters(fields, schema); err != nil {
		return gjson.Result{}, fmt.Errorf("%w: %w", ErrInvalidReply, err)
	}

	return obj, nil
}

func writeCandidates(sb *strings.Builder, candidates []core.Output) {
	if len(candidates) == 1 {
		fmt.Fprintf(sb, "\nCandidate:\n%s\n", core.Text(candidates[0]))
		return
	}
	for i, c := range candidates {
		fmt.Fprintf(sb, "\nCandidate %d:\n%s\n", i, core.Text(c))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
