package program

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CatchTheTornado/agent-doodle/definition"
	"github.com/CatchTheTornado/agent-doodle/step"
)

func sampleProgram() Program {
	return Program{
		Name: "newsroom",
		Agents: []AgentDefinition{
			{Name: "writer", Model: "gpt-4o", System: "You write articles."},
			{Name: "critic", Model: "claude-sonnet-4-5", System: "You review articles."},
		},
		Flows: []Flow{{
			Name: "Draft",
			Code: "draft",
			Flow: step.Sequence{Steps: []step.Step{
				step.Call{Agent: "writer", Input: "write about {{.topic}}"},
				step.Call{Agent: "critic", Input: "{{.input}}"},
			}},
		}},
		DefaultFlow: "draft",
		Inputs: []InputVariable{
			{Name: "topic", Required: true, Type: InputShortText},
		},
	}
}

func TestProgram_AddFlow(t *testing.T) {
	var p Program

	p, err := p.AddFlow(NewFlow("First", "first"))
	require.NoError(t, err)
	assert.Equal(t, "first", p.DefaultFlow, "single flow becomes default")

	p, err = p.AddFlow(Flow{Name: "Second", Code: "second"})
	require.NoError(t, err)
	assert.Equal(t, "first", p.DefaultFlow)

	f, ok := p.Flow("second")
	require.True(t, ok)
	assert.Equal(t, step.Sequence{}, f.Flow, "nil tree becomes an empty sequence")

	_, err = p.AddFlow(NewFlow("Again", "first"))
	assert.ErrorIs(t, err, ErrDuplicateCode)
	_, err = p.AddFlow(NewFlow("", "x"))
	assert.ErrorIs(t, err, ErrNameRequired)
	_, err = p.AddFlow(NewFlow("X", ""))
	assert.ErrorIs(t, err, ErrCodeRequired)
}

func TestProgram_EditsDoNotMutateReceiver(t *testing.T) {
	p := sampleProgram()

	q, err := p.AddFlow(NewFlow("Review", "review"))
	require.NoError(t, err)
	assert.Len(t, p.Flows, 1)
	assert.Len(t, q.Flows, 2)

	r, err := q.EditFlow("draft", func(s step.Step) (step.Step, error) {
		return step.Remove(s, step.Path{1})
	})
	require.NoError(t, err)

	orig, _ := q.Flow("draft")
	edited, _ := r.Flow("draft")
	assert.Len(t, orig.Flow.(step.Sequence).Steps, 2)
	assert.Len(t, edited.Flow.(step.Sequence).Steps, 1)
}

func TestProgram_UpdateFlow(t *testing.T) {
	p := sampleProgram()
	p, _ = p.AddFlow(NewFlow("Other", "other"))

	q, err := p.UpdateFlow("draft", "Draft v2", "draft2")
	require.NoError(t, err)
	assert.Equal(t, "draft2", q.DefaultFlow, "default follows the re-code")
	_, ok := q.Flow("draft")
	assert.False(t, ok)

	_, err = p.UpdateFlow("draft", "Draft", "other")
	assert.ErrorIs(t, err, ErrDuplicateCode)
	_, err = p.UpdateFlow("missing", "a", "b")
	assert.ErrorIs(t, err, ErrFlowNotFound)

	// keeping the same code is fine
	_, err = p.UpdateFlow("draft", "Renamed", "draft")
	assert.NoError(t, err)
}

func TestProgram_RemoveFlow(t *testing.T) {
	p := sampleProgram()
	p, _ = p.AddFlow(NewFlow("Other", "other"))

	q, err := p.RemoveFlow("draft")
	require.NoError(t, err)
	assert.Equal(t, "other", q.DefaultFlow)

	q, err = q.RemoveFlow("other")
	require.NoError(t, err)
	assert.Empty(t, q.DefaultFlow)
	_, ok := q.Default()
	assert.False(t, ok)

	_, err = q.RemoveFlow("other")
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestProgram_Default(t *testing.T) {
	p := sampleProgram()
	p, _ = p.AddFlow(NewFlow("Other", "other"))

	p, err := p.SetDefaultFlow("other")
	require.NoError(t, err)
	f, ok := p.Default()
	require.True(t, ok)
	assert.Equal(t, "other", f.Code)

	_, err = p.SetDefaultFlow("nope")
	assert.ErrorIs(t, err, ErrFlowNotFound)

	p.DefaultFlow = ""
	f, ok = p.Default()
	require.True(t, ok)
	assert.Equal(t, "draft", f.Code, "falls back to the first flow")
}

func TestProgram_ReplaceFlowStep(t *testing.T) {
	p := sampleProgram()
	q, err := p.ReplaceFlowStep("draft", step.Call{Agent: "writer"})
	require.NoError(t, err)

	f, _ := q.Flow("draft")
	assert.Equal(t, definition.Definition{Agent: "writer"}, f.Definition())

	_, err = p.ReplaceFlowStep("nope", step.Call{})
	assert.ErrorIs(t, err, ErrFlowNotFound)
}

func TestProgram_Lookups(t *testing.T) {
	p := sampleProgram()

	a, ok := p.Agent("critic")
	require.True(t, ok)
	assert.Equal(t, "claude-sonnet-4-5", a.Model)
	_, ok = p.Agent("ghost")
	assert.False(t, ok)

	assert.Equal(t, []string{"writer", "critic"}, p.AgentNames())
}

func TestProgram_Validate(t *testing.T) {
	assert.NoError(t, sampleProgram().Validate())

	p := sampleProgram()
	p.Agents = append(p.Agents,
		AgentDefinition{Name: "writer"},
		AgentDefinition{Name: definition.SequenceAgent},
	)
	p.DefaultFlow = "missing"
	p.Flows = append(p.Flows, Flow{
		Name: "Broken",
		Code: "broken",
		Flow: step.Sequence{Steps: []step.Step{
			step.Call{Agent: ""},
			step.Call{Agent: "ghost"},
			step.Parallel{},
			step.OneOf{},
			step.OneOf{Branches: []step.Branch{
				{When: "true", Flow: step.Call{Agent: "writer"}},
				{When: "  ", Flow: step.Call{Agent: "critic"}},
			}},
			step.ForEach{Item: "string"},
			step.Evaluator{Criteria: "good", MaxIterations: step.Iterations(0), SubFlow: step.Call{Agent: "writer"}},
		}},
	})
	p.Inputs = append(p.Inputs, InputVariable{Name: "topic", Type: "color"})

	err := p.Validate()
	require.Error(t, err)

	var messages []string
	var atPaths []string
	for _, e := range err.(interface{ Unwrap() []error }).Unwrap() {
		var ve *ValidationError
		require.True(t, errors.As(e, &ve))
		messages = append(messages, ve.Message)
		if ve.Flow != "" {
			assert.Equal(t, "broken", ve.Flow)
			atPaths = append(atPaths, ve.Path.String()+" "+ve.Message)
		}
	}

	assert.Contains(t, messages, `agent "writer": duplicate name`)
	assert.Contains(t, messages, `agent "sequenceAgent": name is reserved`)
	assert.Contains(t, messages, `default flow "missing" does not exist`)
	assert.Contains(t, messages, `input "topic": duplicate name`)
	assert.Contains(t, messages, `input "topic": unknown type "color"`)

	assert.ElementsMatch(t, []string{
		"$.0 agent is required",
		`$.1 unknown agent "ghost"`,
		"$.2 parallel has no steps",
		"$.3 oneOf has no branches",
		"$.4.1 condition is required",
		"$.5.0 step is empty",
		"$.6 max_iterations must be positive",
	}, atPaths)
}

func TestProgram_ValidateEmptyFlow(t *testing.T) {
	p := Program{Flows: []Flow{NewFlow("New", "new"), {Name: "Nil", Code: "nil"}}}

	err := p.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `flow "new" at $: sequence has no steps`)
	assert.Contains(t, err.Error(), `flow "nil" at $: flow is empty`)
}
