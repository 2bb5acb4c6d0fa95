package definition

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CatchTheTornado/agent-doodle/step"
)

func TestMarshal_WireShape(t *testing.T) {
	data, err := Marshal(Compile(tree()))
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"agent": "sequenceAgent",
		"input": [
			{"agent": "researcher", "input": "research {{.topic}}"},
			{"agent": "parallelAgent", "input": [
				{"agent": "writer", "input": "draft"},
				{"agent": "critic", "input": "critique"}
			]},
			{"agent": "oneOfAgent",
			 "input": [
				{"agent": "proofreader", "input": ""},
				{"agent": "sequenceAgent", "input": [{"agent": "translator", "input": ""}]}
			 ],
			 "conditions": ["the text is in English", "otherwise"]},
			{"agent": "forEachAgent", "item": "string", "input": {"agent": "summarizer", "input": "{{.item}}"}},
			{"agent": "optimizeAgent", "criteria": "under 100 words", "max_iterations": 3, "input": {"agent": "editor", "input": ""}},
			{"agent": "bestOfAllAgent", "criteria": "most engaging", "input": [
				{"agent": "a", "input": ""},
				{"agent": "b", "input": ""}
			]}
		]
	}`, string(data))
}

func TestMarshal_OmitsAbsentMaxIterations(t *testing.T) {
	data, err := Marshal(Compile(step.Evaluator{Criteria: "ok", SubFlow: step.Call{Agent: "x"}}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"agent":"optimizeAgent","criteria":"ok","input":{"agent":"x","input":""}}`, string(data))
}

func TestUnmarshal_RoundTrip(t *testing.T) {
	d := Compile(tree())

	data, err := Marshal(d)
	require.NoError(t, err)

	back, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, d, back)
}

func TestUnmarshal_SchemaItem(t *testing.T) {
	d, err := Unmarshal([]byte(`{"agent":"forEachAgent","item":{"type":"object"},"input":{"agent":"x","input":"go"}}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"object"}`, d.Item)
	require.Len(t, d.Children, 1)
	assert.Equal(t, "go", d.Children[0].Text)
}

func TestUnmarshal_Errors(t *testing.T) {
	for name, in := range map[string]string{
		"not an object":      `[1,2]`,
		"scalar list member": `{"agent":"sequenceAgent","input":[1]}`,
		"bad conditions":     `{"agent":"oneOfAgent","input":[],"conditions":"x"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Unmarshal([]byte(in))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}

	_, err := Unmarshal([]byte(`{`))
	assert.Error(t, err)
}
