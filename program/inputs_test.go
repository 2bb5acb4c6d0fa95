package program

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveInputs(t *testing.T) {
	p := Program{Inputs: []InputVariable{
		{Name: "topic", Required: true},
		{Name: "source", Type: InputURL},
		{Name: "words", Type: InputNumber},
		{Name: "meta", Type: InputJSON},
		{Name: "file", Type: InputFileBase64},
		{Name: "notes", Type: InputLongText},
	}}

	got, err := p.ResolveInputs(map[string]any{
		"topic":  "go",
		"source": "https://go.dev/doc",
		"words":  "250",
		"meta":   `{"lang":"en"}`,
		"file":   "data:text/plain;base64,aGVsbG8=",
		"extra":  true,
	})
	require.NoError(t, err)

	assert.Equal(t, "go", got["topic"])
	assert.Equal(t, "https://go.dev/doc", got["source"])
	assert.Equal(t, 250.0, got["words"])
	assert.Equal(t, `{"lang":"en"}`, got["meta"])
	assert.Equal(t, "", got["notes"], "missing optional input is filled")
	assert.Equal(t, true, got["extra"], "undeclared values pass through")
}

func TestResolveInputs_Errors(t *testing.T) {
	p := Program{Inputs: []InputVariable{
		{Name: "topic", Required: true},
		{Name: "source", Type: InputURL},
		{Name: "words", Type: InputNumber},
		{Name: "meta", Type: InputJSON},
		{Name: "file", Type: InputFileBase64},
	}}

	_, err := p.ResolveInputs(map[string]any{
		"topic":  "  ",
		"source": "not a url",
		"words":  "many",
		"meta":   "{broken",
		"file":   "%%%",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingInput)
	assert.ErrorIs(t, err, ErrInvalidInput)

	for _, name := range []string{`"topic"`, `"source"`, `"words"`, `"meta"`, `"file"`} {
		assert.Contains(t, err.Error(), name)
	}
}

func TestResolveInputs_NoDeclarations(t *testing.T) {
	got, err := Program{}.ResolveInputs(nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInputType_Valid(t *testing.T) {
	assert.True(t, InputType("").Valid())
	assert.True(t, InputFileBase64.Valid())
	assert.False(t, InputType("date").Valid())
}
