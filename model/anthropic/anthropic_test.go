package anthropic

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/CatchTheTornado/agent-doodle/model"
)

func TestModel_Generate(t *testing.T) {
	bodyCh := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		bodyCh <- string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-3-5-sonnet-20241022",
			"content": [{"type": "text", "text": "hola"}],
			"stop_reason": "end_turn",
			"usage": {"input_tokens": 5, "output_tokens": 1}
		}`)
	}))
	defer srv.Close()

	client := anthropic.NewClient(option.WithBaseURL(srv.URL+"/"), option.WithAPIKey("test"), option.WithMaxRetries(0))
	m := NewModelFromClient(&client)

	respCh, errCh := m.Generate(context.Background(), model.Request{
		System: "You translate.",
		Messages: []model.Message{
			{Role: model.RoleSystem, Text: "Be brief."},
			{Role: model.RoleUser, Text: "hello"},
		},
	})
	resp, err := model.Collect(context.Background(), respCh, errCh)
	require.NoError(t, err)
	body := <-bodyCh

	assert.Equal(t, "hola", resp.Text)
	assert.Equal(t, "end_turn", resp.FinishReason)
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 6, resp.Usage.TotalTokens)

	assert.Equal(t, "You translate.\n\nBe brief.", gjson.Get(body, "system.0.text").String())
	assert.Equal(t, int64(1), gjson.Get(body, "messages.#").Int())
	assert.Equal(t, "user", gjson.Get(body, "messages.0.role").String())
	assert.Equal(t, "hello", gjson.Get(body, "messages.0.content.0.text").String())
}

func TestBuildMessages_SkipsEmptyAndSystem(t *testing.T) {
	msgs := buildMessages([]model.Message{
		{Role: model.RoleSystem, Text: "sys"},
		{Role: model.RoleUser, Text: ""},
		{Role: model.RoleUser, Text: "q"},
		{Role: model.RoleAssistant, Text: "a"},
	})
	assert.Len(t, msgs, 2)
}
