package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of the conversation sent to a model.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// Request captures the normalized model input produced by agents.
type Request struct {
	System   string    `json:"system,omitempty"`
	Messages []Message `json:"messages"`
	// Temperature overrides the adapter default when set.
	Temperature *float64 `json:"temperature,omitempty"`
	Stream      bool     `json:"stream,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a (partial or final) chunk emitted by a streaming model.
type Response struct {
	ID           string      `json:"id"`
	Partial      bool        `json:"partial"` // Indicates if this is a partial response
	Text         string      `json:"text"`
	FinishReason string      `json:"finish_reason"` // "stop", "length", ...
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "mock", ...
}

// Model is the minimal interface required by agents and judges to drive
// generation. Both channels are closed when generation ends; the error
// channel carries at most one error.
type Model interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// ErrEmptyResponse is returned by Collect when a model produced no output.
var ErrEmptyResponse = errors.New("model returned no response")

// Collect drains a generation and returns the final response. When the
// model only streamed partial chunks their text is concatenated.
func Collect(ctx context.Context, respCh <-chan Response, errCh <-chan error) (Response, error) {
	var (
		final    *Response
		partials strings.Builder
	)

	for respCh != nil || errCh != nil {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		case r, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if r.Partial {
				partials.WriteString(r.Text)
				continue
			}
			final = &r
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return Response{}, err
			}
		}
	}

	if final != nil {
		return *final, nil
	}
	if partials.Len() > 0 {
		return Response{Text: partials.String(), FinishReason: "stop"}, nil
	}
	return Response{}, ErrEmptyResponse
}

// MockModel is a lightweight in-memory Model useful for tests & examples.
// It is safe for concurrent use.
type MockModel struct {
	info      Info
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	requests  []Request
}

// NewMockModel constructs a MockModel.
func NewMockModel(name, provider string) *MockModel {
	return &MockModel{
		info:      Info{Name: name, Provider: provider},
		responses: make(map[string]string),
		errs:      make(map[string]error),
	}
}

// AddResponse registers a deterministic canned completion for the text of
// the last message of a request.
func (m *MockModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// AddError makes requests whose last message is prompt fail with err.
func (m *MockModel) AddError(prompt string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[prompt] = err
}

// Requests returns the requests received so far.
func (m *MockModel) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Request(nil), m.requests...)
}

// Generate implements Model; emits optional streaming char chunks then final response.
func (m *MockModel) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if len(req.Messages) == 0 {
			errCh <- fmt.Errorf("no messages provided")
			return
		}
		inputText := req.Messages[len(req.Messages)-1].Text

		m.mu.Lock()
		full, failure := m.responses[inputText], m.errs[inputText]
		m.mu.Unlock()

		if failure != nil {
			errCh <- failure
			return
		}
		if full == "" {
			full = fmt.Sprintf("Mock response to: %s", inputText)
		}
		if req.Stream {
			for _, r := range full {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: string(r)}:
				}
			}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Text: full, FinishReason: "stop"}:
		}
	}()
	return respCh, errCh
}

// Info implements Model interface.
func (m *MockModel) Info() Info { return m.info }
