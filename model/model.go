package model

import (
	"context"
	"fmt"
	"strings"

	"github.com/rolemesh/rolemesh/core"
)

// Message is a single packed turn sent to a provider. Media turns are packed
// as their URI; providers that support richer content may special-case this
// in their adapters.
type Message struct {
	Role core.Role `json:"role"`
	Text string    `json:"text"`
}

// Pack converts stored conversation history into provider wire messages,
// prepending the character's system prompt when present. History is expected
// oldest-first. Tool-call turns are forwarded with their recorded text so the
// model sees the outcomes of earlier side effects.
func Pack(cfg core.GenerationConfig, history []core.Message) []Message {
	packed := make([]Message, 0, len(history)+1)
	if cfg.SystemPrompt != "" {
		packed = append(packed, Message{Role: core.RoleSystem, Text: cfg.SystemPrompt})
	}
	for _, m := range history {
		text := m.Text
		if m.Kind != core.KindText {
			text = m.URI
		}
		packed = append(packed, Message{Role: m.Role, Text: text})
	}
	return packed
}

// FunctionDefinition describes an individual function exposed to the model.
// Parameters is a minimal JSON Schema object.
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionCall is a function invocation request surfaced by a provider,
// normalized across vendors with arguments already decoded.
type FunctionCall struct {
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// TokenUsage captures token accounting for one generation.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Request is the normalized provider input built by the conversation runtime.
type Request struct {
	Config   core.GenerationConfig `json:"config"`
	Messages []Message             `json:"messages"`
	Tools    []ToolDefinition      `json:"tools,omitempty"`
}

// Response is the provider output for one chat turn.
type Response struct {
	Text          string         `json:"text"`
	FunctionCalls []FunctionCall `json:"function_calls,omitempty"`
	Usage         TokenUsage     `json:"usage"`
	FinishReason  string         `json:"finish_reason,omitempty"`
}

// Info contains metadata about a provider implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"`
	SupportsTools bool   `json:"supports_tools"`
}

// Provider is the minimal interface the runtime needs to drive generation.
// Generate blocks for the full turn; retry of provider failures, if any,
// belongs to the provider client, not the caller.
type Provider interface {
	Generate(ctx context.Context, req Request) (*Response, error)
	Info() Info
}

// MockProvider is a lightweight in-memory Provider for tests and examples.
// Responses are keyed by the text of the last message; unmatched input yields
// a deterministic echo. Canned function calls, errors and usage can be
// attached per prompt.
type MockProvider struct {
	info      Info
	responses map[string]*Response
	err       error
}

// NewMockProvider constructs a MockProvider with tool support enabled.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		info:      Info{Name: name, Provider: "mock", SupportsTools: true},
		responses: make(map[string]*Response),
	}
}

// AddResponse registers a canned reply for an input prompt.
func (m *MockProvider) AddResponse(prompt string, resp *Response) { m.responses[prompt] = resp }

// FailWith makes every Generate call return err until cleared with nil.
func (m *MockProvider) FailWith(err error) { m.err = err }

// Generate implements Provider.
func (m *MockProvider) Generate(_ context.Context, req Request) (*Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}
	last := req.Messages[len(req.Messages)-1].Text
	if resp, ok := m.responses[last]; ok {
		out := *resp
		return &out, nil
	}
	text := fmt.Sprintf("Mock reply to: %s", strings.TrimSpace(last))
	return &Response{
		Text:         text,
		Usage:        TokenUsage{PromptTokens: len(req.Messages), CompletionTokens: 1, TotalTokens: len(req.Messages) + 1},
		FinishReason: "stop",
	}, nil
}

// Info implements Provider.
func (m *MockProvider) Info() Info { return m.info }
