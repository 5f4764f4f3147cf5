// Package openai implements model.Provider using the OpenAI Chat Completions
// API, including function/tool calling and token-usage accounting.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/rolemesh/rolemesh/core"
	"github.com/rolemesh/rolemesh/model"
)

// Options configure the OpenAI provider adapter. The character's
// GenerationConfig overrides Model/Temperature/MaxTokens per request when set.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Provider wraps the OpenAI Chat Completions API behind model.Provider.
type Provider struct {
	client *openai.Client
	opts   Options
}

// NewProvider creates a provider using the official client configured from
// the environment (OPENAI_API_KEY).
func NewProvider(optFns ...func(o *Options)) *Provider {
	client := openai.NewClient()
	return NewProviderFromClient(&client, optFns...)
}

// NewProviderFromClient creates a provider from an existing client.
func NewProviderFromClient(client *openai.Client, optFns ...func(o *Options)) *Provider {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Provider{client: client, opts: opts}
}

// Generate implements model.Provider for a single non-streaming turn.
func (p *Provider) Generate(ctx context.Context, req model.Request) (*model.Response, error) {
	params := p.buildParams(req)

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai: no choices returned")
	}

	ch0 := resp.Choices[0]
	out := &model.Response{
		Text:         ch0.Message.Content,
		FinishReason: ch0.FinishReason,
		Usage: model.TokenUsage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}
	for _, tc := range ch0.Message.ToolCalls {
		out.FunctionCalls = append(out.FunctionCalls, model.FunctionCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: decodeArgs(tc.Function.Arguments),
		})
	}
	return out, nil
}

// buildParams assembles the request, letting the per-character config
// override adapter defaults.
func (p *Provider) buildParams(req model.Request) openai.ChatCompletionNewParams {
	modelName := p.opts.Model
	if req.Config.Model != "" {
		modelName = req.Config.Model
	}
	temperature := p.opts.Temperature
	if req.Config.Temperature != 0 {
		temperature = req.Config.Temperature
	}
	maxTokens := p.opts.MaxCompletionTokens
	if req.Config.MaxTokens != 0 {
		maxTokens = req.Config.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req.Messages),
		Model:               modelName,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(maxTokens),
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, tdef := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tdef.Function.Name,
					Description: openai.String(tdef.Function.Description),
					Parameters:  tdef.Function.Parameters,
				},
			}
		}
		params.Tools = tools
	}
	return params
}

// buildMessages converts packed turns to chat messages. Tool-call outcome
// turns are replayed as system context: the originating call IDs are not
// retained in history, so the tool-message wire form cannot be used.
func buildMessages(msgs []model.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case core.RoleSystem, core.RoleToolCall:
			out = append(out, openai.SystemMessage(m.Text))
		case core.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Text))
		default:
			out = append(out, openai.UserMessage(m.Text))
		}
	}
	return out
}

func decodeArgs(raw string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		// Preserve the payload for the handler's own validation to reject.
		return map[string]any{"_raw": raw}
	}
	return args
}

// Info returns metadata describing this provider.
func (p *Provider) Info() model.Info {
	return model.Info{Name: p.opts.Model, Provider: "openai", SupportsTools: true}
}
