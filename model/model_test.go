package model

import (
	"context"
	"errors"
	"testing"

	"github.com/rolemesh/rolemesh/core"
	"github.com/stretchr/testify/assert"
)

func TestPack(t *testing.T) {
	cfg := core.GenerationConfig{SystemPrompt: "You are Rin."}
	history := []core.Message{
		core.NewTextMessage(core.RoleUser, "u", "c", "hello"),
		core.NewTextMessage(core.RoleAssistant, "u", "c", "hi"),
		core.NewMediaMessage(core.RoleUser, core.KindImage, "u", "c", "https://img.example/x.png"),
	}

	packed := Pack(cfg, history)
	assert.Len(t, packed, 4)
	assert.Equal(t, core.RoleSystem, packed[0].Role)
	assert.Equal(t, "You are Rin.", packed[0].Text)
	assert.Equal(t, "hello", packed[1].Text)
	// Media turns pack as their URI.
	assert.Equal(t, "https://img.example/x.png", packed[3].Text)
}

func TestPackNoSystemPrompt(t *testing.T) {
	packed := Pack(core.GenerationConfig{}, []core.Message{
		core.NewTextMessage(core.RoleUser, "u", "c", "hey"),
	})
	assert.Len(t, packed, 1)
	assert.Equal(t, core.RoleUser, packed[0].Role)
}

func TestMockProviderCannedResponse(t *testing.T) {
	p := NewMockProvider("test")
	p.AddResponse("hello", &Response{Text: "hi", FinishReason: "stop"})

	resp, err := p.Generate(context.Background(), Request{
		Messages: []Message{{Role: core.RoleUser, Text: "hello"}},
	})
	assert.NoError(t, err)
	assert.Equal(t, "hi", resp.Text)
}

func TestMockProviderEcho(t *testing.T) {
	p := NewMockProvider("test")
	resp, err := p.Generate(context.Background(), Request{
		Messages: []Message{{Role: core.RoleUser, Text: "anything"}},
	})
	assert.NoError(t, err)
	assert.Contains(t, resp.Text, "anything")
	assert.NotZero(t, resp.Usage.TotalTokens)
}

func TestMockProviderFailure(t *testing.T) {
	p := NewMockProvider("test")
	boom := errors.New("rate limited")
	p.FailWith(boom)

	_, err := p.Generate(context.Background(), Request{
		Messages: []Message{{Role: core.RoleUser, Text: "x"}},
	})
	assert.ErrorIs(t, err, boom)

	p.FailWith(nil)
	_, err = p.Generate(context.Background(), Request{
		Messages: []Message{{Role: core.RoleUser, Text: "x"}},
	})
	assert.NoError(t, err)
}

func TestMockProviderEmptyRequest(t *testing.T) {
	p := NewMockProvider("test")
	_, err := p.Generate(context.Background(), Request{})
	assert.Error(t, err)
}
