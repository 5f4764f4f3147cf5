package fncall

import (
	"context"
	"errors"
	"testing"

	"github.com/rolemesh/rolemesh/core"
	"github.com/stretchr/testify/assert"
)

func echoHandler(name string) Handler {
	return NewFuncHandler(name, "echo", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{"type": "string"},
		},
		"required": []string{"text"},
	}, func(_ context.Context, args map[string]any) (any, error) {
		return args["text"], nil
	})
}

func TestRegistryLookup(t *testing.T) {
	reg, err := NewRegistry(echoHandler("echo"))
	assert.NoError(t, err)

	h, err := reg.Lookup("echo")
	assert.NoError(t, err)
	assert.Equal(t, "echo", h.Name())

	_, err = reg.Lookup("nope")
	assert.ErrorIs(t, err, core.ErrUnknownFunction)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	_, err := NewRegistry(echoHandler("echo"), echoHandler("echo"))
	assert.Error(t, err)
}

func TestRegistryDefinitions(t *testing.T) {
	reg, _ := NewRegistry(echoHandler("b"), echoHandler("a"))

	defs := reg.Definitions()
	assert.Len(t, defs, 2)
	assert.Equal(t, "a", defs[0].Function.Name) // sorted

	// Allow list filters; unknown names are skipped.
	defs = reg.Definitions("b", "ghost")
	assert.Len(t, defs, 1)
	assert.Equal(t, "b", defs[0].Function.Name)
}

func TestFuncHandlerValidation(t *testing.T) {
	h := echoHandler("echo")

	out, err := h.Call(context.Background(), map[string]any{"text": "hi"})
	assert.NoError(t, err)
	assert.Equal(t, "hi", out)

	_, err = h.Call(context.Background(), map[string]any{})
	var he *HandlerError
	assert.ErrorAs(t, err, &he)
	assert.Equal(t, "VALIDATION_ERROR", he.Code)
	assert.False(t, he.Transient)
}

func TestFuncHandlerWrapsPlainErrors(t *testing.T) {
	h := NewFuncHandler("boom", "always fails", map[string]any{"type": "object"},
		func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("connection reset")
		})

	_, err := h.Call(context.Background(), map[string]any{})
	var he *HandlerError
	assert.ErrorAs(t, err, &he)
	assert.Equal(t, "EXECUTION_ERROR", he.Code)
	assert.True(t, he.Transient)
}

func TestFuncHandlerForwardsClassifiedErrors(t *testing.T) {
	want := NewPermanent("strict", "SIGNATURE_REJECTED", "nope")
	h := NewFuncHandler("strict", "strict", map[string]any{"type": "object"},
		func(context.Context, map[string]any) (any, error) {
			return nil, want
		})

	_, err := h.Call(context.Background(), map[string]any{})
	var he *HandlerError
	assert.ErrorAs(t, err, &he)
	assert.Same(t, want, he)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(NewTransient("f", "TIMEOUT", "t")))
	assert.False(t, IsTransient(NewPermanent("f", "BAD_ARGS", "p")))
	// Unclassified errors default to retryable.
	assert.True(t, IsTransient(errors.New("who knows")))
}

func TestValidateArguments(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"n": map[string]any{"type": "integer"},
			"s": map[string]any{"type": "string"},
		},
		"required": []any{"n"},
	}

	assert.NoError(t, ValidateArguments(map[string]any{"n": float64(3)}, schema))
	assert.Error(t, ValidateArguments(map[string]any{}, schema))
	assert.Error(t, ValidateArguments(map[string]any{"n": 3.5}, schema))
	assert.Error(t, ValidateArguments(map[string]any{"n": 1, "s": 2}, schema))
	// Extra fields pass through.
	assert.NoError(t, ValidateArguments(map[string]any{"n": 1, "extra": true}, schema))
}
