package fncall

import (
	"context"
	"errors"
)

// FuncHandler adapts a plain Go function into a Handler. It validates model
// supplied arguments against the declared schema before invocation and
// normalizes failures so the executor always sees a classified
// *HandlerError:
//
//	*HandlerError returned directly -> forwarded unchanged
//	validation failure              -> permanent, code VALIDATION_ERROR
//	other error                     -> transient, code EXECUTION_ERROR
//
// A FuncHandler has no mutable state after construction and is safe for
// concurrent use.
type FuncHandler struct {
	name        string
	description string
	parameters  map[string]any
	fn          func(ctx context.Context, args map[string]any) (any, error)
}

// NewFuncHandler constructs a FuncHandler from an explicit schema and
// implementation.
func NewFuncHandler(
	name, description string,
	parameters map[string]any,
	fn func(ctx context.Context, args map[string]any) (any, error),
) *FuncHandler {
	return &FuncHandler{name: name, description: description, parameters: parameters, fn: fn}
}

// Name returns the unique function name used in registry lookup.
func (h *FuncHandler) Name() string { return h.name }

// Description returns the natural language description exposed to models.
func (h *FuncHandler) Description() string { return h.description }

// Parameters returns the minimal JSON schema describing expected arguments.
func (h *FuncHandler) Parameters() map[string]any { return h.parameters }

// Call validates args then invokes the wrapped function.
func (h *FuncHandler) Call(ctx context.Context, args map[string]any) (any, error) {
	if err := ValidateArguments(args, h.parameters); err != nil {
		return nil, &HandlerError{
			Function: h.name,
			Code:     "VALIDATION_ERROR",
			Message:  err.Error(),
			Details:  err,
		}
	}

	result, err := h.fn(ctx, args)
	if err != nil {
		var he *HandlerError
		if errors.As(err, &he) {
			return nil, he
		}
		return nil, &HandlerError{
			Function:  h.name,
			Code:      "EXECUTION_ERROR",
			Message:   err.Error(),
			Transient: true,
		}
	}
	return result, nil
}
