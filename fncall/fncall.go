package fncall

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rolemesh/rolemesh/core"
	"github.com/rolemesh/rolemesh/model"
)

// Handler executes one named side-effecting function. Implementations must be
// safe for concurrent use and idempotent under at-least-once delivery: a
// retried request may have partially succeeded upstream.
type Handler interface {
	// Name returns the unique function identifier (snake_case recommended).
	Name() string

	// Description is shown to models to guide function selection.
	Description() string

	// Parameters returns a minimal JSON Schema describing accepted arguments.
	Parameters() map[string]any

	// Call executes the function. Failures should be *HandlerError so the
	// executor can distinguish retryable from terminal conditions.
	Call(ctx context.Context, args map[string]any) (any, error)
}

// HandlerError is a classified function execution failure. Transient errors
// (timeouts, rate limits, chain congestion) are retried by the executor;
// permanent errors (malformed arguments, insufficient balance, signature
// rejection) terminate the request after a single attempt.
type HandlerError struct {
	Function  string `json:"function"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Transient bool   `json:"transient"`
	Details   any    `json:"details,omitempty"`
}

func (e *HandlerError) Error() string {
	class := "permanent"
	if e.Transient {
		class = "transient"
	}
	if e.Code != "" {
		return fmt.Sprintf("%s error [%s] in %s: %s", class, e.Code, e.Function, e.Message)
	}
	return fmt.Sprintf("%s error in %s: %s", class, e.Function, e.Message)
}

// NewTransient creates a retryable HandlerError.
func NewTransient(function, code, message string) *HandlerError {
	return &HandlerError{Function: function, Code: code, Message: message, Transient: true}
}

// NewPermanent creates a non-retryable HandlerError.
func NewPermanent(function, code, message string) *HandlerError {
	return &HandlerError{Function: function, Code: code, Message: message}
}

// IsTransient reports whether err should be retried. Errors carrying no
// classification are treated as transient: an unknown failure mode may clear
// on retry, and the attempt budget bounds the cost of being wrong.
func IsTransient(err error) bool {
	var he *HandlerError
	if errors.As(err, &he) {
		return he.Transient
	}
	return true
}

// Registry maps function names to handlers. It is built once during process
// initialization and never mutated afterwards — read-only configuration
// state, safe for unsynchronized concurrent lookup.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry builds an immutable registry, rejecting duplicate names.
func NewRegistry(handlers ...Handler) (*Registry, error) {
	m := make(map[string]Handler, len(handlers))
	for _, h := range handlers {
		if h.Name() == "" {
			return nil, fmt.Errorf("handler with empty name")
		}
		if _, dup := m[h.Name()]; dup {
			return nil, fmt.Errorf("duplicate handler name %q", h.Name())
		}
		m[h.Name()] = h
	}
	return &Registry{handlers: m}, nil
}

// Lookup resolves a handler by name, failing with core.ErrUnknownFunction for
// unregistered names so callers can fail fast before enqueueing work.
func (r *Registry) Lookup(name string) (Handler, error) {
	h, ok := r.handlers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrUnknownFunction, name)
	}
	return h, nil
}

// Names returns the registered function names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions exports tool definitions for provider requests. A non-empty
// allow list restricts the export to those names (a character's permitted
// functions); unknown names in the list are skipped.
func (r *Registry) Definitions(allow ...string) []model.ToolDefinition {
	names := allow
	if len(names) == 0 {
		names = r.Names()
	}
	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		h, ok := r.handlers[name]
		if !ok {
			continue
		}
		defs = append(defs, model.ToolDefinition{
			Type: "function",
			Function: model.FunctionDefinition{
				Name:        h.Name(),
				Description: h.Description(),
				Parameters:  h.Parameters(),
			},
		})
	}
	return defs
}
