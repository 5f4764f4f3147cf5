package executor

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rolemesh/rolemesh/audit"
	"github.com/rolemesh/rolemesh/core"
	"github.com/rolemesh/rolemesh/fncall"
	"github.com/rolemesh/rolemesh/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedHandler fails with the scripted errors in order, then succeeds.
type scriptedHandler struct {
	name   string
	result any

	mu    sync.Mutex
	errs  []error
	calls int
}

func (h *scriptedHandler) Name() string               { return h.name }
func (h *scriptedHandler) Description() string        { return "scripted" }
func (h *scriptedHandler) Parameters() map[string]any { return map[string]any{"type": "object"} }

func (h *scriptedHandler) Calls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}

func (h *scriptedHandler) Call(context.Context, map[string]any) (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls++
	if len(h.errs) > 0 {
		err := h.errs[0]
		h.errs = h.errs[1:]
		return nil, err
	}
	return h.result, nil
}

type panicHandler struct{}

func (panicHandler) Name() string               { return "panics" }
func (panicHandler) Description() string        { return "panics" }
func (panicHandler) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (panicHandler) Call(context.Context, map[string]any) (any, error) {
	panic("boom")
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 4 * time.Millisecond}
}

// runExecutor starts exec.Run on a goroutine and stops it at test cleanup.
func runExecutor(t *testing.T, exec *Executor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		exec.Run(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func waitForOutcome(t *testing.T, rec *audit.Recorder) core.ExecutionOutcome {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(rec.Outcomes()) > 0
	}, 2*time.Second, time.Millisecond)
	return rec.Outcomes()[0]
}

func TestExecutorRetriesTransientThenSucceeds(t *testing.T) {
	handler := &scriptedHandler{
		name:   "flaky",
		result: "done",
		errs: []error{
			fncall.NewTransient("flaky", "TIMEOUT", "try again"),
			fncall.NewTransient("flaky", "TIMEOUT", "try again"),
		},
	}
	registry, err := fncall.NewRegistry(handler)
	require.NoError(t, err)

	rec := audit.NewRecorder()
	queue := NewQueue(4)
	exec := New(registry, queue, func(o *Options) {
		o.Policy = fastPolicy()
		o.Sink = rec
	})
	runExecutor(t, exec)

	require.NoError(t, queue.Enqueue(context.Background(),
		core.NewFunctionCallRequest("flaky", nil, "conv-1", "msg-1")))

	outcome := waitForOutcome(t, rec)
	assert.Equal(t, core.OutcomeSucceeded, outcome.State)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, "done", outcome.Result)
	assert.Equal(t, 3, handler.Calls())
}

func TestExecutorPermanentFailureStopsImmediately(t *testing.T) {
	handler := &scriptedHandler{
		name: "strict",
		errs: []error{fncall.NewPermanent("strict", "INVALID_RECIPIENT", "bad address")},
	}
	registry, err := fncall.NewRegistry(handler)
	require.NoError(t, err)

	rec := audit.NewRecorder()
	queue := NewQueue(4)
	exec := New(registry, queue, func(o *Options) {
		o.Policy = fastPolicy()
		o.Sink = rec
	})
	runExecutor(t, exec)

	require.NoError(t, queue.Enqueue(context.Background(),
		core.NewFunctionCallRequest("strict", nil, "conv-1", "msg-1")))

	outcome := waitForOutcome(t, rec)
	assert.Equal(t, core.OutcomeFailedPermanently, outcome.State)
	assert.Equal(t, 1, outcome.Attempts)
	assert.Contains(t, outcome.FailureReason, "INVALID_RECIPIENT")
	assert.Equal(t, 1, handler.Calls())
}

func TestExecutorExhaustsRetries(t *testing.T) {
	handler := &scriptedHandler{
		name: "down",
		errs: []error{
			fncall.NewTransient("down", "UNAVAILABLE", "down"),
			fncall.NewTransient("down", "UNAVAILABLE", "down"),
			fncall.NewTransient("down", "UNAVAILABLE", "down"),
		},
	}
	registry, err := fncall.NewRegistry(handler)
	require.NoError(t, err)

	rec := audit.NewRecorder()
	queue := NewQueue(4)
	exec := New(registry, queue, func(o *Options) {
		o.Policy = fastPolicy()
		o.Sink = rec
	})
	runExecutor(t, exec)

	require.NoError(t, queue.Enqueue(context.Background(),
		core.NewFunctionCallRequest("down", nil, "conv-1", "msg-1")))

	outcome := waitForOutcome(t, rec)
	assert.Equal(t, core.OutcomeFailedExhaustedRetries, outcome.State)
	assert.Equal(t, 3, outcome.Attempts)
	assert.Equal(t, 3, handler.Calls())
}

func TestExecutorRecoversPanics(t *testing.T) {
	registry, err := fncall.NewRegistry(panicHandler{})
	require.NoError(t, err)

	rec := audit.NewRecorder()
	queue := NewQueue(4)
	exec := New(registry, queue, func(o *Options) {
		o.Policy = fastPolicy()
		o.Sink = rec
	})
	runExecutor(t, exec)

	require.NoError(t, queue.Enqueue(context.Background(),
		core.NewFunctionCallRequest("panics", nil, "conv-1", "msg-1")))

	outcome := waitForOutcome(t, rec)
	assert.Equal(t, core.OutcomeFailedPermanently, outcome.State)
	assert.Contains(t, outcome.FailureReason, "panicked")
}

func TestExecutorAppendsOutcomeToConversation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewInMemoryStore()
	conv, err := store.Create(ctx, "alice", "char-1", false)
	require.NoError(t, err)

	handler := &scriptedHandler{name: "fn", result: map[string]any{"tx_hash": "0xabc"}}
	registry, err := fncall.NewRegistry(handler)
	require.NoError(t, err)

	rec := audit.NewRecorder()
	queue := NewQueue(4)
	exec := New(registry, queue, func(o *Options) {
		o.Policy = fastPolicy()
		o.Sink = rec
		o.Memory = store
		o.Conversations = store
	})
	runExecutor(t, exec)

	require.NoError(t, queue.Enqueue(ctx,
		core.NewFunctionCallRequest("fn", nil, conv.ID, "msg-1")))
	waitForOutcome(t, rec)

	require.Eventually(t, func() bool {
		got, err := store.Get(ctx, conv.ID)
		return err == nil && got.Len() == 1
	}, 2*time.Second, time.Millisecond)

	got, err := store.Get(ctx, conv.ID)
	require.NoError(t, err)
	msg, err := store.GetOne(ctx, got.LastMessageID())
	require.NoError(t, err)
	assert.Equal(t, core.RoleToolCall, msg.Role)
	assert.Equal(t, "alice", msg.Owner)
	assert.True(t, strings.Contains(msg.Text, "succeeded"))
	assert.True(t, strings.Contains(msg.Text, "0xabc"))
}

func TestExecutorUnknownFunctionOutcome(t *testing.T) {
	registry, err := fncall.NewRegistry(&scriptedHandler{name: "known"})
	require.NoError(t, err)

	rec := audit.NewRecorder()
	queue := NewQueue(4)
	exec := New(registry, queue, func(o *Options) {
		o.Policy = fastPolicy()
		o.Sink = rec
	})
	runExecutor(t, exec)

	require.NoError(t, queue.Enqueue(context.Background(),
		core.NewFunctionCallRequest("ghost", nil, "conv-1", "msg-1")))

	outcome := waitForOutcome(t, rec)
	assert.Equal(t, core.OutcomeFailedPermanently, outcome.State)
	assert.Contains(t, outcome.FailureReason, "unknown function")
}
