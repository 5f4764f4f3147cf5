package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rolemesh/rolemesh/audit"
	"github.com/rolemesh/rolemesh/core"
	"github.com/rolemesh/rolemesh/fncall"
	"github.com/rolemesh/rolemesh/logging"
)

// Options configures an Executor.
type Options struct {
	// Policy bounds retries per request.
	Policy RetryPolicy
	// Workers is the number of concurrent consumers. The default of 1
	// preserves queue order end to end.
	Workers int
	// Logger receives execution diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
	// Sink receives terminal outcomes. Defaults to NoOpSink.
	Sink audit.Sink
	// Memory and Conversations, when both set, get a tool_call message
	// appended to the originating conversation for every terminal outcome.
	Memory        core.MemoryStore
	Conversations core.ConversationStore
}

// Executor consumes the request queue and drives each request to a terminal
// outcome. A request is retried in place while its failures are transient and
// the attempt budget lasts; it is never re-enqueued, so a retrying request
// cannot be starved by newer arrivals.
type Executor struct {
	registry *fncall.Registry
	queue    *Queue
	opts     Options
}

// New creates an Executor consuming queue with handlers from registry.
func New(registry *fncall.Registry, queue *Queue, optFns ...func(o *Options)) *Executor {
	opts := Options{
		Policy:  DefaultRetryPolicy(),
		Workers: 1,
		Logger:  logging.NoOpLogger{},
		Sink:    audit.NoOpSink{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &Executor{registry: registry, queue: queue, opts: opts}
}

// Run consumes the queue until ctx is canceled. It blocks; start it on its
// own goroutine. Requests already dequeued when ctx expires still get a
// terminal outcome.
func (e *Executor) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < e.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case req := <-e.queue.Requests():
					e.process(ctx, req)
				}
			}
		}()
	}
	wg.Wait()
}

func (e *Executor) process(ctx context.Context, req core.FunctionCallRequest) {
	start := time.Now()

	handler, err := e.registry.Lookup(req.Name)
	if err != nil {
		// The runtime fails fast on unknown functions, so reaching this
		// branch means the registry changed between enqueue and dequeue.
		e.finish(ctx, core.ExecutionOutcome{
			RequestID:      req.ID,
			Function:       req.Name,
			ConversationID: req.ConversationID,
			State:          core.OutcomeFailedPermanently,
			FailureReason:  err.Error(),
			Elapsed:        time.Since(start),
		})
		return
	}

	var lastErr error
	attempt := 0
	for {
		attempt++
		result, err := e.call(ctx, handler, req)
		if err == nil {
			e.finish(ctx, core.ExecutionOutcome{
				RequestID:      req.ID,
				Function:       req.Name,
				ConversationID: req.ConversationID,
				State:          core.OutcomeSucceeded,
				Result:         result,
				Attempts:       attempt,
				Elapsed:        time.Since(start),
			})
			return
		}
		lastErr = err

		if !e.opts.Policy.ShouldRetry(attempt, err) {
			if !fncall.IsTransient(err) {
				e.finish(ctx, core.ExecutionOutcome{
					RequestID:      req.ID,
					Function:       req.Name,
					ConversationID: req.ConversationID,
					State:          core.OutcomeFailedPermanently,
					FailureReason:  err.Error(),
					Attempts:       attempt,
					Elapsed:        time.Since(start),
				})
				return
			}
			break
		}

		delay := e.opts.Policy.NextDelay(attempt)
		e.opts.Logger.Debug("retrying function call",
			"request_id", req.ID, "function", req.Name, "attempt", attempt, "delay", delay, "error", err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			e.finish(ctx, core.ExecutionOutcome{
				RequestID:      req.ID,
				Function:       req.Name,
				ConversationID: req.ConversationID,
				State:          core.OutcomeFailedExhaustedRetries,
				FailureReason:  fmt.Sprintf("shutdown during backoff: %s", lastErr),
				Attempts:       attempt,
				Elapsed:        time.Since(start),
			})
			return
		}
	}

	e.finish(ctx, core.ExecutionOutcome{
		RequestID:      req.ID,
		Function:       req.Name,
		ConversationID: req.ConversationID,
		State:          core.OutcomeFailedExhaustedRetries,
		FailureReason:  lastErr.Error(),
		Attempts:       attempt,
		Elapsed:        time.Since(start),
	})
}

// call invokes the handler with panic containment. A panicking handler fails
// the attempt permanently rather than crashing the consumer loop.
func (e *Executor) call(ctx context.Context, handler fncall.Handler, req core.FunctionCallRequest) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.opts.Logger.Error("function handler panicked",
				"request_id", req.ID, "function", req.Name, "panic", r)
			err = fncall.NewPermanent(req.Name, "PANIC", fmt.Sprintf("handler panicked: %v", r))
		}
	}()
	return handler.Call(ctx, req.Arguments)
}

// finish records the terminal outcome and, when stores are wired, appends a
// tool_call message to the originating conversation so the result is visible
// in later turns. Persistence problems are logged and swallowed; the consumer
// loop never fails on accounting.
func (e *Executor) finish(ctx context.Context, outcome core.ExecutionOutcome) {
	if outcome.Succeeded() {
		e.opts.Logger.Info("function call succeeded",
			"request_id", outcome.RequestID, "function", outcome.Function, "attempts", outcome.Attempts)
	} else {
		e.opts.Logger.Warn("function call failed",
			"request_id", outcome.RequestID, "function", outcome.Function,
			"state", string(outcome.State), "attempts", outcome.Attempts, "reason", outcome.FailureReason)
	}
	e.opts.Sink.RecordOutcome(outcome)

	if e.opts.Memory == nil || e.opts.Conversations == nil || outcome.ConversationID == "" {
		return
	}
	// Outcome persistence must survive executor shutdown.
	ctx = context.WithoutCancel(ctx)

	conv, err := e.opts.Conversations.Get(ctx, outcome.ConversationID)
	if err != nil {
		e.opts.Logger.Warn("outcome not appended, conversation lookup failed",
			"request_id", outcome.RequestID, "conversation_id", outcome.ConversationID, "error", err)
		return
	}

	msg := core.NewTextMessage(core.RoleToolCall, conv.Owner, conv.Character, outcomeText(outcome))
	if err := e.opts.Memory.AddMessages(ctx, []core.Message{msg}); err != nil {
		e.opts.Logger.Warn("outcome message not stored",
			"request_id", outcome.RequestID, "error", err)
		return
	}
	if err := e.opts.Conversations.AppendHistory(ctx, conv.ID, msg.ID); err != nil {
		e.opts.Logger.Warn("outcome message not linked to history",
			"request_id", outcome.RequestID, "error", err)
	}
}

func outcomeText(outcome core.ExecutionOutcome) string {
	payload := map[string]any{
		"function": outcome.Function,
		"state":    string(outcome.State),
		"attempts": outcome.Attempts,
	}
	if outcome.Result != nil {
		payload["result"] = outcome.Result
	}
	if outcome.FailureReason != "" {
		payload["failure_reason"] = outcome.FailureReason
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"function":%q,"state":%q}`, outcome.Function, string(outcome.State))
	}
	return string(b)
}
