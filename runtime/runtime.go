package runtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rolemesh/rolemesh/account"
	"github.com/rolemesh/rolemesh/audit"
	"github.com/rolemesh/rolemesh/core"
	"github.com/rolemesh/rolemesh/executor"
	"github.com/rolemesh/rolemesh/fncall"
	"github.com/rolemesh/rolemesh/logging"
	"github.com/rolemesh/rolemesh/model"
)

// DefaultEnqueueTimeout bounds how long a chat turn waits on a saturated
// execution queue before surfacing core.ErrQueueSaturated.
const DefaultEnqueueTimeout = 2 * time.Second

// Options configures a Runtime.
type Options struct {
	// Logger receives turn diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
	// Sink receives per-character counters. Defaults to NoOpSink.
	Sink audit.Sink
	// Accounts, when set, is debited PricePerTurn before generation and
	// credited with token usage after.
	Accounts account.Store
	// PricePerTurn is the credit cost of one generation. Zero disables
	// debiting even when Accounts is set.
	PricePerTurn int64
	// EnqueueTimeout bounds the wait on a full execution queue.
	EnqueueTimeout time.Duration
}

// Runtime drives chat turns for character conversations.
type Runtime struct {
	memory        core.MemoryStore
	conversations core.ConversationStore
	characters    core.CharacterStore
	provider      model.Provider
	registry      *fncall.Registry
	queue         *executor.Queue
	opts          Options
}

// New wires a Runtime from its collaborators. Registry and queue may be nil
// for deployments without function calling; function-call intents are then
// reported as unknown.
func New(
	memoryStore core.MemoryStore,
	conversations core.ConversationStore,
	characters core.CharacterStore,
	provider model.Provider,
	registry *fncall.Registry,
	queue *executor.Queue,
	optFns ...func(o *Options),
) *Runtime {
	opts := Options{
		Logger:         logging.NoOpLogger{},
		Sink:           audit.NoOpSink{},
		EnqueueTimeout: DefaultEnqueueTimeout,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = DefaultEnqueueTimeout
	}
	return &Runtime{
		memory:        memoryStore,
		conversations: conversations,
		characters:    characters,
		provider:      provider,
		registry:      registry,
		queue:         queue,
		opts:          opts,
	}
}

// Chat runs one turn: the caller's text is appended to the conversation, the
// character generates a reply and any function calls it makes are queued for
// asynchronous execution.
//
// The returned message is the persisted assistant reply. A non-nil error
// alongside a non-empty message means the reply was persisted but one or more
// function-call intents were rejected (unknown function or saturated queue);
// persisted turns are never rolled back on enqueue failure.
func (r *Runtime) Chat(ctx context.Context, callerID, conversationID, text string) (core.Message, error) {
	if strings.TrimSpace(text) == "" {
		return core.Message{}, fmt.Errorf("empty message text: %w", core.ErrBadRequest)
	}

	conv, character, err := r.authorize(ctx, callerID, conversationID)
	if err != nil {
		return core.Message{}, err
	}
	if err := r.debit(ctx, callerID); err != nil {
		return core.Message{}, err
	}

	history, err := r.loadHistory(ctx, conv)
	if err != nil {
		return core.Message{}, err
	}

	userMsg := core.NewTextMessage(core.RoleUser, conv.Owner, conv.Character, text)
	resp, err := r.generate(ctx, character, append(history, userMsg))
	if err != nil {
		return core.Message{}, err
	}
	assistantMsg := core.NewTextMessage(core.RoleAssistant, conv.Owner, conv.Character, resp.Text)

	if err := r.memory.AddMessages(ctx, []core.Message{userMsg, assistantMsg}); err != nil {
		return core.Message{}, fmt.Errorf("persist turn: %w", err)
	}
	if err := r.conversations.AppendHistory(ctx, conv.ID, userMsg.ID, assistantMsg.ID); err != nil {
		return core.Message{}, fmt.Errorf("link turn to history: %w", err)
	}

	// Intents go to the queue only after the turn is in history, so a fast
	// handler's outcome turn always lands after the reply that caused it.
	enqueueErr := r.enqueueCalls(ctx, resp.FunctionCalls, conv.ID, assistantMsg.ID)

	r.opts.Sink.CountMessage(conv.Character)
	r.account(ctx, conv, character, resp.Usage)

	return assistantMsg, enqueueErr
}

// Regenerate replaces the content of the conversation's final assistant
// message with a fresh generation over the preceding context. The message
// keeps its identity: same ID, same position, same timestamp. Trailing
// tool_call turns recording outcomes of that reply's function calls are
// skipped when locating it; a conversation whose last substantive turn is not
// an assistant reply cannot be regenerated.
func (r *Runtime) Regenerate(ctx context.Context, callerID, conversationID string) (core.Message, error) {
	conv, character, err := r.authorize(ctx, callerID, conversationID)
	if err != nil {
		return core.Message{}, err
	}
	if err := r.debit(ctx, callerID); err != nil {
		return core.Message{}, err
	}

	history, err := r.loadHistory(ctx, conv)
	if err != nil {
		return core.Message{}, err
	}
	if len(history) == 0 {
		return core.Message{}, fmt.Errorf("regenerate on empty conversation: %w", core.ErrBadRequest)
	}
	tail := len(history) - 1
	for tail >= 0 && history[tail].Role == core.RoleToolCall {
		tail--
	}
	if tail < 0 || history[tail].Role != core.RoleAssistant {
		return core.Message{}, fmt.Errorf("no assistant message to regenerate: %w", core.ErrBadRequest)
	}
	last := history[tail]
	prior := history[:tail]
	if len(prior) == 0 {
		return core.Message{}, fmt.Errorf("no context before assistant message: %w", core.ErrBadRequest)
	}

	resp, err := r.generate(ctx, character, prior)
	if err != nil {
		return core.Message{}, err
	}

	replacement := last
	replacement.Kind = core.KindText
	replacement.Text = resp.Text
	replacement.Binary = nil
	replacement.URI = ""

	if err := r.memory.Update(ctx, []core.Message{replacement}); err != nil {
		return core.Message{}, fmt.Errorf("persist regenerated reply: %w", err)
	}
	if err := r.conversations.Touch(ctx, conv.ID); err != nil {
		r.opts.Logger.Warn("conversation not touched after regenerate",
			"conversation_id", conv.ID, "error", err)
	}

	enqueueErr := r.enqueueCalls(ctx, resp.FunctionCalls, conv.ID, replacement.ID)

	r.opts.Sink.CountRegeneration(conv.Character)
	r.account(ctx, conv, character, resp.Usage)

	return replacement, enqueueErr
}

// authorize resolves the conversation and its character, enforcing access in
// order: unknown conversation, forbidden caller, unknown character.
func (r *Runtime) authorize(ctx context.Context, callerID, conversationID string) (*core.Conversation, *core.Character, error) {
	conv, err := r.conversations.Get(ctx, conversationID)
	if err != nil {
		return nil, nil, err
	}
	if !conv.CanAccess(callerID) {
		return nil, nil, fmt.Errorf("caller %q on conversation %q: %w", callerID, conversationID, core.ErrForbidden)
	}
	character, err := r.characters.Get(ctx, conv.Character)
	if err != nil {
		return nil, nil, err
	}
	return conv, character, nil
}

func (r *Runtime) debit(ctx context.Context, callerID string) error {
	if r.opts.Accounts == nil || r.opts.PricePerTurn <= 0 {
		return nil
	}
	return r.opts.Accounts.Debit(ctx, callerID, r.opts.PricePerTurn)
}

// loadHistory materializes the conversation's message references oldest
// first. A dangling reference is logged and skipped rather than failing the
// turn; any other store failure aborts.
func (r *Runtime) loadHistory(ctx context.Context, conv *core.Conversation) ([]core.Message, error) {
	history := make([]core.Message, 0, len(conv.History))
	for _, id := range conv.History {
		msg, err := r.memory.GetOne(ctx, id)
		if errors.Is(err, core.ErrNotFound) {
			r.opts.Logger.Warn("dangling history reference skipped",
				"conversation_id", conv.ID, "message_id", id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load history: %w", err)
		}
		history = append(history, msg)
	}
	return history, nil
}

func (r *Runtime) generate(ctx context.Context, character *core.Character, history []core.Message) (*model.Response, error) {
	req := model.Request{
		Config:   character.Config,
		Messages: model.Pack(character.Config, history),
	}
	if r.registry != nil {
		req.Tools = r.registry.Definitions(character.Functions...)
	}

	resp, err := r.provider.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generate reply: %w", errors.Join(core.ErrUpstream, err))
	}
	return resp, nil
}

// enqueueCalls validates each function-call intent against the registry and
// hands the valid ones to the execution queue. Failures are collected, not
// fatal: an unknown function or a saturated queue rejects that intent alone
// and the turn's persistence proceeds regardless.
func (r *Runtime) enqueueCalls(ctx context.Context, calls []model.FunctionCall, conversationID, messageID string) error {
	if len(calls) == 0 {
		return nil
	}

	var errs []error
	for _, call := range calls {
		if r.registry == nil || r.queue == nil {
			errs = append(errs, fmt.Errorf("%w: %s", core.ErrUnknownFunction, call.Name))
			continue
		}
		if _, err := r.registry.Lookup(call.Name); err != nil {
			r.opts.Logger.Warn("function call rejected",
				"function", call.Name, "conversation_id", conversationID, "error", err)
			errs = append(errs, err)
			continue
		}

		req := core.NewFunctionCallRequest(call.Name, call.Arguments, conversationID, messageID)
		enqueueCtx, cancel := context.WithTimeout(ctx, r.opts.EnqueueTimeout)
		err := r.queue.Enqueue(enqueueCtx, req)
		cancel()
		if err != nil {
			r.opts.Logger.Warn("function call not enqueued",
				"function", call.Name, "conversation_id", conversationID, "error", err)
			errs = append(errs, err)
			continue
		}
		r.opts.Logger.Debug("function call enqueued",
			"request_id", req.ID, "function", call.Name, "conversation_id", conversationID)
	}
	return errors.Join(errs...)
}

// account records token usage on the audit sink and the owner's account.
func (r *Runtime) account(ctx context.Context, conv *core.Conversation, character *core.Character, usage model.TokenUsage) {
	r.opts.Sink.CountTokens(character.Config.Model, conv.Character, usage.TotalTokens)
	if r.opts.Accounts == nil {
		return
	}
	if err := r.opts.Accounts.RecordUsage(ctx, conv.Owner, usage); err != nil {
		r.opts.Logger.Warn("usage not recorded", "owner", conv.Owner, "error", err)
	}
}
