// Package rolemesh provides a high-level façade over the conversation runtime
// and the function-call executor for building character chat backends. Most
// applications interact with this package by:
//  1. Creating a Mesh via New() around a model provider (optionally overriding
//     the default in-memory stores)
//  2. Provisioning characters and creating conversations
//  3. Starting the executor with Start() and driving turns with Chat() and
//     Regenerate()
//
// All defaults are safe for local development and testing; production
// deployments typically supply a durable memory store, a funded account store
// and a structured logger.
package rolemesh

import (
	"context"

	"github.com/rolemesh/rolemesh/account"
	"github.com/rolemesh/rolemesh/audit"
	"github.com/rolemesh/rolemesh/core"
	"github.com/rolemesh/rolemesh/executor"
	"github.com/rolemesh/rolemesh/fncall"
	"github.com/rolemesh/rolemesh/logging"
	"github.com/rolemesh/rolemesh/memory"
	"github.com/rolemesh/rolemesh/model"
	"github.com/rolemesh/rolemesh/runtime"
)

// Options configures the Mesh instance.
type Options struct {
	// Stores (default to in-memory implementations if not provided).
	Memory        core.MemoryStore
	Conversations core.ConversationStore
	Characters    core.CharacterStore

	// Accounts, when set together with PricePerTurn, gates each turn on the
	// caller's credit balance.
	Accounts     account.Store
	PricePerTurn int64

	// Handlers are the functions characters may invoke. The registry built
	// from them is immutable for the life of the Mesh.
	Handlers []fncall.Handler

	// QueueCapacity bounds pending function-call requests. Zero uses
	// executor.DefaultQueueCapacity.
	QueueCapacity int

	// RetryPolicy bounds per-request retries in the executor.
	RetryPolicy executor.RetryPolicy

	// Sink receives audit events (outcomes, counters). Defaults to NoOpSink.
	Sink audit.Sink

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Mesh is the high-level façade aggregating the runtime, registry, queue and
// executor.
type Mesh struct {
	opts     Options
	runtime  *runtime.Runtime
	executor *executor.Executor
	queue    *executor.Queue
	registry *fncall.Registry
}

// New creates a Mesh around the given provider with optional overrides. Any
// unset store is initialized in memory. It fails only when the handler set is
// invalid (duplicate or unnamed handlers).
func New(provider model.Provider, optFns ...func(o *Options)) (*Mesh, error) {
	store := memory.NewInMemoryStore()
	opts := Options{
		Memory:        store,
		Conversations: store,
		Characters:    memory.NewInMemoryCharacterStore(),
		RetryPolicy:   executor.DefaultRetryPolicy(),
		Sink:          audit.NoOpSink{},
		Logger:        logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	registry, err := fncall.NewRegistry(opts.Handlers...)
	if err != nil {
		return nil, err
	}
	queue := executor.NewQueue(opts.QueueCapacity)

	exec := executor.New(registry, queue, func(o *executor.Options) {
		o.Policy = opts.RetryPolicy
		o.Logger = opts.Logger
		o.Sink = opts.Sink
		o.Memory = opts.Memory
		o.Conversations = opts.Conversations
	})

	rt := runtime.New(opts.Memory, opts.Conversations, opts.Characters, provider, registry, queue,
		func(o *runtime.Options) {
			o.Logger = opts.Logger
			o.Sink = opts.Sink
			o.Accounts = opts.Accounts
			o.PricePerTurn = opts.PricePerTurn
		})

	return &Mesh{opts: opts, runtime: rt, executor: exec, queue: queue, registry: registry}, nil
}

// Start initializes storage and launches the executor consumer. It returns
// once the executor is running; cancel ctx to stop it.
func (m *Mesh) Start(ctx context.Context) error {
	if err := m.opts.Memory.Initialize(ctx); err != nil {
		return err
	}
	// A conversation store backed by something other than the memory store
	// gets its own initialization.
	if init, ok := m.opts.Conversations.(interface{ Initialize(ctx context.Context) error }); ok {
		if any(m.opts.Conversations) != any(m.opts.Memory) {
			if err := init.Initialize(ctx); err != nil {
				return err
			}
		}
	}
	go m.executor.Run(ctx)
	return nil
}

// AddCharacter provisions or replaces a character persona.
func (m *Mesh) AddCharacter(ctx context.Context, character *core.Character) error {
	return m.opts.Characters.Put(ctx, character)
}

// CreateConversation opens a conversation between owner and character. A
// character with a greeting opens the conversation with it as the first
// assistant turn.
func (m *Mesh) CreateConversation(ctx context.Context, owner, characterID string, public bool) (*core.Conversation, error) {
	character, err := m.opts.Characters.Get(ctx, characterID)
	if err != nil {
		return nil, err
	}
	conv, err := m.opts.Conversations.Create(ctx, owner, characterID, public)
	if err != nil {
		return nil, err
	}
	if character.Greeting != "" {
		greeting := core.NewTextMessage(core.RoleAssistant, owner, characterID, character.Greeting)
		if err := m.opts.Memory.AddMessages(ctx, []core.Message{greeting}); err != nil {
			return nil, err
		}
		if err := m.opts.Conversations.AppendHistory(ctx, conv.ID, greeting.ID); err != nil {
			return nil, err
		}
		conv.History = append(conv.History, greeting.ID)
	}
	return conv, nil
}

// Chat runs one conversation turn. See runtime.Runtime.Chat for the error
// contract around rejected function-call intents.
func (m *Mesh) Chat(ctx context.Context, callerID, conversationID, text string) (core.Message, error) {
	return m.runtime.Chat(ctx, callerID, conversationID, text)
}

// Regenerate replaces the final assistant reply of a conversation.
func (m *Mesh) Regenerate(ctx context.Context, callerID, conversationID string) (core.Message, error) {
	return m.runtime.Regenerate(ctx, callerID, conversationID)
}

// Functions returns the registered function names in sorted order.
func (m *Mesh) Functions() []string { return m.registry.Names() }

// QueueDepth reports how many function-call requests are pending.
func (m *Mesh) QueueDepth() int { return m.queue.Len() }
