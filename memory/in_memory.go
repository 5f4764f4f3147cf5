package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rolemesh/rolemesh/core"
)

// InMemoryOptions configures an InMemoryStore.
type InMemoryOptions struct {
	// Config is reported alongside search results so callers can see which
	// generation configuration the store was provisioned with.
	Config core.GenerationConfig
}

// InMemoryStore is a process-local MemoryStore and ConversationStore. All
// state lives behind a single RWMutex and every read hands out a copy, so
// values held by callers never change underneath them.
//
// Search is a linear substring scan over message text. Suitable for tests and
// demos; use SQLiteStore or VectorStore for anything persistent.
type InMemoryStore struct {
	mu            sync.RWMutex
	messages      map[string]core.Message
	order         []string // message IDs in insertion order
	conversations map[string]*core.Conversation
	opts          InMemoryOptions
}

var (
	_ core.MemoryStore       = (*InMemoryStore)(nil)
	_ core.ConversationStore = (*InMemoryStore)(nil)
)

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore(optFns ...func(o *InMemoryOptions)) *InMemoryStore {
	opts := InMemoryOptions{}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &InMemoryStore{
		messages:      make(map[string]core.Message),
		conversations: make(map[string]*core.Conversation),
		opts:          opts,
	}
}

// Initialize implements core.MemoryStore. It is a no-op for the in-memory
// backend.
func (s *InMemoryStore) Initialize(_ context.Context) error { return nil }

// AddMessages implements core.MemoryStore. The batch is applied under one
// lock acquisition, so concurrent batches never interleave.
func (s *InMemoryStore) AddMessages(_ context.Context, messages []core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range messages {
		if msg.ID == "" {
			return fmt.Errorf("add messages: message without ID: %w", core.ErrBadRequest)
		}
		s.messages[msg.ID] = cloneMessage(msg)
		s.order = append(s.order, msg.ID)
	}
	return nil
}

// GetOne implements core.MemoryStore.
func (s *InMemoryStore) GetOne(_ context.Context, id string) (core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	if !ok {
		return core.Message{}, fmt.Errorf("message %q: %w", id, core.ErrNotFound)
	}
	return cloneMessage(msg), nil
}

// GetAll implements core.MemoryStore, returning the owner's messages newest
// first. A non-positive limit returns everything after the offset.
func (s *InMemoryStore) GetAll(_ context.Context, ownerID string, limit, offset int) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []core.Message{}
	skipped := 0
	for i := len(s.order) - 1; i >= 0; i-- {
		msg, ok := s.messages[s.order[i]]
		if !ok || msg.Owner != ownerID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, cloneMessage(msg))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Search implements core.MemoryStore with case-insensitive substring matching
// over message text, newest first.
func (s *InMemoryStore) Search(_ context.Context, query core.Message, limit, offset int) ([]core.Message, core.GenerationConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(query.Text)
	result := []core.Message{}
	skipped := 0
	for i := len(s.order) - 1; i >= 0; i-- {
		msg, ok := s.messages[s.order[i]]
		if !ok {
			continue
		}
		if query.Owner != "" && msg.Owner != query.Owner {
			continue
		}
		if needle != "" && !strings.Contains(strings.ToLower(msg.Text), needle) {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, cloneMessage(msg))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, s.opts.Config, nil
}

// Update implements core.MemoryStore. Every ID must already exist; the batch
// is rejected whole if any is missing.
func (s *InMemoryStore) Update(_ context.Context, messages []core.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, msg := range messages {
		if _, ok := s.messages[msg.ID]; !ok {
			return fmt.Errorf("update message %q: %w", msg.ID, core.ErrNotFound)
		}
	}
	for _, msg := range messages {
		s.messages[msg.ID] = cloneMessage(msg)
	}
	return nil
}

// Delete implements core.MemoryStore. Missing IDs are ignored so deletes are
// idempotent.
func (s *InMemoryStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
		delete(s.messages, id)
	}
	s.order = compactOrder(s.order, drop)
	return nil
}

// Reset implements core.MemoryStore, dropping every message the owner has.
func (s *InMemoryStore) Reset(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]bool)
	for id, msg := range s.messages {
		if msg.Owner == ownerID {
			drop[id] = true
			delete(s.messages, id)
		}
	}
	s.order = compactOrder(s.order, drop)
	return nil
}

// Create implements core.ConversationStore.
func (s *InMemoryStore) Create(_ context.Context, owner, character string, public bool) (*core.Conversation, error) {
	conv := core.NewConversation(owner, character)
	conv.Public = public

	s.mu.Lock()
	s.conversations[conv.ID] = conv
	s.mu.Unlock()

	return conv.Clone(), nil
}

// Get implements core.ConversationStore.
func (s *InMemoryStore) Get(_ context.Context, id string) (*core.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, fmt.Errorf("conversation %q: %w", id, core.ErrNotFound)
	}
	return conv.Clone(), nil
}

// AppendHistory implements core.ConversationStore. Appends to the same
// conversation are serialized by the store lock, so history grows strictly in
// arrival order.
func (s *InMemoryStore) AppendHistory(_ context.Context, conversationID string, messageIDs ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation %q: %w", conversationID, core.ErrNotFound)
	}
	conv.History = append(conv.History, messageIDs...)
	conv.Updated = time.Now().UTC()
	return nil
}

// Touch implements core.ConversationStore.
func (s *InMemoryStore) Touch(_ context.Context, conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation %q: %w", conversationID, core.ErrNotFound)
	}
	conv.Updated = time.Now().UTC()
	return nil
}

func cloneMessage(msg core.Message) core.Message {
	clone := msg
	if msg.Binary != nil {
		clone.Binary = make([]byte, len(msg.Binary))
		copy(clone.Binary, msg.Binary)
	}
	return clone
}

func compactOrder(order []string, drop map[string]bool) []string {
	if len(drop) == 0 {
		return order
	}
	kept := order[:0]
	for _, id := range order {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	return kept
}
