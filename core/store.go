package core

import "context"

// MemoryStore persists and retrieves conversation messages. Implementations
// may be document oriented, relational or vector backed; the orchestration
// layer depends only on this contract.
//
// Ordering: AddMessages must be atomic per conversation batch — two
// concurrent appends to the same conversation never interleave partially and
// never lose a message. Backends without a given capability return the
// matching sentinel (ErrSearchUnavailable, ErrStorageUnavailable).
type MemoryStore interface {
	// Initialize prepares backend resources (connections, schema, indexes).
	Initialize(ctx context.Context) error

	// AddMessages appends one or more messages atomically.
	AddMessages(ctx context.Context, messages []Message) error

	// GetOne returns the message with the given ID or ErrNotFound.
	GetOne(ctx context.Context, id string) (Message, error)

	// GetAll returns a page of the owner's messages, newest first. Items
	// appended after the first page was read may surface on later pages; no
	// snapshot isolation is promised.
	GetAll(ctx context.Context, ownerID string, limit, offset int) ([]Message, error)

	// Search returns prior messages similar to the query message together
	// with the generation configuration the backend was provisioned with.
	// Similarity is backend specific: substring, full text or vector.
	Search(ctx context.Context, query Message, limit, offset int) ([]Message, GenerationConfig, error)

	// Update replaces existing messages by ID. Used by the regenerate path;
	// fails with ErrNotFound if any ID is absent.
	Update(ctx context.Context, messages []Message) error

	// Delete removes messages by ID. Administrative use only.
	Delete(ctx context.Context, ids []string) error

	// Reset removes every message belonging to the owner. Administrative use
	// only.
	Reset(ctx context.Context, ownerID string) error
}

// ConversationStore persists conversation documents and linearizes history
// appends. AppendHistory serializes concurrent appends to the same
// conversation ID so histories grow strictly in arrival order.
type ConversationStore interface {
	// Create persists a new conversation between owner and character.
	Create(ctx context.Context, owner, character string, public bool) (*Conversation, error)

	// Get returns a copy of the conversation or ErrNotFound.
	Get(ctx context.Context, id string) (*Conversation, error)

	// AppendHistory atomically appends message IDs to the conversation's
	// history and bumps its Updated timestamp.
	AppendHistory(ctx context.Context, conversationID string, messageIDs ...string) error

	// Touch bumps the Updated timestamp without changing history. Used by
	// the regenerate path, which rewrites message content in place.
	Touch(ctx context.Context, conversationID string) error
}

// CharacterStore resolves character personas referenced by conversations.
type CharacterStore interface {
	// Get returns the character or ErrNotFound.
	Get(ctx context.Context, id string) (*Character, error)

	// Put creates or replaces a character.
	Put(ctx context.Context, character *Character) error
}
