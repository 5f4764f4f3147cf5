package core

import "time"

// Conversation is the ordered history of one (owner, character) pair. History
// holds message IDs in chronological append order; the messages themselves
// live in a MemoryStore. Append is the only history mutation — regeneration
// replaces the content of the final assistant message through
// MemoryStore.Update without touching the reference list.
//
// Stores hand out defensive copies, so a Conversation value is safe to read
// without synchronization; mutation goes through ConversationStore.
type Conversation struct {
	ID        string    `json:"id"`
	Owner     string    `json:"owner"`
	Character string    `json:"character"`
	Public    bool      `json:"public"`
	History   []string  `json:"history"`
	Created   time.Time `json:"created"`
	Updated   time.Time `json:"updated"`
}

// NewConversation creates an empty private conversation between owner and
// character.
func NewConversation(owner, character string) *Conversation {
	now := time.Now().UTC()
	return &Conversation{
		ID:        NewID(),
		Owner:     owner,
		Character: character,
		History:   []string{},
		Created:   now,
		Updated:   now,
	}
}

// Clone returns a deep copy safe for independent use.
func (c *Conversation) Clone() *Conversation {
	clone := *c
	clone.History = make([]string, len(c.History))
	copy(clone.History, c.History)
	return &clone
}

// Len reports the number of turns in the history.
func (c *Conversation) Len() int { return len(c.History) }

// LastMessageID returns the most recently appended message ID, or "" for an
// empty history.
func (c *Conversation) LastMessageID() string {
	if len(c.History) == 0 {
		return ""
	}
	return c.History[len(c.History)-1]
}

// CanAccess reports whether callerID may read or append to the conversation:
// the owner always can, anyone can if the conversation is public.
func (c *Conversation) CanAccess(callerID string) bool {
	return c.Public || c.Owner == callerID
}
