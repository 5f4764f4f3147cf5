package core

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies the speaker of a conversation turn.
type Role string

const (
	// RoleSystem marks instruction turns injected by the platform.
	RoleSystem Role = "system"
	// RoleUser marks turns authored by the human participant.
	RoleUser Role = "user"
	// RoleAssistant marks turns generated by the character's model.
	RoleAssistant Role = "assistant"
	// RoleToolCall marks turns recording the outcome of a function call.
	RoleToolCall Role = "tool_call"
)

// ContentKind identifies which payload field of a Message is populated.
type ContentKind string

const (
	// KindText messages carry their payload in Message.Text.
	KindText ContentKind = "text"
	// KindImage messages reference their payload via Message.URI.
	KindImage ContentKind = "image"
	// KindAudio messages reference their payload via Message.URI.
	KindAudio ContentKind = "audio"
)

// Message is one turn of a conversation between a user and a character.
// Role and Kind are fixed at construction; exactly one of Text, Binary or URI
// is populated, determined by Kind. Messages are value types: stores persist
// and return copies, so a Message held by a caller never changes underneath it.
type Message struct {
	ID        string      `json:"id"`
	Role      Role        `json:"role"`
	Kind      ContentKind `json:"kind"`
	Owner     string      `json:"owner"`
	Character string      `json:"character"`
	Text      string      `json:"text,omitempty"`
	Binary    []byte      `json:"binary,omitempty"`
	URI       string      `json:"uri,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewID generates a globally unique identifier for messages, conversations
// and function-call requests.
func NewID() string { return uuid.NewString() }

// NewTextMessage constructs a text message with a fresh ID and UTC timestamp.
func NewTextMessage(role Role, owner, character, text string) Message {
	return Message{
		ID:        NewID(),
		Role:      role,
		Kind:      KindText,
		Owner:     owner,
		Character: character,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

// NewMediaMessage constructs an image or audio message referencing an external
// URI. Kind must be KindImage or KindAudio; KindText input is coerced to a
// text message carrying the URI as its text so the one-payload rule holds.
func NewMediaMessage(role Role, kind ContentKind, owner, character, uri string) Message {
	if kind == KindText {
		return NewTextMessage(role, owner, character, uri)
	}
	return Message{
		ID:        NewID(),
		Role:      role,
		Kind:      kind,
		Owner:     owner,
		Character: character,
		URI:       uri,
		CreatedAt: time.Now().UTC(),
	}
}
