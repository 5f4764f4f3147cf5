package core

import (
	"testing"
	"time"
)

func TestNewTextMessage(t *testing.T) {
	m := NewTextMessage(RoleUser, "user-1", "char-1", "hello")
	if m.ID == "" {
		t.Fatal("expected generated id")
	}
	if m.Role != RoleUser || m.Kind != KindText {
		t.Fatalf("unexpected role/kind: %s/%s", m.Role, m.Kind)
	}
	if m.Text != "hello" || m.URI != "" || m.Binary != nil {
		t.Fatal("text message must populate only Text")
	}
	if m.CreatedAt.IsZero() || m.CreatedAt.Location() != time.UTC {
		t.Fatal("expected UTC creation timestamp")
	}
}

func TestNewMediaMessage(t *testing.T) {
	m := NewMediaMessage(RoleAssistant, KindImage, "user-1", "char-1", "https://img.example/1.png")
	if m.URI == "" || m.Text != "" {
		t.Fatal("image message must populate only URI")
	}

	// KindText input degrades to a plain text message.
	m = NewMediaMessage(RoleAssistant, KindText, "user-1", "char-1", "payload")
	if m.Kind != KindText || m.Text != "payload" || m.URI != "" {
		t.Fatalf("expected text coercion, got kind=%s text=%q uri=%q", m.Kind, m.Text, m.URI)
	}
}

func TestMessageIDsUnique(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		m := NewTextMessage(RoleUser, "u", "c", "x")
		if seen[m.ID] {
			t.Fatalf("duplicate id %s", m.ID)
		}
		seen[m.ID] = true
	}
}

func TestConversationClone(t *testing.T) {
	c := NewConversation("user-1", "char-1")
	c.History = append(c.History, "m1", "m2")

	clone := c.Clone()
	clone.History[0] = "mutated"
	if c.History[0] != "m1" {
		t.Fatal("clone shares history backing array")
	}
	if clone.ID != c.ID || clone.Owner != c.Owner {
		t.Fatal("clone must preserve identity fields")
	}
}

func TestConversationCanAccess(t *testing.T) {
	c := NewConversation("owner", "char-1")
	if !c.CanAccess("owner") {
		t.Fatal("owner must have access")
	}
	if c.CanAccess("stranger") {
		t.Fatal("stranger must not access a private conversation")
	}
	c.Public = true
	if !c.CanAccess("stranger") {
		t.Fatal("anyone may access a public conversation")
	}
}

func TestConversationLastMessageID(t *testing.T) {
	c := NewConversation("owner", "char-1")
	if c.LastMessageID() != "" {
		t.Fatal("empty history has no last message")
	}
	c.History = append(c.History, "m1", "m2")
	if got := c.LastMessageID(); got != "m2" {
		t.Fatalf("want m2 got %s", got)
	}
}
