package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rolemesh/rolemesh/core"
)

// InMemoryCharacterStore is a process-local CharacterStore. Characters are
// provisioned at startup and read on every chat turn, so reads take the
// shared lock and hand out copies.
type InMemoryCharacterStore struct {
	mu         sync.RWMutex
	characters map[string]*core.Character
}

var _ core.CharacterStore = (*InMemoryCharacterStore)(nil)

// NewInMemoryCharacterStore creates an empty character store.
func NewInMemoryCharacterStore() *InMemoryCharacterStore {
	return &InMemoryCharacterStore{characters: make(map[string]*core.Character)}
}

// Get implements core.CharacterStore.
func (s *InMemoryCharacterStore) Get(_ context.Context, id string) (*core.Character, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.characters[id]
	if !ok {
		return nil, fmt.Errorf("character %q: %w", id, core.ErrNotFound)
	}
	return cloneCharacter(ch), nil
}

// Put implements core.CharacterStore.
func (s *InMemoryCharacterStore) Put(_ context.Context, character *core.Character) error {
	if character == nil || character.ID == "" {
		return fmt.Errorf("character without ID: %w", core.ErrBadRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.characters[character.ID] = cloneCharacter(character)
	return nil
}

func cloneCharacter(ch *core.Character) *core.Character {
	clone := *ch
	if ch.Functions != nil {
		clone.Functions = make([]string, len(ch.Functions))
		copy(clone.Functions, ch.Functions)
	}
	return &clone
}
