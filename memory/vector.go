package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/rolemesh/rolemesh/core"
	"github.com/rolemesh/rolemesh/logging"
)

// Embedder turns text into a dense vector. Implementations typically wrap an
// embedding model endpoint.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbedderFunc adapts a plain function into an Embedder.
type EmbedderFunc func(ctx context.Context, text string) ([]float32, error)

// Embed implements Embedder.
func (f EmbedderFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

// VectorOptions configures a VectorStore.
type VectorOptions struct {
	// Config is reported alongside search results.
	Config core.GenerationConfig
	// Logger receives indexing diagnostics. Defaults to NoOpLogger.
	Logger logging.Logger
}

// VectorStore is a MemoryStore that ranks Search results by cosine similarity
// between embeddings. Messages are embedded on write; a message whose
// embedding fails is still stored, just never surfaced by Search, so an
// embedder outage degrades retrieval without losing history.
//
// Only text messages are indexed. Media messages are stored unindexed.
type VectorStore struct {
	mu       sync.RWMutex
	embedder Embedder
	entries  map[string]*vectorEntry
	order    []string
	opts     VectorOptions
}

type vectorEntry struct {
	message   core.Message
	embedding []float32 // nil when unindexed
}

var _ core.MemoryStore = (*VectorStore)(nil)

// NewVectorStore creates a vector store around the given embedder.
func NewVectorStore(embedder Embedder, optFns ...func(o *VectorOptions)) *VectorStore {
	opts := VectorOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &VectorStore{
		embedder: embedder,
		entries:  make(map[string]*vectorEntry),
		opts:     opts,
	}
}

// Initialize implements core.MemoryStore.
func (s *VectorStore) Initialize(_ context.Context) error { return nil }

// AddMessages implements core.MemoryStore. Embeddings are computed outside
// the lock; the batch is then applied atomically.
func (s *VectorStore) AddMessages(ctx context.Context, messages []core.Message) error {
	entries := make([]*vectorEntry, 0, len(messages))
	for _, msg := range messages {
		if msg.ID == "" {
			return fmt.Errorf("add messages: message without ID: %w", core.ErrBadRequest)
		}
		entries = append(entries, &vectorEntry{
			message:   cloneMessage(msg),
			embedding: s.embed(ctx, msg),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range entries {
		s.entries[e.message.ID] = e
		s.order = append(s.order, e.message.ID)
	}
	return nil
}

// GetOne implements core.MemoryStore.
func (s *VectorStore) GetOne(_ context.Context, id string) (core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[id]
	if !ok {
		return core.Message{}, fmt.Errorf("message %q: %w", id, core.ErrNotFound)
	}
	return cloneMessage(e.message), nil
}

// GetAll implements core.MemoryStore, newest first.
func (s *VectorStore) GetAll(_ context.Context, ownerID string, limit, offset int) ([]core.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := []core.Message{}
	skipped := 0
	for i := len(s.order) - 1; i >= 0; i-- {
		e, ok := s.entries[s.order[i]]
		if !ok || e.message.Owner != ownerID {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		result = append(result, cloneMessage(e.message))
		if limit > 0 && len(result) >= limit {
			break
		}
	}
	return result, nil
}

// Search implements core.MemoryStore, ranking indexed messages by cosine
// similarity to the query embedding. A failing query embedding makes search
// unavailable; stored history is unaffected.
func (s *VectorStore) Search(ctx context.Context, query core.Message, limit, offset int) ([]core.Message, core.GenerationConfig, error) {
	queryVec, err := s.embedder.Embed(ctx, query.Text)
	if err != nil {
		return nil, core.GenerationConfig{}, fmt.Errorf("embed query: %w (%v)", core.ErrSearchUnavailable, err)
	}

	s.mu.RLock()
	type scored struct {
		message core.Message
		score   float64
	}
	candidates := []scored{}
	for _, id := range s.order {
		e, ok := s.entries[id]
		if !ok || e.embedding == nil {
			continue
		}
		if query.Owner != "" && e.message.Owner != query.Owner {
			continue
		}
		candidates = append(candidates, scored{
			message: cloneMessage(e.message),
			score:   cosineSimilarity(queryVec, e.embedding),
		})
	}
	s.mu.RUnlock()

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if offset >= len(candidates) {
		return []core.Message{}, s.opts.Config, nil
	}
	candidates = candidates[offset:]
	if limit > 0 && limit < len(candidates) {
		candidates = candidates[:limit]
	}

	result := make([]core.Message, len(candidates))
	for i, c := range candidates {
		result[i] = c.message
	}
	return result, s.opts.Config, nil
}

// Update implements core.MemoryStore, re-embedding the replacement content.
func (s *VectorStore) Update(ctx context.Context, messages []core.Message) error {
	replacements := make([]*vectorEntry, 0, len(messages))
	for _, msg := range messages {
		replacements = append(replacements, &vectorEntry{
			message:   cloneMessage(msg),
			embedding: s.embed(ctx, msg),
		})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range replacements {
		if _, ok := s.entries[r.message.ID]; !ok {
			return fmt.Errorf("update message %q: %w", r.message.ID, core.ErrNotFound)
		}
	}
	for _, r := range replacements {
		s.entries[r.message.ID] = r
	}
	return nil
}

// Delete implements core.MemoryStore. Missing IDs are ignored.
func (s *VectorStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]bool, len(ids))
	for _, id := range ids {
		drop[id] = true
		delete(s.entries, id)
	}
	s.order = compactOrder(s.order, drop)
	return nil
}

// Reset implements core.MemoryStore.
func (s *VectorStore) Reset(_ context.Context, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	drop := make(map[string]bool)
	for id, e := range s.entries {
		if e.message.Owner == ownerID {
			drop[id] = true
			delete(s.entries, id)
		}
	}
	s.order = compactOrder(s.order, drop)
	return nil
}

// embed returns the message embedding or nil when the message is not
// indexable or the embedder fails.
func (s *VectorStore) embed(ctx context.Context, msg core.Message) []float32 {
	if msg.Kind != core.KindText || msg.Text == "" {
		return nil
	}
	vec, err := s.embedder.Embed(ctx, msg.Text)
	if err != nil {
		s.opts.Logger.Warn("message stored unindexed", "message_id", msg.ID, "error", err)
		return nil
	}
	return vec
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
