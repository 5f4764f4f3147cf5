package memory

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rolemesh/rolemesh/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder maps text to a fixed 3-axis vector based on keyword
// presence, deterministic enough to assert on ranking.
func keywordEmbedder() Embedder {
	return EmbedderFunc(func(_ context.Context, text string) ([]float32, error) {
		lower := strings.ToLower(text)
		vec := make([]float32, 3)
		for i, kw := range []string{"travel", "food", "music"} {
			if strings.Contains(lower, kw) {
				vec[i] = 1
			}
		}
		return vec, nil
	})
}

type failingEmbedder struct{ err error }

func (f failingEmbedder) Embed(context.Context, string) ([]float32, error) { return nil, f.err }

func TestVectorSearchRanking(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore(keywordEmbedder())

	require.NoError(t, store.AddMessages(ctx, []core.Message{
		core.NewTextMessage(core.RoleUser, "alice", "char-1", "I enjoy travel and food"),
		core.NewTextMessage(core.RoleUser, "alice", "char-1", "mostly music these days"),
		core.NewTextMessage(core.RoleUser, "alice", "char-1", "travel is my passion"),
	}))

	hits, _, err := store.Search(ctx, core.Message{Owner: "alice", Text: "travel"}, 2, 0)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "travel is my passion", hits[0].Text)
	assert.Equal(t, "I enjoy travel and food", hits[1].Text)
}

func TestVectorEmbedFailureDegrades(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore(failingEmbedder{err: errors.New("embedder down")})

	msg := core.NewTextMessage(core.RoleUser, "alice", "char-1", "still stored")
	require.NoError(t, store.AddMessages(ctx, []core.Message{msg}))

	// The message survives unindexed.
	got, err := store.GetOne(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, "still stored", got.Text)

	// Query embedding failure makes search unavailable.
	_, _, err = store.Search(ctx, core.Message{Text: "anything"}, 10, 0)
	assert.ErrorIs(t, err, core.ErrSearchUnavailable)
}

func TestVectorMediaMessagesUnindexed(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore(keywordEmbedder())

	img := core.NewMediaMessage(core.RoleUser, core.KindImage, "alice", "char-1", "https://cdn.example/pic.png")
	txt := core.NewTextMessage(core.RoleUser, "alice", "char-1", "music recommendations")
	require.NoError(t, store.AddMessages(ctx, []core.Message{img, txt}))

	hits, _, err := store.Search(ctx, core.Message{Text: "music"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, txt.ID, hits[0].ID)

	all, err := store.GetAll(ctx, "alice", 0, 0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestVectorUpdateReindexes(t *testing.T) {
	ctx := context.Background()
	store := NewVectorStore(keywordEmbedder())

	msg := core.NewTextMessage(core.RoleAssistant, "alice", "char-1", "all about food")
	require.NoError(t, store.AddMessages(ctx, []core.Message{msg}))

	msg.Text = "all about music"
	require.NoError(t, store.Update(ctx, []core.Message{msg}))

	hits, _, err := store.Search(ctx, core.Message{Text: "music"}, 10, 0)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "all about music", hits[0].Text)

	ghost := core.NewTextMessage(core.RoleUser, "alice", "char-1", "ghost")
	assert.ErrorIs(t, store.Update(ctx, []core.Message{ghost}), core.ErrNotFound)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosineSimilarity([]float32{1, 0}, []float32{1}))
	assert.Zero(t, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}
