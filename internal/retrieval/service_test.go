package retrieval

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bull/rag-server/internal/docstore"
	"github.com/bull/rag-server/internal/embedding"
	"github.com/bull/rag-server/internal/index"
)

type fixture struct {
	service  *Service
	embedder *embedding.LocalEmbedder
	index    *index.Flat
	docs     *docstore.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	embedder := embedding.NewLocalEmbedder(256)
	idx, err := index.NewFlat(index.FlatConfig{Dimension: embedder.Dimension()}, nil)
	require.NoError(t, err)
	docs, err := docstore.Open(t.TempDir())
	require.NoError(t, err)

	return &fixture{
		service: New(Config{
			Embedder:  embedder,
			Index:     idx,
			Documents: docs,
			DefaultK:  5,
			MaxK:      10,
		}),
		embedder: embedder,
		index:    idx,
		docs:     docs,
	}
}

// indexChunks embeds and inserts chunk texts for one document id.
func (f *fixture) indexChunks(t *testing.T, docID string, texts ...string) {
	t.Helper()
	ctx := context.Background()

	vectors, err := f.embedder.Embed(ctx, texts)
	require.NoError(t, err)
	metas := make([]index.Metadata, len(texts))
	for i, text := range texts {
		metas[i] = index.Metadata{DocumentID: docID, Sequence: i, Text: text}
	}
	_, err = f.index.Insert(ctx, vectors, metas)
	require.NoError(t, err)
}

func TestSearch_ReturnsMostRelevantChunkFirst(t *testing.T) {
	f := newFixture(t)

	f.indexChunks(t, "llamas", "llama herding in the Andes requires patience and good fences")
	f.indexChunks(t, "networking", "tcp congestion control uses additive increase")
	f.indexChunks(t, "cooking", "simmer the broth for two hours before serving")

	results, err := f.service.Search(context.Background(), "What is llama herding?", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, "llamas", results[0].DocumentID)
	for _, r := range results[1:] {
		assert.GreaterOrEqual(t, r.Distance, results[0].Distance)
	}
}

func TestSearch_EmptyQueryRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Search(context.Background(), "", 5)
	assert.ErrorIs(t, err, ErrEmptyQuery)
}

func TestSearch_DefaultsAndCapsK(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 20; i++ {
		f.indexChunks(t, "doc", "some chunk of text to fill the index")
	}

	// k <= 0 falls back to the default.
	results, err := f.service.Search(context.Background(), "text", 0)
	require.NoError(t, err)
	assert.Len(t, results, 5)

	// k above the cap is clamped.
	results, err = f.service.Search(context.Background(), "text", 1000)
	require.NoError(t, err)
	assert.Len(t, results, 10)
}

func TestSearch_EmptyIndexReturnsNoResults(t *testing.T) {
	f := newFixture(t)

	results, err := f.service.Search(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestClear_WipesIndexAndDocuments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.indexChunks(t, "doc", "chunk one", "chunk two")
	require.NoError(t, f.docs.Save("doc", "doc.txt", "", []byte("raw bytes")))

	require.NoError(t, f.service.Clear(ctx))

	stats, err := f.service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)

	results, err := f.service.Search(ctx, "chunk", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestStats_CountsDocumentsAndChunks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.indexChunks(t, "doc-1", "a", "b", "c")
	require.NoError(t, f.docs.Save("doc-1", "doc1.txt", "", []byte("x")))

	stats, err := f.service.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DocumentCount)
	assert.Equal(t, 3, stats.ChunkCount)
	assert.Equal(t, 3, stats.IndexSize)
}

func TestDocument_PassThrough(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.docs.Save("doc-1", "doc1.txt", "Title", []byte("raw content")))

	data, meta, err := f.service.Document("doc-1")
	require.NoError(t, err)
	assert.Equal(t, []byte("raw content"), data)
	assert.Equal(t, "doc1.txt", meta.Filename)

	_, _, err = f.service.Document("missing")
	assert.ErrorIs(t, err, docstore.ErrNotFound)
}
