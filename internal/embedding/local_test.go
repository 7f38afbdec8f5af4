package embedding

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbedder_Dimension(t *testing.T) {
	assert.Equal(t, 64, NewLocalEmbedder(64).Dimension())
	assert.Equal(t, DefaultLocalDimension, NewLocalEmbedder(0).Dimension())
}

func TestLocalEmbedder_Deterministic(t *testing.T) {
	e := NewLocalEmbedder(128)
	ctx := context.Background()

	first, err := e.EmbedOne(ctx, "llama herding in the Andes")
	require.NoError(t, err)
	second, err := e.EmbedOne(ctx, "llama herding in the Andes")
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestLocalEmbedder_PreservesOrderAndDimension(t *testing.T) {
	e := NewLocalEmbedder(64)

	vectors, err := e.Embed(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)
	for _, v := range vectors {
		assert.Len(t, v, 64)
	}
	assert.NotEqual(t, vectors[0], vectors[1])
}

func TestLocalEmbedder_VectorsAreUnitLength(t *testing.T) {
	e := NewLocalEmbedder(128)

	vec, err := e.EmbedOne(context.Background(), "some moderately long input text")
	require.NoError(t, err)

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, norm, 1e-5)
}

func TestLocalEmbedder_SharedVocabularyIsCloser(t *testing.T) {
	e := NewLocalEmbedder(256)
	ctx := context.Background()

	doc, err := e.EmbedOne(ctx, "llama herding in the Andes")
	require.NoError(t, err)
	near, err := e.EmbedOne(ctx, "what is llama herding")
	require.NoError(t, err)
	far, err := e.EmbedOne(ctx, "tcp congestion control algorithms")
	require.NoError(t, err)

	assert.Less(t, l2dist(doc, near), l2dist(doc, far))
}

func TestLocalEmbedder_CancelledContext(t *testing.T) {
	e := NewLocalEmbedder(64)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Embed(ctx, []string{"text"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEmbedding)
}

func TestTruncate_BoundsInput(t *testing.T) {
	long := strings.Repeat("a", DefaultMaxInputRunes+500)
	got := truncate(long, 0, nil)
	assert.Len(t, got, DefaultMaxInputRunes)

	short := "short"
	assert.Equal(t, short, truncate(short, 100, nil))
}

func l2dist(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
