package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// DefaultLocalDimension is the vector width of the local embedder when no
// dimension is configured.
const DefaultLocalDimension = 256

// LocalEmbedder is a deterministic, dependency-free embedder based on
// token feature hashing. It is not a substitute for a trained model, but
// texts sharing vocabulary land close together under L2 distance, which
// is enough for offline operation and for exercising the full pipeline
// in tests. Identical input always yields a bit-identical vector.
type LocalEmbedder struct {
	dimension     int
	maxInputRunes int
}

// NewLocalEmbedder creates a local embedder with the given dimension.
// Dimension values <= 0 fall back to DefaultLocalDimension.
func NewLocalEmbedder(dimension int) *LocalEmbedder {
	if dimension <= 0 {
		dimension = DefaultLocalDimension
	}
	return &LocalEmbedder{
		dimension:     dimension,
		maxInputRunes: DefaultMaxInputRunes,
	}
}

// Dimension returns the configured vector width.
func (e *LocalEmbedder) Dimension() int { return e.dimension }

// Embed maps each text to one vector, preserving order.
func (e *LocalEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrEmbedding, ctx.Err())
		default:
		}
		vectors[i] = e.embed(text)
	}
	return vectors, nil
}

// EmbedOne embeds a single text.
func (e *LocalEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embed hashes each token into a bucket with a hash-derived sign, then
// L2-normalises so distances are comparable across text lengths.
func (e *LocalEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dimension)
	for _, token := range tokenize(truncate(text, e.maxInputRunes, nil)) {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()
		bucket := int(sum % uint64(e.dimension))
		if sum&(1<<63) != 0 {
			vec[bucket]--
		} else {
			vec[bucket]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
