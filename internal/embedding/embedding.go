// Package embedding maps text to fixed-dimensional dense vectors.
//
// Two implementations are provided: an OpenAI-backed embedder for real
// deployments and a deterministic local embedder for offline use and
// tests. Both truncate over-length input to a configured rune limit;
// truncation is logged, never silent.
package embedding

import (
	"context"
	"errors"
	"log/slog"
)

// ErrEmbedding indicates the embedding backend is unavailable or rejected
// the input. It fails the current file during ingestion without aborting
// sibling files.
var ErrEmbedding = errors.New("embedding failed")

// DefaultMaxInputRunes bounds a single input text. Longer inputs are
// truncated before being sent to the model.
const DefaultMaxInputRunes = 32000

// Embedder converts texts into vectors of a fixed dimension.
type Embedder interface {
	// Embed maps each text to one vector, preserving order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// EmbedOne is the single-text convenience used for queries.
	EmbedOne(ctx context.Context, text string) ([]float32, error)
	// Dimension is the width of every vector this embedder produces.
	Dimension() int
}

// truncate enforces the input length limit. The policy is truncation,
// not rejection: a partial embedding of an oversized chunk is still a
// useful retrieval signal.
func truncate(text string, maxRunes int, logger *slog.Logger) string {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxInputRunes
	}
	runes := []rune(text)
	if len(runes) <= maxRunes {
		return text
	}
	if logger != nil {
		logger.Warn("truncating embedding input",
			"input_runes", len(runes),
			"max_runes", maxRunes,
		)
	}
	return string(runes[:maxRunes])
}
