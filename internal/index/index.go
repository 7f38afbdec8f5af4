// Package index stores embedding vectors with chunk metadata and answers
// k-nearest-neighbour queries. The default backend is a flat in-process
// index persisted to disk; a Qdrant-backed implementation is available
// for deployments that already run a vector database.
package index

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch indicates a vector whose width differs from
	// the index's configured dimension. The offending batch is rejected
	// as a whole; the index is never left partially mutated.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrSnapshotCorrupt indicates the on-disk snapshot could not be
	// decoded or disagrees with the configured dimension or metric.
	ErrSnapshotCorrupt = errors.New("index snapshot corrupt")
)

// Metric selects the distance function. An index is constructed with one
// metric and never mixes metrics between inserts and searches.
type Metric string

const (
	// MetricL2 is squared Euclidean distance, the default.
	MetricL2 Metric = "l2"
	// MetricCosine is cosine distance (1 - cosine similarity).
	MetricCosine Metric = "cosine"
)

// ParseMetric maps a config string to a Metric, defaulting to L2.
func ParseMetric(s string) (Metric, error) {
	switch s {
	case "", string(MetricL2):
		return MetricL2, nil
	case string(MetricCosine):
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("unknown distance metric %q", s)
	}
}

// Metadata is the payload stored beside each vector, enough to
// reconstruct a readable search result.
type Metadata struct {
	DocumentID string `json:"document_id"`
	Sequence   int    `json:"sequence"`
	Text       string `json:"text"`
}

// Result is one search hit.
type Result struct {
	RowID    uint64
	Distance float64
	Metadata Metadata
}

// Index is the vector store contract shared by the flat and Qdrant
// backends.
type Index interface {
	// Insert appends vectors with their metadata and returns the
	// assigned row ids, in order. Row ids increase monotonically and
	// are never reused, even after RemoveAll.
	Insert(ctx context.Context, vectors [][]float32, metas []Metadata) ([]uint64, error)

	// Search returns up to k entries ordered by ascending distance,
	// ties broken by lower row id. Fewer than k results are returned
	// when fewer entries exist.
	Search(ctx context.Context, query []float32, k int) ([]Result, error)

	// RemoveAll logically clears every entry. Row id assignment
	// continues from where it left off.
	RemoveAll(ctx context.Context) error

	// Size is the count of currently live entries.
	Size() int

	// Dimension is the configured vector width.
	Dimension() int
}
