// Package retrieval is the query-side façade over the embedder, the
// vector index, and the document store.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bull/rag-server/internal/docstore"
	"github.com/bull/rag-server/internal/embedding"
	"github.com/bull/rag-server/internal/index"
	"github.com/bull/rag-server/internal/metrics"
)

// ErrEmptyQuery indicates a blank search query.
var ErrEmptyQuery = errors.New("empty query")

// SearchResult is one retrieved chunk, readable enough to hand to an LLM
// prompt builder.
type SearchResult struct {
	Text       string  `json:"text"`
	DocumentID string  `json:"document_id"`
	Sequence   int     `json:"sequence"`
	Distance   float64 `json:"distance"`
}

// Stats summarises the knowledge base.
type Stats struct {
	DocumentCount int `json:"document_count"`
	ChunkCount    int `json:"chunk_count"`
	IndexSize     int `json:"index_size"`
}

// Service exposes search, clear and stats over the shared index. It is
// constructed once at startup and passed by reference to every serving
// surface, so tests can build independent instances.
type Service struct {
	embedder  embedding.Embedder
	index     index.Index
	documents *docstore.Store
	metrics   *metrics.Metrics
	logger    *slog.Logger
	defaultK  int
	maxK      int
}

// Config wires the service's collaborators.
type Config struct {
	Embedder  embedding.Embedder
	Index     index.Index
	Documents *docstore.Store
	Metrics   *metrics.Metrics
	Logger    *slog.Logger
	DefaultK  int
	MaxK      int
}

// New creates the retrieval service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	defaultK := cfg.DefaultK
	if defaultK <= 0 {
		defaultK = 5
	}
	maxK := cfg.MaxK
	if maxK <= 0 {
		maxK = 50
	}
	return &Service{
		embedder:  cfg.Embedder,
		index:     cfg.Index,
		documents: cfg.Documents,
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "retrieval"),
		defaultK:  defaultK,
		maxK:      maxK,
	}
}

// DefaultK returns the configured default result count.
func (s *Service) DefaultK() int { return s.defaultK }

// Search embeds the query once, runs the nearest-neighbour lookup, and
// reconstructs readable results. Search is synchronous, so embedding and
// index errors propagate directly to the caller.
func (s *Service) Search(ctx context.Context, query string, k int) ([]SearchResult, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}
	if k <= 0 {
		k = s.defaultK
	}
	if k > s.maxK {
		k = s.maxK
	}

	start := time.Now()
	vector, err := s.embedder.EmbedOne(ctx, query)
	if err != nil {
		s.observeSearch("error", start)
		return nil, fmt.Errorf("embed query: %w", err)
	}

	hits, err := s.index.Search(ctx, vector, k)
	if err != nil {
		s.observeSearch("error", start)
		return nil, fmt.Errorf("index search: %w", err)
	}

	results := make([]SearchResult, len(hits))
	for i, hit := range hits {
		results[i] = SearchResult{
			Text:       hit.Metadata.Text,
			DocumentID: hit.Metadata.DocumentID,
			Sequence:   hit.Metadata.Sequence,
			Distance:   hit.Distance,
		}
	}

	outcome := "ok"
	if len(results) == 0 {
		outcome = "empty"
	}
	s.observeSearch(outcome, start)
	s.logger.Debug("search served", "k", k, "results", len(results))
	return results, nil
}

// Document returns the raw stored bytes and manifest entry for a
// document id, for display purposes. Pass-through, no transformation.
func (s *Service) Document(id string) ([]byte, docstore.Entry, error) {
	meta, err := s.documents.Meta(id)
	if err != nil {
		return nil, docstore.Entry{}, err
	}
	data, err := s.documents.Read(id)
	if err != nil {
		return nil, docstore.Entry{}, err
	}
	return data, meta, nil
}

// Documents lists the stored document manifest.
func (s *Service) Documents() []docstore.Entry {
	return s.documents.List()
}

// Clear wipes the vector index and every stored document blob.
// Destructive and irreversible; intended for maintenance and testing.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.index.RemoveAll(ctx); err != nil {
		return fmt.Errorf("clear index: %w", err)
	}
	if err := s.documents.Clear(); err != nil {
		return fmt.Errorf("clear documents: %w", err)
	}
	if s.metrics != nil {
		s.metrics.IndexSize.Set(0)
	}
	s.logger.Warn("knowledge base cleared")
	return nil
}

// Stats reports document, chunk and index counts. Chunk count equals
// index size: one live index entry per chunk.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	size := s.index.Size()
	return Stats{
		DocumentCount: s.documents.Count(),
		ChunkCount:    size,
		IndexSize:     size,
	}, nil
}

func (s *Service) observeSearch(outcome string, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.SearchRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.SearchLatency.Observe(time.Since(start).Seconds())
}
