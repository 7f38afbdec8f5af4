package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// ErrQdrantUnreachable indicates the Qdrant server failed its startup
// health check.
var ErrQdrantUnreachable = errors.New("qdrant server unreachable")

// upsertBatchSize bounds points per upsert request.
const upsertBatchSize = 100

// QdrantConfig configures the Qdrant-backed index.
type QdrantConfig struct {
	Host       string
	Port       int
	Collection string
	Dimension  int
	Metric     Metric
}

// Qdrant implements Index against a remote Qdrant collection. Row ids are
// numeric point ids assigned from a local monotonic counter, recovered at
// startup by scanning existing points. Unlike the flat backend, distance
// ties are ordered by the server rather than strictly by insertion order.
type Qdrant struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     Metric
	logger     *slog.Logger

	mu        sync.Mutex
	nextRowID uint64
	size      int
}

// NewQdrant connects to Qdrant, verifies health with retry, ensures the
// collection exists, and recovers the row id counter.
func NewQdrant(ctx context.Context, cfg QdrantConfig, logger *slog.Logger) (*Qdrant, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("index dimension %d must be positive", cfg.Dimension)
	}
	if cfg.Collection == "" {
		cfg.Collection = "chunks"
	}
	if cfg.Metric == "" {
		cfg.Metric = MetricL2
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.Host,
		Port: cfg.Port,
	})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}

	q := &Qdrant{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimension,
		metric:     cfg.Metric,
		logger:     logger.With("component", "qdrant-index"),
	}

	if err := q.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrQdrantUnreachable, err)
	}
	if err := q.ensureCollection(ctx); err != nil {
		client.Close()
		return nil, err
	}
	if err := q.recoverState(ctx); err != nil {
		client.Close()
		return nil, err
	}
	return q, nil
}

// Dimension returns the configured vector width.
func (q *Qdrant) Dimension() int { return q.dimension }

// Size returns the count of live entries.
func (q *Qdrant) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Close releases the underlying gRPC connection.
func (q *Qdrant) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}

// healthCheckWithRetry probes the server with exponential backoff.
// Initial interval 500ms, max interval 10s, max elapsed 30s.
func (q *Qdrant) healthCheckWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		result, err := q.client.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if result == nil || result.Title == "" {
			return fmt.Errorf("health check returned invalid response")
		}
		return nil
	}
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// ensureCollection creates the collection if missing. Idempotent.
func (q *Qdrant) ensureCollection(ctx context.Context) error {
	collections, err := q.client.ListCollections(ctx)
	if err != nil {
		return fmt.Errorf("list collections: %w", err)
	}
	for _, name := range collections {
		if name == q.collection {
			return nil
		}
	}

	dist := qdrant.Distance_Euclid
	if q.metric == MetricCosine {
		dist = qdrant.Distance_Cosine
	}
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: dist,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	return nil
}

// recoverState scans existing point ids to restore the size counter and
// continue row id assignment past the highest id ever used.
func (q *Qdrant) recoverState(ctx context.Context) error {
	var (
		count  int
		maxID  uint64
		offset *qdrant.PointId
	)
	batch := uint32(256)
	for {
		results, err := q.client.Scroll(ctx, &qdrant.ScrollPoints{
			CollectionName: q.collection,
			Limit:          qdrant.PtrOf(batch),
			Offset:         offset,
			WithPayload:    qdrant.NewWithPayload(false),
		})
		if err != nil {
			return fmt.Errorf("scan existing points: %w", err)
		}
		for _, point := range results {
			count++
			if id := point.Id.GetNum(); id >= maxID {
				maxID = id + 1
			}
		}
		if uint32(len(results)) < batch {
			break
		}
		offset = results[len(results)-1].Id
	}

	q.mu.Lock()
	q.size = count
	if maxID > q.nextRowID {
		q.nextRowID = maxID
	}
	q.mu.Unlock()

	q.logger.Info("recovered qdrant index state", "points", count, "next_row_id", maxID)
	return nil
}

// Insert validates and upserts the batch, returning assigned row ids.
func (q *Qdrant) Insert(ctx context.Context, vectors [][]float32, metas []Metadata) ([]uint64, error) {
	if len(vectors) != len(metas) {
		return nil, fmt.Errorf("got %d vectors but %d metadata entries", len(vectors), len(metas))
	}
	for i, vec := range vectors {
		if len(vec) != q.dimension {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(vec), q.dimension)
		}
	}

	q.mu.Lock()
	ids := make([]uint64, len(vectors))
	for i := range vectors {
		ids[i] = q.nextRowID
		q.nextRowID++
	}
	q.mu.Unlock()

	points := make([]*qdrant.PointStruct, len(vectors))
	for i, vec := range vectors {
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(ids[i]),
			Vectors: qdrant.NewVectors(vec...),
			Payload: qdrant.NewValueMap(map[string]any{
				"document_id": metas[i].DocumentID,
				"sequence":    metas[i].Sequence,
				"text":        metas[i].Text,
			}),
		}
	}

	for start := 0; start < len(points); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(points))
		if err := q.upsertWithRetry(ctx, points[start:end]); err != nil {
			return nil, fmt.Errorf("upsert batch %d-%d: %w", start, end, err)
		}
		q.mu.Lock()
		q.size += end - start
		q.mu.Unlock()
	}
	return ids, nil
}

// upsertWithRetry performs one upsert with exponential backoff.
func (q *Qdrant) upsertWithRetry(ctx context.Context, points []*qdrant.PointStruct) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: q.collection,
			Points:         points,
		})
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// Search queries the collection and maps hits back to Results.
func (q *Qdrant) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != q.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(query), q.dimension)
	}
	if k <= 0 {
		return nil, nil
	}

	hits, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query: %w", err)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		payload := hit.Payload
		dist := float64(hit.Score)
		if q.metric == MetricL2 {
			// Qdrant reports Euclidean distance; square it so both
			// backends report the same metric.
			dist = dist * dist
		} else {
			// Cosine scores are similarities in [0,1]; convert to distance.
			dist = 1 - dist
		}
		results = append(results, Result{
			RowID:    hit.Id.GetNum(),
			Distance: dist,
			Metadata: Metadata{
				DocumentID: payload["document_id"].GetStringValue(),
				Sequence:   int(payload["sequence"].GetIntegerValue()),
				Text:       payload["text"].GetStringValue(),
			},
		})
	}
	return results, nil
}

// RemoveAll drops and recreates the collection. The row id counter is
// preserved so ids keep increasing across clears.
func (q *Qdrant) RemoveAll(ctx context.Context) error {
	if err := q.client.DeleteCollection(ctx, q.collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	if err := q.ensureCollection(ctx); err != nil {
		return err
	}
	q.mu.Lock()
	q.size = 0
	q.mu.Unlock()
	return nil
}
