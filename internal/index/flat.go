package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// snapshotVersion guards the on-disk format.
const snapshotVersion = 1

// Flat is a brute-force vector index: contiguous rows scanned linearly on
// every search. Insertion is amortised O(1); search is O(n·d). For the
// corpus sizes a single-node RAG backend serves, the scan is cheaper than
// maintaining a graph structure.
//
// All mutation is exclusive with in-flight searches via a reader-writer
// lock, so a search never observes a torn mid-insert state.
type Flat struct {
	mu        sync.RWMutex
	dimension int
	metric    Metric
	path      string // snapshot file; empty disables persistence
	nextRowID uint64
	rows      []row
	logger    *slog.Logger
}

type row struct {
	RowID    uint64    `json:"row_id"`
	Vector   []float32 `json:"vector"`
	Metadata Metadata  `json:"metadata"`
}

type snapshot struct {
	Version   int    `json:"version"`
	Dimension int    `json:"dimension"`
	Metric    Metric `json:"metric"`
	NextRowID uint64 `json:"next_row_id"`
	Rows      []row  `json:"rows"`
}

// FlatConfig configures a flat index.
type FlatConfig struct {
	Dimension int
	Metric    Metric
	// Path is the snapshot file. When set, the index reloads from it at
	// construction and flushes after every successful mutation. Leave
	// empty for a purely in-memory index.
	Path string
}

// NewFlat creates a flat index, reloading any existing snapshot so that
// previously ingested knowledge survives a restart.
func NewFlat(cfg FlatConfig, logger *slog.Logger) (*Flat, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("index dimension %d must be positive", cfg.Dimension)
	}
	if cfg.Metric == "" {
		cfg.Metric = MetricL2
	}
	if logger == nil {
		logger = slog.Default()
	}

	f := &Flat{
		dimension: cfg.Dimension,
		metric:    cfg.Metric,
		path:      cfg.Path,
		logger:    logger.With("component", "flat-index"),
	}
	if cfg.Path != "" {
		if err := f.load(); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Dimension returns the configured vector width.
func (f *Flat) Dimension() int { return f.dimension }

// Metric returns the distance metric this index was built with.
func (f *Flat) Metric() Metric { return f.metric }

// Size returns the count of live entries.
func (f *Flat) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.rows)
}

// Insert appends a batch of vectors and flushes the snapshot. The batch
// is validated up front and applied atomically: a dimension mismatch or a
// failed flush leaves the index exactly as it was.
func (f *Flat) Insert(ctx context.Context, vectors [][]float32, metas []Metadata) ([]uint64, error) {
	if len(vectors) != len(metas) {
		return nil, fmt.Errorf("got %d vectors but %d metadata entries", len(vectors), len(metas))
	}
	for i, vec := range vectors {
		if len(vec) != f.dimension {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				ErrDimensionMismatch, i, len(vec), f.dimension)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prev := len(f.rows)
	ids := make([]uint64, len(vectors))
	for i, vec := range vectors {
		id := f.nextRowID
		f.nextRowID++
		// Copy the vector: the index owns its storage, callers may
		// reuse their slices.
		owned := make([]float32, len(vec))
		copy(owned, vec)
		f.rows = append(f.rows, row{RowID: id, Vector: owned, Metadata: metas[i]})
		ids[i] = id
	}

	if err := f.flushLocked(); err != nil {
		f.rows = f.rows[:prev]
		// nextRowID stays advanced: ids handed out are burned, never reused.
		return nil, err
	}
	return ids, nil
}

// Search scans all rows and returns the k nearest, ascending by distance
// with ties broken by lower row id.
func (f *Flat) Search(ctx context.Context, query []float32, k int) ([]Result, error) {
	if len(query) != f.dimension {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(query), f.dimension)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	results := make([]Result, 0, len(f.rows))
	for _, r := range f.rows {
		results = append(results, Result{
			RowID:    r.RowID,
			Distance: distance(f.metric, query, r.Vector),
			Metadata: r.Metadata,
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].RowID < results[j].RowID
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// RemoveAll logically clears the index and flushes the empty snapshot.
// Row id assignment continues monotonically so callers holding old ids
// can never confuse pre- and post-clear result sets.
func (f *Flat) RemoveAll(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prev := f.rows
	f.rows = nil
	if err := f.flushLocked(); err != nil {
		f.rows = prev
		return err
	}
	return nil
}

// flushLocked writes the snapshot atomically (temp file + rename).
// Callers must hold the write lock.
func (f *Flat) flushLocked() error {
	if f.path == "" {
		return nil
	}

	snap := snapshot{
		Version:   snapshotVersion,
		Dimension: f.dimension,
		Metric:    f.metric,
		NextRowID: f.nextRowID,
		Rows:      f.rows,
	}
	data, err := json.Marshal(&snap)
	if err != nil {
		return fmt.Errorf("encode index snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write index snapshot: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("commit index snapshot: %w", err)
	}
	return nil
}

// load restores rows and the row id counter from the snapshot file.
// A missing file is a fresh index, not an error.
func (f *Flat) load() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read index snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshotCorrupt, err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrSnapshotCorrupt, snap.Version)
	}
	if snap.Dimension != f.dimension {
		return fmt.Errorf("%w: snapshot dimension %d, configured %d",
			ErrSnapshotCorrupt, snap.Dimension, f.dimension)
	}
	if snap.Metric != f.metric {
		return fmt.Errorf("%w: snapshot metric %q, configured %q",
			ErrSnapshotCorrupt, snap.Metric, f.metric)
	}
	for i, r := range snap.Rows {
		if len(r.Vector) != f.dimension {
			return fmt.Errorf("%w: row %d has %d dimensions", ErrSnapshotCorrupt, i, len(r.Vector))
		}
	}

	f.rows = snap.Rows
	f.nextRowID = snap.NextRowID
	f.logger.Info("restored index snapshot", "rows", len(f.rows), "next_row_id", f.nextRowID)
	return nil
}

// distance computes the configured metric between two vectors of equal
// length.
func distance(metric Metric, a, b []float32) float64 {
	switch metric {
	case MetricCosine:
		var dot, na, nb float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			na += float64(a[i]) * float64(a[i])
			nb += float64(b[i]) * float64(b[i])
		}
		if na == 0 || nb == 0 {
			return 1
		}
		return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
	default: // MetricL2, squared Euclidean
		var sum float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sum += d * d
		}
		return sum
	}
}
