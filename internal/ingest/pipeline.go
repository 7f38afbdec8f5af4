package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bull/rag-server/internal/chunker"
	"github.com/bull/rag-server/internal/docstore"
	"github.com/bull/rag-server/internal/embedding"
	"github.com/bull/rag-server/internal/extract"
	"github.com/bull/rag-server/internal/index"
	"github.com/bull/rag-server/internal/metrics"
)

// FileUpload is one accepted file, held in memory until the worker
// processes it.
type FileUpload struct {
	Filename string
	Data     []byte
}

// PipelineConfig wires the pipeline's collaborators.
type PipelineConfig struct {
	Extractor *extract.Extractor
	Chunker   *chunker.Chunker
	Embedder  embedding.Embedder
	Index     index.Index
	Documents *docstore.Store
	Tracker   *Tracker
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// QueueSize bounds pending jobs. Submissions beyond it fail the job
	// immediately instead of blocking the caller.
	QueueSize int
	// JobRetention is how long terminal jobs stay pollable. Zero keeps
	// them forever.
	JobRetention time.Duration
}

// Pipeline accepts ingestion jobs and processes them on a background
// worker: extract text, chunk, embed, insert into the index, persist the
// raw blob. Submission never blocks; progress is observable through the
// Tracker.
type Pipeline struct {
	extractor *extract.Extractor
	chunker   *chunker.Chunker
	embedder  embedding.Embedder
	index     index.Index
	documents *docstore.Store
	tracker   *Tracker
	metrics   *metrics.Metrics
	logger    *slog.Logger
	retention time.Duration
	queue     chan queuedJob
}

type queuedJob struct {
	id    string
	files []FileUpload
}

// NewPipeline creates a pipeline. Run must be started for submitted jobs
// to make progress.
func NewPipeline(cfg PipelineConfig) *Pipeline {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		extractor: cfg.Extractor,
		chunker:   cfg.Chunker,
		embedder:  cfg.Embedder,
		index:     cfg.Index,
		documents: cfg.Documents,
		tracker:   cfg.Tracker,
		metrics:   cfg.Metrics,
		logger:    logger.With("component", "ingest-pipeline"),
		retention: cfg.JobRetention,
		queue:     make(chan queuedJob, queueSize),
	}
}

// Submit accepts files for ingestion and returns the pending job
// immediately. The only submission-time failure is an empty file list;
// everything else is reported through the job's state.
func (p *Pipeline) Submit(files []FileUpload) (Job, error) {
	if len(files) == 0 {
		return Job{}, fmt.Errorf("no files submitted")
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Filename
	}
	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.NewString(),
		State:     StatePending,
		Files:     names,
		Total:     len(files),
		CreatedAt: now,
		UpdatedAt: now,
	}
	p.tracker.put(job)

	select {
	case p.queue <- queuedJob{id: job.ID, files: files}:
	default:
		// Queue full. The caller still gets a job handle; the job just
		// fails instead of blocking the accepting request.
		failed := *job
		failed.State = StateFailed
		failed.Error = "ingestion queue full"
		failed.UpdatedAt = time.Now().UTC()
		p.tracker.put(&failed)
		if p.metrics != nil {
			p.metrics.JobsCompletedTotal.WithLabelValues(string(StateFailed)).Inc()
		}
		p.logger.Warn("rejected ingestion job, queue full", "job_id", job.ID, "files", len(files))
		return failed, nil
	}

	p.logger.Info("accepted ingestion job", "job_id", job.ID, "files", len(files))
	return *job, nil
}

// Run processes queued jobs until ctx is cancelled. A job that has
// started processing runs to completion or failure; cancellation takes
// effect between jobs. Terminal jobs past retention are swept
// periodically.
func (p *Pipeline) Run(ctx context.Context) {
	sweep := time.NewTicker(time.Minute)
	defer sweep.Stop()

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("ingestion worker stopping")
			return
		case <-sweep.C:
			if removed := p.tracker.Sweep(p.retention, time.Now().UTC()); removed > 0 {
				p.logger.Debug("swept terminal jobs", "removed", removed)
			}
		case qj := <-p.queue:
			p.process(ctx, qj)
		}
	}
}

// process runs one job: files in submission order, each file an
// independent tagged outcome. Partial progress stays in the index; the
// job fails only when every file fails.
func (p *Pipeline) process(ctx context.Context, qj queuedJob) {
	job, err := p.tracker.Get(qj.id)
	if err != nil {
		p.logger.Error("queued job vanished from tracker", "job_id", qj.id)
		return
	}

	job.State = StateProcessing
	job.UpdatedAt = time.Now().UTC()
	p.tracker.put(&job)

	start := time.Now()
	var fileErrors []FileError
	processed := 0

	for _, file := range qj.files {
		chunks, err := p.processFile(ctx, file)
		if err != nil {
			p.logger.Warn("file ingestion failed",
				"job_id", job.ID,
				"file", file.Filename,
				"error", err,
			)
			fileErrors = append(fileErrors, FileError{Filename: file.Filename, Reason: err.Error()})
			if p.metrics != nil {
				p.metrics.IngestFilesTotal.WithLabelValues("failure").Inc()
			}
		} else {
			processed++
			if p.metrics != nil {
				p.metrics.IngestFilesTotal.WithLabelValues("success").Inc()
				p.metrics.DocumentsIngestedTotal.Inc()
				p.metrics.ChunksIndexedTotal.Add(float64(chunks))
			}
		}

		// Publish progress after every file so pollers see it move.
		snapshot := job
		snapshot.Processed = processed
		snapshot.FileErrors = append([]FileError(nil), fileErrors...)
		snapshot.UpdatedAt = time.Now().UTC()
		p.tracker.put(&snapshot)
	}

	final := job
	final.Processed = processed
	final.FileErrors = append([]FileError(nil), fileErrors...)
	final.UpdatedAt = time.Now().UTC()
	if processed == 0 {
		final.State = StateFailed
		final.Error = summarizeFailures(fileErrors)
	} else {
		final.State = StateCompleted
	}
	p.tracker.put(&final)

	if p.metrics != nil {
		p.metrics.JobsCompletedTotal.WithLabelValues(string(final.State)).Inc()
		p.metrics.IndexSize.Set(float64(p.index.Size()))
	}
	p.logger.Info("ingestion job finished",
		"job_id", job.ID,
		"state", final.State,
		"processed", processed,
		"failed", len(fileErrors),
		"duration", time.Since(start),
	)
}

// processFile ingests one file end to end and returns the number of
// chunks indexed. Chunks are inserted in sequence order in one batch, so
// sequence metadata in search results stays meaningful.
func (p *Pipeline) processFile(ctx context.Context, file FileUpload) (int, error) {
	extracted, err := p.extractor.Extract(file.Filename, file.Data)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}
	if strings.TrimSpace(extracted.Text) == "" {
		return 0, fmt.Errorf("extract: %s contains no text", file.Filename)
	}

	texts := p.chunker.Split(extracted.Text)
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}

	docID := uuid.NewString()
	metas := make([]index.Metadata, len(texts))
	for i, text := range texts {
		metas[i] = index.Metadata{DocumentID: docID, Sequence: i, Text: text}
	}
	if _, err := p.index.Insert(ctx, vectors, metas); err != nil {
		return 0, fmt.Errorf("index: %w", err)
	}

	// Blob persistence comes last: a document is only listed once its
	// chunks are searchable.
	if err := p.documents.Save(docID, file.Filename, extracted.Title, file.Data); err != nil {
		return 0, fmt.Errorf("store document: %w", err)
	}
	return len(texts), nil
}

// summarizeFailures builds the job-level error from per-file reasons.
func summarizeFailures(fileErrors []FileError) string {
	if len(fileErrors) == 0 {
		return ""
	}
	reasons := make([]string, len(fileErrors))
	for i, fe := range fileErrors {
		reasons[i] = fmt.Sprintf("%s: %s", fe.Filename, fe.Reason)
	}
	return "all files failed: " + strings.Join(reasons, "; ")
}
