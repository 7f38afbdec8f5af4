// Package main runs the retrieval server: HTTP API for ingestion and
// search, Prometheus metrics, and an MCP endpoint for LLM clients.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/bull/rag-server/internal/chunker"
	"github.com/bull/rag-server/internal/config"
	"github.com/bull/rag-server/internal/docstore"
	"github.com/bull/rag-server/internal/embedding"
	"github.com/bull/rag-server/internal/extract"
	"github.com/bull/rag-server/internal/httpapi"
	"github.com/bull/rag-server/internal/index"
	"github.com/bull/rag-server/internal/ingest"
	"github.com/bull/rag-server/internal/logger"
	mcpserver "github.com/bull/rag-server/internal/mcp"
	"github.com/bull/rag-server/internal/metrics"
	"github.com/bull/rag-server/internal/retrieval"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	stdio := flag.Bool("stdio", false, "serve MCP over stdio instead of starting the HTTP server")
	flag.Parse()

	if err := run(*configPath, *stdio); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath string, stdio bool) error {
	// .env is a local development convenience; production uses real
	// environment variables.
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using environment variables")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	log := logger.WithComponent("main")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return fmt.Errorf("build embedder: %w", err)
	}

	idx, closeIndex, err := buildIndex(ctx, cfg, embedder.Dimension())
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	defer closeIndex()

	docs, err := docstore.Open(cfg.Storage.DocumentsDir())
	if err != nil {
		return fmt.Errorf("open document store: %w", err)
	}

	ch, err := chunker.New(cfg.Chunking.Size, cfg.Chunking.Overlap)
	if err != nil {
		return fmt.Errorf("build chunker: %w", err)
	}

	m := metrics.New()
	m.IndexSize.Set(float64(idx.Size()))

	tracker := ingest.NewTracker()
	pipeline := ingest.NewPipeline(ingest.PipelineConfig{
		Extractor:    extract.New(),
		Chunker:      ch,
		Embedder:     embedder,
		Index:        idx,
		Documents:    docs,
		Tracker:      tracker,
		Metrics:      m,
		QueueSize:    cfg.Ingest.QueueSize,
		JobRetention: cfg.Ingest.JobRetention,
	})
	go pipeline.Run(ctx)

	service := retrieval.New(retrieval.Config{
		Embedder:  embedder,
		Index:     idx,
		Documents: docs,
		Metrics:   m,
		DefaultK:  cfg.Retrieval.DefaultK,
		MaxK:      cfg.Retrieval.MaxK,
	})

	mcpSrv := mcpserver.NewServer(service)
	if stdio {
		log.Info("starting MCP server on stdio")
		return mcpSrv.Run(ctx)
	}

	handler := httpapi.New(service, pipeline, tracker, cfg.Server.MaxUploadBytes, slog.Default())
	mux := httpapi.Router(handler, m.Handler(), mcpSrv.HTTPHandler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting HTTP server",
			"addr", srv.Addr,
			"embedder", cfg.Embedder.Type,
			"index", cfg.Index.Type,
			"index_size", idx.Size(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// buildEmbedder constructs the configured embedder implementation.
func buildEmbedder(cfg *config.Config) (embedding.Embedder, error) {
	switch cfg.Embedder.Type {
	case "openai":
		return embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:        cfg.OpenAIAPIKey(),
			BaseURL:       cfg.Embedder.OpenAI.BaseURL,
			Model:         cfg.Embedder.OpenAI.Model,
			Dimension:     cfg.Embedder.OpenAI.Dimension,
			BatchSize:     cfg.Embedder.OpenAI.BatchSize,
			MaxInputRunes: cfg.Embedder.OpenAI.MaxInputRunes,
		}, slog.Default())
	default:
		return embedding.NewLocalEmbedder(cfg.Embedder.Local.Dimension), nil
	}
}

// buildIndex constructs the configured index backend. The returned close
// function releases backend connections; it is a no-op for the flat
// index.
func buildIndex(ctx context.Context, cfg *config.Config, dimension int) (index.Index, func(), error) {
	metric, err := index.ParseMetric(cfg.Index.Metric)
	if err != nil {
		return nil, nil, err
	}

	switch cfg.Index.Type {
	case "qdrant":
		q, err := index.NewQdrant(ctx, index.QdrantConfig{
			Host:       cfg.Index.Qdrant.Host,
			Port:       cfg.Index.Qdrant.Port,
			Collection: cfg.Index.Qdrant.Collection,
			Dimension:  dimension,
			Metric:     metric,
		}, slog.Default())
		if err != nil {
			return nil, nil, err
		}
		return q, func() { _ = q.Close() }, nil
	default:
		f, err := index.NewFlat(index.FlatConfig{
			Dimension: dimension,
			Metric:    metric,
			Path:      cfg.Storage.IndexPath(),
		}, slog.Default())
		if err != nil {
			return nil, nil, err
		}
		return f, func() {}, nil
	}
}
