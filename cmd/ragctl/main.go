// Package main provides the ragctl CLI for managing the knowledge base
// directly on disk, without a running server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/bull/rag-server/internal/chunker"
	"github.com/bull/rag-server/internal/config"
	"github.com/bull/rag-server/internal/docstore"
	"github.com/bull/rag-server/internal/embedding"
	"github.com/bull/rag-server/internal/extract"
	"github.com/bull/rag-server/internal/index"
	"github.com/bull/rag-server/internal/ingest"
	"github.com/bull/rag-server/internal/retrieval"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "ragctl",
	Short: "Knowledge base management tool",
	Long:  "CLI tool for ingesting, querying and maintaining the document knowledge base",
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Ingest local files into the knowledge base",
	Long: `Reads the given files, extracts their text, chunks and embeds it,
and writes the results into the configured index and document store.

Files that cannot be ingested are reported individually; the command
fails only when every file fails.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var queryCmd = &cobra.Command{
	Use:   "query <text>",
	Short: "Search the knowledge base",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print knowledge base statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete all documents and index entries",
	Args:  cobra.NoArgs,
	RunE:  runClear,
}

var queryK int

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "path to the YAML config file")
	queryCmd.Flags().IntVar(&queryK, "k", 0, "number of results (0 uses the configured default)")
	rootCmd.AddCommand(ingestCmd, queryCmd, statsCmd, clearCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// stack is the locally assembled component set shared by all commands.
type stack struct {
	cfg      *config.Config
	embedder embedding.Embedder
	index    index.Index
	docs     *docstore.Store
	service  *retrieval.Service
	close    func()
}

// openStack builds the embedder, index, document store and retrieval
// service from config, the same way the server does.
func openStack(ctx context.Context) (*stack, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	var embedder embedding.Embedder
	switch cfg.Embedder.Type {
	case "openai":
		embedder, err = embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
			APIKey:        cfg.OpenAIAPIKey(),
			BaseURL:       cfg.Embedder.OpenAI.BaseURL,
			Model:         cfg.Embedder.OpenAI.Model,
			Dimension:     cfg.Embedder.OpenAI.Dimension,
			BatchSize:     cfg.Embedder.OpenAI.BatchSize,
			MaxInputRunes: cfg.Embedder.OpenAI.MaxInputRunes,
		}, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("create embedder: %w", err)
		}
	default:
		embedder = embedding.NewLocalEmbedder(cfg.Embedder.Local.Dimension)
	}

	metric, err := index.ParseMetric(cfg.Index.Metric)
	if err != nil {
		return nil, err
	}

	var (
		idx      index.Index
		closeIdx = func() {}
	)
	switch cfg.Index.Type {
	case "qdrant":
		q, err := index.NewQdrant(ctx, index.QdrantConfig{
			Host:       cfg.Index.Qdrant.Host,
			Port:       cfg.Index.Qdrant.Port,
			Collection: cfg.Index.Qdrant.Collection,
			Dimension:  embedder.Dimension(),
			Metric:     metric,
		}, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("connect to Qdrant: %w", err)
		}
		idx, closeIdx = q, func() { _ = q.Close() }
	default:
		f, err := index.NewFlat(index.FlatConfig{
			Dimension: embedder.Dimension(),
			Metric:    metric,
			Path:      cfg.Storage.IndexPath(),
		}, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("open index: %w", err)
		}
		idx = f
	}

	docs, err := docstore.Open(cfg.Storage.DocumentsDir())
	if err != nil {
		closeIdx()
		return nil, fmt.Errorf("open document store: %w", err)
	}

	service := retrieval.New(retrieval.Config{
		Embedder:  embedder,
		Index:     idx,
		Documents: docs,
		DefaultK:  cfg.Retrieval.DefaultK,
		MaxK:      cfg.Retrieval.MaxK,
	})

	return &stack{
		cfg:      cfg,
		embedder: embedder,
		index:    idx,
		docs:     docs,
		service:  service,
		close:    closeIdx,
	}, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	s, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	files := make([]ingest.FileUpload, 0, len(args))
	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		files = append(files, ingest.FileUpload{Filename: path, Data: data})
	}

	ch, err := chunker.New(s.cfg.Chunking.Size, s.cfg.Chunking.Overlap)
	if err != nil {
		return err
	}
	tracker := ingest.NewTracker()
	pipeline := ingest.NewPipeline(ingest.PipelineConfig{
		Extractor: extract.New(),
		Chunker:   ch,
		Embedder:  s.embedder,
		Index:     s.index,
		Documents: s.docs,
		Tracker:   tracker,
		QueueSize: 1,
	})

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go pipeline.Run(workerCtx)

	job, err := pipeline.Submit(files)
	if err != nil {
		return err
	}

	fmt.Printf("Ingesting %d file(s)...\n", len(files))
	for !job.State.Terminal() {
		time.Sleep(50 * time.Millisecond)
		job, err = tracker.Get(job.ID)
		if err != nil {
			return err
		}
	}

	fmt.Printf("  Files: %d/%d\n", job.Processed, job.Total)
	fmt.Printf("  Index size: %d\n", s.index.Size())
	fmt.Printf("  Duration: %s\n", time.Since(start).Round(time.Millisecond))

	if len(job.FileErrors) > 0 {
		fmt.Println("Failed files:")
		for _, fe := range job.FileErrors {
			fmt.Printf("  - %s: %s\n", fe.Filename, fe.Reason)
		}
	}
	if job.State == ingest.StateFailed {
		return fmt.Errorf("ingestion failed: %s", job.Error)
	}
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	results, err := s.service.Search(ctx, args[0], queryK)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, r := range results {
		fmt.Printf("%d. [%.4f] %s (chunk %d)\n", i+1, r.Distance, r.DocumentID, r.Sequence)
		fmt.Printf("   %s\n", r.Text)
	}
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	stats, err := s.service.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Documents: %d\n", stats.DocumentCount)
	fmt.Printf("Chunks:    %d\n", stats.ChunkCount)
	fmt.Printf("Index:     %d entries\n", stats.IndexSize)
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, err := openStack(ctx)
	if err != nil {
		return err
	}
	defer s.close()

	if err := s.service.Clear(ctx); err != nil {
		return err
	}
	fmt.Println("Knowledge base cleared.")
	return nil
}
