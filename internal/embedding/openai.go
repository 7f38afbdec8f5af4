package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	// DefaultModel is the OpenAI embedding model used unless configured
	// otherwise.
	DefaultModel = "text-embedding-3-small"

	// DefaultModelDimension is the vector width of text-embedding-3-small.
	DefaultModelDimension = 1536

	// DefaultBatchSize balances requests-per-minute against
	// tokens-per-minute rate limits. OpenAI accepts up to 2048 inputs per
	// request, but smaller batches reduce TPM pressure.
	DefaultBatchSize = 500
)

// OpenAIConfig configures the OpenAI-backed embedder.
type OpenAIConfig struct {
	APIKey        string
	BaseURL       string // optional, for OpenAI-compatible endpoints
	Model         string
	Dimension     int
	BatchSize     int
	MaxInputRunes int
}

// OpenAIEmbedder generates embeddings through the OpenAI API. It batches
// requests and retries with exponential backoff on rate limit errors.
type OpenAIEmbedder struct {
	client        openai.Client
	model         string
	dimension     int
	batchSize     int
	maxInputRunes int
	logger        *slog.Logger
}

// NewOpenAIEmbedder creates an embedder from the given configuration.
// The API key is required; remaining fields fall back to defaults.
func NewOpenAIEmbedder(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: missing API key", ErrEmbedding)
	}
	if logger == nil {
		logger = slog.Default()
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	e := &OpenAIEmbedder{
		client:        openai.NewClient(opts...),
		model:         cfg.Model,
		dimension:     cfg.Dimension,
		batchSize:     cfg.BatchSize,
		maxInputRunes: cfg.MaxInputRunes,
		logger:        logger.With("component", "openai-embedder"),
	}
	if e.model == "" {
		e.model = DefaultModel
	}
	if e.dimension <= 0 {
		e.dimension = DefaultModelDimension
	}
	if e.batchSize <= 0 {
		e.batchSize = DefaultBatchSize
	}
	if e.maxInputRunes <= 0 {
		e.maxInputRunes = DefaultMaxInputRunes
	}
	return e, nil
}

// Dimension returns the configured vector width.
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

// Embed generates embeddings for the given texts, preserving order.
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	prepared := make([]string, len(texts))
	for i, text := range texts {
		prepared[i] = truncate(text, e.maxInputRunes, e.logger)
	}

	all := make([][]float32, 0, len(prepared))
	for i := 0; i < len(prepared); i += e.batchSize {
		end := min(i+e.batchSize, len(prepared))
		vectors, err := e.embedBatchWithRetry(ctx, prepared[i:end])
		if err != nil {
			return nil, fmt.Errorf("%w: batch %d-%d: %v", ErrEmbedding, i, end, err)
		}
		all = append(all, vectors...)
	}
	return all, nil
}

// EmbedOne embeds a single text, typically a search query.
func (e *OpenAIEmbedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// embedBatchWithRetry sends one batch, retrying with exponential backoff
// on rate limit errors (HTTP 429). Other errors fail immediately.
func (e *OpenAIEmbedder) embedBatchWithRetry(ctx context.Context, texts []string) ([][]float32, error) {
	var vectors [][]float32

	operation := func() error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Input: openai.EmbeddingNewParamsInputUnion{
				OfArrayOfStrings: texts,
			},
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			if isRateLimitError(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Data) != len(texts) {
			return backoff.Permanent(fmt.Errorf("got %d embeddings for %d inputs", len(resp.Data), len(texts)))
		}

		vectors = make([][]float32, len(resp.Data))
		for i, data := range resp.Data {
			vectors[i] = toFloat32(data.Embedding)
		}
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	err := backoff.Retry(operation, backoff.WithContext(b, ctx))
	return vectors, err
}

// isRateLimitError reports whether the error is an HTTP 429.
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

// toFloat32 narrows the API's float64 vectors for storage.
func toFloat32(f64 []float64) []float32 {
	f32 := make([]float32, len(f64))
	for i, v := range f64 {
		f32[i] = float32(v)
	}
	return f32
}
