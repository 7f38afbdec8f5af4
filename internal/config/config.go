// Package config loads and validates the static application
// configuration from a YAML file. Configuration is read once at startup;
// there is no hot reload. Secrets (API keys) come from the environment,
// never from the file itself.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Embedder  EmbedderConfig  `yaml:"embedder"`
	Index     IndexConfig     `yaml:"index"`
	Storage   StorageConfig   `yaml:"storage"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	MaxUploadBytes  int64         `yaml:"maxUploadBytes"`
}

// ChunkingConfig controls how document text is split. Units are runes.
type ChunkingConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// EmbedderConfig selects and configures the embedder implementation.
type EmbedderConfig struct {
	Type   string              `yaml:"type"` // "openai" or "local"
	OpenAI OpenAIConfig        `yaml:"openai"`
	Local  LocalEmbedderConfig `yaml:"local"`
}

// OpenAIConfig configures the OpenAI-backed embedder. The API key is read
// from the environment variable named by apiKeyEnv.
type OpenAIConfig struct {
	APIKeyEnv     string `yaml:"apiKeyEnv"`
	BaseURL       string `yaml:"baseURL"`
	Model         string `yaml:"model"`
	Dimension     int    `yaml:"dimension"`
	BatchSize     int    `yaml:"batchSize"`
	MaxInputRunes int    `yaml:"maxInputRunes"`
}

// LocalEmbedderConfig configures the deterministic local embedder.
type LocalEmbedderConfig struct {
	Dimension int `yaml:"dimension"`
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	Type   string       `yaml:"type"`   // "flat" or "qdrant"
	Metric string       `yaml:"metric"` // "l2" or "cosine"
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// QdrantConfig holds connection details for the Qdrant backend.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Collection string `yaml:"collection"`
}

// StorageConfig holds the durable storage layout. Raw document blobs live
// under <dataDir>/documents, the flat index snapshot at
// <dataDir>/index.json.
type StorageConfig struct {
	DataDir string `yaml:"dataDir"`
}

// DocumentsDir returns the directory for raw document blobs.
func (s StorageConfig) DocumentsDir() string { return filepath.Join(s.DataDir, "documents") }

// IndexPath returns the flat index snapshot file.
func (s StorageConfig) IndexPath() string { return filepath.Join(s.DataDir, "index.json") }

// RetrievalConfig controls search behaviour.
type RetrievalConfig struct {
	DefaultK int `yaml:"defaultK"`
	MaxK     int `yaml:"maxK"`
}

// IngestConfig controls the background ingestion worker.
type IngestConfig struct {
	QueueSize    int           `yaml:"queueSize"`
	JobRetention time.Duration `yaml:"jobRetention"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  32 << 20,
		},
		Chunking: ChunkingConfig{Size: 800, Overlap: 200},
		Embedder: EmbedderConfig{
			Type: "local",
			OpenAI: OpenAIConfig{
				APIKeyEnv: "OPENAI_API_KEY",
				Model:     "text-embedding-3-small",
				Dimension: 1536,
			},
			Local: LocalEmbedderConfig{Dimension: 256},
		},
		Index: IndexConfig{
			Type:   "flat",
			Metric: "l2",
			Qdrant: QdrantConfig{Host: "localhost", Port: 6334, Collection: "chunks"},
		},
		Storage:   StorageConfig{DataDir: "data"},
		Retrieval: RetrievalConfig{DefaultK: 5, MaxK: 50},
		Ingest:    IngestConfig{QueueSize: 64, JobRetention: time.Hour},
		Logging:   LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads the config file at path, applies defaults for unset fields,
// and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unusable configuration. Chunking parameters are
// checked here so a misconfigured process fails at startup, not on the
// first ingestion.
func (c *Config) Validate() error {
	if c.Chunking.Size <= 0 {
		return fmt.Errorf("chunking.size must be positive, got %d", c.Chunking.Size)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.Size {
		return fmt.Errorf("chunking.overlap must be in [0, %d), got %d", c.Chunking.Size, c.Chunking.Overlap)
	}
	switch c.Embedder.Type {
	case "openai", "local":
	default:
		return fmt.Errorf("embedder.type must be openai or local, got %q", c.Embedder.Type)
	}
	switch c.Index.Type {
	case "flat", "qdrant":
	default:
		return fmt.Errorf("index.type must be flat or qdrant, got %q", c.Index.Type)
	}
	switch c.Index.Metric {
	case "", "l2", "cosine":
	default:
		return fmt.Errorf("index.metric must be l2 or cosine, got %q", c.Index.Metric)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.dataDir must not be empty")
	}
	if c.Retrieval.DefaultK <= 0 {
		return fmt.Errorf("retrieval.defaultK must be positive, got %d", c.Retrieval.DefaultK)
	}
	if c.Ingest.QueueSize <= 0 {
		return fmt.Errorf("ingest.queueSize must be positive, got %d", c.Ingest.QueueSize)
	}
	return nil
}

// EmbedderDimension returns the vector dimension implied by the selected
// embedder, which the index must match.
func (c *Config) EmbedderDimension() int {
	if c.Embedder.Type == "openai" {
		return c.Embedder.OpenAI.Dimension
	}
	return c.Embedder.Local.Dimension
}

// OpenAIAPIKey resolves the API key from the configured environment
// variable.
func (c *Config) OpenAIAPIKey() string {
	env := c.Embedder.OpenAI.APIKeyEnv
	if env == "" {
		env = "OPENAI_API_KEY"
	}
	return os.Getenv(env)
}
