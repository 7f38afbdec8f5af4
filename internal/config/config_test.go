package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 800, cfg.Chunking.Size)
	assert.Equal(t, 200, cfg.Chunking.Overlap)
	assert.Equal(t, "local", cfg.Embedder.Type)
	assert.Equal(t, "flat", cfg.Index.Type)
	assert.Equal(t, 5, cfg.Retrieval.DefaultK)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
chunking:
  size: 400
  overlap: 50
embedder:
  type: openai
index:
  type: qdrant
  metric: cosine
ingest:
  jobRetention: 30m
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, 400, cfg.Chunking.Size)
	assert.Equal(t, 50, cfg.Chunking.Overlap)
	assert.Equal(t, "openai", cfg.Embedder.Type)
	assert.Equal(t, "qdrant", cfg.Index.Type)
	assert.Equal(t, "cosine", cfg.Index.Metric)
	assert.Equal(t, 30*time.Minute, cfg.Ingest.JobRetention)
	// Unset fields keep defaults.
	assert.Equal(t, 64, cfg.Ingest.QueueSize)
}

func TestLoad_RejectsInvalidChunking(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"overlap equals size", "chunking:\n  size: 100\n  overlap: 100\n"},
		{"negative overlap", "chunking:\n  size: 100\n  overlap: -1\n"},
		{"zero size", "chunking:\n  size: 0\n  overlap: 0\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.body), 0o644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestLoad_RejectsUnknownBackends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("index:\n  type: hnsw\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)

	require.NoError(t, os.WriteFile(path, []byte("embedder:\n  type: bert\n"), 0o644))
	_, err = Load(path)
	assert.Error(t, err)
}

func TestStorageConfig_Paths(t *testing.T) {
	s := StorageConfig{DataDir: "/var/lib/rag"}
	assert.Equal(t, filepath.Join("/var/lib/rag", "documents"), s.DocumentsDir())
	assert.Equal(t, filepath.Join("/var/lib/rag", "index.json"), s.IndexPath())
}

func TestEmbedderDimension(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 256, cfg.EmbedderDimension())

	cfg.Embedder.Type = "openai"
	assert.Equal(t, 1536, cfg.EmbedderDimension())
}

func TestOpenAIAPIKey_ReadsConfiguredEnv(t *testing.T) {
	cfg := Default()
	cfg.Embedder.OpenAI.APIKeyEnv = "TEST_RAG_KEY"
	t.Setenv("TEST_RAG_KEY", "sk-test")

	assert.Equal(t, "sk-test", cfg.OpenAIAPIKey())
}
