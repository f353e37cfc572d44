package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "vectorpipe.db", cfg.DBPath)
	assert.Equal(t, IndexBackendLocal, cfg.IndexBackend)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, 5, cfg.QueueMaxAttempts)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.False(t, cfg.AllowModelMismatch)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("VECTORPIPE_DB_PATH", "/data/pipe.db")
	t.Setenv("VECTORPIPE_POLL_INTERVAL", "5s")
	t.Setenv("VECTORPIPE_WORKERS", "16")
	t.Setenv("VECTORPIPE_EMBED_RATE", "2.5")
	t.Setenv("VECTORPIPE_ALLOW_MODEL_MISMATCH", "true")
	t.Setenv("VECTORPIPE_INDEX_BACKEND", "qdrant")
	t.Setenv("VECTORPIPE_QDRANT_URL", "http://qdrant:6333")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/data/pipe.db", cfg.DBPath)
	assert.Equal(t, 5*time.Second, cfg.PollInterval)
	assert.Equal(t, 16, cfg.Workers)
	assert.Equal(t, 2.5, cfg.EmbedRate)
	assert.True(t, cfg.AllowModelMismatch)
	assert.Equal(t, IndexBackendQdrant, cfg.IndexBackend)
}

func TestLoadMalformedValuesFallBack(t *testing.T) {
	t.Setenv("VECTORPIPE_WORKERS", "not-a-number")
	t.Setenv("VECTORPIPE_POLL_INTERVAL", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
}

func TestValidate(t *testing.T) {
	t.Setenv("VECTORPIPE_INDEX_BACKEND", "pinecone")
	_, err := Load()
	assert.Error(t, err)

	cfg := &Config{IndexBackend: IndexBackendLocal, DBPath: "x", QueueMaxAttempts: 1, Workers: 1}
	assert.NoError(t, cfg.Validate())

	cfg.QueueMaxAttempts = 0
	assert.Error(t, cfg.Validate())

	cfg = &Config{IndexBackend: IndexBackendQdrant, DBPath: "x", QueueMaxAttempts: 1, Workers: 1}
	assert.Error(t, cfg.Validate(), "qdrant backend requires a URL")
}
