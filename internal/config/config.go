// Package config loads pipeline configuration from VECTORPIPE_*
// environment variables with sensible defaults. The CLI loads a .env file
// before reading, so local setups need no exported shell state.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Index backends.
const (
	IndexBackendLocal  = "local"
	IndexBackendQdrant = "qdrant"
)

// Config is the full pipeline configuration.
type Config struct {
	// Storage
	DBPath      string
	StoreDir    string
	StorePrefix string

	// Watcher
	PollInterval    time.Duration
	StaleClaimAfter time.Duration
	MaxItemBytes    int

	// Queue
	QueueMaxAttempts int
	QueueBaseDelay   time.Duration
	QueueMaxDelay    time.Duration
	QueueLease       time.Duration

	// Consumer
	Workers   int
	EmbedRate float64

	// Vector index
	IndexBackend     string
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	// Query service
	HTTPAddr           string
	EmbedTimeout       time.Duration
	SearchTimeout      time.Duration
	CacheSize          int
	CacheTTL           time.Duration
	AllowModelMismatch bool
}

// Load reads configuration from the environment.
func Load() (*Config, error) {
	cfg := &Config{
		DBPath:      getEnv("VECTORPIPE_DB_PATH", "vectorpipe.db"),
		StoreDir:    getEnv("VECTORPIPE_STORE_DIR", "documents"),
		StorePrefix: getEnv("VECTORPIPE_STORE_PREFIX", ""),

		PollInterval:    getEnvDuration("VECTORPIPE_POLL_INTERVAL", 30*time.Second),
		StaleClaimAfter: getEnvDuration("VECTORPIPE_STALE_CLAIM_AFTER", 10*time.Minute),
		MaxItemBytes:    getEnvInt("VECTORPIPE_MAX_ITEM_BYTES", 256*1024),

		QueueMaxAttempts: getEnvInt("VECTORPIPE_QUEUE_MAX_ATTEMPTS", 5),
		QueueBaseDelay:   getEnvDuration("VECTORPIPE_QUEUE_BASE_DELAY", time.Second),
		QueueMaxDelay:    getEnvDuration("VECTORPIPE_QUEUE_MAX_DELAY", 5*time.Minute),
		QueueLease:       getEnvDuration("VECTORPIPE_QUEUE_LEASE", 2*time.Minute),

		Workers:   getEnvInt("VECTORPIPE_WORKERS", 4),
		EmbedRate: getEnvFloat("VECTORPIPE_EMBED_RATE", 10),

		IndexBackend:     getEnv("VECTORPIPE_INDEX_BACKEND", IndexBackendLocal),
		QdrantURL:        getEnv("VECTORPIPE_QDRANT_URL", "http://localhost:6333"),
		QdrantAPIKey:     getEnv("VECTORPIPE_QDRANT_API_KEY", ""),
		QdrantCollection: getEnv("VECTORPIPE_QDRANT_COLLECTION", "chunks"),

		HTTPAddr:           getEnv("VECTORPIPE_HTTP_ADDR", ":8080"),
		EmbedTimeout:       getEnvDuration("VECTORPIPE_EMBED_TIMEOUT", 10*time.Second),
		SearchTimeout:      getEnvDuration("VECTORPIPE_SEARCH_TIMEOUT", 10*time.Second),
		CacheSize:          getEnvInt("VECTORPIPE_CACHE_SIZE", 1000),
		CacheTTL:           getEnvDuration("VECTORPIPE_CACHE_TTL", time.Minute),
		AllowModelMismatch: getEnvBool("VECTORPIPE_ALLOW_MODEL_MISMATCH", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.IndexBackend {
	case IndexBackendLocal:
	case IndexBackendQdrant:
		if c.QdrantURL == "" {
			return fmt.Errorf("qdrant backend requires VECTORPIPE_QDRANT_URL")
		}
		if c.QdrantCollection == "" {
			return fmt.Errorf("qdrant backend requires VECTORPIPE_QDRANT_COLLECTION")
		}
	default:
		return fmt.Errorf("unknown index backend %q, want %q or %q",
			c.IndexBackend, IndexBackendLocal, IndexBackendQdrant)
	}

	if c.DBPath == "" {
		return fmt.Errorf("VECTORPIPE_DB_PATH cannot be empty")
	}
	if c.QueueMaxAttempts <= 0 {
		return fmt.Errorf("VECTORPIPE_QUEUE_MAX_ATTEMPTS must be positive")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("VECTORPIPE_WORKERS must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
