package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/vectorpipe/vectorpipe/internal/config"
	"github.com/vectorpipe/vectorpipe/internal/embedder"
	"github.com/vectorpipe/vectorpipe/internal/storage"
	"github.com/vectorpipe/vectorpipe/internal/vectorindex"
)

// openStorage loads config and opens the coordination store.
func openStorage(ctx context.Context) (*config.Config, *storage.SQLiteStorage, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	store, err := storage.NewSQLiteStorage(ctx, cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage at %s: %w", cfg.DBPath, err)
	}
	return cfg, store, nil
}

// buildIndex selects the vector index backend from config.
func buildIndex(cfg *config.Config, store storage.Storage) (vectorindex.Index, error) {
	switch cfg.IndexBackend {
	case config.IndexBackendQdrant:
		return vectorindex.NewQdrantIndex(vectorindex.QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.QdrantCollection,
		}), nil
	case config.IndexBackendLocal:
		return vectorindex.NewLocalIndex(store), nil
	default:
		return nil, fmt.Errorf("unknown index backend %q", cfg.IndexBackend)
	}
}

// buildEmbedder creates the embedding provider from the environment.
func buildEmbedder() (embedder.Embedder, error) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("initializing embedder: %w", err)
	}
	return emb, nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
