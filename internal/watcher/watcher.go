package watcher

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
	"unicode/utf8"

	"github.com/vectorpipe/vectorpipe/internal/chunker"
	"github.com/vectorpipe/vectorpipe/internal/objstore"
	"github.com/vectorpipe/vectorpipe/internal/publisher"
	"github.com/vectorpipe/vectorpipe/internal/storage"
	"github.com/vectorpipe/vectorpipe/pkg/types"
)

const (
	// DefaultPollInterval is the delay between polling cycles
	DefaultPollInterval = 30 * time.Second
	// DefaultStaleClaimAfter is how long a chunking claim may sit idle
	// before another watcher treats it as abandoned
	DefaultStaleClaimAfter = 10 * time.Minute
)

// Config controls the polling loop.
type Config struct {
	PollInterval    time.Duration
	StaleClaimAfter time.Duration
	Prefix          string
}

// Watcher discovers and ingests documents from an object store.
type Watcher struct {
	store     objstore.Store
	ledger    storage.Storage
	chunker   *chunker.Chunker
	publisher *publisher.Publisher
	config    Config
}

// New creates a watcher.
func New(store objstore.Store, ledger storage.Storage, ch *chunker.Chunker, pub *publisher.Publisher, config Config) *Watcher {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultPollInterval
	}
	if config.StaleClaimAfter <= 0 {
		config.StaleClaimAfter = DefaultStaleClaimAfter
	}
	return &Watcher{
		store:     store,
		ledger:    ledger,
		chunker:   ch,
		publisher: pub,
		config:    config,
	}
}

// Run polls until the context is canceled. The first cycle runs
// immediately.
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.config.PollInterval)
	defer ticker.Stop()

	for {
		if err := w.Cycle(ctx); err != nil {
			log.Printf("watcher: cycle failed: %v", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Cycle runs one polling pass: list the store and ingest every document
// not yet processed. Per-document failures are logged and recorded on the
// document; a listing failure aborts the cycle.
func (w *Watcher) Cycle(ctx context.Context) error {
	keys, err := w.store.List(ctx, w.config.Prefix)
	if err != nil {
		return fmt.Errorf("failed to list object store: %w", err)
	}

	for _, key := range keys {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := w.ingest(ctx, key); err != nil {
			log.Printf("watcher: ingest %s failed: %v", key, err)
		}
	}
	return nil
}

// ingest processes a single object key through discovery, claim,
// chunking, and publication.
func (w *Watcher) ingest(ctx context.Context, key string) error {
	content, err := w.store.Get(ctx, key)
	if err != nil {
		// Deleted between list and get; the next cycle will not see it
		if errors.Is(err, objstore.ErrKeyNotFound) {
			return nil
		}
		return err
	}

	doc := &types.Document{
		DocID:       types.DeriveDocID(key, content),
		SourceURI:   key,
		ContentHash: types.HashContent(content),
		Status:      types.DocStatusDiscovered,
	}
	if err := w.ledger.RecordDocument(ctx, doc); err != nil {
		return err
	}

	claimed, err := w.ledger.ClaimDocument(ctx, doc.DocID, time.Now().Add(-w.config.StaleClaimAfter))
	if err != nil {
		return err
	}
	if !claimed {
		// Already processed, failed, or actively claimed elsewhere
		return nil
	}

	if err := w.process(ctx, doc.DocID, content); err != nil {
		if errors.Is(err, types.ErrPermanentContent) || errors.Is(err, types.ErrConsistency) {
			if markErr := w.ledger.MarkDocumentFailed(ctx, doc.DocID, err.Error()); markErr != nil {
				return markErr
			}
			log.Printf("watcher: document %s (%s) failed permanently: %v", doc.DocID, key, err)
			return nil
		}
		// Transient: release the claim so a later cycle retries
		if relErr := w.ledger.ReleaseDocument(ctx, doc.DocID); relErr != nil {
			return relErr
		}
		return err
	}

	log.Printf("watcher: published document %s from %s", doc.DocID, key)
	return nil
}

func (w *Watcher) process(ctx context.Context, docID string, content []byte) error {
	text, err := extractText(content)
	if err != nil {
		return err
	}
	chunks := w.chunker.Split(docID, text)
	return w.publisher.Publish(ctx, docID, chunks)
}

// extractText validates that content is decodable UTF-8 text. Binary or
// corrupt input can never embed meaningfully, so it fails permanently.
func extractText(content []byte) (string, error) {
	if !utf8.Valid(content) {
		return "", fmt.Errorf("%w: content is not valid UTF-8", types.ErrPermanentContent)
	}
	return string(content), nil
}
