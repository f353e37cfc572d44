package consumer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/vectorpipe/vectorpipe/internal/embedder"
	"github.com/vectorpipe/vectorpipe/internal/queue"
	"github.com/vectorpipe/vectorpipe/internal/storage"
	"github.com/vectorpipe/vectorpipe/internal/vectorindex"
	"github.com/vectorpipe/vectorpipe/pkg/types"
)

const (
	// DefaultWorkers is the embedding worker pool size
	DefaultWorkers = 4
	// DefaultIdlePoll is the sleep between polls when the queue is empty
	DefaultIdlePoll = 1 * time.Second
	// DefaultEmbedRate caps embedding provider calls per second
	DefaultEmbedRate = 10
)

// Config controls the worker pool.
type Config struct {
	Workers   int
	IdlePoll  time.Duration
	EmbedRate float64
}

// Consumer embeds queued chunks and writes them to the vector index.
type Consumer struct {
	queue   *queue.Queue
	index   vectorindex.Index
	emb     embedder.Embedder
	cache   *embedder.Cache
	ledger  storage.Storage
	limiter *rate.Limiter
	config  Config
}

// New creates a consumer. The cache spans the embed and upsert steps:
// when an upsert fails and the item is redelivered, the vector comes from
// cache instead of a second provider call.
func New(q *queue.Queue, index vectorindex.Index, emb embedder.Embedder, cache *embedder.Cache, ledger storage.Storage, config Config) *Consumer {
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.IdlePoll <= 0 {
		config.IdlePoll = DefaultIdlePoll
	}
	if config.EmbedRate <= 0 {
		config.EmbedRate = DefaultEmbedRate
	}
	return &Consumer{
		queue:   q,
		index:   index,
		emb:     emb,
		cache:   cache,
		ledger:  ledger,
		limiter: rate.NewLimiter(rate.Limit(config.EmbedRate), config.Workers),
		config:  config,
	}
}

// Run starts the worker pool and blocks until the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.index.Ensure(ctx, c.emb.Dimension()); err != nil {
		return fmt.Errorf("failed to prepare vector index: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < c.config.Workers; i++ {
		g.Go(func() error { return c.worker(ctx) })
	}
	return g.Wait()
}

func (c *Consumer) worker(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		delivery, err := c.queue.Receive(ctx)
		if err != nil {
			log.Printf("consumer: receive failed: %v", err)
			delivery = nil
		}
		if delivery == nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.config.IdlePoll):
			}
			continue
		}
		c.handle(ctx, delivery)
	}
}

// handle processes one delivery and settles it.
func (c *Consumer) handle(ctx context.Context, d *queue.Delivery) {
	err := c.process(ctx, &d.Item)
	switch {
	case err == nil:
		if ackErr := d.Ack(ctx); ackErr != nil {
			// Lease expired mid-processing; the redelivery will hit the
			// cache and the keyed upsert keeps the index consistent
			log.Printf("consumer: ack %s failed: %v", d.Item.ChunkID, ackErr)
		}
	case errors.Is(err, types.ErrConsistency), errors.Is(err, types.ErrPermanentContent):
		// Retrying cannot fix a malformed item or content the provider
		// rejects, so skip the backoff ladder entirely.
		log.Printf("consumer: rejecting %s: %v", d.Item.ChunkID, err)
		c.markFailed(ctx, d.Item.ChunkID)
		if rejErr := d.Reject(ctx, err); rejErr != nil {
			log.Printf("consumer: reject %s failed: %v", d.Item.ChunkID, rejErr)
		}
	default:
		log.Printf("consumer: embedding %s failed (attempt %d): %v", d.Item.ChunkID, d.Attempts, err)
		if d.LastAttempt() {
			c.markFailed(ctx, d.Item.ChunkID)
		}
		if nackErr := d.Nack(ctx, err); nackErr != nil {
			log.Printf("consumer: nack %s failed: %v", d.Item.ChunkID, nackErr)
		}
	}
}

// process embeds one work item and upserts it into the index. Requeued
// dead letters come back through this same path.
func (c *Consumer) process(ctx context.Context, item *types.WorkItem) error {
	if err := item.Validate(); err != nil {
		return err
	}

	emb, err := c.embed(ctx, item.Text)
	if err != nil {
		return err
	}

	rec := &types.EmbeddingRecord{
		ChunkID: item.ChunkID,
		Vector:  emb.Vector,
		Payload: types.Payload{
			DocID:   item.DocID,
			ChunkID: item.ChunkID,
			Text:    item.Text,
			Ordinal: item.Ordinal,
			Model:   emb.Model,
		},
	}
	if err := c.index.Upsert(ctx, rec); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", item.ChunkID, err)
	}

	if err := c.ledger.MarkChunkEmbedded(ctx, item.ChunkID); err != nil {
		return err
	}
	return nil
}

// embed returns the vector for text, from cache when available. The
// rate limiter only gates actual provider calls.
func (c *Consumer) embed(ctx context.Context, text string) (*embedder.Embedding, error) {
	hash := embedder.ComputeHash(text)
	if cached, ok := c.cache.Get(hash); ok {
		return cached, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	emb, err := c.emb.Embed(ctx, embedder.Request{Text: text})
	if err != nil {
		return nil, err
	}
	c.cache.Set(hash, emb)
	return emb, nil
}

func (c *Consumer) markFailed(ctx context.Context, chunkID string) {
	if err := c.ledger.MarkChunkFailed(ctx, chunkID); err != nil {
		log.Printf("consumer: mark chunk %s failed: %v", chunkID, err)
	}
}
