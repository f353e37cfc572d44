// Package publisher durably publishes a document's chunks onto the work
// queue. Publication and the document's transition to chunked happen in
// one storage transaction, so a document never claims completion while
// any of its chunks is missing from the queue.
package publisher

import (
	"context"
	"fmt"

	"github.com/vectorpipe/vectorpipe/internal/storage"
	"github.com/vectorpipe/vectorpipe/pkg/types"
)

// DefaultMaxItemBytes caps the text size of a single queue item.
const DefaultMaxItemBytes = 256 * 1024

// Publisher writes chunks to the chunk ledger and work queue.
type Publisher struct {
	store        storage.Storage
	maxItemBytes int
}

// New creates a publisher. maxItemBytes <= 0 selects the default limit.
func New(store storage.Storage, maxItemBytes int) *Publisher {
	if maxItemBytes <= 0 {
		maxItemBytes = DefaultMaxItemBytes
	}
	return &Publisher{store: store, maxItemBytes: maxItemBytes}
}

// Publish validates and durably enqueues all chunks of a document, then
// marks the document chunked. An oversized chunk fails the whole document
// with a permanent content error and publishes nothing; a truncated chunk
// would silently corrupt search results, so there is no partial success.
func (p *Publisher) Publish(ctx context.Context, docID string, chunks []types.Chunk) error {
	for i := range chunks {
		if err := chunks[i].Validate(); err != nil {
			return err
		}
		if size := len(chunks[i].Text); size > p.maxItemBytes {
			return fmt.Errorf("%w: chunk %d is %d bytes, limit %d",
				types.ErrPermanentContent, chunks[i].Ordinal, size, p.maxItemBytes)
		}
	}
	return p.store.PublishChunks(ctx, docID, chunks)
}
