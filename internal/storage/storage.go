package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vectorpipe/vectorpipe/pkg/types"
)

// ErrNotFound indicates the requested record does not exist, or a queue
// operation's lease token no longer matches the stored lease
var ErrNotFound = errors.New("record not found")

// Storage defines the interface for the pipeline's coordination state.
type Storage interface {
	// Document ledger operations
	RecordDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, docID string) (*types.Document, error)
	ClaimDocument(ctx context.Context, docID string, staleBefore time.Time) (bool, error)
	ReleaseDocument(ctx context.Context, docID string) error
	MarkDocumentFailed(ctx context.Context, docID, reason string) error
	ResetFailedDocument(ctx context.Context, docID string) error
	ListDocumentsByStatus(ctx context.Context, status types.DocumentStatus) ([]*types.Document, error)
	CountDocumentsByStatus(ctx context.Context) (map[types.DocumentStatus]int, error)

	// Chunk ledger + durable publication
	PublishChunks(ctx context.Context, docID string, chunks []types.Chunk) error
	GetChunk(ctx context.Context, chunkID string) (*types.Chunk, error)
	ListChunksByDocument(ctx context.Context, docID string) ([]*types.Chunk, error)
	MarkChunkEmbedded(ctx context.Context, chunkID string) error
	MarkChunkFailed(ctx context.Context, chunkID string) error
	CountChunksByStatus(ctx context.Context) (map[types.ChunkStatus]int, error)

	// Work queue operations
	Enqueue(ctx context.Context, item *types.WorkItem) (bool, error)
	Lease(ctx context.Context, leaseFor time.Duration) (*QueueItem, error)
	Ack(ctx context.Context, id int64, token string) error
	Retry(ctx context.Context, id int64, token string, delay time.Duration, cause string) error
	DeadLetter(ctx context.Context, id int64, token string, cause string) error
	QueueDepth(ctx context.Context) (int, error)
	ListDeadLetters(ctx context.Context, limit int) ([]*DeadLetter, error)
	RequeueDeadLetter(ctx context.Context, id int64) error

	// Embedded vector index operations
	UpsertEmbedding(ctx context.Context, rec *types.EmbeddingRecord) error
	SearchVector(ctx context.Context, vector []float32, limit int, filter *VectorFilter) ([]types.SearchHit, error)
	CountEmbeddings(ctx context.Context) (int, error)

	// Database operations
	Close() error
}

// QueueItem is one leased delivery from the work queue. The lease token
// ties acknowledgements to this delivery: a stale consumer whose lease
// expired cannot ack or nack an item that has been re-leased. Attempts
// counts deliveries including this one; lease-expiry redeliveries count
// the same as explicit retries.
type QueueItem struct {
	ID          int64
	Item        types.WorkItem
	Attempts    int
	LeaseToken  string
	VisibleAt   time.Time
	LeasedUntil time.Time
	CreatedAt   time.Time
}

// DeadLetter is a work item that exhausted its retry attempts and awaits
// manual inspection.
type DeadLetter struct {
	ID             int64
	Item           types.WorkItem
	Attempts       int
	LastError      string
	DeadLetteredAt time.Time
}

// VectorFilter narrows a vector search by payload fields. Zero values
// mean no constraint.
type VectorFilter struct {
	DocID string
	Model string
}
