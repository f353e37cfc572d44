package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// ChunkStatus tracks a chunk from publication to the vector index.
type ChunkStatus string

const (
	ChunkStatusPublished ChunkStatus = "published"
	ChunkStatusEmbedded  ChunkStatus = "embedded"
	ChunkStatusFailed    ChunkStatus = "failed"
)

// Chunk is a paragraph-level unit of a document, the atomic item of work
// in the pipeline. Ordinal is the chunk's 0-based position in document
// order; downstream consumers may reconstruct context from adjacent
// ordinals, so the sequence must stay contiguous.
type Chunk struct {
	ChunkID string
	DocID   string
	Ordinal int
	Text    string
	Status  ChunkStatus
}

// DeriveChunkID computes the deterministic chunk id from (doc_id, ordinal,
// content). Re-chunking the same document yields the same ids, which is
// what makes the downstream upsert idempotent.
func DeriveChunkID(docID string, ordinal int, text string) string {
	h := sha256.New()
	h.Write([]byte(docID))
	h.Write([]byte{0})
	h.Write([]byte(strconv.Itoa(ordinal)))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// PointID converts a chunk id into a deterministic UUID suitable as a
// vector store point id. Qdrant only accepts UUIDs or unsigned integers
// as point ids, so the hex chunk id is folded through UUIDv5.
func PointID(chunkID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(chunkID)).String()
}

// Validate checks chunk invariants before publication.
func (c *Chunk) Validate() error {
	if c.ChunkID == "" {
		return fmt.Errorf("%w: chunk id is required", ErrValidation)
	}
	if c.DocID == "" {
		return fmt.Errorf("%w: document id is required", ErrValidation)
	}
	if c.Ordinal < 0 {
		return fmt.Errorf("%w: ordinal must be >= 0", ErrValidation)
	}
	if c.Text == "" {
		return fmt.Errorf("%w: chunk text cannot be empty", ErrValidation)
	}
	if c.ChunkID != DeriveChunkID(c.DocID, c.Ordinal, c.Text) {
		return fmt.Errorf("%w: chunk id does not match its content", ErrConsistency)
	}
	return nil
}
