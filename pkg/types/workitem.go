package types

import "fmt"

// WorkItem is the unit placed on the durable work queue, one per chunk.
// Publishing the same chunk twice is safe: the queue deduplicates on
// chunk_id and the index upsert is idempotent on the same key.
type WorkItem struct {
	ChunkID string `json:"chunk_id"`
	DocID   string `json:"doc_id"`
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
}

// Validate checks the work item shape. A malformed item is a consistency
// violation: the publisher only enqueues validated chunks, so a bad item
// means the pipeline contract was broken somewhere.
func (w *WorkItem) Validate() error {
	if w.ChunkID == "" || w.DocID == "" {
		return fmt.Errorf("%w: work item missing chunk or document id", ErrConsistency)
	}
	if w.Ordinal < 0 {
		return fmt.Errorf("%w: work item ordinal must be >= 0", ErrConsistency)
	}
	if w.Text == "" {
		return fmt.Errorf("%w: work item text cannot be empty", ErrConsistency)
	}
	if w.ChunkID != DeriveChunkID(w.DocID, w.Ordinal, w.Text) {
		return fmt.Errorf("%w: work item chunk id does not match its content", ErrConsistency)
	}
	return nil
}
