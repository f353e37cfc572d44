package types

import "fmt"

// Payload is the metadata stored alongside a vector in the index. The
// model tag records which embedding model produced the vector; vectors
// from different models are not comparable, so the query path filters on
// it.
type Payload struct {
	DocID   string `json:"doc_id"`
	ChunkID string `json:"chunk_id"`
	Text    string `json:"text"`
	Ordinal int    `json:"ordinal"`
	Model   string `json:"model"`
}

// EmbeddingRecord is one entry in the vector index, keyed by chunk id.
// Upsert on the same key replaces the prior value, never duplicates.
type EmbeddingRecord struct {
	ChunkID string
	Vector  []float32
	Payload Payload
}

// Validate checks the record before upsert.
func (r *EmbeddingRecord) Validate() error {
	if r.ChunkID == "" {
		return fmt.Errorf("%w: embedding record requires a chunk id", ErrValidation)
	}
	if len(r.Vector) == 0 {
		return fmt.Errorf("%w: embedding record requires a vector", ErrValidation)
	}
	if r.Payload.ChunkID != r.ChunkID {
		return fmt.Errorf("%w: payload chunk id %q does not match record key %q",
			ErrConsistency, r.Payload.ChunkID, r.ChunkID)
	}
	return nil
}

// SearchHit is a single similarity result returned to the caller, sorted
// descending by score.
type SearchHit struct {
	DocID   string  `json:"doc_id"`
	ChunkID string  `json:"chunk_id"`
	Text    string  `json:"text"`
	Ordinal int     `json:"ordinal"`
	Score   float64 `json:"score"`
}
