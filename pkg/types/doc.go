// Package types defines the pipeline data model: documents, chunks,
// embedding records, queries, and the identity scheme that makes
// reprocessing idempotent.
//
// Identity is deterministic end to end. A document id is derived from its
// storage key and content hash, a chunk id from (doc_id, ordinal, text).
// Re-ingesting the same bytes therefore produces the same ids, and the
// idempotent upsert keyed on chunk_id overwrites in place instead of
// duplicating index entries.
package types
