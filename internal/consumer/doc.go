// Package consumer runs the embedding stage: a bounded pool of workers
// that lease chunks from the work queue, embed their text, and upsert the
// vectors into the index.
//
// The stage tolerates at-least-once queue delivery. Chunk ids are pure
// functions of content, embeddings are cached by content hash, and index
// writes are keyed upserts, so a redelivered chunk overwrites its own
// prior record instead of duplicating it. Transient embedding failures
// are nacked for backoff retry; consistency violations dead-letter
// immediately because replaying malformed input cannot succeed.
package consumer
