// Package storage provides SQLite-based persistence for the pipeline's
// coordination state.
//
// The storage layer manages:
//   - documents: the per-document status ledger (discovered, chunking,
//     chunked, failed) that keeps polling cycles and watcher replicas from
//     reprocessing completed documents
//   - chunks: the per-chunk status ledger (published, embedded, failed)
//   - queue_items / dead_letters: the durable work queue with lease-based
//     at-least-once delivery
//   - embeddings: vector blobs backing the embedded vector index
//
// Publication durability: PublishChunks writes the chunk rows, the queue
// items, and the document's chunked status in a single transaction, so a
// crash after it returns never loses work and a crash before it leaves
// the document claimable by the next cycle.
//
// Lease semantics: Lease hands out at most one active delivery per item.
// An unacknowledged item becomes visible again when its lease expires,
// which is what gives the queue at-least-once delivery across consumer
// replicas.
//
// # Build Tags
//
// Two build configurations select the SQLite driver:
//
//   - default / purego: modernc.org/sqlite, no C compiler needed
//   - sqlite_cgo: github.com/mattn/go-sqlite3, faster under load
package storage
