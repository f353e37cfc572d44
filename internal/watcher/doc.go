// Package watcher polls object storage for documents and drives them
// through chunking and publication.
//
// Each polling cycle lists the store, derives a deterministic document id
// from key and content, and records any unseen document. Processing is
// claim-based: a watcher atomically moves a document to chunking before
// touching it, so concurrent watcher replicas and overlapping cycles
// never double-process. A claim abandoned by a crashed watcher becomes
// claimable again after a staleness window.
//
// Content failures (invalid UTF-8, oversized chunks) mark the document
// failed with a reason and are not retried automatically; an operator
// resets them explicitly. Transient failures release the claim so a later
// cycle retries.
package watcher
