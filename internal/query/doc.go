// Package query serves similarity searches over the vector index.
//
// A query embeds the query text with the same model that produced the
// indexed vectors, searches the index, and returns hits ordered by score
// descending with chunk id as the tie break. Results are filtered to the
// current embedding model by default because vectors from different
// model versions live in incompatible spaces; comparing them produces
// silently wrong rankings rather than errors.
//
// Identical concurrent queries collapse into one dependency call via
// singleflight, and recent results are served from a TTL'd LRU cache.
// Each dependency call runs under its own timeout, and caller
// cancellation aborts a waiting query immediately.
package query
