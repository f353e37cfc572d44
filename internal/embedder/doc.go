// Package embedder converts text into fixed-dimension vectors.
//
// Two providers are available: OpenAI (via the go-openai SDK) and a
// deterministic local provider for offline use and tests. Providers share
// an LRU cache keyed by content hash: within the same model version,
// identical text always maps to the same vector, so a cache hit is exact.
// The cache also covers the consumer's upsert-retry window: when the
// index write fails after a successful embedding call, the redelivery
// finds the vector in cache instead of re-calling the model.
//
// Transient API failures (timeouts, rate limits, 5xx) are retried with
// bounded exponential backoff and surface wrapping types.ErrTransient;
// content the model rejects outright surfaces as types.ErrPermanentContent.
//
// Model identity matters: vectors from different models are not
// comparable. Callers record Model() alongside every stored vector and
// verify it at query time.
package embedder
