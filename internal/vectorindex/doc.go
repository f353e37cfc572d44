// Package vectorindex defines the vector index the embedding stage writes
// into and the query service searches.
//
// Two backends implement the Index interface: a Qdrant REST client for
// deployments with a running Qdrant, and a local backend over the storage
// layer's embeddings table for single-node setups and tests. Both key
// records by chunk id, so upserting the same record twice is a replace,
// never a duplicate. That property is what makes at-least-once queue
// delivery safe end to end.
package vectorindex
