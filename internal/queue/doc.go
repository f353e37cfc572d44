// Package queue provides the durable work queue the chunking stage
// publishes into and the embedding stage consumes from.
//
// The queue is backed by the storage layer, so a published item survives
// process restarts. Delivery is at-least-once: a consumer leases an item,
// and if it crashes or its lease expires the item is redelivered to the
// next consumer. Consumers therefore must be idempotent, which the
// pipeline guarantees through deterministic chunk ids and keyed upserts.
//
// Every lease counts as a delivery attempt, so a consumer that crashes
// without settling runs the item up against the same bound as one that
// fails cleanly. Failed deliveries are retried with exponential backoff
// up to a maximum attempt count, then moved to a dead letter table for
// operator inspection. Consistency violations skip retry and dead-letter
// immediately, since replaying malformed input can never succeed.
package queue
