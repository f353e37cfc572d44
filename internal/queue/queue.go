package queue

import (
	"context"
	"time"

	"github.com/vectorpipe/vectorpipe/internal/storage"
	"github.com/vectorpipe/vectorpipe/pkg/types"
)

const (
	// DefaultMaxAttempts is the delivery count after which an item is
	// dead-lettered
	DefaultMaxAttempts = 5
	// DefaultBaseDelay is the backoff before the first retry
	DefaultBaseDelay = 1 * time.Second
	// DefaultMaxDelay caps the exponential backoff
	DefaultMaxDelay = 5 * time.Minute
	// DefaultLeaseDuration is how long a delivery stays invisible to
	// other consumers
	DefaultLeaseDuration = 2 * time.Minute
)

// Config controls retry and lease behavior.
type Config struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	LeaseDuration time.Duration
}

// DefaultConfig returns the standard queue configuration.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   DefaultMaxAttempts,
		BaseDelay:     DefaultBaseDelay,
		MaxDelay:      DefaultMaxDelay,
		LeaseDuration: DefaultLeaseDuration,
	}
}

// Queue is a durable at-least-once work queue for chunk embedding jobs.
type Queue struct {
	store  storage.Storage
	config Config
}

// New creates a queue over the given storage.
func New(store storage.Storage, config Config) *Queue {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if config.BaseDelay <= 0 {
		config.BaseDelay = DefaultBaseDelay
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = DefaultMaxDelay
	}
	if config.LeaseDuration <= 0 {
		config.LeaseDuration = DefaultLeaseDuration
	}
	return &Queue{store: store, config: config}
}

// Publish enqueues a work item. Returns false when an item for the same
// chunk is already pending, which makes republication after a partial
// failure safe.
func (q *Queue) Publish(ctx context.Context, item *types.WorkItem) (bool, error) {
	return q.store.Enqueue(ctx, item)
}

// Delivery is one leased work item. Exactly one of Ack, Nack, or Reject
// must be called to settle it; otherwise the lease expires and the item
// is redelivered. Attempts counts deliveries including this one.
type Delivery struct {
	Item     types.WorkItem
	Attempts int

	queue *Queue
	id    int64
	token string
}

// Receive leases the next ready item. Returns nil when the queue has
// nothing visible; callers poll. An item whose deliveries are already
// exhausted is dead-lettered instead of handed out: a poison item that
// crashes its consumer before settling hits the same bound as one that
// fails cleanly.
func (q *Queue) Receive(ctx context.Context) (*Delivery, error) {
	for {
		item, err := q.store.Lease(ctx, q.config.LeaseDuration)
		if err != nil {
			return nil, err
		}
		if item == nil {
			return nil, nil
		}
		if item.Attempts > q.config.MaxAttempts {
			if err := q.store.DeadLetter(ctx, item.ID, item.LeaseToken, "delivery attempts exhausted"); err != nil {
				return nil, err
			}
			continue
		}
		return &Delivery{
			Item:     item.Item,
			Attempts: item.Attempts,
			queue:    q,
			id:       item.ID,
			token:    item.LeaseToken,
		}, nil
	}
}

// Ack settles the delivery as successfully processed.
func (d *Delivery) Ack(ctx context.Context) error {
	return d.queue.store.Ack(ctx, d.id, d.token)
}

// Nack settles the delivery as failed. The item is retried after an
// exponential backoff, or dead-lettered once attempts are exhausted.
func (d *Delivery) Nack(ctx context.Context, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	if d.Attempts >= d.queue.config.MaxAttempts {
		return d.queue.store.DeadLetter(ctx, d.id, d.token, msg)
	}
	return d.queue.store.Retry(ctx, d.id, d.token, d.queue.backoff(d.Attempts-1), msg)
}

// LastAttempt reports whether a Nack of this delivery will dead-letter
// instead of retry. Consumers use it to finalize ledger state alongside
// the last failure.
func (d *Delivery) LastAttempt() bool {
	return d.Attempts >= d.queue.config.MaxAttempts
}

// Reject dead-letters the delivery immediately, bypassing retries. Used
// for items that can never succeed, like consistency violations.
func (d *Delivery) Reject(ctx context.Context, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return d.queue.store.DeadLetter(ctx, d.id, d.token, msg)
}

// backoff returns the delay before redelivery after the given number of
// completed attempts: base * 2^attempts, capped at MaxDelay.
func (q *Queue) backoff(attempts int) time.Duration {
	delay := q.config.BaseDelay
	for i := 0; i < attempts && delay < q.config.MaxDelay; i++ {
		delay *= 2
	}
	if delay > q.config.MaxDelay {
		delay = q.config.MaxDelay
	}
	return delay
}

// Depth returns the number of live items, leased or pending.
func (q *Queue) Depth(ctx context.Context) (int, error) {
	return q.store.QueueDepth(ctx)
}
