package types

import (
	"context"
	"errors"
)

// Error taxonomy for the pipeline. Components wrap these sentinels with
// %w so boundaries can classify failures without knowing their source.
var (
	// ErrValidation marks a malformed request or work item. Never retried;
	// surfaced to the caller immediately.
	ErrValidation = errors.New("validation error")

	// ErrTransient marks a dependency timeout or rate limit. Retried with
	// bounded backoff, then dead-lettered or surfaced as retryable.
	ErrTransient = errors.New("transient dependency error")

	// ErrPermanentContent marks unreadable or oversized content. The owning
	// document is marked failed and is not retried automatically.
	ErrPermanentContent = errors.New("permanent content error")

	// ErrConsistency marks an internal contract breach, such as a work item
	// referencing a document that was never recorded. Logged as a defect and
	// dead-lettered, never silently dropped.
	ErrConsistency = errors.New("consistency violation")
)

// IsRetryable reports whether err should be retried or surfaced to the
// caller as "try again". Context deadlines count as transient: the
// dependency was slow, not the input wrong.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, context.DeadlineExceeded)
}
