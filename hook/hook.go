// Package hook defines the extension system for batchq. Extensions are
// notified of lifecycle events (job submitted, rejected, cancelled, queue
// refreshed) and can react to them for logging, metrics, or auditing.
//
// Each lifecycle event is a separate interface so extensions opt in only
// to the events they care about.
package hook

import (
	"context"
	"time"

	"github.com/hpckit/batchq"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// JobSubmitted is called after a job is successfully handed off to a
// backend's execution primitive.
type JobSubmitted interface {
	OnJobSubmitted(ctx context.Context, j batchq.Job, elapsed time.Duration) error
}

// JobRejected is called when the submission state machine refuses a job
// before any side effect. err matches one of the batchq predicate
// sentinels via errors.Is.
type JobRejected interface {
	OnJobRejected(ctx context.Context, j batchq.Job, err error) error
}

// JobCancelled is called after a cancellation command is issued for the
// named job. Cancellation is fire and forget, so this marks the request,
// not its completion.
type JobCancelled interface {
	OnJobCancelled(ctx context.Context, name string) error
}

// RefreshStats summarizes one status-cache refresh.
type RefreshStats struct {
	Pending int
	Running int
	Unknown int

	// Skipped counts queue-listing lines that could not be parsed and
	// were dropped.
	Skipped int
}

// QueueRefreshed is called after a status cache is repopulated from the
// external queue listing.
type QueueRefreshed interface {
	OnQueueRefreshed(ctx context.Context, stats RefreshStats) error
}
