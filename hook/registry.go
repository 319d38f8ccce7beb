package hook

import (
	"context"
	"log/slog"
	"time"

	"github.com/hpckit/batchq"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobSubmittedEntry struct {
	name string
	hook JobSubmitted
}

type jobRejectedEntry struct {
	name string
	hook JobRejected
}

type jobCancelledEntry struct {
	name string
	hook JobCancelled
}

type queueRefreshedEntry struct {
	name string
	hook QueueRefreshed
}

// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	jobSubmitted   []jobSubmittedEntry
	jobRejected    []jobRejectedEntry
	jobCancelled   []jobCancelledEntry
	queueRefreshed []queueRefreshedEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobSubmitted); ok {
		r.jobSubmitted = append(r.jobSubmitted, jobSubmittedEntry{name, h})
	}
	if h, ok := e.(JobRejected); ok {
		r.jobRejected = append(r.jobRejected, jobRejectedEntry{name, h})
	}
	if h, ok := e.(JobCancelled); ok {
		r.jobCancelled = append(r.jobCancelled, jobCancelledEntry{name, h})
	}
	if h, ok := e.(QueueRefreshed); ok {
		r.queueRefreshed = append(r.queueRefreshed, queueRefreshedEntry{name, h})
	}
}

// Extensions returns the registered extensions in registration order.
func (r *Registry) Extensions() []Extension {
	out := make([]Extension, len(r.extensions))
	copy(out, r.extensions)
	return out
}

// EmitJobSubmitted notifies all extensions that implement JobSubmitted.
func (r *Registry) EmitJobSubmitted(ctx context.Context, j batchq.Job, elapsed time.Duration) {
	for _, e := range r.jobSubmitted {
		if err := e.hook.OnJobSubmitted(ctx, j, elapsed); err != nil {
			r.logHookError("OnJobSubmitted", e.name, err)
		}
	}
}

// EmitJobRejected notifies all extensions that implement JobRejected.
func (r *Registry) EmitJobRejected(ctx context.Context, j batchq.Job, jobErr error) {
	for _, e := range r.jobRejected {
		if err := e.hook.OnJobRejected(ctx, j, jobErr); err != nil {
			r.logHookError("OnJobRejected", e.name, err)
		}
	}
}

// EmitJobCancelled notifies all extensions that implement JobCancelled.
func (r *Registry) EmitJobCancelled(ctx context.Context, name string) {
	for _, e := range r.jobCancelled {
		if err := e.hook.OnJobCancelled(ctx, name); err != nil {
			r.logHookError("OnJobCancelled", e.name, err)
		}
	}
}

// EmitQueueRefreshed notifies all extensions that implement QueueRefreshed.
func (r *Registry) EmitQueueRefreshed(ctx context.Context, stats RefreshStats) {
	for _, e := range r.queueRefreshed {
		if err := e.hook.OnQueueRefreshed(ctx, stats); err != nil {
			r.logHookError("OnQueueRefreshed", e.name, err)
		}
	}
}

// logHookError logs a hook failure without interrupting the emit loop.
// A failing extension must never break a submission.
func (r *Registry) logHookError(hookName, extName string, err error) {
	r.logger.Error("extension hook failed",
		slog.String("hook", hookName),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
