// Package middleware provides composable middleware around job
// submission. Middleware wraps the submission state machine
// synchronously and can modify it (recover from panics, log, enforce a
// caller-level deadline, add tracing).
package middleware

import (
	"context"

	"github.com/hpckit/batchq"
)

// Handler is the terminal function that performs the submission.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It receives the
// current context, the job being submitted, the per-call options, and
// the next handler. Middleware MUST call next to continue the chain
// (unless short-circuiting on error).
type Middleware func(ctx context.Context, j batchq.Job, opts *batchq.RunOptions, next Handler) error

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → submit
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, j batchq.Job, opts *batchq.RunOptions, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, j, opts, prev)
			}
		}
		return h(ctx)
	}
}
