package middleware

import (
	"context"
	"log/slog"

	"github.com/hpckit/batchq"
)

// Timeout returns middleware that enforces a per-submission deadline.
// The core applies no timeout of its own: submission, refresh, and
// cancellation block until the external command returns. This is the
// caller-level wrapper for bounding that wait. When the per-call
// RunOptions carry a non-zero Timeout, the handler runs under
// context.WithTimeout and should return context.DeadlineExceeded when
// the deadline passes.
func Timeout(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j batchq.Job, opts *batchq.RunOptions, next Handler) error {
		if opts.Timeout > 0 {
			logger.Debug("submission timeout set",
				slog.String("job_name", j.Name()),
				slog.Duration("timeout", opts.Timeout),
			)
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}
		return next(ctx)
	}
}
