package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/hpckit/batchq"
)

// Recover returns middleware that recovers from panics in job predicates
// or lifecycle mutators. Panics are converted to errors and logged with
// a stack trace.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j batchq.Job, opts *batchq.RunOptions, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("job submission panicked",
					slog.String("job_name", j.Name()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				retErr = fmt.Errorf("panic submitting job %s: %v", j.Name(), r)
			}
		}()
		return next(ctx)
	}
}
