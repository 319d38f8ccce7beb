package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/hpckit/batchq"
)

// Logging returns middleware that logs submission start and outcome.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, j batchq.Job, opts *batchq.RunOptions, next Handler) error {
		logger.Info("job submission started",
			slog.String("job_name", j.Name()),
			slog.Bool("force", opts.Force),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("job submission failed",
				slog.String("job_name", j.Name()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("job submitted",
				slog.String("job_name", j.Name()),
				slog.Duration("elapsed", elapsed),
			)
		}

		return err
	}
}
