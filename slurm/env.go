package slurm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hpckit/batchq"
	"github.com/hpckit/batchq/backoff"
	"github.com/hpckit/batchq/hook"
	"github.com/hpckit/batchq/middleware"
)

// Environment submits jobs to a Slurm cluster on behalf of one user.
// It is caller-owned and long-lived, and not safe for concurrent use
// from multiple goroutines without external synchronization. It also
// provides no cross-process exclusion: the only duplicate-submission
// guards are the job's predicates and the (possibly stale) status
// snapshot.
type Environment struct {
	user      string
	logger    *slog.Logger
	commander Commander
	mw        middleware.Middleware
	ext       *hook.Registry

	// cache is nil until the first refresh. Nil is "never populated",
	// not "no jobs queued".
	cache *snapshot
}

// Option configures an Environment.
type Option func(*Environment) error

// New creates a cluster environment scoped to the given scheduler user.
func New(user string, opts ...Option) (*Environment, error) {
	if user == "" {
		return nil, fmt.Errorf("slurm: user must not be empty")
	}
	e := &Environment{
		user:      user,
		logger:    slog.Default(),
		commander: execCommander{},
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if e.ext == nil {
		e.ext = hook.NewRegistry(e.logger)
	}
	return e, nil
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Environment) error {
		e.logger = l
		return nil
	}
}

// WithCommander replaces the external command port. Tests use this to
// run the full submission path against a fake scheduler.
func WithCommander(c Commander) Option {
	return func(e *Environment) error {
		if c == nil {
			return fmt.Errorf("slurm: commander must not be nil")
		}
		e.commander = c
		return nil
	}
}

// WithMiddleware installs submission middleware, outermost first.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(e *Environment) error {
		e.mw = middleware.Chain(mws...)
		return nil
	}
}

// WithExtensions sets the lifecycle extension registry.
func WithExtensions(r *hook.Registry) Option {
	return func(e *Environment) error {
		e.ext = r
		return nil
	}
}

// Run submits the job through the shared submission state machine.
// Blocked, unready, complete, in-progress, and failed jobs are rejected
// in that order; batchq.WithForce unlocks cancel/reset for all but
// blocked. The in-progress check consults the cached queue snapshot,
// refreshing it only if it has never been populated.
func (e *Environment) Run(ctx context.Context, j batchq.Job, opts ...batchq.RunOption) error {
	ro := batchq.NewRunOptions(opts...)

	submit := func(ctx context.Context) error {
		return batchq.Submit(ctx, j, ro, batchq.Hooks{
			InProgress:  e.jobInProgress,
			Cancel:      e.cancelJob,
			Materialize: e.materializeScript,
			Launch:      e.launch,
		})
	}

	start := time.Now()
	var err error
	if e.mw != nil {
		err = e.mw(ctx, j, ro, submit)
	} else {
		err = submit(ctx)
	}
	if err != nil {
		if batchq.IsRejection(err) {
			e.ext.EmitJobRejected(ctx, j, err)
		}
		return err
	}

	e.ext.EmitJobSubmitted(ctx, j, time.Since(start))
	return nil
}

// Info returns the cached queue view, refreshing it only if it has
// never been populated. The result is a copy; mutating it does not
// touch the cache.
func (e *Environment) Info(ctx context.Context) (batchq.Info, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return batchq.Info{}, err
	}
	return batchq.Info{
		Pending: append([]string(nil), snap.pending...),
		Running: append([]string(nil), snap.running...),
		Unknown: append([]string(nil), snap.unknown...),
	}, nil
}

// InProgress reports whether the named job is pending or running per
// the cached snapshot.
func (e *Environment) InProgress(ctx context.Context, name string) (bool, error) {
	snap, err := e.snapshot(ctx)
	if err != nil {
		return false, err
	}
	return snap.inProgress(name), nil
}

// Cancel issues a cancellation for the named job. Fire and forget: it
// does not wait for the cancellation to take effect and deliberately
// does not touch the status cache, which stays stale until the next
// Refresh.
func (e *Environment) Cancel(ctx context.Context, name string) error {
	if err := e.commander.Cancel(ctx, name); err != nil {
		return err
	}
	e.logger.Info("cancellation requested", slog.String("job_name", name))
	e.ext.EmitJobCancelled(ctx, name)
	return nil
}

// Refresh replaces the status cache with a fresh queue listing and
// returns the refresh statistics, including the count of malformed
// lines that were skipped.
func (e *Environment) Refresh(ctx context.Context) (hook.RefreshStats, error) {
	out, err := e.commander.List(ctx, e.user)
	if err != nil {
		return hook.RefreshStats{}, err
	}

	snap := parseQueue(out)
	e.cache = snap

	stats := hook.RefreshStats{
		Pending: len(snap.pending),
		Running: len(snap.running),
		Unknown: len(snap.unknown),
		Skipped: snap.skipped,
	}
	if snap.skipped > 0 {
		e.logger.Warn("queue listing had malformed lines",
			slog.Int("skipped", snap.skipped),
			slog.String("user", e.user),
		)
	}
	e.ext.EmitQueueRefreshed(ctx, stats)
	return stats, nil
}

// Wait blocks until the named job is no longer pending or running,
// refreshing the queue before each check. The strategy spaces the
// polls; nil means backoff.DefaultStrategy. Returns the context error
// if ctx ends first.
func (e *Environment) Wait(ctx context.Context, name string, strategy backoff.Strategy) error {
	if strategy == nil {
		strategy = backoff.DefaultStrategy()
	}
	for poll := 1; ; poll++ {
		if _, err := e.Refresh(ctx); err != nil {
			return err
		}
		if !e.cache.inProgress(name) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(strategy.Delay(poll)):
		}
	}
}

// snapshot returns the cache, populating it on first use.
func (e *Environment) snapshot(ctx context.Context) (*snapshot, error) {
	if e.cache == nil {
		if _, err := e.Refresh(ctx); err != nil {
			return nil, err
		}
	}
	return e.cache, nil
}

func (e *Environment) jobInProgress(ctx context.Context, j batchq.Job) (bool, error) {
	return e.InProgress(ctx, j.Name())
}

func (e *Environment) cancelJob(ctx context.Context, j batchq.Job) error {
	return e.Cancel(ctx, j.Name())
}

func (e *Environment) materializeScript(_ context.Context, j batchq.Job, opts *batchq.RunOptions) error {
	if opts.ScriptPath == "" {
		return fmt.Errorf("slurm: script path required, set batchq.WithScriptPath")
	}
	wrote, err := writeScript(opts.ScriptPath, j.Command(), opts)
	if err != nil {
		return err
	}
	if wrote {
		e.logger.Debug("batch script generated",
			slog.String("job_name", j.Name()),
			slog.String("path", opts.ScriptPath),
		)
	}
	return nil
}

func (e *Environment) launch(ctx context.Context, j batchq.Job, opts *batchq.RunOptions) error {
	if err := e.commander.Submit(ctx, opts.ScriptPath); err != nil {
		return err
	}
	e.logger.Info("job handed to scheduler",
		slog.String("job_name", j.Name()),
		slog.String("script", opts.ScriptPath),
	)
	return nil
}
