// Package local implements the batchq.Environment contract by executing
// a job's command as a child process on the current host. There is no
// queue, no progress reporting, and no cancellation: the variability of
// local execution contexts makes those impossible to provide honestly,
// so the corresponding operations fail with batchq.ErrUnsupported
// instead of silently returning a default. A silently ignored
// cancellation would let an actually running duplicate keep going
// unnoticed.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/hpckit/batchq"
	"github.com/hpckit/batchq/hook"
	"github.com/hpckit/batchq/middleware"
)

// Environment runs jobs as local subprocesses. Successful launches are
// appended to an in-memory run history exposed via Info. Like every
// batchq environment it is single threaded and caller-owned.
type Environment struct {
	logger *slog.Logger
	mw     middleware.Middleware
	ext    *hook.Registry
	output io.Writer

	history []string
}

// Option configures an Environment.
type Option func(*Environment) error

// New creates a local environment.
func New(opts ...Option) (*Environment, error) {
	e := &Environment{
		logger: slog.Default(),
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

// WithOutput directs the child process's combined stdout/stderr to w
// during Run. By default output is discarded; use Stream for lazy
// line-by-line consumption.
func WithOutput(w io.Writer) Option {
	return func(e *Environment) error {
		e.output = w
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

// Run submits the job through the shared submission state machine and
// blocks until the child process exits. The in-progress check is
// skipped entirely: this backend cannot observe progress, so the only
// duplicate-submission guards are the job's own predicates.
func (e *Environment) Run(ctx context.Context, j batchq.Job, opts ...batchq.RunOption) error {
	ro := batchq.NewRunOptions(opts...)

	submit := func(ctx context.Context) error {
		return batchq.Submit(ctx, j, ro, batchq.Hooks{
			Launch: e.launch,
			Record: e.record,
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

// Info returns the session run history in launch order.
func (e *Environment) Info(_ context.Context) (batchq.Info, error) {
	return batchq.Info{
		History: append([]string(nil), e.history...),
	}, nil
}

// Cancel always fails: a local child process has no queue entry to
// cancel. End the process through the operating system instead.
func (e *Environment) Cancel(_ context.Context, name string) error {
	return fmt.Errorf("local: cannot cancel job %q, end the process via the operating system: %w",
		name, batchq.ErrUnsupported)
}

// InProgress always fails: the local environment cannot observe
// whether a job is running.
func (e *Environment) InProgress(_ context.Context, name string) (bool, error) {
	return false, fmt.Errorf("local: cannot report progress for job %q: %w",
		name, batchq.ErrUnsupported)
}

func (e *Environment) launch(ctx context.Context, j batchq.Job, _ *batchq.RunOptions) error {
	cmd, err := buildCmd(ctx, j.Command())
	if err != nil {
		return err
	}
	if e.output != nil {
		cmd.Stdout = e.output
		cmd.Stderr = e.output
	}

	e.logger.Info("launching job", slog.String("job_name", j.Name()), slog.String("command", j.Command()))
	if err := cmd.Run(); err != nil {
		return commandError(j.Command(), err)
	}
	return nil
}

func (e *Environment) record(j batchq.Job) {
	e.history = append(e.history, j.Name())
}

// buildCmd tokenizes the job's command on whitespace and prepares a
// direct execution, not a shell invocation.
func buildCmd(ctx context.Context, command string) (*exec.Cmd, error) {
	argv := strings.Fields(command)
	if len(argv) == 0 {
		return nil, fmt.Errorf("local: job command is empty")
	}
	return exec.CommandContext(ctx, argv[0], argv[1:]...), nil
}

// commandError wraps a child process failure, extracting the exit code
// when the process ran to completion.
func commandError(cmdline string, err error) error {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &batchq.CommandError{Cmd: cmdline, ExitCode: code, Err: err}
}
