package batchq

import (
	"context"
	"slices"
)

// Environment is a backend capable of running jobs and reporting their
// status. Implementations are long-lived, caller-owned, and single
// threaded: Run, Info, and Cancel each block on at most one external
// invocation and apply no internal timeout. Use middleware.Timeout (or a
// context deadline) when a bound is needed.
type Environment interface {
	// Run submits the job, applying the submission state machine.
	Run(ctx context.Context, j Job, opts ...RunOption) error

	// Info returns the environment's current view of its jobs. For
	// queue-backed environments this is a cached snapshot; for the
	// local environment it is the session run history.
	Info(ctx context.Context) (Info, error)

	// Cancel cancels the named job. Fire and forget: it does not wait
	// for or verify completion. Environments without cancellation
	// support return ErrUnsupported.
	Cancel(ctx context.Context, name string) error
}

// ProgressReporter is implemented by environments that can tell whether a
// named job is currently in flight. Environments that cannot (the local
// backend) implement it by returning ErrUnsupported rather than a silent
// default, so a possibly still-running duplicate is never masked.
type ProgressReporter interface {
	InProgress(ctx context.Context, name string) (bool, error)
}

// Info is a point-in-time view of the jobs an Environment knows about,
// keyed by job name. For queue-backed environments it reflects the last
// refresh, not live scheduler state.
type Info struct {
	// Pending holds jobs waiting in the external queue.
	Pending []string

	// Running holds jobs currently executing.
	Running []string

	// Unknown holds jobs the backend reported with a status it does not
	// classify as pending or running.
	Unknown []string

	// History holds jobs launched this session, in launch order. Only
	// the local environment populates it.
	History []string
}

// IsPending reports whether name is in the pending set.
func (i Info) IsPending(name string) bool { return slices.Contains(i.Pending, name) }

// IsRunning reports whether name is in the running set.
func (i Info) IsRunning(name string) bool { return slices.Contains(i.Running, name) }

// IsUnknown reports whether name was reported with an unclassified status.
func (i Info) IsUnknown(name string) bool { return slices.Contains(i.Unknown, name) }

// InProgress reports whether name is pending or running.
func (i Info) InProgress(name string) bool { return i.IsPending(name) || i.IsRunning(name) }
