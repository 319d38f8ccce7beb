package batchq

import "time"

// RunOptions is the per-submission configuration bag. It is transient:
// construct it fresh for every Run call via RunOption values. None of it
// is stored on the Job or the Environment.
type RunOptions struct {
	// Force permits destructive corrective transitions that would
	// otherwise be rejected: resetting a complete or failed job, and
	// cancelling an in-flight one. Force never overrides Blocked.
	Force bool

	// Directives holds scheduler key/value directives emitted into the
	// generated batch script as "#SBATCH --<key>=<value>" lines, in
	// sorted key order.
	Directives map[string]string

	// Flags holds flag-only scheduler directives, emitted as
	// "#SBATCH --<flag>" lines in the order given.
	Flags []string

	// ScriptPath is the destination for the generated batch script.
	// An existing file at this path is reused without regeneration:
	// existence is a cache, not a freshness guarantee. Delete the file
	// to pick up a changed command or directives.
	ScriptPath string

	// Timeout bounds the whole submission when middleware.Timeout is
	// installed. Zero means no bound; the core itself never applies
	// a deadline.
	Timeout time.Duration
}

// NewRunOptions applies opts to a zero RunOptions.
func NewRunOptions(opts ...RunOption) *RunOptions {
	o := &RunOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunOption configures a single submission.
type RunOption func(*RunOptions)

// WithForce permits cancel/reset of a job that is complete, failed, or in
// progress. It has no effect on a blocked job.
func WithForce() RunOption {
	return func(o *RunOptions) { o.Force = true }
}

// WithDirectives sets the scheduler key/value directives.
func WithDirectives(d map[string]string) RunOption {
	return func(o *RunOptions) { o.Directives = d }
}

// WithFlags sets the flag-only scheduler directives.
func WithFlags(flags ...string) RunOption {
	return func(o *RunOptions) { o.Flags = flags }
}

// WithScriptPath sets where the generated batch script is written.
func WithScriptPath(path string) RunOption {
	return func(o *RunOptions) { o.ScriptPath = path }
}

// WithTimeout sets the submission deadline enforced by middleware.Timeout.
func WithTimeout(d time.Duration) RunOption {
	return func(o *RunOptions) { o.Timeout = d }
}
