package batchq

// Job is a unit of work with identity and lifecycle predicates, supplying
// a command to execute. The caller implements it; batchq never stores
// derived state on a Job and queries every predicate fresh on each
// submission decision.
//
// All predicates must be side-effect-free. Setup and Reset are the only
// mutators: Setup performs idempotent preparation (for example,
// materializing input files) and is invoked before every launch; Reset
// clears prior completion and failure state so the job becomes
// resubmittable. After a successful Reset, Complete and Failed must
// report false. Setup idempotence is the implementer's burden; batchq
// does not guard against a non-idempotent Setup.
type Job interface {
	// Name identifies the job and is used as the external scheduler's
	// primary key for status lookup. Slurm truncates names around a
	// ~20 character limit; keeping the name within that limit is the
	// caller's responsibility. A truncated name will fail status
	// lookups and cancellation silently.
	Name() string

	// Ready reports whether the job's dependencies are satisfied and it
	// is safe to submit.
	Ready() bool

	// Blocked reports whether unmet dependencies forbid submission.
	// A blocked job is never submitted, regardless of force.
	Blocked() bool

	// Complete reports whether a prior run finished successfully.
	Complete() bool

	// Failed reports whether a prior run finished unsuccessfully.
	Failed() bool

	// Setup performs any preparation needed before the job is launched.
	// It must be idempotent.
	Setup() error

	// Reset clears completion and failure state so the job can be
	// submitted again.
	Reset() error

	// Command returns the process invocation. Backends tokenize it on
	// whitespace and execute it directly, not through a shell.
	Command() string
}
