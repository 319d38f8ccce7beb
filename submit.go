package batchq

import (
	"context"
	"fmt"
)

// Hooks parameterizes Submit with the backend-specific pieces of the
// submission algorithm. Every field except Launch may be nil:
//
//   - A nil InProgress skips the in-flight check entirely (the local
//     backend, which cannot observe progress).
//   - A nil Cancel makes a forced submission of an in-flight job fail
//     with ErrUnsupported instead of silently proceeding.
//   - A nil Materialize skips artifact generation.
type Hooks struct {
	// InProgress reports whether the job is currently pending or
	// running per the backend's authoritative status.
	InProgress func(ctx context.Context, j Job) (bool, error)

	// Cancel cancels the in-flight instance of the job.
	Cancel func(ctx context.Context, j Job) error

	// Materialize writes backend-specific submission artifacts, such
	// as a batch script.
	Materialize func(ctx context.Context, j Job, opts *RunOptions) error

	// Launch hands the job to the backend's execution primitive.
	Launch func(ctx context.Context, j Job, opts *RunOptions) error

	// Record notes a successful hand-off, for backends that keep a
	// local run history.
	Record func(j Job)
}

// Submit runs the submission state machine shared by all environments.
//
// Checks are ordered to fail fast on the cheap, purely local predicates
// and to prefer the least destructive corrective action under force:
// a complete or failed job is merely reset, while an in-flight job must
// first be cancelled (cancellation always precedes reset). A job cannot
// be both in flight and failed under correct backend reporting, but the
// ordering tolerates backends that transiently report both.
//
// Every rejection happens before any side effect. Failures during
// materialization, setup, or launch propagate to the caller and leave
// the job's predicates untouched: re-evaluate the job fresh on retry,
// never assume it was submitted.
func Submit(ctx context.Context, j Job, opts *RunOptions, h Hooks) error {
	if opts == nil {
		opts = &RunOptions{}
	}

	if j.Blocked() {
		return fmt.Errorf("job %q: blocked on unmet dependencies (force cannot override): %w",
			j.Name(), ErrBlocked)
	}

	if !j.Ready() {
		return fmt.Errorf("job %q: not ready for submission: %w", j.Name(), ErrNotReady)
	}

	if j.Complete() {
		if !opts.Force {
			return fmt.Errorf("job %q: already complete; submit with WithForce to reset and requeue: %w",
				j.Name(), ErrAlreadyComplete)
		}
		if err := j.Reset(); err != nil {
			return fmt.Errorf("job %q: reset after completion: %w", j.Name(), err)
		}
	}

	if h.InProgress != nil {
		inProgress, err := h.InProgress(ctx, j)
		if err != nil {
			return fmt.Errorf("job %q: query progress: %w", j.Name(), err)
		}
		if inProgress {
			if !opts.Force {
				return fmt.Errorf("job %q: already in progress; submit with WithForce to cancel, reset and requeue: %w",
					j.Name(), ErrAlreadyInProgress)
			}
			if h.Cancel == nil {
				return fmt.Errorf("job %q: in progress and this environment cannot cancel: %w",
					j.Name(), ErrUnsupported)
			}
			if err := h.Cancel(ctx, j); err != nil {
				return fmt.Errorf("job %q: cancel in-flight instance: %w", j.Name(), err)
			}
			if err := j.Reset(); err != nil {
				return fmt.Errorf("job %q: reset after cancellation: %w", j.Name(), err)
			}
		}
	}

	if j.Failed() {
		if !opts.Force {
			return fmt.Errorf("job %q: already failed; submit with WithForce to reset and requeue: %w",
				j.Name(), ErrAlreadyFailed)
		}
		if err := j.Reset(); err != nil {
			return fmt.Errorf("job %q: reset after failure: %w", j.Name(), err)
		}
	}

	if h.Materialize != nil {
		if err := h.Materialize(ctx, j, opts); err != nil {
			return fmt.Errorf("job %q: materialize submission artifacts: %w", j.Name(), err)
		}
	}

	if err := j.Setup(); err != nil {
		return fmt.Errorf("job %q: setup: %w", j.Name(), err)
	}

	if err := h.Launch(ctx, j, opts); err != nil {
		return fmt.Errorf("job %q: launch: %w", j.Name(), err)
	}

	if h.Record != nil {
		h.Record(j)
	}
	return nil
}
