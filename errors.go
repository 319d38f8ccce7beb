package batchq

import (
	"errors"
	"fmt"
)

var (
	// Predicate errors. All but ErrBlocked can be overridden with WithForce.
	ErrBlocked           = errors.New("batchq: job is blocked on unmet dependencies")
	ErrNotReady          = errors.New("batchq: job is not ready")
	ErrAlreadyComplete   = errors.New("batchq: job is already complete")
	ErrAlreadyInProgress = errors.New("batchq: job is already in progress")
	ErrAlreadyFailed     = errors.New("batchq: job has already failed")

	// Capability errors.
	ErrUnsupported = errors.New("batchq: operation not supported by this environment")
)

// IsRejection reports whether err is a predicate rejection from the
// submission state machine, as opposed to an execution failure.
// Rejections happen before any side effect.
func IsRejection(err error) bool {
	return errors.Is(err, ErrBlocked) ||
		errors.Is(err, ErrNotReady) ||
		errors.Is(err, ErrAlreadyComplete) ||
		errors.Is(err, ErrAlreadyInProgress) ||
		errors.Is(err, ErrAlreadyFailed)
}

// CommandError reports a non-zero exit from a launched process or an
// external scheduler command. ExitCode is -1 when the process never
// started or its exit status could not be determined.
type CommandError struct {
	Cmd      string
	ExitCode int
	Err      error
}

// Error implements error.
func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("batchq: command %q failed: %v", e.Cmd, e.Err)
	}
	return fmt.Sprintf("batchq: command %q exited with code %d", e.Cmd, e.ExitCode)
}

// Unwrap returns the underlying cause, if any.
func (e *CommandError) Unwrap() error { return e.Err }
