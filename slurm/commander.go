package slurm

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/hpckit/batchq"
)

// Commander is the port to the external scheduler commands. The three
// operations map to sbatch, squeue, and scancel. Implementations block
// until the command returns; no timeout is applied here.
type Commander interface {
	// Submit hands a previously generated batch script to the
	// scheduler. No output is parsed: a zero exit status means
	// success, and the scheduler-assigned job id is not captured.
	Submit(ctx context.Context, scriptPath string) error

	// List returns the raw queue listing for the given user, one
	// "<status-code>-<job-name>" line per job.
	List(ctx context.Context, user string) ([]byte, error)

	// Cancel requests cancellation of every queued job with the given
	// name. Fire and forget: completion is not verified.
	Cancel(ctx context.Context, name string) error
}

// execCommander shells out to the real scheduler binaries.
type execCommander struct{}

func (execCommander) Submit(ctx context.Context, scriptPath string) error {
	cmd := exec.CommandContext(ctx, "sbatch", scriptPath)
	if err := cmd.Run(); err != nil {
		return commandError(cmd.String(), err)
	}
	return nil
}

func (execCommander) List(ctx context.Context, user string) ([]byte, error) {
	// -h drops the header, -o %t-%j emits "<code>-<name>" per job.
	cmd := exec.CommandContext(ctx, "squeue", "-u", user, "-h", "-o", "%t-%j")
	out, err := cmd.Output()
	if err != nil {
		return nil, commandError(cmd.String(), err)
	}
	return out, nil
}

func (execCommander) Cancel(ctx context.Context, name string) error {
	cmd := exec.CommandContext(ctx, "scancel", "-n", name)
	if err := cmd.Run(); err != nil {
		return commandError(cmd.String(), err)
	}
	return nil
}

// commandError wraps a failed command invocation, extracting the exit
// code when the process ran to completion.
func commandError(cmdline string, err error) error {
	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	return &batchq.CommandError{
		Cmd:      strings.TrimSpace(cmdline),
		ExitCode: code,
		Err:      err,
	}
}
