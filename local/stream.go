package local

import (
	"bufio"
	"context"
	"time"

	"github.com/hpckit/batchq"
)

// Stream is a lazy, finite, non-restartable view of a child process's
// combined stdout/stderr, one line at a time. Use it like a
// bufio.Scanner:
//
//	s, err := env.Stream(ctx, job)
//	for s.Next() {
//	    fmt.Println(s.Text())
//	}
//	if err := s.Err(); err != nil { ... }
//
// Err reports a batchq.CommandError carrying the exit code when the
// process ends with a non-zero status. The stream owns the process:
// drain it, or the child may block on a full pipe.
type Stream struct {
	cmdline string
	scanner *bufio.Scanner
	wait    func() error

	done bool
	err  error
}

// Stream submits the job through the same state machine as Run, but
// instead of blocking until exit it returns once the process has
// started, with its combined output readable line by line.
func (e *Environment) Stream(ctx context.Context, j batchq.Job, opts ...batchq.RunOption) (*Stream, error) {
	ro := batchq.NewRunOptions(opts...)

	var s *Stream
	start := time.Now()
	err := batchq.Submit(ctx, j, ro, batchq.Hooks{
		Launch: func(ctx context.Context, j batchq.Job, _ *batchq.RunOptions) error {
			cmd, err := buildCmd(ctx, j.Command())
			if err != nil {
				return err
			}
			pipe, err := cmd.StdoutPipe()
			if err != nil {
				return commandError(j.Command(), err)
			}
			// Merge stderr into the same pipe.
			cmd.Stderr = cmd.Stdout

			if err := cmd.Start(); err != nil {
				return commandError(j.Command(), err)
			}
			s = &Stream{
				cmdline: j.Command(),
				scanner: bufio.NewScanner(pipe),
				wait:    cmd.Wait,
			}
			return nil
		},
		Record: e.record,
	})
	if err != nil {
		if batchq.IsRejection(err) {
			e.ext.EmitJobRejected(ctx, j, err)
		}
		return nil, err
	}

	e.ext.EmitJobSubmitted(ctx, j, time.Since(start))
	return s, nil
}

// Next advances to the next output line. It returns false once the
// output is exhausted, after which Err reports the process outcome.
func (s *Stream) Next() bool {
	if s.done {
		return false
	}
	if s.scanner.Scan() {
		return true
	}
	s.done = true

	if err := s.scanner.Err(); err != nil {
		s.err = commandError(s.cmdline, err)
		// Reap the child regardless.
		_ = s.wait()
		return false
	}
	if err := s.wait(); err != nil {
		s.err = commandError(s.cmdline, err)
	}
	return false
}

// Text returns the current output line.
func (s *Stream) Text() string { return s.scanner.Text() }

// Err returns the terminal error, if any, once the stream is
// exhausted: a read failure or a non-zero exit status.
func (s *Stream) Err() error { return s.err }
