// Package job implements the lifecycle of a single generation job:
// spawning the worker process, turning its two output streams into
// telemetry events, resolving the final artifact and cleaning up the
// workspace.
package job

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
)

// Command describes one worker invocation. The worker is an opaque
// executable, arguments and staged files are never interpreted here.
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string // appended to the current environment
}

// ExitStatus is the worker's terminal process state. Err is set only
// for wait failures unrelated to the exit code.
type ExitStatus struct {
	Code int
	Err  error
}

// Handle exposes a started worker's output streams and its completion
// signal. The two streams must be consumed by independent readers: the
// operating system offers no synchronization between them.
type Handle struct {
	Stdout io.ReadCloser
	Stderr io.ReadCloser
	done   chan ExitStatus
}

// Wait returns a channel yielding the exit status exactly once, then
// closed. The process is reaped regardless of whether anyone receives.
func (h *Handle) Wait() <-chan ExitStatus {
	return h.done
}

// Launcher starts worker processes. No automatic restart or retry is
// performed, and a started worker is never cancelled by this subsystem;
// ctx is the extension point should that ever change.
type Launcher struct{}

// Start launches the worker and returns its handle. A failure to start
// (missing executable, permission denied) is returned as an error with
// no process left behind and no Running phase entered.
//
// The pipes are plain os.Pipe pairs rather than exec's StdoutPipe so
// that reaping the process cannot close the read ends while a reader
// loop is still draining them.
func (l Launcher) Start(ctx context.Context, cmd Command) (*Handle, error) {
	c := exec.CommandContext(ctx, cmd.Path, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		closeAll(stdoutR, stdoutW)
		return nil, fmt.Errorf("stderr pipe: %w", err)
	}
	c.Stdout = stdoutW
	c.Stderr = stderrW

	if err := c.Start(); err != nil {
		closeAll(stdoutR, stdoutW, stderrR, stderrW)
		return nil, fmt.Errorf("starting worker: %w", err)
	}

	// The child holds its own descriptors now; dropping the parent's
	// write ends lets the readers observe EOF on process exit.
	closeAll(stdoutW, stderrW)

	h := &Handle{
		Stdout: stdoutR,
		Stderr: stderrR,
		done:   make(chan ExitStatus, 1),
	}
	go func() {
		err := c.Wait()
		status := ExitStatus{Code: c.ProcessState.ExitCode()}
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			status.Err = err
		}
		h.done <- status
		close(h.done)
	}()
	return h, nil
}

func closeAll(files ...*os.File) {
	for _, f := range files {
		_ = f.Close()
	}
}
