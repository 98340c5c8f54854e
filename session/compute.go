package session

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// DefaultRTKLIBArgs selects kinematic relative positioning.
var DefaultRTKLIBArgs = []string{"-p", "3"}

// maxStderr bounds the stderr kept from the computation.
const maxStderr = 64 * 1024

// DefaultComputeWaitDelay bounds how long Compute waits for stderr to close
// after rnx2rtkp exits or is killed.
const DefaultComputeWaitDelay = 5 * time.Second

// ComputeRequest names the inputs and the output of one computation.
type ComputeRequest struct {
	Rover  string
	Base   string
	Nav    string
	Extra  []string
	Output string
}

// ComputeResult is the outcome of a finished computation process.
type ComputeResult struct {
	// ExitCode is the process exit code.
	ExitCode int
	// Stderr is the captured (bounded) stderr output.
	Stderr []byte
}

// Computer runs the positioning computation.
// An error means the computation could not be run at all; a non-zero
// ExitCode is reported through ComputeResult.
type Computer interface {
	Compute(ctx context.Context, req ComputeRequest) (*ComputeResult, error)
}

// RTKLIBComputer runs RTKLIB's rnx2rtkp as a child process.
type RTKLIBComputer struct {
	// Path is the rnx2rtkp executable (looked up in PATH if not absolute).
	Path string
	// Args are passed before -o; nil selects DefaultRTKLIBArgs.
	Args []string
	// WaitDelay overrides DefaultComputeWaitDelay when positive.
	WaitDelay time.Duration
}

// Command builds the argument vector for req, without the executable.
func (c *RTKLIBComputer) Command(req ComputeRequest) []string {
	args := c.Args
	if args == nil {
		args = DefaultRTKLIBArgs
	}
	argv := make([]string, 0, len(args)+5+len(req.Extra))
	argv = append(argv, args...)
	argv = append(argv, "-o", req.Output, req.Rover, req.Base, req.Nav)
	argv = append(argv, req.Extra...)
	return argv
}

// Compute implements Computer.
func (c *RTKLIBComputer) Compute(ctx context.Context, req ComputeRequest) (*ComputeResult, error) {
	path := c.Path
	if path == "" {
		path = "rnx2rtkp"
	}

	cmd := exec.CommandContext(ctx, path, c.Command(req)...)
	stderr := &boundedBuffer{max: maxStderr}
	cmd.Stderr = stderr
	// A descendant inheriting stderr would otherwise block Wait until it exits.
	cmd.WaitDelay = c.WaitDelay
	if cmd.WaitDelay <= 0 {
		cmd.WaitDelay = DefaultComputeWaitDelay
	}

	err := cmd.Run()
	if errors.Is(err, exec.ErrWaitDelay) {
		// rnx2rtkp itself exited 0; only the stderr copy was cut short.
		err = nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, fmt.Errorf("rnx2rtkp interrupted: %w", ctxErr)
	}

	result := &ComputeResult{Stderr: stderr.Bytes()}
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return nil, fmt.Errorf("failed to run rnx2rtkp: %w", err)
		}
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			result.ExitCode = status.ExitStatus()
		} else {
			result.ExitCode = -1
		}
	}
	return result, nil
}

var _ Computer = (*RTKLIBComputer)(nil)

// computeFailure describes a non-zero exit for the client.
func computeFailure(r *ComputeResult) error {
	msg := strings.TrimSpace(string(r.Stderr))
	if msg == "" {
		return fmt.Errorf("exit code %d", r.ExitCode)
	}
	return fmt.Errorf("exit code %d:\n%s", r.ExitCode, msg)
}

// boundedBuffer keeps the first max bytes written and discards the rest.
type boundedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	if room := b.max - b.buf.Len(); room > 0 {
		b.buf.Write(p[:min(room, len(p))])
	}
	return len(p), nil
}

func (b *boundedBuffer) Bytes() []byte {
	return b.buf.Bytes()
}
