package invoker

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// Result is the outcome of one process run.
type Result struct {
	// Output is stdout and stderr merged in write order.
	Output []byte
	// ExitCode is the process exit status; -1 when it did not exit normally.
	ExitCode int
}

// Runner starts one external process and waits for it.
//
// A process that runs and exits non-zero is reported through Result.ExitCode
// with a nil error. The error return is reserved for failing to start or
// wait on the process at all.
type Runner interface {
	Run(ctx context.Context, program string, args []string) (Result, error)
}

// ExecRunner runs processes with os/exec.
type ExecRunner struct{}

// Run implements Runner.
func (ExecRunner) Run(ctx context.Context, program string, args []string) (Result, error) {
	cmd := exec.CommandContext(ctx, program, args...)

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return Result{Output: combined.Bytes()}, nil
	case errors.As(err, &exitErr):
		return Result{Output: combined.Bytes(), ExitCode: exitErr.ExitCode()}, nil
	default:
		return Result{Output: combined.Bytes(), ExitCode: -1}, err
	}
}
