package invoker

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrCommandFailed matches every failure reported by the external tool,
	// including malformed structured output.
	ErrCommandFailed = errors.New("bws command failed")

	// ErrMalformedOutput matches structured output that could not be decoded.
	ErrMalformedOutput = errors.New("malformed bws output")

	// ErrMissingToken is returned by New when no access token is supplied.
	ErrMissingToken = errors.New("access token is required")
)

// CommandError reports a non-zero exit from the external tool. Args and
// Output have already been redacted.
type CommandError struct {
	Args     []string
	ExitCode int
	Output   string
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("bws command %q exited with code %d", strings.Join(e.Args, " "), e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return ErrCommandFailed
}

// DecodeError reports structured output that did not decode. The raw output
// is deliberately not kept: listings carry secret values.
type DecodeError struct {
	Args []string
	Size int
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed output from bws command %q (%d bytes): %v", strings.Join(e.Args, " "), e.Size, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrMalformedOutput, ErrCommandFailed, e.Err}
}
