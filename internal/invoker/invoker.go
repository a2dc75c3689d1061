// Package invoker runs the Bitwarden Secrets Manager CLI (bws) as a
// subprocess.
//
// Callers pass only the command arguments. The invoker appends the access
// token and the non-interactive flags itself, immediately before execution,
// and scrubs the token from everything it returns, logs or records.
// Each call spawns exactly one process and is never retried.
package invoker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bwscache/bwscache/pkg/log"
	"github.com/bwscache/bwscache/pkg/metrics"
	"github.com/bwscache/bwscache/pkg/tracing"
)

// DefaultExecutable is resolved through PATH.
const DefaultExecutable = "bws"

// Flags appended to every call. Colour is disabled so output stays parseable.
var (
	nonInteractiveFlags = []string{"--color", "no"}
	structuredFlags     = []string{"--output", "json"}
	tokenFlag           = "--access-token"
)

// Invoker executes bws commands.
type Invoker struct {
	program string
	token   string
	runner  Runner
	redact  redactor
	logger  log.Logger
	metrics *metrics.Metrics
	tracer  *tracing.Tracer
	echo    io.Writer
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithExecutable sets the path of the bws executable.
func WithExecutable(path string) Option {
	return func(i *Invoker) {
		if path != "" {
			i.program = path
		}
	}
}

// WithRunner replaces the process runner. Tests use this to substitute a fake CLI.
func WithRunner(r Runner) Option {
	return func(i *Invoker) {
		if r != nil {
			i.runner = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(i *Invoker) {
		if l != nil {
			i.logger = l
		}
	}
}

// WithMetrics records invocation counts and durations.
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Invoker) {
		i.metrics = m
	}
}

// WithTracer wraps each invocation in a span.
func WithTracer(t *tracing.Tracer) Option {
	return func(i *Invoker) {
		i.tracer = t
	}
}

// WithEcho copies the (token-redacted) output of every successful call to w.
func WithEcho(w io.Writer) Option {
	return func(i *Invoker) {
		i.echo = w
	}
}

// New creates an Invoker authenticating with token.
func New(token string, opts ...Option) (*Invoker, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	i := &Invoker{
		program: DefaultExecutable,
		token:   token,
		runner:  ExecRunner{},
		redact:  redactor{token: token},
		logger:  log.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = i.logger.With("executable", i.program)

	return i, nil
}

// Program returns the configured executable path.
func (i *Invoker) Program() string {
	return i.program
}

// Redacting returns an Invoker that additionally scrubs values from the
// argument list and output it reports. Use it for calls that carry secret
// values on the command line.
func (i *Invoker) Redacting(values ...string) *Invoker {
	clone := *i
	clone.redact = i.redact.with(values...)
	return &clone
}

// Text runs a command and returns its raw combined output.
func (i *Invoker) Text(ctx context.Context, args ...string) (string, error) {
	out, err := i.run(ctx, args, false)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// JSON runs a command with JSON output and decodes the result into v.
// Output that does not decode is reported as a *DecodeError.
func (i *Invoker) JSON(ctx context.Context, v any, args ...string) error {
	out, err := i.run(ctx, args, true)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(out, v); err != nil {
		return &DecodeError{
			Args: i.redact.Args(args),
			Size: len(out),
			Err:  err,
		}
	}
	return nil
}

func (i *Invoker) run(ctx context.Context, args []string, structured bool) ([]byte, error) {
	command := commandName(args)
	invocationID := uuid.NewString()
	ctx = log.ContextWithInvocationID(ctx, invocationID)
	logger := i.logger.WithContext(ctx)

	shown := i.redact.Args(args)
	ctx, span := i.tracer.StartSpan(ctx, "bws "+command, tracing.WithAttributes(
		tracing.AttrCommand.String(command),
		tracing.AttrArgs.StringSlice(shown),
		tracing.AttrInvocationID.String(invocationID),
	))
	defer span.End()

	argv := make([]string, 0, len(args)+len(structuredFlags)+len(nonInteractiveFlags)+2)
	argv = append(argv, args...)
	if structured {
		argv = append(argv, structuredFlags...)
	}
	argv = append(argv, nonInteractiveFlags...)
	argv = append(argv, tokenFlag, i.token)

	logger.Debug().
		Strs("args", shown).
		Bool("structured", structured).
		Str("trace_id", tracing.TraceID(ctx)).
		Msg("Invoking bws")

	start := time.Now()
	res, err := i.runner.Run(ctx, i.program, argv)
	elapsed := time.Since(start)

	if err != nil {
		i.metrics.ObserveInvocation(command, "error", elapsed)
		wrapped := fmt.Errorf("failed to run %s %s: %s", i.program, command, i.redact.String(err.Error()))
		tracing.RecordError(ctx, wrapped)
		logger.Error().Err(wrapped).Dur("duration", elapsed).Msg("bws could not be started")
		return nil, wrapped
	}

	span.SetAttributes(tracing.AttrExitCode.Int(res.ExitCode))

	if ctxErr := ctx.Err(); ctxErr != nil && res.ExitCode != 0 {
		i.metrics.ObserveInvocation(command, "cancelled", elapsed)
		tracing.RecordError(ctx, ctxErr)
		return nil, fmt.Errorf("bws %s interrupted: %w", command, ctxErr)
	}

	if res.ExitCode != 0 {
		i.metrics.ObserveInvocation(command, "failed", elapsed)
		cmdErr := &CommandError{
			Args:     append([]string{i.program}, i.redact.Args(argv)...),
			ExitCode: res.ExitCode,
			Output:   i.redact.String(string(res.Output)),
		}
		tracing.RecordError(ctx, cmdErr)
		logger.Warn().
			Int("exit_code", res.ExitCode).
			Dur("duration", elapsed).
			Str("output", strings.TrimSpace(cmdErr.Output)).
			Msg("bws command failed")
		return nil, cmdErr
	}

	i.metrics.ObserveInvocation(command, "ok", elapsed)
	logger.Debug().Dur("duration", elapsed).Int("bytes", len(res.Output)).Msg("bws command finished")

	// Successful output is scrubbed as well; bws may print the token in
	// diagnostics. "[REDACTED]" stays valid inside a JSON string.
	out := i.redact.String(string(res.Output))
	if i.echo != nil {
		fmt.Fprintln(i.echo, out)
	}

	return []byte(out), nil
}

// commandName derives a low-cardinality label from the leading positional
// arguments, e.g. "secret list" or "help".
func commandName(args []string) string {
	var parts []string
	for _, a := range args {
		if strings.HasPrefix(a, "-") || len(parts) == 2 {
			break
		}
		parts = append(parts, a)
	}
	if len(parts) > 0 {
		return strings.Join(parts, " ")
	}
	if len(args) > 0 {
		switch args[0] {
		case "-h", "--help":
			return "help"
		case "-V", "--version":
			return "version"
		}
	}
	return "raw"
}
