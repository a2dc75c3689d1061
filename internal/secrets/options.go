package secrets

import (
	"io"
	"os"

	"github.com/bwscache/bwscache/internal/invoker"
	"github.com/bwscache/bwscache/pkg/log"
	"github.com/bwscache/bwscache/pkg/metrics"
	"github.com/bwscache/bwscache/pkg/tracing"
)

// TokenEnvVar is the only environment variable consulted for the access token.
const TokenEnvVar = "BWS_ACCESS_TOKEN"

type options struct {
	token      string
	executable string
	runner     invoker.Runner
	logger     log.Logger
	metrics    *metrics.Metrics
	tracer     *tracing.Tracer
	echo       io.Writer
}

// Option configures a Manager.
type Option func(*options)

// WithToken sets the access token. An empty token falls back to BWS_ACCESS_TOKEN.
func WithToken(token string) Option {
	return func(o *options) {
		o.token = token
	}
}

// WithExecutable sets the path to the bws executable. Defaults to "bws" on PATH.
func WithExecutable(path string) Option {
	return func(o *options) {
		o.executable = path
	}
}

// WithRunner replaces the process runner, e.g. with a fake CLI in tests.
func WithRunner(r invoker.Runner) Option {
	return func(o *options) {
		o.runner = r
	}
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics records invocation and cache metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithTracer traces every external invocation.
func WithTracer(t *tracing.Tracer) Option {
	return func(o *options) {
		o.tracer = t
	}
}

// WithEcho copies the output of every successful bws call to w.
func WithEcho(w io.Writer) Option {
	return func(o *options) {
		o.echo = w
	}
}

// ResolveToken returns explicit if set, otherwise the value of
// BWS_ACCESS_TOKEN. No other source is consulted.
func ResolveToken(explicit string) (token string, fromEnv bool, err error) {
	if explicit != "" {
		return explicit, false, nil
	}
	if v := os.Getenv(TokenEnvVar); v != "" {
		return v, true, nil
	}
	return "", false, ErrMissingToken
}
