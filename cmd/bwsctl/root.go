package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/bwscache/bwscache/internal/config"
	"github.com/bwscache/bwscache/internal/invoker"
	"github.com/bwscache/bwscache/internal/secrets"
	"github.com/bwscache/bwscache/pkg/log"
	"github.com/bwscache/bwscache/pkg/metrics"
	"github.com/bwscache/bwscache/pkg/tracing"
)

// Build information (set from main.go)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// Exit codes
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfigError = 2
)

// app holds the flags and the resources shared by every subcommand.
type app struct {
	// Global flags
	project    string
	token      string
	bwsPath    string
	output     string
	configFile string
	logLevel   string
	noColor    bool
	echo       bool

	cfg     *config.Config
	logger  log.Logger
	metrics *metrics.Metrics
	tracer  *tracing.Tracer
	cancel  context.CancelFunc

	// runner replaces the bws process in tests.
	runner invoker.Runner

	out    io.Writer
	errOut io.Writer
	in     io.Reader
}

func newApp(out, errOut io.Writer) *app {
	return &app{
		logger: log.NewNop(),
		out:    out,
		errOut: errOut,
		in:     os.Stdin,
	}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bwsctl",
		Short: "Cached access to a Bitwarden Secrets Manager project",
		Long: `bwsctl reads and writes the secrets of one Bitwarden Secrets Manager
project through the bws command-line tool.

Each invocation loads the whole project once and serves lookups from that
snapshot. Writes go straight to bws and are applied locally only after bws
reports success. The access token is passed to bws on every call and is
scrubbed from all output, logs and errors.

Environment variables:
  BWS_ACCESS_TOKEN         Access token (never stored in the config file)
  BWS_PROJECT              Project name
  BWS_PATH                 Path to the bws executable (default: bws)
  BWS_TIMEOUT              Deadline for the whole command, e.g. 30s
  BWS_LOG_LEVEL            debug, info, warn, error (default: info)
  BWS_LOG_FORMAT           console, json (default: console)
  BWS_METRICS_TEXTFILE     Write Prometheus metrics here on exit
  BWS_TRACING_ENABLED      Export OpenTelemetry traces over OTLP/HTTP
  BWS_TRACING_ENDPOINT     OTLP/HTTP collector, e.g. localhost:4318`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip initialization for completion, version and config commands
			if cmd.Name() == "completion" || cmd.Name() == "version" ||
				(cmd.Parent() != nil && cmd.Parent().Name() == "completion") ||
				(cmd.Parent() != nil && cmd.Parent().Name() == "config") {
				InitColor(!a.noColor)
				return nil
			}
			return a.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&a.project, "project", "p", "", "Project name (default: $BWS_PROJECT)")
	pf.StringVarP(&a.token, "token", "t", "", "Access token (default: $BWS_ACCESS_TOKEN)")
	pf.StringVar(&a.bwsPath, "bws-path", "", "Path to the bws executable (default: bws)")
	pf.StringVarP(&a.output, "output", "o", "", "Output format: json, table (default: table)")
	pf.StringVar(&a.configFile, "config", "", "Config file (default: "+DefaultConfigPath()+")")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error (default: info)")
	pf.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	pf.BoolVar(&a.echo, "echo", false, "Copy raw bws output to stderr")

	rootCmd.AddCommand(newVersionCmd(a))
	rootCmd.AddCommand(newGetCmd(a))
	rootCmd.AddCommand(newListCmd(a))
	rootCmd.AddCommand(newAddCmd(a))
	rootCmd.AddCommand(newUpdateCmd(a))
	rootCmd.AddCommand(newDeleteCmd(a))
	rootCmd.AddCommand(newRefreshCmd(a))
	rootCmd.AddCommand(newRawCmd(a))
	rootCmd.AddCommand(newProjectsCmd(a))
	rootCmd.AddCommand(newBWSHelpCmd(a))
	rootCmd.AddCommand(newBWSVersionCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))
	rootCmd.AddCommand(newCompletionCmd(rootCmd))

	return rootCmd
}

// setup resolves settings (flag > env > config file > default) and builds
// the logger, metrics and tracer shared by the command.
func (a *app) setup(cmd *cobra.Command) error {
	InitColor(!a.noColor)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg

	file, err := LoadConfig(a.configFile)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return err
		}
		file = &Config{}
	}

	a.project = resolveConfigValue(file.Project, a.project, cfg.BWS.Project, "")
	a.bwsPath = resolveConfigValue(file.BWSPath, a.bwsPath, cfg.BWS.Path, invoker.DefaultExecutable)
	a.output = resolveConfigValue(file.OutputFormat, a.output, "", "table")
	if a.output != "json" && a.output != "table" {
		return fmt.Errorf("invalid output format: %s (must be 'json' or 'table')", a.output)
	}

	level := a.logLevel
	if level == "" {
		level = cfg.Log.Level
	}
	a.logger = log.NewWithWriter(level, cfg.Log.Format, a.errOut).With("command", cmd.Name())
	a.metrics = metrics.NewMetrics()

	if cfg.Observability.TracingEnabled {
		tracer, err := tracing.InitTracer(tracing.Config{
			ServiceName:    "bwsctl",
			ServiceVersion: Version,
			Endpoint:       cfg.Observability.TracingEndpoint,
			Insecure:       cfg.Observability.TracingInsecure,
			SampleRate:     cfg.Observability.TracingSampleRate,
			Enabled:        true,
		})
		if err != nil {
			return fmt.Errorf("failed to initialize tracing: %w", err)
		}
		a.tracer = tracer
	}

	ctx := log.ContextWithLogger(cmd.Context(), a.logger)
	if cfg.BWS.Timeout > 0 {
		ctx, a.cancel = context.WithTimeout(ctx, cfg.BWS.Timeout)
	}
	cmd.SetContext(ctx)

	return nil
}

// finish releases what setup acquired. It runs whether or not the command
// succeeded.
func (a *app) finish() {
	if a.cancel != nil {
		a.cancel()
	}

	if a.cfg != nil && a.cfg.MetricsEnabled() {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.TextfilePath); err != nil {
			a.logger.Warn().Err(err).Str("path", a.cfg.Metrics.TextfilePath).Msg("Failed to write metrics textfile")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to flush traces")
	}
}

// openManager loads the configured project, logging through the logger
// setup stored on ctx.
func (a *app) openManager(ctx context.Context) (*secrets.Manager, error) {
	m, err := secrets.New(ctx, a.project,
		secrets.WithToken(a.token),
		secrets.WithExecutable(a.bwsPath),
		secrets.WithRunner(a.runner),
		secrets.WithLogger(log.FromContext(ctx)),
		secrets.WithMetrics(a.metrics),
		secrets.WithTracer(a.tracer),
		secrets.WithEcho(a.echoWriter()),
	)
	if errors.Is(err, secrets.ErrMissingProject) {
		return nil, fmt.Errorf("%w (use --project, BWS_PROJECT or 'bwsctl config set project <name>')", err)
	}
	return m, err
}

// openInvoker returns a bare invoker for commands that need no project.
func (a *app) openInvoker(ctx context.Context) (*invoker.Invoker, error) {
	logger := log.FromContext(ctx)
	token, fromEnv, err := secrets.ResolveToken(a.token)
	if err != nil {
		return nil, err
	}
	if fromEnv {
		logger.Debug().Msgf("Using %s already set as environment variable", secrets.TokenEnvVar)
	}
	return invoker.New(token,
		invoker.WithExecutable(a.bwsPath),
		invoker.WithRunner(a.runner),
		invoker.WithLogger(logger),
		invoker.WithMetrics(a.metrics),
		invoker.WithTracer(a.tracer),
		invoker.WithEcho(a.echoWriter()),
	)
}

func (a *app) echoWriter() io.Writer {
	if a.echo {
		return a.errOut
	}
	return nil
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Display the version, commit hash, and build time of bwsctl.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.output == "json" {
				return printJSON(a.out, map[string]string{
					"version":    Version,
					"commit":     Commit,
					"build_time": BuildTime,
					"go_version": runtime.Version(),
					"platform":   runtime.GOOS + "/" + runtime.GOARCH,
				})
			}

			fmt.Fprintf(a.out, "%s\n", Bold("bwsctl"))
			fmt.Fprintf(a.out, "  Version:    %s\n", Version)
			fmt.Fprintf(a.out, "  Commit:     %s\n", Commit)
			fmt.Fprintf(a.out, "  Built:      %s\n", BuildTime)
			fmt.Fprintf(a.out, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(a.out, "  Platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
			return nil
		},
	}
}

// Execute runs bwsctl and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := newApp(os.Stdout, os.Stderr)
	err := newRootCmd(a).ExecuteContext(ctx)
	a.finish()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", Red("Error:"), err)
		return exitCode(err)
	}
	return exitOK
}

func exitCode(err error) int {
	var verr *config.ValidationError
	if secrets.IsConfiguration(err) || errors.As(err, &verr) {
		return exitConfigError
	}
	return exitFailure
}
