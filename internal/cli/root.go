// Package cli implements the outbound command line: one-shot requests and
// a polling loop, both running through the resilient httpclient.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/kroma-labs/outbound/httpclient"
	"github.com/kroma-labs/outbound/internal/config"
	"github.com/kroma-labs/outbound/internal/telemetry"
)

// Exit codes returned by ExitCode.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitTimeout = 3
	ExitStatus  = 4
	ExitAborted = 130
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	baseURL    string
	timeout    time.Duration
	retries    int
	retryDelay time.Duration
	headers    []string
	query      []string
	verbose    bool
	trace      bool
}

type app struct {
	out    io.Writer
	errOut io.Writer
	flags  globalFlags
}

// NewRootCommand creates the root command. Responses go to out; logs,
// traces and errors go to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut}

	cmd := &cobra.Command{
		Use:   "outbound",
		Short: "outbound - resilient HTTP requests from the command line",
		Long: `outbound sends HTTP requests with a per-attempt timeout, retries with
exponential backoff and structured error reporting.

Configuration is read from defaults, an optional YAML file (--config) and
OUTBOUND_* environment variables. Flags override all of them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.flags.configPath, "config", "", "Path to a YAML config file")
	f.StringVar(&a.flags.baseURL, "base-url", "", "Base URL joined to relative request URLs")
	f.DurationVar(&a.flags.timeout, "timeout", 0, "Per-attempt timeout (default from config: 30s)")
	f.IntVar(&a.flags.retries, "retries", 0, "Retries after the first attempt (default from config: 3)")
	f.DurationVar(&a.flags.retryDelay, "retry-delay", 0, "Base backoff delay (default from config: 1s)")
	f.StringArrayVarP(&a.flags.headers, "header", "H", nil, `Request header "Name: value" (repeatable)`)
	f.StringArrayVarP(&a.flags.query, "query", "q", nil, `Query parameter "key=value" (repeatable)`)
	f.BoolVarP(&a.flags.verbose, "verbose", "v", false, "Log every attempt")
	f.BoolVar(&a.flags.trace, "trace", false, "Print spans to stderr")

	cmd.AddCommand(
		a.newRequestCommand("get", "GET", false),
		a.newRequestCommand("post", "POST", true),
		a.newRequestCommand("put", "PUT", true),
		a.newRequestCommand("delete", "DELETE", false),
		a.newPollCommand(),
	)

	return cmd
}

// session is everything a command needs to issue requests.
type session struct {
	cfg    *config.Config
	log    zerolog.Logger
	tel    *telemetry.Telemetry
	client *httpclient.Client
}

// newSession loads configuration, applies flag overrides and builds the
// client. withMetrics starts the Prometheus exporter.
func (a *app) newSession(cmd *cobra.Command, withMetrics bool) (*session, error) {
	cfg, err := config.Load(a.flags.configPath)
	if err != nil {
		return nil, err
	}
	a.applyOverrides(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}

	logger := newLogger(a.errOut, cfg.Log)

	opts := telemetry.Options{
		ServiceName: cfg.Client.ServiceName,
		Metrics:     withMetrics,
	}
	if cfg.Telemetry.Trace {
		opts.TraceWriter = a.errOut
	}
	tel, err := telemetry.Setup(cmd.Context(), opts)
	if err != nil {
		return nil, err
	}

	clientOpts := append(cfg.ClientOptions(),
		httpclient.WithLogger(logger),
		httpclient.WithTracerProvider(tel.TracerProvider),
		httpclient.WithMeterProvider(tel.MeterProvider),
	)

	return &session{
		cfg:    cfg,
		log:    logger,
		tel:    tel,
		client: httpclient.New(clientOpts...),
	}, nil
}

func (s *session) close(ctx context.Context) {
	if err := s.tel.Shutdown(ctx); err != nil {
		s.log.Warn().Err(err).Msg("telemetry shutdown failed")
	}
}

func (a *app) applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.Client.BaseURL = a.flags.baseURL
	}
	if flags.Changed("timeout") {
		cfg.Client.Timeout = a.flags.timeout
	}
	if flags.Changed("retries") {
		cfg.Client.Retries = a.flags.retries
	}
	if flags.Changed("retry-delay") {
		cfg.Client.RetryDelay = a.flags.retryDelay
	}
	if a.flags.verbose {
		cfg.Client.Logging = true
		cfg.Log.Level = zerolog.DebugLevel.String()
	}
	if a.flags.trace {
		cfg.Telemetry.Trace = true
	}
}

// requestOptions converts -H and -q flags into per-call options.
func (a *app) requestOptions() ([]httpclient.RequestOption, error) {
	opts := make([]httpclient.RequestOption, 0, len(a.flags.headers)+len(a.flags.query))
	for _, h := range a.flags.headers {
		name, value, err := parseHeader(h)
		if err != nil {
			return nil, err
		}
		opts = append(opts, httpclient.WithHeader(name, value))
	}
	for _, q := range a.flags.query {
		key, value, ok := strings.Cut(q, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid query %q: want key=value", q)
		}
		opts = append(opts, httpclient.WithQuery(key, value))
	}
	return opts, nil
}

func parseHeader(h string) (string, string, error) {
	name, value, ok := strings.Cut(h, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "", "", fmt.Errorf("invalid header %q: want \"Name: value\"", h)
	}
	return name, strings.TrimSpace(value), nil
}

func newLogger(w io.Writer, cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: !isTerminal(w)}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// ExitCode maps a command error to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case httpclient.IsAborted(err), errors.Is(err, context.Canceled):
		return ExitAborted
	case httpclient.IsTimeout(err):
		return ExitTimeout
	case httpclient.IsStatus(err):
		return ExitStatus
	default:
		return ExitFailure
	}
}
