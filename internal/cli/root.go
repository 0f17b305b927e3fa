package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/prio-data/queries-benchmark/internal/config"
	"github.com/prio-data/queries-benchmark/internal/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Quiet   bool
	Format  string // "json" | "text"
	Remote  string
	DB      string
	EnvFile string

	// Resolved by setup.
	Config config.Config
	Logger *slog.Logger
	ready  bool
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the benchmark CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "queries-benchmark",
		Short: "Benchmark trials for the queryset engine",
		Long: `Publishes querysets to the engine, fetches the datasets it materializes
and checks them against known values.

Settings are read from the environment, optionally seeded from a .env file:
  VIEWSER_REMOTE_URL     engine base URL (default http://localhost:4000)
  VIEWSER_TIMEOUT        per-request timeout, e.g. 30m (default none)
  VIEWSER_POLL_INTERVAL  wait between fetch attempts (default 2s)
  BENCHMARK_DB           run ledger path (default queries-benchmark.db)
  BENCHMARK_PUSHGATEWAY  Prometheus Pushgateway URL (default none)

Flags override the environment.`,
		Args:          commandArgs(cobra.NoArgs),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return WrapExitError(ExitCommandError, "invalid flags", err)
	})

	cmd.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "log at info instead of debug")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Remote, "remote", "", "engine base URL (overrides VIEWSER_REMOTE_URL)")
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "run ledger path (overrides BENCHMARK_DB)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", config.DefaultEnvFile, "file to seed the environment from")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewFetchCommand(opts))
	cmd.AddCommand(NewHistoryCommand(opts))

	return cmd
}

// setup resolves configuration and the logger once per process. Commands
// call it first so they also work when executed without the root command.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if o.ready {
		return nil
	}
	if o.Format == "" {
		o.Format = "text"
	}
	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}

	cfg, err := config.Load(o.EnvFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if o.Remote != "" {
		cfg.RemoteURL = o.Remote
	}
	if o.DB != "" {
		cfg.DB = o.DB
	}
	o.Config = cfg

	if o.Logger == nil {
		o.Logger = logger.New(cmd.ErrOrStderr(), o.Quiet)
	}
	o.ready = true
	return nil
}

// commandArgs reports positional argument errors as command errors.
func commandArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return WrapExitError(ExitCommandError, "invalid arguments", err)
		}
		return nil
	}
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
