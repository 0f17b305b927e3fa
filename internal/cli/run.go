package cli

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/prio-data/queries-benchmark/internal/engine"
	"github.com/prio-data/queries-benchmark/internal/harness"
	"github.com/prio-data/queries-benchmark/internal/metrics"
	"github.com/prio-data/queries-benchmark/internal/store"
)

// MetricsJob is the Pushgateway job name runs are pushed under.
const MetricsJob = "queries-benchmark"

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter      string
	Where       string
	NoRecord    bool
	Pushgateway string

	// Engine overrides the HTTP client built from the configuration (for
	// testing).
	Engine engine.Engine

	// Clock defaults to the real clock.
	Clock clockwork.Clock

	// NewRunID overrides the run id generator (for testing).
	// If nil, defaults to store.NewRunID.
	NewRunID func() string
}

// RunReport is the JSON result of the run command.
type RunReport struct {
	Pass   bool                 `json:"pass"`
	Failed string               `json:"failed,omitempty"`
	Trials []TrialSummary       `json:"trials"`
	Trace  []harness.TraceEvent `json:"trace"`
}

// TrialSummary is one trial of a RunReport.
type TrialSummary struct {
	Trial      string `json:"trial"`
	Queryset   string `json:"queryset"`
	Level      string `json:"level"`
	Rows       int    `json:"rows"`
	Passed     bool   `json:"passed"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [trial-files...]",
		Short: "Run benchmark trials against the engine",
		Long: `Run benchmark trials one at a time against the engine.

For each trial the queryset is published, its dataset fetched, and the
dataset checked. A passing trial prints its message. The first failure stops
the run.

Without arguments the built-in trials run in order (baseline, alpha, beta,
gamma). Arguments name trial files (.yaml, .yml, .cue) or directories of
them.

Every run is recorded in the run ledger unless --no-record is given. A
ledger that cannot be opened is logged and skipped; it never stops a run.

Exit codes:
  0 - All trials passed
  1 - A trial failed
  2 - Command error (bad flags, unreadable trial files, etc.)

Examples:
  queries-benchmark run
  queries-benchmark run --filter 'b*'
  queries-benchmark run --where 'level == "country_year"'
  queries-benchmark run ./trials --remote http://viewser:4000`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrials(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "run trials whose name matches a glob pattern")
	cmd.Flags().StringVar(&opts.Where, "where", "", "run trials matching a boolean expression over name, queryset, level, columns")
	cmd.Flags().BoolVar(&opts.NoRecord, "no-record", false, "do not record the run in the ledger")
	cmd.Flags().StringVar(&opts.Pushgateway, "pushgateway", "", "push trial metrics to this Pushgateway (overrides BENCHMARK_PUSHGATEWAY)")

	return cmd
}

func runTrials(opts *RunOptions, args []string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}
	log := opts.Logger
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	all, err := loadTrials(args)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load trials", err)
	}
	sel, err := NewSelector(opts.Filter, opts.Where)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid trial selection", err)
	}
	selected, err := sel.Select(all)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid trial selection", err)
	}
	if len(selected) == 0 {
		return NewExitError(ExitCommandError, "no trials selected")
	}

	eng := opts.Engine
	if eng == nil {
		client, err := engine.NewClient(engine.Config{
			Logger:       log,
			Clock:        clock,
			BaseURL:      opts.Config.RemoteURL,
			Timeout:      opts.Config.Timeout,
			PollInterval: opts.Config.PollInterval,
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid engine configuration", err)
		}
		eng = client
	}

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := &harness.Runner{
		Engine: eng,
		Out:    cmd.OutOrStdout(),
		Logger: log,
		Clock:  clock,
	}
	out := opts.formatter(cmd)
	if out.JSON() {
		runner.Out = io.Discard
	}

	var runID string
	var ledger *store.Store
	if !opts.NoRecord {
		ledger, runID = openLedger(ctx, opts, clock.Now())
		if ledger != nil {
			defer func() {
				if closeErr := ledger.Close(); closeErr != nil {
					log.Error("error closing run ledger", "error", closeErr)
				}
			}()
			runner.Observers = append(runner.Observers, &ledgerRecorder{store: ledger, runID: runID, log: log})
		}
	}

	pushURL := opts.Pushgateway
	if pushURL == "" {
		pushURL = opts.Config.Pushgateway
	}
	var m *metrics.Metrics
	if pushURL != "" {
		m = metrics.New()
		runner.Observers = append(runner.Observers, m)
	}

	log.Info("run starting", "run_id", runID, "trials", len(selected), "remote", opts.Config.RemoteURL)
	result, runErr := runner.Run(ctx, selected)
	if result == nil {
		return WrapExitError(ExitCommandError, "failed to start run", runErr)
	}

	if ledger != nil {
		status, msg := store.StatusPassed, ""
		if runErr != nil {
			status, msg = store.StatusFailed, runErr.Error()
		}
		// The run context may already be cancelled.
		finishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		if err := ledger.FinishRun(finishCtx, runID, status, clock.Now(), msg); err != nil {
			log.Error("ledger: failed to finish run", "run_id", runID, "error", err)
		}
		cancel()
	}
	if m != nil {
		pushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		if err := m.Push(pushCtx, pushURL, MetricsJob); err != nil {
			log.Warn("metrics: push failed", "url", pushURL, "error", err)
		}
		cancel()
	}

	report := newRunReport(result)
	if runErr != nil {
		if out.JSON() {
			if err := out.ErrorRun(runID, CodeTrialFailed, runErr.Error(), report); err != nil {
				return err
			}
		}
		if errors.Is(runErr, context.Canceled) {
			return WrapExitError(ExitFailure, "run interrupted", runErr)
		}
		return WrapExitError(ExitFailure, "run failed", runErr)
	}

	log.Info("run passed", "run_id", runID, "trials", len(result.Outcomes))
	if out.JSON() {
		return out.SuccessRun(runID, report)
	}
	return nil
}

// openLedger opens the run ledger and records the start of a run. The
// ledger never gates a run: on failure it logs a warning and returns nil.
func openLedger(ctx context.Context, opts *RunOptions, startedAt time.Time) (*store.Store, string) {
	log := opts.Logger
	ledger, err := store.Open(opts.Config.DB)
	if err != nil {
		log.Warn("ledger: unavailable, run will not be recorded", "db", opts.Config.DB, "error", err)
		return nil, ""
	}

	newID := opts.NewRunID
	if newID == nil {
		newID = store.NewRunID
	}
	runID := newID()
	if err := ledger.BeginRun(ctx, runID, startedAt, opts.Config.RemoteURL); err != nil {
		log.Warn("ledger: failed to record run, run will not be recorded", "run_id", runID, "error", err)
		if closeErr := ledger.Close(); closeErr != nil {
			log.Error("error closing run ledger", "error", closeErr)
		}
		return nil, ""
	}
	return ledger, runID
}

func newRunReport(r *harness.Result) RunReport {
	report := RunReport{
		Pass:   r.Pass,
		Failed: r.Failed,
		Trials: make([]TrialSummary, 0, len(r.Outcomes)),
		Trace:  r.Trace,
	}
	for _, o := range r.Outcomes {
		s := TrialSummary{
			Trial:      o.Trial,
			Queryset:   o.Queryset,
			Level:      string(o.Level),
			Rows:       o.Rows,
			Passed:     o.Passed,
			DurationMs: o.Duration.Milliseconds(),
		}
		if o.Err != nil {
			s.Error = o.Err.Error()
		}
		report.Trials = append(report.Trials, s)
	}
	return report
}
