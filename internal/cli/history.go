package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/prio-data/queries-benchmark/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// RunDetail is a recorded run with its trials.
type RunDetail struct {
	store.Run
	TrialResults []store.TrialRecord `json:"trial_results"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `List recorded runs, most recent first, or show the trials of one run.

Examples:
  queries-benchmark history
  queries-benchmark history --limit 5
  queries-benchmark history 01890a5d-ac96-774b-bcce-b302099a8057`,
		Args:          commandArgs(cobra.MaximumNArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showHistory(opts, args, cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of runs to list (0 for all)")

	return cmd
}

func showHistory(opts *HistoryOptions, args []string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}
	if _, err := os.Stat(opts.Config.DB); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("run ledger not found: %s", opts.Config.DB), err)
	}

	st, err := store.Open(opts.Config.DB)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open run ledger", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if len(args) == 1 {
		return showRun(ctx, opts, st, args[0], cmd)
	}

	runs, err := st.ListRuns(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	out := opts.formatter(cmd)
	if out.JSON() {
		if runs == nil {
			runs = []store.Run{}
		}
		return out.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tSTATUS\tTRIALS\tDURATION")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", r.ID, r.StartedAt.Format(time.RFC3339), r.Status, r.Trials, runDuration(r))
	}
	return tw.Flush()
}

func showRun(ctx context.Context, opts *HistoryOptions, st *store.Store, id string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	run, err := st.GetRun(ctx, id)
	if errors.Is(err, store.ErrRunNotFound) {
		if out.JSON() {
			_ = out.Error(CodeRunNotFound, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "unknown run", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	trials, err := st.ReadTrials(ctx, id)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	if out.JSON() {
		if trials == nil {
			trials = []store.TrialRecord{}
		}
		return out.SuccessRun(id, RunDetail{Run: run, TrialResults: trials})
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "run:      %s\n", run.ID)
	fmt.Fprintf(w, "started:  %s\n", run.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "status:   %s\n", run.Status)
	if run.Remote != "" {
		fmt.Fprintf(w, "remote:   %s\n", run.Remote)
	}
	if run.Error != "" {
		fmt.Fprintf(w, "error:    %s\n", run.Error)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tTRIAL\tQUERYSET\tLEVEL\tROWS\tRESULT\tDURATION")
	for _, t := range trials {
		result := "pass"
		if !t.Passed {
			result = "fail"
		}
		rows := "-"
		if t.Fetched {
			rows = fmt.Sprint(t.Rows)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\n", t.Seq, t.Trial, t.Queryset, t.Level, rows, result, t.Duration)
	}
	return tw.Flush()
}

func runDuration(r store.Run) string {
	if r.FinishedAt == nil {
		return "-"
	}
	return r.FinishedAt.Sub(r.StartedAt).String()
}
