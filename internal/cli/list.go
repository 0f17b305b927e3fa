package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/prio-data/queries-benchmark/internal/harness"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Filter string
	Where  string
}

// TrialInfo describes a trial without running it.
type TrialInfo struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Queryset    string   `json:"queryset"`
	Level       string   `json:"level"`
	Columns     []string `json:"columns"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list [trial-files...]",
		Short: "List trials",
		Long: `List the trials that run would execute, with their queryset, level of
analysis and columns. Takes the same arguments and selection flags as run.

Examples:
  queries-benchmark list
  queries-benchmark list --where '"ged_cm" in columns'
  queries-benchmark list ./trials --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listTrials(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "list trials whose name matches a glob pattern")
	cmd.Flags().StringVar(&opts.Where, "where", "", "list trials matching a boolean expression")

	return cmd
}

func listTrials(opts *ListOptions, args []string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
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

	infos := make([]TrialInfo, 0, len(selected))
	for _, t := range selected {
		infos = append(infos, newTrialInfo(t))
	}

	out := opts.formatter(cmd)
	if out.JSON() {
		return out.Success(infos)
	}
	if len(infos) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No trials found.")
		return nil
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tQUERYSET\tLEVEL\tCOLUMNS")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", info.Name, info.Queryset, info.Level, strings.Join(info.Columns, ","))
	}
	return tw.Flush()
}

func newTrialInfo(t harness.Trial) TrialInfo {
	info := TrialInfo{Name: t.Name, Description: t.Description, Columns: []string{}}
	if t.Queryset != nil {
		info.Queryset = t.Queryset.Name
		info.Level = string(t.Queryset.LevelOfAnalysis)
		info.Columns = t.Queryset.ColumnNames()
	}
	return info
}
