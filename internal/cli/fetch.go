package cli

import (
	"context"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"github.com/prio-data/queries-benchmark/internal/dataset"
	"github.com/prio-data/queries-benchmark/internal/engine"
)

// FetchOptions holds flags for the fetch command.
type FetchOptions struct {
	*RootOptions
	Out  string
	Head int

	// Clock defaults to the real clock.
	Clock clockwork.Clock
}

// FetchResult is the shape of a fetched dataset.
type FetchResult struct {
	Queryset  string     `json:"queryset"`
	Rows      int        `json:"rows"`
	Index     [2]string  `json:"index"`
	Columns   []string   `json:"columns"`
	Times     int        `json:"times"`
	TimeRange *[2]int64  `json:"time_range,omitempty"`
	Head      []FetchRow `json:"head,omitempty"`
	Out       string     `json:"out,omitempty"`
}

// FetchRow is one previewed row. Missing values are null.
type FetchRow struct {
	Time   int64               `json:"time"`
	Unit   int64               `json:"unit"`
	Values map[string]*float64 `json:"values"`
}

func newFetchResult(name string, ds *dataset.Dataset, head int) FetchResult {
	r := FetchResult{
		Queryset: name,
		Rows:     ds.Len(),
		Index:    ds.IndexNames(),
		Columns:  ds.Columns(),
	}
	times := ds.TimeValues()
	r.Times = len(times)
	if len(times) > 0 {
		r.TimeRange = &[2]int64{times[0], times[len(times)-1]}
	}
	for i := 0; i < min(head, ds.Len()); i++ {
		row := ds.Row(i)
		values := make(map[string]*float64, len(r.Columns))
		for col, v := range row.Values() {
			var p *float64
			if !math.IsNaN(v) {
				p = &v
			}
			values[col] = p
		}
		r.Head = append(r.Head, FetchRow{Time: row.Time(), Unit: row.Unit(), Values: values})
	}
	return r
}

func (r FetchResult) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "queryset: %s\n", r.Queryset)
	fmt.Fprintf(&b, "rows:     %d\n", r.Rows)
	fmt.Fprintf(&b, "index:    %s\n", strings.Join(r.Index[:], ", "))
	fmt.Fprintf(&b, "columns:  %s", strings.Join(r.Columns, ", "))
	if r.TimeRange != nil {
		fmt.Fprintf(&b, "\n%-9s %d..%d (%d distinct)", r.Index[0]+":", r.TimeRange[0], r.TimeRange[1], r.Times)
	}
	if r.Out != "" {
		fmt.Fprintf(&b, "\nwritten:  %s", r.Out)
	}
	if len(r.Head) > 0 {
		b.WriteString("\n\n")
		w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s\t%s\n", strings.ToUpper(r.Index[0]), strings.ToUpper(r.Index[1]), strings.ToUpper(strings.Join(r.Columns, "\t")))
		for _, row := range r.Head {
			cells := make([]string, len(r.Columns))
			for i, col := range r.Columns {
				cells[i] = "NaN"
				if v := row.Values[col]; v != nil {
					cells[i] = strconv.FormatFloat(*v, 'g', -1, 64)
				}
			}
			fmt.Fprintf(w, "%d\t%d\t%s\n", row.Time, row.Unit, strings.Join(cells, "\t"))
		}
		_ = w.Flush()
		return strings.TrimSuffix(b.String(), "\n")
	}
	return b.String()
}

// NewFetchCommand creates the fetch command.
func NewFetchCommand(rootOpts *RootOptions) *cobra.Command {
	return newFetchCommand(&FetchOptions{RootOptions: rootOpts})
}

func newFetchCommand(opts *FetchOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <queryset-name>",
		Short: "Fetch the dataset of a published queryset",
		Long: `Fetch the dataset of a queryset already published to the engine and
print its shape. Waits while the engine is still materializing the dataset.

Examples:
  queries-benchmark fetch mihai_pgm_cm_cy_comparison5
  queries-benchmark fetch mihai_simple_sys_up --out baseline.ndjson
  queries-benchmark fetch mihai_simple_sys_up --head 5`,
		Args:          commandArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return fetchDataset(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the dataset as NDJSON to this file")
	cmd.Flags().IntVar(&opts.Head, "head", 0, "print the first n rows")

	return cmd
}

func fetchDataset(opts *FetchOptions, name string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}
	out := opts.formatter(cmd)
	if opts.Head < 0 {
		return NewExitError(ExitCommandError, "--head must not be negative")
	}

	client, err := engine.NewClient(engine.Config{
		Logger:       opts.Logger,
		Clock:        opts.Clock,
		BaseURL:      opts.Config.RemoteURL,
		Timeout:      opts.Config.Timeout,
		PollInterval: opts.Config.PollInterval,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid engine configuration", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ds, err := client.Fetch(ctx, name)
	if engine.IsNotFound(err) {
		msg := fmt.Sprintf("queryset %q is not published on %s", name, opts.Config.RemoteURL)
		if out.JSON() {
			_ = out.Error(CodeNotPublished, msg, nil)
		}
		return WrapExitError(ExitFailure, msg, err)
	}
	if err != nil {
		if out.JSON() {
			_ = out.Error(CodeFetchFailed, err.Error(), nil)
		}
		return WrapExitError(ExitFailure, "fetch failed", err)
	}

	if opts.Out != "" {
		if err := writeDataset(opts.Out, ds); err != nil {
			return WrapExitError(ExitCommandError, "failed to write dataset", err)
		}
	}

	result := newFetchResult(name, ds, opts.Head)
	result.Out = opts.Out
	return out.Success(result)
}

func writeDataset(path string, ds *dataset.Dataset) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := f.Close(); err == nil {
			err = closeErr
		}
	}()
	return dataset.Encode(f, ds)
}
