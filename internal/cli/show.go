package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prio-data/queries-benchmark/internal/queryset"
)

// ShowResult is the publish payload of a trial.
type ShowResult struct {
	Trial    string          `json:"trial"`
	Queryset string          `json:"queryset"`
	Hash     string          `json:"hash"`
	Payload  json.RawMessage `json:"payload"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <trial>",
		Short: "Print the publish payload of a trial",
		Long: `Print the canonical JSON a trial publishes and its content hash.

The argument is a built-in trial name or a trial file. Nothing is sent to the
engine.

Examples:
  queries-benchmark show beta
  queries-benchmark show ./trials/custom.yaml --format json`,
		Args:          commandArgs(cobra.ExactArgs(1)),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showTrial(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func showTrial(opts *RootOptions, ref string, cmd *cobra.Command) error {
	if err := opts.setup(cmd); err != nil {
		return err
	}
	out := opts.formatter(cmd)

	t, err := findTrial(ref)
	if err != nil {
		if out.JSON() {
			_ = out.Error(CodeUnknownTrial, err.Error(), nil)
		}
		return WrapExitError(ExitCommandError, "failed to find trial", err)
	}
	if t.Queryset == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("trial %s has no queryset", t.Name))
	}
	if err := t.Queryset.Validate(); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("trial %s", t.Name), err)
	}

	payload, err := queryset.MarshalCanonical(t.Queryset)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode queryset", err)
	}
	hash, err := queryset.Hash(t.Queryset)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to hash queryset", err)
	}

	if out.JSON() {
		return out.Success(ShowResult{
			Trial:    t.Name,
			Queryset: t.Queryset.Name,
			Hash:     hash,
			Payload:  payload,
		})
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "trial:    %s\n", t.Name)
	fmt.Fprintf(w, "queryset: %s\n", t.Queryset.Name)
	fmt.Fprintf(w, "hash:     %s\n", hash)
	fmt.Fprintf(w, "%s\n", payload)
	return nil
}
