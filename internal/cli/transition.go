package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// TransitionOptions holds flags for the transition command.
type TransitionOptions struct {
	*RootOptions
	Database string
}

// NewTransitionCommand creates the transition command.
func NewTransitionCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TransitionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "transition <decls-dir> <target>",
		Short: "Request an explicit transition to a named configuration",
		Long: `Request a transition from the current configuration to <target>.

The transition succeeds only when a declared edge with a passing guard
exists; it then stages the target configuration's whole key/value set as
one transaction. Requires a current configuration, so --db is effectively
needed to restore one.

Example:
  unison transition --db ./unison.db ./decls VISIBLE`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTransition(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite snapshot database (optional)")

	return cmd
}

func runTransition(opts *TransitionOptions, declsDir, target string, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	eng, sink, err := buildEngine(ctx, declsDir, opts.Database, logTarget{})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build engine", err)
	}
	if sink != nil {
		defer sink.Close()
	}

	transitionErr := eng.Transition(target)

	report := StateReport{}
	report.Configuration, report.Matched = eng.CurrentConfiguration()
	report.Staged = eng.StagedCount()
	report.State = eng.Snapshot()
	if transitionErr != nil {
		report.Requests = []RequestResult{{Key: "transition", Value: target, Error: transitionErr.Error()}}
	} else {
		report.Requests = []RequestResult{{Key: "transition", Value: target}}
	}

	if err := outputStateReport(formatter, report); err != nil {
		return err
	}

	if transitionErr != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("transition to %s rejected", target), transitionErr)
	}
	return nil
}
