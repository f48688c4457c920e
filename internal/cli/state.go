package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unisonui/unison/internal/engine"
)

// StateOptions holds flags for the state command.
type StateOptions struct {
	*RootOptions
	Database string
	Commits  int
}

// StateView is the state command's output payload.
type StateView struct {
	Configuration string                `json:"configuration,omitempty"`
	Matched       bool                  `json:"matched"`
	State         map[string]string     `json:"state"`
	Commits       []engine.CommitRecord `json:"commits,omitempty"`
}

// NewStateCommand creates the state command.
func NewStateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "state <decls-dir>",
		Short: "Show the persisted state and recent commits",
		Long: `Show the committed state restored from the snapshot database, the
configuration it matches and the most recent commit journal entries.

Example:
  unison state --db ./unison.db ./decls
  unison state --db ./unison.db ./decls --commits 10 --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runState(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite snapshot database (required)")
	cmd.Flags().IntVar(&opts.Commits, "commits", 5, "number of journal entries to show")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runState(opts *StateOptions, declsDir string, cmd *cobra.Command) error {
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

	eng, sink, err := buildEngine(ctx, declsDir, opts.Database, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load state", err)
	}
	defer sink.Close()

	view := StateView{State: eng.Snapshot()}
	view.Configuration, view.Matched = eng.CurrentConfiguration()

	view.Commits, err = sink.Commits(ctx, opts.Commits)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read commit journal", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(view)
	}

	if view.Matched {
		fmt.Fprintf(formatter.Writer, "Configuration: %s\n", view.Configuration)
	} else {
		fmt.Fprintln(formatter.Writer, "Configuration: (none)")
	}

	keys := make([]string, 0, len(view.State))
	for k := range view.State {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(formatter.Writer, "  %s = %q\n", k, view.State[k])
	}

	if len(view.Commits) > 0 {
		fmt.Fprintln(formatter.Writer)
		fmt.Fprintln(formatter.Writer, "Recent commits:")
		for _, rec := range view.Commits {
			fmt.Fprintf(formatter.Writer, "  #%d %s -> %s (%s)\n",
				rec.Seq, rec.Txn, rec.Config, strings.Join(rec.Changed, ", "))
		}
	}

	return nil
}
