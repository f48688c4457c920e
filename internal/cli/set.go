package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
)

// SetOptions holds flags for the set command.
type SetOptions struct {
	*RootOptions
	Database string
}

// RequestResult reports the outcome of one change request.
type RequestResult struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Error string `json:"error,omitempty"`
}

// StateReport describes the engine state after a batch of requests.
type StateReport struct {
	Requests      []RequestResult   `json:"requests,omitempty"`
	Configuration string            `json:"configuration,omitempty"`
	Matched       bool              `json:"matched"`
	Staged        int               `json:"staged"`
	State         map[string]string `json:"state"`
}

// NewSetCommand creates the set command.
func NewSetCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SetOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "set <decls-dir> <key=value>...",
		Short: "Request one or more state changes",
		Long: `Request state changes against the declarations in <decls-dir>.

Each key=value pair stages one change; a commit happens only when the
combined state fully matches a declared configuration. The special value
"toggle" cycles the key. With --db, the engine restores its state first
and mirrors any commit back.

Example:
  unison set ./decls toggle.text=Show sidebar.class=
  unison set --db ./unison.db ./decls sidebar.class=toggle`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSet(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite snapshot database (optional)")

	return cmd
}

func runSet(opts *SetOptions, declsDir string, pairs []string, cmd *cobra.Command) error {
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

	report := StateReport{}
	rejected := 0
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return NewExitError(ExitCommandError, fmt.Sprintf("invalid request %q: want key=value", pair))
		}

		result := RequestResult{Key: key, Value: value}
		if reqErr := eng.RequestChange(key, value); reqErr != nil {
			result.Error = reqErr.Error()
			rejected++
		}
		report.Requests = append(report.Requests, result)
	}

	report.Configuration, report.Matched = eng.CurrentConfiguration()
	report.Staged = eng.StagedCount()
	report.State = eng.Snapshot()

	if err := outputStateReport(formatter, report); err != nil {
		return err
	}

	if rejected > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d request(s) rejected", rejected))
	}
	return nil
}

// outputStateReport renders a StateReport in the configured format.
func outputStateReport(formatter *OutputFormatter, report StateReport) error {
	if formatter.Format == "json" {
		return formatter.Success(report)
	}

	for _, r := range report.Requests {
		if r.Error != "" {
			fmt.Fprintf(formatter.Writer, "✗ %s=%s: %s\n", r.Key, r.Value, r.Error)
		} else {
			fmt.Fprintf(formatter.Writer, "✓ %s=%s\n", r.Key, r.Value)
		}
	}

	if report.Matched {
		fmt.Fprintf(formatter.Writer, "Configuration: %s\n", report.Configuration)
	} else {
		fmt.Fprintln(formatter.Writer, "Configuration: (none)")
	}
	if report.Staged > 0 {
		fmt.Fprintf(formatter.Writer, "Held: %d staged change(s) awaiting a full match\n", report.Staged)
	}

	keys := make([]string, 0, len(report.State))
	for k := range report.State {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(formatter.Writer, "  %s = %q\n", k, report.State[k])
	}

	return nil
}
