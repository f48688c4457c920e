package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <decls-dir>",
		Short: "Start the sync engine as a long-running service",
		Long: `Start the state synchronization engine with compiled declarations.

The engine loads bindings, configurations and transitions from the given
directory, optionally restores its committed state from a SQLite snapshot
database, and processes change requests on the single-writer loop until
interrupted. Applied effects are logged to stderr.

Example:
  unison run ./decls
  unison run --db ./unison.db ./decls --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite snapshot database (optional)")

	return cmd
}

func runService(opts *RunOptions, declsDir string, cmd *cobra.Command) error {
	setupLogging(opts.Verbose)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	slog.Info("compiling declarations", "dir", declsDir)
	eng, sink, err := buildEngine(ctx, declsDir, opts.Database, logTarget{})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build engine", err)
	}
	if sink != nil {
		defer func() {
			if closeErr := sink.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if name, ok := eng.CurrentConfiguration(); ok {
		slog.Info("restored configuration", "config", name)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Engine started. Listening for change requests.")
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := eng.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "engine error", err)
	}

	slog.Info("engine stopped gracefully")
	return nil
}
