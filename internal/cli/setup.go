package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/unisonui/unison/internal/binding"
	"github.com/unisonui/unison/internal/compiler"
	"github.com/unisonui/unison/internal/engine"
	"github.com/unisonui/unison/internal/persist"
	"github.com/unisonui/unison/internal/state"
)

// setupLogging configures the process-wide slog handler.
func setupLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// buildEngine compiles the declaration directory and wires an engine over
// it. A non-empty dbPath attaches the SQLite snapshot sink, resumes the
// commit clock from the journal and seeds the store from the last
// persisted snapshot.
//
// The caller owns the returned sink and must Close it; it is nil when no
// dbPath was given.
func buildEngine(ctx context.Context, dir, dbPath string, target binding.EffectTarget) (*engine.Engine, *persist.Store, error) {
	result, err := LoadManifest(dir)
	if err != nil {
		return nil, nil, err
	}

	if errs := compiler.Validate(result.Manifest); len(errs) > 0 {
		return nil, nil, &LoadError{
			Code:    errs[0].Code,
			Message: fmt.Sprintf("invalid declarations (%d error(s)), first: %s", len(errs), errs[0].Error()),
		}
	}

	bindings, cat, graph, err := compiler.Build(result.Manifest, target)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeCompile, Message: err.Error()}
	}

	var opts []engine.Option
	var sink *persist.Store
	if dbPath != "" {
		sink, err = persist.Open(dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open database: %w", err)
		}

		seq, err := sink.LastSeq(ctx)
		if err != nil {
			sink.Close()
			return nil, nil, err
		}
		opts = append(opts,
			engine.WithSnapshotSink(sink),
			engine.WithClock(engine.NewClockAt(seq)),
		)
	}

	e := engine.New(state.NewStore(), cat, graph, bindings, opts...)
	if err := e.Seed(ctx); err != nil {
		if sink != nil {
			sink.Close()
		}
		return nil, nil, err
	}

	return e, sink, nil
}
