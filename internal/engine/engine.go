package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/unisonui/unison/internal/binding"
	"github.com/unisonui/unison/internal/catalog"
	"github.com/unisonui/unison/internal/state"
	"github.com/unisonui/unison/internal/watch"
)

// DefaultMaxCascadeSteps bounds the number of requests one cascade may
// process. This prevents runaway watcher chains from consuming unbounded
// resources even when they never repeat a snapshot.
const DefaultMaxCascadeSteps = 1000

// Engine orchestrates propose → match → commit → notify → apply.
//
// The engine is the sole mutator of the store and catalog. All mutation
// happens on one logical task: either the caller's goroutine (library
// mode, RequestChange/Transition) or the Run loop goroutine (service
// mode, Enqueue). The two modes must not be mixed concurrently.
//
// Commit discipline is full-match-gated: proposed changes stay in the
// pending overlay, invisible to watchers and effects, until the merged
// (store + overlay) view fully matches a catalog configuration. Matching
// considers overlay values, so a sequence of single-key requests can
// jointly complete a match; sitting unmatched between requests is a
// legitimate, non-fatal condition.
type Engine struct {
	store    *state.Store
	overlay  *state.Overlay
	catalog  *catalog.Catalog
	graph    *catalog.Graph
	bindings *binding.Registry
	watchers *watch.Registry
	sink     SnapshotSink
	txnGen   TxnTokenGenerator
	clock    *Clock
	cycles   *CycleDetector
	maxSteps int

	// current is the name of the last fully-matched configuration.
	// Empty means no configuration has matched yet, which is valid.
	current string

	queue *requestQueue // service-mode external queue

	// dispatching is true while watcher callbacks run; nested requests
	// issued during dispatch are deferred to the cascade queue instead
	// of recursing into the commit protocol.
	dispatching bool
	cascade     []Request
}

// Option configures engine construction.
type Option func(*Engine)

// WithSnapshotSink mirrors the store to a durable sink on every commit
// and allows Seed to restore from it at startup.
func WithSnapshotSink(sink SnapshotSink) Option {
	return func(e *Engine) {
		e.sink = sink
	}
}

// WithMaxCascadeSteps overrides DefaultMaxCascadeSteps.
func WithMaxCascadeSteps(limit int) Option {
	return func(e *Engine) {
		e.maxSteps = limit
	}
}

// WithTxnGenerator overrides the transaction token generator.
// Tests use FixedGenerator for deterministic tokens.
func WithTxnGenerator(gen TxnTokenGenerator) Option {
	return func(e *Engine) {
		e.txnGen = gen
	}
}

// WithClock overrides the commit clock, typically to resume sequence
// numbering from a persisted journal.
func WithClock(clock *Clock) Option {
	return func(e *Engine) {
		e.clock = clock
	}
}

// New creates an engine over an injected store.
//
// The store is injected rather than global so independent engines can run
// side by side in tests. A nil graph means no transitions are defined:
// every Transition call fails with InvalidTransition.
func New(store *state.Store, cat *catalog.Catalog, graph *catalog.Graph, bindings *binding.Registry, opts ...Option) *Engine {
	if graph == nil {
		graph = catalog.NewGraph(cat)
	}

	e := &Engine{
		store:    store,
		overlay:  state.NewOverlay(store),
		catalog:  cat,
		graph:    graph,
		bindings: bindings,
		watchers: watch.NewRegistry(),
		txnGen:   UUIDv7Generator{},
		clock:    NewClock(),
		cycles:   NewCycleDetector(),
		maxSteps: DefaultMaxCascadeSteps,
		queue:    newRequestQueue(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Seed restores the store from the snapshot sink, if one is configured.
// Call once at startup, before any requests. Seeding bypasses the commit
// protocol: the persisted snapshot is a previously committed stable state.
func (e *Engine) Seed(ctx context.Context) error {
	if e.sink == nil {
		return nil
	}

	snap, err := e.sink.Load(ctx)
	if err != nil {
		return fmt.Errorf("seed from snapshot sink: %w", err)
	}
	if len(snap) == 0 {
		return nil
	}

	e.store.Seed(snap)
	if cfg, ok := e.catalog.FindMatch(e.store); ok {
		e.current = cfg.Name
	}

	slog.Info("seeded from snapshot sink",
		"keys", e.store.Len(),
		"config", e.current,
	)
	return nil
}

// Subscribe registers a watcher for committed changes to a key.
// Any key may be watched, declared or not.
func (e *Engine) Subscribe(key string, fn watch.Callback) watch.Handle {
	return e.watchers.Subscribe(key, fn)
}

// Unsubscribe removes a watcher. Safe to call twice.
func (e *Engine) Unsubscribe(h watch.Handle) {
	e.watchers.Unsubscribe(h)
}

// CurrentConfiguration returns the last fully-matched configuration name.
// ok is false while no configuration has ever matched.
func (e *Engine) CurrentConfiguration() (string, bool) {
	return e.current, e.current != ""
}

// Snapshot returns a copy of the committed store state.
func (e *Engine) Snapshot() map[string]string {
	return e.store.Snapshot()
}

// StagedCount returns the number of keys held in the pending overlay.
// Used for diagnostics and testing.
func (e *Engine) StagedCount() int {
	return e.overlay.Len()
}

// Validate reports whether the committed store currently matches any
// catalog configuration. Diagnostic only; never vetoes anything.
func (e *Engine) Validate() bool {
	return e.catalog.Validate(e.store)
}

// RequestChange proposes a single key/value change and runs the commit
// protocol, including any cascade of watcher-issued requests, before
// returning. The value may be the "toggle" sentinel.
//
// Called from inside a watcher callback, the request is instead enqueued
// FIFO and processed after the current transaction settles.
func (e *Engine) RequestChange(key, value string) error {
	req := Request{Kind: RequestSet, Key: key, Value: value}
	if e.dispatching {
		e.cascade = append(e.cascade, req)
		return nil
	}
	return e.runCascade(e.txnGen.Generate(), req)
}

// Transition stages the target configuration's entire key/value set as
// one transaction, provided an edge from the current configuration to the
// target exists with a currently-true guard. With no qualifying edge it
// fails with InvalidTransition and the store is unchanged.
func (e *Engine) Transition(target string) error {
	req := Request{Kind: RequestTransition, Target: target}
	if e.dispatching {
		e.cascade = append(e.cascade, req)
		return nil
	}
	return e.runCascade(e.txnGen.Generate(), req)
}

// Enqueue submits a request to the service-mode Run loop.
// Thread-safe. Returns false once the engine is stopped.
func (e *Engine) Enqueue(r Request) bool {
	return e.queue.Enqueue(r)
}

// QueueLen returns the number of requests waiting for the Run loop.
func (e *Engine) QueueLen() int {
	return e.queue.Len()
}

// Run starts the service-mode loop: it processes enqueued requests in
// FIFO order until the context is cancelled or Stop is called.
//
// Must be called from exactly one goroutine; it is the single writer.
// Request failures are logged and processing continues; rejecting one
// request never terminates the engine.
func (e *Engine) Run(ctx context.Context) error {
	slog.Info("engine starting")

	for {
		req, ok := e.queue.TryDequeue()
		if ok {
			if err := e.dispatchRequest(req); err != nil {
				slog.Error("request failed",
					"error", err,
					"key", req.Key,
					"target", req.Target,
				)
			}
			continue
		}

		select {
		case <-ctx.Done():
			slog.Info("engine stopping: context cancelled")
			e.queue.Close()
			return ctx.Err()

		case <-e.queue.Wait():
			if e.queue.Len() == 0 {
				slog.Info("engine stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop gracefully shuts down the Run loop.
func (e *Engine) Stop() {
	e.queue.Close()
}

func (e *Engine) dispatchRequest(req Request) error {
	switch req.Kind {
	case RequestSet:
		return e.RequestChange(req.Key, req.Value)
	case RequestTransition:
		return e.Transition(req.Target)
	default:
		return fmt.Errorf("unknown request kind: %d", req.Kind)
	}
}

// runCascade processes one external request and drains the FIFO queue of
// requests issued by watchers while it settled. The whole cascade shares
// one transaction token, one step quota and one cycle history.
//
// Returns the first error encountered; later cascade failures are logged
// diagnostics. A cycle or quota abort drops the remainder of the cascade
// and leaves the store at its last stable commit.
func (e *Engine) runCascade(txn string, first Request) error {
	quota := NewCascadeQuota(e.maxSteps)
	e.cycles.Record(txn, state.Fingerprint(e.store.Snapshot()))
	defer e.cycles.Clear(txn)

	firstErr := e.process(txn, first, quota)
	if firstErr != nil && (IsCycleError(firstErr) || IsQuotaError(firstErr)) {
		e.cascade = e.cascade[:0]
		return firstErr
	}

	for len(e.cascade) > 0 {
		req := e.cascade[0]
		e.cascade = e.cascade[1:]

		err := e.process(txn, req, quota)
		if err == nil {
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
		if IsCycleError(err) || IsQuotaError(err) {
			e.cascade = e.cascade[:0]
			break
		}
		slog.Error("cascaded request failed",
			"error", err,
			"txn", txn,
			"key", req.Key,
			"target", req.Target,
		)
	}

	return firstErr
}

func (e *Engine) process(txn string, req Request, quota *CascadeQuota) error {
	if err := quota.Check(txn); err != nil {
		slog.Error("cascade quota exceeded; halting cascade",
			"code", CodeCascadeQuotaExceeded,
			"txn", txn,
			"steps", quota.Current(),
			"limit", quota.Limit(),
		)
		e.overlay.Abort()
		return err
	}

	switch req.Kind {
	case RequestSet:
		return e.processSet(txn, req.Key, req.Value)
	case RequestTransition:
		return e.processTransition(txn, req.Target)
	default:
		return fmt.Errorf("unknown request kind: %d", req.Kind)
	}
}

// processSet handles one single-key change proposal.
func (e *Engine) processSet(txn, key, value string) error {
	decl, ok := e.bindings.Get(key)
	if !ok {
		slog.Warn("request for undeclared binding key",
			"code", CodeInvalidBindingKey,
			"txn", txn,
			"key", key,
		)
		return NewInvalidKeyError(key)
	}
	if value == catalog.Wildcard {
		slog.Warn("request would store the reserved wildcard",
			"code", CodeReservedValue,
			"txn", txn,
			"key", key,
		)
		return NewReservedValueError(key)
	}

	resolved := value
	if value == ToggleSentinel {
		current, set := e.store.Get(key)
		resolved = resolveToggle(current, set, decl.Alternate)
	}

	if !e.overlay.Propose(key, resolved) {
		slog.Debug("request is a no-op",
			"txn", txn,
			"key", key,
			"value", resolved,
		)
		return nil
	}

	slog.Debug("change staged",
		"txn", txn,
		"key", key,
		"value", resolved,
	)

	return e.attemptCommit(txn)
}

// processTransition handles an explicit named transition.
func (e *Engine) processTransition(txn, target string) error {
	from := e.current
	if from == "" {
		return e.rejectTransition(txn, from, target, "no current configuration to transition from")
	}

	cfg, ok := e.catalog.Get(target)
	if !ok {
		return e.rejectTransition(txn, from, target, "target configuration not defined")
	}

	_, ok, guardErr := e.graph.Select(from, target, e.store.Snapshot())
	if guardErr != nil {
		slog.Warn("guard evaluation failed",
			"txn", txn,
			"from", from,
			"to", target,
			"error", guardErr,
		)
	}
	if !ok {
		return e.rejectTransition(txn, from, target, "no qualifying edge")
	}

	// Stage the configuration's entire key/value set as one transaction.
	// Wildcard entries constrain nothing and stage nothing. Keys are
	// staged in sorted order for deterministic notification order.
	keys := make([]string, 0, len(cfg.Values))
	for k := range cfg.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := cfg.Values[k]
		if v == catalog.Wildcard {
			continue
		}
		e.overlay.Propose(k, v)
	}

	slog.Debug("transition staged",
		"txn", txn,
		"from", from,
		"to", target,
		"staged", e.overlay.Len(),
	)

	return e.attemptCommit(txn)
}

func (e *Engine) rejectTransition(txn, from, to, reason string) error {
	slog.Warn("transition rejected",
		"code", CodeInvalidTransition,
		"txn", txn,
		"from", from,
		"to", to,
		"reason", reason,
	)
	return NewInvalidTransitionError(from, to, reason)
}

// attemptCommit runs the match-gated commit protocol for the current
// overlay contents.
//
// No full match: the overlay is held (not discarded) and a non-fatal
// diagnostic is logged; the system may legitimately sit unclassified
// between matches. Full match: the overlay commits, watchers are
// notified, effects applied and the snapshot mirrored.
func (e *Engine) attemptCommit(txn string) error {
	cfg, ok := e.catalog.FindMatch(e.overlay.Merged())
	if !ok {
		slog.Info("no configuration matches; transaction held",
			"code", CodeNoMatchingConfiguration,
			"txn", txn,
			"staged", e.overlay.Len(),
		)
		return nil
	}

	// Cycle check before the commit becomes visible: if this cascade
	// already produced the would-be snapshot, abort the transaction and
	// leave the store at its last stable commit.
	fp := state.Fingerprint(e.overlay.MergedSnapshot())
	if e.cycles.Seen(txn, fp) {
		e.overlay.Abort()
		slog.Error("cascade cycle detected; aborting cascade",
			"code", CodeCycleDetected,
			"txn", txn,
			"config", cfg.Name,
			"fingerprint", fp[:12],
		)
		return NewCycleError(txn, fp)
	}
	e.cycles.Record(txn, fp)

	e.commit(txn, cfg)
	return nil
}

// commit merges the overlay into the store, updates the current
// configuration, mirrors the snapshot, then notifies watchers and applies
// effects for every key whose committed value actually changed.
func (e *Engine) commit(txn string, cfg catalog.Configuration) {
	changed := e.overlay.Commit()
	seq := e.clock.Next()

	if cfg.Name != e.current {
		slog.Info("configuration reached",
			"config", cfg.Name,
			"previous", e.current,
			"txn", txn,
			"seq", seq,
			"changed", len(changed),
		)
		e.current = cfg.Name
	}

	e.mirror(txn, seq, cfg.Name, changed)

	// Watchers see committed values only, in staging order per key, each
	// key's callbacks in registration order. Effects skip event-only
	// keys: pure interaction signals have nothing to project.
	e.dispatching = true
	for _, key := range changed {
		value, _ := e.store.Get(key)
		e.watchers.Dispatch(key, value)

		if decl, ok := e.bindings.Get(key); ok && !decl.EventOnly {
			if err := e.bindings.Apply(key, value); err != nil {
				slog.Error("effect application failed",
					"txn", txn,
					"key", key,
					"error", err,
				)
			}
		}
	}
	e.dispatching = false
}

// mirror saves the whole committed snapshot to the sink. Sink failures
// are logged and otherwise ignored: the in-memory store is authoritative.
func (e *Engine) mirror(txn string, seq int64, config string, changed []string) {
	if e.sink == nil {
		return
	}

	rec := CommitRecord{Seq: seq, Txn: txn, Config: config, Changed: changed}
	if err := e.sink.Save(context.Background(), e.store.Snapshot(), rec); err != nil {
		slog.Error("snapshot mirror failed",
			"error", err,
			"txn", txn,
			"seq", seq,
		)
	}
}
