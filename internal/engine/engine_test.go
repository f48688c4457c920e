package engine

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unisonui/unison/internal/binding"
	"github.com/unisonui/unison/internal/catalog"
	"github.com/unisonui/unison/internal/state"
)

// sidebarBindings declares the collapsible-sidebar fixture used across
// these tests: a class-toggled sidebar, a text-bound toggle button, a
// boolean attribute and an event-only interaction key.
func sidebarBindings(t *testing.T, target binding.EffectTarget) *binding.Registry {
	t.Helper()

	r := binding.NewRegistry(target)
	decls := []binding.Decl{
		{Key: "sidebar.class", Kind: binding.KindClass, Class: "open"},
		{Key: "toggle.text", Kind: binding.KindText},
		{Key: "panel.disabled", Kind: binding.KindBoolAttr, Attr: "disabled"},
		{Key: "toggle.click", Kind: binding.KindText, EventOnly: true},
	}
	for _, d := range decls {
		require.NoError(t, r.Declare(d))
	}
	return r
}

func sidebarCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	c := catalog.NewCatalog()
	require.NoError(t, c.Define("HIDDEN", map[string]string{
		"sidebar.class":  "",
		"toggle.text":    "Show",
		"panel.disabled": "*",
		"toggle.click":   "*",
	}))
	require.NoError(t, c.Define("VISIBLE", map[string]string{
		"sidebar.class":  "open",
		"toggle.text":    "Hide",
		"panel.disabled": "*",
		"toggle.click":   "*",
	}))
	return c
}

func sidebarEngine(t *testing.T, opts ...Option) (*Engine, *binding.MemoryTarget) {
	t.Helper()

	target := binding.NewMemoryTarget()
	e := New(state.NewStore(), sidebarCatalog(t), nil, sidebarBindings(t, target), opts...)
	return e, target
}

// reachHidden drives the engine to the HIDDEN configuration.
func reachHidden(t *testing.T, e *Engine) {
	t.Helper()

	require.NoError(t, e.RequestChange("toggle.text", "Show"))
	require.NoError(t, e.RequestChange("sidebar.class", ""))

	name, ok := e.CurrentConfiguration()
	require.True(t, ok)
	require.Equal(t, "HIDDEN", name)
}

// cascadeEngine builds a minimal two-key fixture whose single all-wildcard
// configuration matches any state, so every staged change commits
// immediately. Used for cascade, cycle and quota tests.
func cascadeEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()

	r := binding.NewRegistry(nil)
	require.NoError(t, r.Declare(binding.Decl{Key: "a.value", Kind: binding.KindText}))
	require.NoError(t, r.Declare(binding.Decl{Key: "b.value", Kind: binding.KindText}))

	c := catalog.NewCatalog()
	require.NoError(t, c.Define("ANY", map[string]string{
		"a.value": "*",
		"b.value": "*",
	}))

	return New(state.NewStore(), c, nil, r, opts...)
}

func TestEngine_HoldsUntilFullMatch(t *testing.T) {
	e, target := sidebarEngine(t)

	// First request: no configuration matches yet, the change is held.
	require.NoError(t, e.RequestChange("toggle.text", "Show"))
	assert.Equal(t, 1, e.StagedCount())
	assert.Empty(t, e.Snapshot())
	_, ok := e.CurrentConfiguration()
	assert.False(t, ok)
	assert.Empty(t, target.Text("toggle"), "effects must not run before a commit")

	// Second request completes the HIDDEN match; both keys commit together.
	require.NoError(t, e.RequestChange("sidebar.class", ""))
	assert.Equal(t, 0, e.StagedCount())

	name, ok := e.CurrentConfiguration()
	require.True(t, ok)
	assert.Equal(t, "HIDDEN", name)
	assert.Equal(t, map[string]string{
		"toggle.text":   "Show",
		"sidebar.class": "",
	}, e.Snapshot())

	assert.Equal(t, "Show", target.Text("toggle"))
	assert.False(t, target.HasClass("sidebar", "open"))
}

func TestEngine_UndeclaredKeyRejected(t *testing.T) {
	e, _ := sidebarEngine(t)

	err := e.RequestChange("ghost.text", "boo")
	require.Error(t, err)
	assert.True(t, IsInvalidKey(err))
	assert.Equal(t, 0, e.StagedCount(), "rejection must happen pre-staging")
	assert.Empty(t, e.Snapshot())
}

func TestEngine_ReservedWildcardValueRejected(t *testing.T) {
	e, _ := sidebarEngine(t)

	err := e.RequestChange("toggle.text", catalog.Wildcard)
	require.Error(t, err)

	var ee *EngineError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, CodeReservedValue, ee.Code)
	assert.Equal(t, 0, e.StagedCount())
}

func TestEngine_NoOpRequestSkipsNotification(t *testing.T) {
	e, _ := sidebarEngine(t)
	reachHidden(t, e)

	fired := 0
	e.Subscribe("toggle.text", func(key, value string) {
		fired++
	})

	// Same committed value again: no staging, no commit, no watchers.
	require.NoError(t, e.RequestChange("toggle.text", "Show"))
	assert.Equal(t, 0, fired)
	assert.Equal(t, 0, e.StagedCount())
}

func TestEngine_ToggleBooleanAndClass(t *testing.T) {
	e, target := sidebarEngine(t)
	reachHidden(t, e)

	// Unset key toggles to "true". panel.disabled is wildcarded in both
	// configurations, so the commit goes through immediately.
	require.NoError(t, e.RequestChange("panel.disabled", ToggleSentinel))
	snap := e.Snapshot()
	assert.Equal(t, "true", snap["panel.disabled"])
	assert.True(t, target.Attr("panel", "disabled"))

	// Boolean values flip.
	require.NoError(t, e.RequestChange("panel.disabled", ToggleSentinel))
	assert.Equal(t, "false", e.Snapshot()["panel.disabled"])
	assert.False(t, target.Attr("panel", "disabled"))

	// Class bindings toggle between "" and their class name. Alone the
	// toggle leaves the system unclassified, so it is held until the
	// button text catches up.
	require.NoError(t, e.RequestChange("sidebar.class", ToggleSentinel))
	assert.Equal(t, 1, e.StagedCount())
	assert.Equal(t, "", e.Snapshot()["sidebar.class"])

	require.NoError(t, e.RequestChange("toggle.text", "Hide"))
	name, _ := e.CurrentConfiguration()
	assert.Equal(t, "VISIBLE", name)
	assert.Equal(t, "open", e.Snapshot()["sidebar.class"])
	assert.True(t, target.HasClass("sidebar", "open"))
}

func TestEngine_ToggleResolvesAgainstCommittedValue(t *testing.T) {
	e, _ := sidebarEngine(t)
	reachHidden(t, e)

	// Stage sidebar.class="open" (held). A toggle issued now must resolve
	// against the committed "" rather than the staged "open", proposing
	// "open" again.
	require.NoError(t, e.RequestChange("sidebar.class", ToggleSentinel))
	require.NoError(t, e.RequestChange("sidebar.class", ToggleSentinel))
	assert.Equal(t, 1, e.StagedCount())

	require.NoError(t, e.RequestChange("toggle.text", "Hide"))
	name, _ := e.CurrentConfiguration()
	assert.Equal(t, "VISIBLE", name)
}

func TestEngine_FirstMatchWins(t *testing.T) {
	r := binding.NewRegistry(nil)
	require.NoError(t, r.Declare(binding.Decl{Key: "a.value", Kind: binding.KindText}))

	c := catalog.NewCatalog()
	require.NoError(t, c.Define("BROAD", map[string]string{"a.value": "*"}))
	require.NoError(t, c.Define("EXACT", map[string]string{"a.value": "x"}))

	e := New(state.NewStore(), c, nil, r)
	require.NoError(t, e.RequestChange("a.value", "x"))

	// Both configurations match; definition order decides.
	name, ok := e.CurrentConfiguration()
	require.True(t, ok)
	assert.Equal(t, "BROAD", name)
}

func TestEngine_WatcherOrderAndCommittedValues(t *testing.T) {
	e, _ := sidebarEngine(t)

	type event struct{ key, value string }
	var events []event

	e.Subscribe("toggle.text", func(key, value string) {
		events = append(events, event{key, value})
		// Watchers observe committed state only.
		assert.Equal(t, "Show", e.Snapshot()["toggle.text"])
	})
	e.Subscribe("toggle.text", func(key, value string) {
		events = append(events, event{key + "#2", value})
	})
	e.Subscribe("sidebar.class", func(key, value string) {
		events = append(events, event{key, value})
	})

	reachHidden(t, e)

	// Keys notify in staging order; each key's watchers in registration
	// order.
	require.Equal(t, []event{
		{"toggle.text", "Show"},
		{"toggle.text#2", "Show"},
		{"sidebar.class", ""},
	}, events)
}

func TestEngine_WatcherPanicIsolated(t *testing.T) {
	e := cascadeEngine(t)

	var survived []string
	e.Subscribe("a.value", func(key, value string) {
		panic("watcher bug")
	})
	e.Subscribe("a.value", func(key, value string) {
		survived = append(survived, value)
	})

	require.NoError(t, e.RequestChange("a.value", "1"))
	assert.Equal(t, []string{"1"}, survived)
	assert.Equal(t, "1", e.Snapshot()["a.value"])
}

func TestEngine_WatcherCascadeRunsFIFO(t *testing.T) {
	e := cascadeEngine(t)

	var seen []string
	e.Subscribe("a.value", func(key, value string) {
		// Nested requests defer until the current transaction settles.
		require.NoError(t, e.RequestChange("b.value", "derived-"+value))
	})
	e.Subscribe("b.value", func(key, value string) {
		seen = append(seen, value)
	})

	require.NoError(t, e.RequestChange("a.value", "1"))

	assert.Equal(t, []string{"derived-1"}, seen)
	assert.Equal(t, map[string]string{
		"a.value": "1",
		"b.value": "derived-1",
	}, e.Snapshot())
}

func TestEngine_CycleDetected(t *testing.T) {
	e := cascadeEngine(t)

	// Two rules fight over a.value: 1 -> 2 -> 1 reproduces an earlier
	// snapshot within the same cascade.
	e.Subscribe("a.value", func(key, value string) {
		switch value {
		case "1":
			require.NoError(t, e.RequestChange("a.value", "2"))
		case "2":
			require.NoError(t, e.RequestChange("a.value", "1"))
		}
	})

	err := e.RequestChange("a.value", "1")
	require.Error(t, err)
	assert.True(t, IsCycleError(err))

	// The store stays at the last stable commit before the repeat.
	assert.Equal(t, "2", e.Snapshot()["a.value"])
	assert.Equal(t, 0, e.StagedCount())
	assert.Equal(t, 0, e.cycles.HistorySize(), "cycle history must be cleared per cascade")
}

func TestEngine_CascadeQuotaExceeded(t *testing.T) {
	e := cascadeEngine(t, WithMaxCascadeSteps(3))

	// Every commit produces a novel value, so cycle detection never
	// fires; the step quota has to.
	e.Subscribe("a.value", func(key, value string) {
		n, err := strconv.Atoi(value)
		require.NoError(t, err)
		require.NoError(t, e.RequestChange("a.value", strconv.Itoa(n+1)))
	})

	err := e.RequestChange("a.value", "0")
	require.Error(t, err)
	assert.True(t, IsQuotaError(err))

	// Steps 1..3 committed values 0..2; step 4 was aborted.
	assert.Equal(t, "2", e.Snapshot()["a.value"])
	assert.Equal(t, 0, e.StagedCount())
}

func TestEngine_TransitionCommitsWholeConfiguration(t *testing.T) {
	target := binding.NewMemoryTarget()
	c := sidebarCatalog(t)
	g := catalog.NewGraph(c)
	require.NoError(t, g.Define("HIDDEN", "VISIBLE", nil))
	require.NoError(t, g.Define("VISIBLE", "HIDDEN", nil))

	e := New(state.NewStore(), c, g, sidebarBindings(t, target))
	reachHidden(t, e)

	require.NoError(t, e.Transition("VISIBLE"))

	name, _ := e.CurrentConfiguration()
	assert.Equal(t, "VISIBLE", name)
	assert.Equal(t, "Hide", e.Snapshot()["toggle.text"])
	assert.Equal(t, "open", e.Snapshot()["sidebar.class"])
	assert.True(t, target.HasClass("sidebar", "open"))
	assert.Equal(t, "Hide", target.Text("toggle"))

	require.NoError(t, e.Transition("HIDDEN"))
	name, _ = e.CurrentConfiguration()
	assert.Equal(t, "HIDDEN", name)
	assert.False(t, target.HasClass("sidebar", "open"))
}

func TestEngine_TransitionRejections(t *testing.T) {
	c := sidebarCatalog(t)
	g := catalog.NewGraph(c)
	require.NoError(t, g.Define("VISIBLE", "HIDDEN", nil))

	e := New(state.NewStore(), c, g, sidebarBindings(t, binding.NewMemoryTarget()))

	// No current configuration yet.
	err := e.Transition("VISIBLE")
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))

	reachHidden(t, e)
	before := e.Snapshot()

	// Undefined target.
	err = e.Transition("GONE")
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))

	// No edge HIDDEN -> VISIBLE was defined.
	err = e.Transition("VISIBLE")
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))

	assert.Equal(t, before, e.Snapshot(), "rejected transitions leave the store unchanged")
	assert.Equal(t, 0, e.StagedCount())
}

func TestEngine_TransitionGuard(t *testing.T) {
	c := sidebarCatalog(t)
	g := catalog.NewGraph(c)

	guard, err := catalog.CompileGuard(`values["panel.disabled"] != "true"`)
	require.NoError(t, err)
	require.NoError(t, g.Define("HIDDEN", "VISIBLE", guard))

	e := New(state.NewStore(), c, g, sidebarBindings(t, binding.NewMemoryTarget()))
	reachHidden(t, e)

	// Guard holds: panel.disabled is unset.
	require.NoError(t, e.Transition("VISIBLE"))
	name, _ := e.CurrentConfiguration()
	require.Equal(t, "VISIBLE", name)
}

func TestEngine_TransitionGuardBlocks(t *testing.T) {
	c := sidebarCatalog(t)
	g := catalog.NewGraph(c)

	guard, err := catalog.CompileGuard(`values["panel.disabled"] != "true"`)
	require.NoError(t, err)
	require.NoError(t, g.Define("HIDDEN", "VISIBLE", guard))

	e := New(state.NewStore(), c, g, sidebarBindings(t, binding.NewMemoryTarget()))
	reachHidden(t, e)
	require.NoError(t, e.RequestChange("panel.disabled", "true"))

	err = e.Transition("VISIBLE")
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))
	name, _ := e.CurrentConfiguration()
	assert.Equal(t, "HIDDEN", name)
}

func TestEngine_EventOnlyKeyNotifiesWithoutEffect(t *testing.T) {
	e, target := sidebarEngine(t)
	reachHidden(t, e)

	var clicks []string
	e.Subscribe("toggle.click", func(key, value string) {
		clicks = append(clicks, value)
	})

	require.NoError(t, e.RequestChange("toggle.click", "press-1"))

	assert.Equal(t, []string{"press-1"}, clicks)
	assert.Equal(t, "press-1", e.Snapshot()["toggle.click"])
	// The event-only key shares the "toggle" component with the text
	// binding; its commit must not disturb the projected text.
	assert.Equal(t, "Show", target.Text("toggle"))
}

func TestEngine_UnsubscribeStopsNotifications(t *testing.T) {
	e := cascadeEngine(t)

	fired := 0
	h := e.Subscribe("a.value", func(key, value string) { fired++ })

	require.NoError(t, e.RequestChange("a.value", "1"))
	require.Equal(t, 1, fired)

	e.Unsubscribe(h)
	e.Unsubscribe(h) // second call is a no-op

	require.NoError(t, e.RequestChange("a.value", "2"))
	assert.Equal(t, 1, fired)
}

// memorySink records every Save for assertions.
type memorySink struct {
	snapshot map[string]string
	records  []CommitRecord
	loadErr  error
	saveErr  error
}

func (s *memorySink) Load(ctx context.Context) (map[string]string, error) {
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	out := make(map[string]string, len(s.snapshot))
	for k, v := range s.snapshot {
		out[k] = v
	}
	return out, nil
}

func (s *memorySink) Save(ctx context.Context, snapshot map[string]string, rec CommitRecord) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.snapshot = snapshot
	s.records = append(s.records, rec)
	return nil
}

func TestEngine_SnapshotSinkMirrorsCommits(t *testing.T) {
	sink := &memorySink{}
	e, _ := sidebarEngine(t,
		WithSnapshotSink(sink),
		WithTxnGenerator(NewFixedGenerator("txn-1", "txn-2")),
	)

	reachHidden(t, e)

	require.Len(t, sink.records, 1)
	rec := sink.records[0]
	assert.Equal(t, int64(1), rec.Seq)
	assert.Equal(t, "txn-2", rec.Txn, "the commit belongs to the second request's cascade")
	assert.Equal(t, "HIDDEN", rec.Config)
	assert.Equal(t, []string{"toggle.text", "sidebar.class"}, rec.Changed)
	assert.Equal(t, e.Snapshot(), sink.snapshot)
}

func TestEngine_SeedRestoresFromSink(t *testing.T) {
	sink := &memorySink{snapshot: map[string]string{
		"sidebar.class": "open",
		"toggle.text":   "Hide",
	}}
	e, _ := sidebarEngine(t, WithSnapshotSink(sink))

	require.NoError(t, e.Seed(context.Background()))

	assert.Equal(t, sink.snapshot, e.Snapshot())
	name, ok := e.CurrentConfiguration()
	require.True(t, ok)
	assert.Equal(t, "VISIBLE", name)
}

func TestEngine_SeedEmptySinkIsNoOp(t *testing.T) {
	e, _ := sidebarEngine(t, WithSnapshotSink(&memorySink{}))

	require.NoError(t, e.Seed(context.Background()))
	assert.Empty(t, e.Snapshot())
	_, ok := e.CurrentConfiguration()
	assert.False(t, ok)
}

func TestEngine_SinkFailureIsNonFatal(t *testing.T) {
	sink := &memorySink{saveErr: context.DeadlineExceeded}
	e, _ := sidebarEngine(t, WithSnapshotSink(sink))

	// Mirror failures are logged, never surfaced to the requester.
	reachHidden(t, e)
	assert.Equal(t, "Show", e.Snapshot()["toggle.text"])
}

func TestEngine_ServiceModeProcessesQueue(t *testing.T) {
	e, _ := sidebarEngine(t)

	done := make(chan error, 1)
	go func() {
		done <- e.Run(context.Background())
	}()

	require.True(t, e.Enqueue(Request{Kind: RequestSet, Key: "toggle.text", Value: "Show"}))
	require.True(t, e.Enqueue(Request{Kind: RequestSet, Key: "sidebar.class", Value: ""}))
	e.Stop()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}

	name, ok := e.CurrentConfiguration()
	require.True(t, ok)
	assert.Equal(t, "HIDDEN", name)
	assert.False(t, e.Enqueue(Request{Kind: RequestSet, Key: "toggle.text", Value: "x"}),
		"enqueue after stop must fail")
}

func TestEngine_ServiceModeContextCancel(t *testing.T) {
	e, _ := sidebarEngine(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- e.Run(ctx)
	}()

	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("engine did not stop")
	}
}
