package harness

import (
	"context"
	"errors"
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/unisonui/unison/internal/binding"
	"github.com/unisonui/unison/internal/compiler"
	"github.com/unisonui/unison/internal/engine"
	"github.com/unisonui/unison/internal/state"
	"github.com/unisonui/unison/internal/testutil"
)

// TraceEvent is one entry in a scenario's execution trace.
//
// Request events ("set", "transition") are followed by the notify and
// effect events their commit produced, then by one "outcome" event.
type TraceEvent struct {
	Type      string `json:"type"`
	Key       string `json:"key,omitempty"`
	Value     string `json:"value,omitempty"`
	Target    string `json:"target,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	Config    string `json:"config,omitempty"`
	Error     string `json:"error,omitempty"`
	Staged    int    `json:"staged,omitempty"`
	Component string `json:"component,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Result holds everything a scenario run produced.
type Result struct {
	Trace      []TraceEvent
	FinalState map[string]string
	Config     string
	Matched    bool
	Staged     int
	Notified   map[string][]string
	Target     *binding.MemoryTarget
}

// traceTarget records every applied effect into the trace while
// mirroring it into a MemoryTarget for final assertions.
type traceTarget struct {
	mem   *binding.MemoryTarget
	trace *[]TraceEvent
}

func (t *traceTarget) SetText(componentID, text string) {
	t.mem.SetText(componentID, text)
	*t.trace = append(*t.trace, TraceEvent{Type: "effect", Kind: "text", Component: componentID, Value: text})
}

func (t *traceTarget) SetMarkup(componentID, markup string) {
	t.mem.SetMarkup(componentID, markup)
	*t.trace = append(*t.trace, TraceEvent{Type: "effect", Kind: "markup", Component: componentID, Value: markup})
}

func (t *traceTarget) SetValue(componentID, value string) {
	t.mem.SetValue(componentID, value)
	*t.trace = append(*t.trace, TraceEvent{Type: "effect", Kind: "value", Component: componentID, Value: value})
}

func (t *traceTarget) SetClass(componentID, class string, present bool) {
	t.mem.SetClass(componentID, class, present)
	*t.trace = append(*t.trace, TraceEvent{Type: "effect", Kind: "class", Component: componentID, Name: class, Value: boolWord(present)})
}

func (t *traceTarget) SetBoolAttr(componentID, attr string, on bool) {
	t.mem.SetBoolAttr(componentID, attr, on)
	*t.trace = append(*t.trace, TraceEvent{Type: "effect", Kind: "attr", Component: componentID, Name: attr, Value: boolWord(on)})
}

func boolWord(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// seedSink presents a scenario's seed snapshot as a snapshot sink so the
// engine's ordinary seeding path restores it. Saves are discarded.
type seedSink struct {
	snap map[string]string
}

func (s *seedSink) Load(ctx context.Context) (map[string]string, error) {
	out := make(map[string]string, len(s.snap))
	for k, v := range s.snap {
		out[k] = v
	}
	return out, nil
}

func (s *seedSink) Save(ctx context.Context, snapshot map[string]string, rec engine.CommitRecord) error {
	return nil
}

// Run executes a scenario and returns its result.
//
// Step expectations are checked during execution; the first mismatch
// fails the run. Final assertions are NOT checked here; use Verify or
// RunWithGolden.
func Run(scenario *Scenario) (*Result, error) {
	manifest, err := compileDecls(scenario.Decls)
	if err != nil {
		return nil, err
	}
	if errs := compiler.Validate(manifest); len(errs) > 0 {
		return nil, fmt.Errorf("invalid declarations: %s", errs[0].Error())
	}

	result := &Result{
		Notified: make(map[string][]string),
		Target:   binding.NewMemoryTarget(),
	}

	target := &traceTarget{mem: result.Target, trace: &result.Trace}
	bindings, cat, graph, err := compiler.Build(manifest, target)
	if err != nil {
		return nil, err
	}

	opts := []engine.Option{
		engine.WithTxnGenerator(testutil.NewSequentialTxnGenerator("txn")),
	}
	if len(scenario.Seed) > 0 {
		opts = append(opts, engine.WithSnapshotSink(&seedSink{snap: scenario.Seed}))
	}

	eng := engine.New(state.NewStore(), cat, graph, bindings, opts...)
	if err := eng.Seed(context.Background()); err != nil {
		return nil, err
	}

	// One watcher per declared key, in declaration order, so notify
	// events are deterministic.
	for _, d := range manifest.Bindings {
		key := d.Key
		eng.Subscribe(key, func(k, v string) {
			result.Notified[key] = append(result.Notified[key], v)
			result.Trace = append(result.Trace, TraceEvent{Type: "notify", Key: k, Value: v})
		})
	}

	for i, step := range scenario.Steps {
		if err := runStep(eng, result, i, step); err != nil {
			return result, err
		}
	}

	result.FinalState = eng.Snapshot()
	result.Config, result.Matched = eng.CurrentConfiguration()
	result.Staged = eng.StagedCount()

	return result, nil
}

// runStep executes one step, appends its trace events and checks its
// expectation.
func runStep(eng *engine.Engine, result *Result, index int, step Step) error {
	configBefore, _ := eng.CurrentConfiguration()
	notifyMark := len(result.Trace)

	var stepErr error
	if step.Set != nil {
		result.Trace = append(result.Trace, TraceEvent{Type: "set", Key: step.Set.Key, Value: step.Set.Value})
		stepErr = eng.RequestChange(step.Set.Key, step.Set.Value)
	} else {
		result.Trace = append(result.Trace, TraceEvent{Type: "transition", Target: step.Transition})
		stepErr = eng.Transition(step.Transition)
	}

	config, _ := eng.CurrentConfiguration()
	outcome := classifyOutcome(stepErr, result.Trace[notifyMark+1:], configBefore, config, eng.StagedCount())

	event := TraceEvent{
		Type:    "outcome",
		Outcome: outcome,
		Config:  config,
		Staged:  eng.StagedCount(),
	}
	if stepErr != nil {
		event.Error = errorCode(stepErr)
	}
	result.Trace = append(result.Trace, event)

	return checkExpectation(index, step.Expect, outcome, config, event.Error)
}

// classifyOutcome derives a step outcome from what the engine did.
func classifyOutcome(err error, events []TraceEvent, configBefore, configAfter string, staged int) string {
	if err != nil {
		return OutcomeRejected
	}
	for _, e := range events {
		if e.Type == "notify" || e.Type == "effect" {
			return OutcomeCommitted
		}
	}
	if configAfter != configBefore {
		return OutcomeCommitted
	}
	if staged > 0 {
		return OutcomeHeld
	}
	return OutcomeNoOp
}

func checkExpectation(index int, expect *ExpectClause, outcome, config, errCode string) error {
	if expect == nil {
		if outcome == OutcomeRejected {
			return fmt.Errorf("steps[%d]: unexpected rejection: %s", index, errCode)
		}
		return nil
	}

	if expect.Outcome != "" && expect.Outcome != outcome {
		return fmt.Errorf("steps[%d]: expected outcome %q, got %q", index, expect.Outcome, outcome)
	}
	if expect.Config != "" && expect.Config != config {
		return fmt.Errorf("steps[%d]: expected configuration %q, got %q", index, expect.Config, config)
	}
	if expect.Error != "" && expect.Error != errCode {
		return fmt.Errorf("steps[%d]: expected error %q, got %q", index, expect.Error, errCode)
	}
	return nil
}

// errorCode extracts the engine diagnostic code, falling back to the
// error text for non-engine errors.
func errorCode(err error) string {
	var ee *engine.EngineError
	if errors.As(err, &ee) {
		return string(ee.Code)
	}
	return err.Error()
}

// compileDecls unifies the scenario's CUE files into one manifest.
func compileDecls(paths []string) (*compiler.Manifest, error) {
	ctx := cuecontext.New()

	var value cue.Value
	for i, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read declarations: %w", err)
		}
		v := ctx.CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, fmt.Errorf("compile %s: %w", path, err)
		}
		if i == 0 {
			value = v
		} else {
			value = value.Unify(v)
		}
	}

	return compiler.CompileManifest(value)
}
