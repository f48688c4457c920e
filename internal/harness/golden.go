package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot captures the complete trace for a scenario execution.
type TraceSnapshot struct {
	ScenarioName  string            `json:"scenario_name"`
	Trace         []TraceEvent      `json:"trace"`
	Configuration string            `json:"configuration,omitempty"`
	State         map[string]string `json:"state"`
}

// RunWithGolden executes a scenario, checks its final assertions and
// compares the trace against a golden file stored in
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		t.Fatalf("scenario %s: %v", scenario.Name, err)
	}

	for _, failure := range Verify(scenario, result) {
		t.Error(failure)
	}

	snapshot := TraceSnapshot{
		ScenarioName:  scenario.Name,
		Trace:         result.Trace,
		Configuration: result.Config,
		State:         result.FinalState,
	}

	// json.Marshal sorts map keys, so the snapshot is deterministic.
	traceJSON, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		t.Fatalf("marshal trace snapshot: %v", err)
	}
	traceJSON = append(traceJSON, '\n')

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenario.Name, traceJSON)
}
