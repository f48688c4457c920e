package harness

import (
	"fmt"
	"slices"
)

// Verify checks a scenario's final assertions against a run result.
// All assertions are evaluated; every failure is reported.
func Verify(scenario *Scenario, result *Result) []error {
	var failures []error

	for i, a := range scenario.Assertions {
		if err := verifyAssertion(i, a, result); err != nil {
			failures = append(failures, err)
		}
	}

	return failures
}

func verifyAssertion(index int, a Assertion, result *Result) error {
	switch a.Type {
	case AssertFinalConfig:
		if a.Config == "" {
			if result.Matched {
				return fmt.Errorf("assertions[%d]: expected no configuration, got %q", index, result.Config)
			}
			return nil
		}
		if result.Config != a.Config {
			return fmt.Errorf("assertions[%d]: expected configuration %q, got %q", index, a.Config, result.Config)
		}

	case AssertFinalState:
		for key, want := range a.Expect {
			got, ok := result.FinalState[key]
			if !ok {
				return fmt.Errorf("assertions[%d]: key %q not committed", index, key)
			}
			if got != want {
				return fmt.Errorf("assertions[%d]: %s = %q, expected %q", index, key, got, want)
			}
		}

	case AssertStaged:
		if result.Staged != a.Count {
			return fmt.Errorf("assertions[%d]: %d staged change(s), expected %d", index, result.Staged, a.Count)
		}

	case AssertNotified:
		got := result.Notified[a.Key]
		if !slices.Equal(got, a.Values) {
			return fmt.Errorf("assertions[%d]: watcher on %q saw %v, expected %v", index, a.Key, got, a.Values)
		}

	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
