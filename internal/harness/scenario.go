package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario; it also names the golden
	// file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Decls lists paths to CUE declaration files, relative to the
	// scenario file location.
	Decls []string `yaml:"decls"`

	// Seed is an optional committed snapshot restored before the steps
	// run, as if loaded from a snapshot sink.
	Seed map[string]string `yaml:"seed,omitempty"`

	// Steps is the request sequence.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final state after all steps.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one request: exactly one of Set or Transition must be present.
type Step struct {
	// Set proposes a single key/value change.
	Set *SetStep `yaml:"set,omitempty"`

	// Transition names a target configuration.
	Transition string `yaml:"transition,omitempty"`

	// Expect validates the step outcome. If nil the step is only
	// required not to fail.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// SetStep is a single key/value change request.
// Value may be the "toggle" sentinel.
type SetStep struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Outcome is one of "committed", "held", "no-op" or "rejected".
	Outcome string `yaml:"outcome,omitempty"`

	// Config is the expected current configuration after the step.
	Config string `yaml:"config,omitempty"`

	// Error is the expected engine error code for rejected steps.
	Error string `yaml:"error,omitempty"`
}

// Assertion validates the final engine state.
type Assertion struct {
	// Type is one of the Assert* constants below.
	Type string `yaml:"type"`

	// Config is the expected configuration (final_config).
	Config string `yaml:"config,omitempty"`

	// Expect contains expected committed values, subset match
	// (final_state).
	Expect map[string]string `yaml:"expect,omitempty"`

	// Count is the expected number of staged changes (staged).
	Count int `yaml:"count,omitempty"`

	// Key and Values assert the exact sequence of committed values a
	// watcher on Key observed (notified).
	Key    string   `yaml:"key,omitempty"`
	Values []string `yaml:"values,omitempty"`
}

// Assertion type constants.
const (
	AssertFinalConfig = "final_config"
	AssertFinalState  = "final_state"
	AssertStaged      = "staged"
	AssertNotified    = "notified"
)

// Step outcome constants.
const (
	OutcomeCommitted = "committed"
	OutcomeHeld      = "held"
	OutcomeNoOp      = "no-op"
	OutcomeRejected  = "rejected"
)

// LoadScenario reads and parses a scenario YAML file. Declaration paths
// are resolved relative to the scenario file's directory.
//
// Returns an error if the file is malformed, contains unknown fields
// (typos) or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, declPath := range scenario.Decls {
		if !filepath.IsAbs(declPath) {
			scenario.Decls[i] = filepath.Join(base, declPath)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Decls) == 0 {
		return fmt.Errorf("decls list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for _, declPath := range s.Decls {
		if _, err := os.Stat(declPath); os.IsNotExist(err) {
			return fmt.Errorf("declaration file not found: %s", declPath)
		}
	}

	for i, step := range s.Steps {
		hasSet := step.Set != nil
		hasTransition := step.Transition != ""
		if hasSet == hasTransition {
			return fmt.Errorf("steps[%d]: exactly one of set or transition is required", i)
		}
		if hasSet && step.Set.Key == "" {
			return fmt.Errorf("steps[%d].set: key is required", i)
		}
		if step.Expect != nil && step.Expect.Outcome != "" {
			switch step.Expect.Outcome {
			case OutcomeCommitted, OutcomeHeld, OutcomeNoOp, OutcomeRejected:
			default:
				return fmt.Errorf("steps[%d].expect: unknown outcome %q", i, step.Expect.Outcome)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case AssertFinalConfig:
		// An empty config asserts that nothing has matched.
	case AssertFinalState:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for final_state", index)
		}
	case AssertStaged:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for staged", index)
		}
	case AssertNotified:
		if a.Key == "" {
			return fmt.Errorf("assertions[%d]: key is required for notified", index)
		}
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}
