package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/plaited/behavioral/internal/engine"
)

// Scenario defines a behavioral test scenario: a program, the events a
// host triggers into it and assertions on the resulting trace.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Program is the path to a CUE file or package directory. Relative
	// paths are resolved against the scenario file's directory.
	Program string `yaml:"program"`

	// ProgramName selects one program when the source declares several.
	ProgramName string `yaml:"program_name,omitempty"`

	// Strategy is "priority" (default), "random" or "chaos".
	Strategy string `yaml:"strategy,omitempty"`

	// Seed seeds the random and chaos strategies.
	Seed uint64 `yaml:"seed,omitempty"`

	// MaxSteps overrides the per-super-step selection quota.
	MaxSteps int `yaml:"max_steps,omitempty"`

	// Triggers are injected in order through the program's public trigger.
	Triggers []TriggerStep `yaml:"triggers"`

	// Effects attach declarative handlers to selected events.
	Effects []Effect `yaml:"effects,omitempty"`

	// Assertions validate the final trace and registry.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id for recorded runs.
	RunID string `yaml:"run_id,omitempty"`

	// Path is the file the scenario was loaded from.
	Path string `yaml:"-"`
}

// TriggerStep is one event injected by the host.
type TriggerStep struct {
	Event string `yaml:"event"`

	// Payload is converted to an ir.IRObject. Floats and nulls are
	// rejected.
	Payload map[string]any `yaml:"payload,omitempty"`
}

// Effect is a declarative effect handler. When an event named On is
// selected, the Trigger events are fed back through the program's
// unrestricted trigger; they run once the current super-step quiesces.
// A non-empty Fail makes the effect return an error with that message.
type Effect struct {
	On      string        `yaml:"on"`
	Trigger []TriggerStep `yaml:"trigger,omitempty"`
	Fail    string        `yaml:"fail,omitempty"`
}

// Assertion validates the trace, the registry or the run error.
type Assertion struct {
	// Type specifies the assertion type:
	// - "trace_equals": the selected event names equal Events exactly
	// - "trace_contains": Event was selected, with Payload as a subset
	// - "trace_order": Events appear in order, not necessarily adjacent
	// - "trace_count": Event was selected exactly Count times
	// - "thread_status": Thread ended in Status
	// - "error": the run stopped with an error containing Contains
	Type string `yaml:"type"`

	Event   string         `yaml:"event,omitempty"`
	Events  []string       `yaml:"events,omitempty"`
	Payload map[string]any `yaml:"payload,omitempty"`
	Count   int            `yaml:"count,omitempty"`

	Thread string `yaml:"thread,omitempty"`

	// Status is "running", "pending" or "done". Done covers threads that
	// finished, were interrupted or never existed.
	Status string `yaml:"status,omitempty"`

	Contains string `yaml:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceEquals   = "trace_equals"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertThreadStatus  = "thread_status"
	AssertError         = "error"
)

// Thread status names used by thread_status assertions.
const (
	StatusRunning = "running"
	StatusPending = "pending"
	StatusDone    = "done"
)

// LoadScenario reads and parses a scenario YAML file. The program path is
// resolved relative to the file. Unknown fields are rejected so typos like
// "assertion:" fail loudly.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data, filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	scenario.Path = path
	return scenario, nil
}

// ParseScenario parses scenario YAML, resolving a relative program path
// against baseDir.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Program != "" && !filepath.IsAbs(scenario.Program) && baseDir != "" {
		scenario.Program = filepath.Join(baseDir, scenario.Program)
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
	if s.Program == "" {
		return fmt.Errorf("program is required")
	}
	if _, err := os.Stat(s.Program); err != nil {
		return fmt.Errorf("program not found: %s", s.Program)
	}
	if _, err := engine.ParseStrategy(s.Strategy, s.Seed); err != nil {
		return err
	}
	if s.MaxSteps < 0 {
		return fmt.Errorf("max_steps must be non-negative")
	}
	if len(s.Triggers) == 0 {
		return fmt.Errorf("triggers list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Triggers {
		if step.Event == "" {
			return fmt.Errorf("triggers[%d]: event is required", i)
		}
	}

	seen := make(map[string]bool, len(s.Effects))
	for i, eff := range s.Effects {
		if eff.On == "" {
			return fmt.Errorf("effects[%d]: on is required", i)
		}
		if seen[eff.On] {
			return fmt.Errorf("effects[%d]: duplicate effect for %q", i, eff.On)
		}
		seen[eff.On] = true
		if len(eff.Trigger) == 0 && eff.Fail == "" {
			return fmt.Errorf("effects[%d]: trigger or fail is required", i)
		}
		for j, step := range eff.Trigger {
			if step.Event == "" {
				return fmt.Errorf("effects[%d].trigger[%d]: event is required", i, j)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceEquals:
		// An empty list asserts that nothing was selected.
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Events) == 0 {
			return fmt.Errorf("assertions[%d]: events list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Event == "" {
			return fmt.Errorf("assertions[%d]: event is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertThreadStatus:
		if a.Thread == "" {
			return fmt.Errorf("assertions[%d]: thread is required for thread_status", index)
		}
		switch a.Status {
		case StatusRunning, StatusPending, StatusDone:
		default:
			return fmt.Errorf("assertions[%d]: status must be %s, %s or %s", index, StatusRunning, StatusPending, StatusDone)
		}
	case AssertError:
		// An empty contains matches any error.
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}

// expectsError reports whether the scenario asserts on the run error.
func (s *Scenario) expectsError() bool {
	for _, a := range s.Assertions {
		if a.Type == AssertError {
			return true
		}
	}
	return false
}
