package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/plaited/behavioral/internal/ir"
)

// TraceSnapshot captures the trace of a scenario execution for golden
// comparison. Program hashes are left out so a program can be reformatted
// without touching its goldens.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	Program      string       `json:"program"`
	Strategy     string       `json:"strategy"`
	Seed         uint64       `json:"seed"`
	Trace        []TraceEvent `json:"trace"`
	Error        string       `json:"error,omitempty"`
}

// NewTraceSnapshot builds the snapshot of a result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: name,
		Program:      result.Program,
		Strategy:     result.Strategy,
		Seed:         result.Seed,
		Trace:        result.Trace,
		Error:        result.Err,
	}
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization, since ir.MarshalCanonical only handles IR types and
// primitives.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	traceList := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"seq":    ev.Seq,
			"event":  ev.Event,
			"thread": ev.Thread,
		}
		if ev.Payload != nil {
			m["payload"] = ev.Payload
		}
		traceList[i] = m
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"program":       s.Program,
		"strategy":      s.Strategy,
		"seed":          int64(s.Seed),
		"trace":         traceList,
	}
	if s.Error != "" {
		result["error"] = s.Error
	}
	return result
}

// MarshalCanonical serializes the snapshot as canonical JSON.
func (s *TraceSnapshot) MarshalCanonical() ([]byte, error) {
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares the trace against a golden
// file stored in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails. Test failure (via goldie)
// occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares a result's trace against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := NewTraceSnapshot(scenarioName, result)
	traceJSON, err := snapshot.MarshalCanonical()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, traceJSON)
	return nil
}
