package harness

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScenarioDirNotFoundError is returned when a scenario directory doesn't
// exist.
type ScenarioDirNotFoundError struct {
	Dir string
}

// Error implements the error interface.
func (e *ScenarioDirNotFoundError) Error() string {
	return fmt.Sprintf("scenario directory %q does not exist", e.Dir)
}

// FindScenarios returns every .yaml and .yml file under dir, sorted.
func FindScenarios(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ScenarioDirNotFoundError{Dir: dir}
		}
		return nil, err
	}
	if !info.IsDir() {
		return []string{dir}, nil
	}

	var paths []string
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch filepath.Ext(path) {
		case ".yaml", ".yml":
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// SuiteResult summarizes a directory of scenarios.
type SuiteResult struct {
	Total    int               `json:"total"`
	Passed   int               `json:"passed"`
	Failed   int               `json:"failed"`
	Skipped  int               `json:"skipped"`
	Results  []ScenarioOutcome `json:"results"`
	Failures []ScenarioFailure `json:"failures,omitempty"`
}

// ScenarioOutcome is the result of one scenario in a suite.
type ScenarioOutcome struct {
	Name   string  `json:"name"`
	Path   string  `json:"path"`
	Result *Result `json:"result,omitempty"`
}

// ScenarioFailure represents a scenario that failed to load, run or pass.
type ScenarioFailure struct {
	Name         string `json:"name,omitempty"`
	ScenarioPath string `json:"scenario_path"`
	Error        string `json:"error"`
}

// SuiteOptions configures RunSuite.
type SuiteOptions struct {
	// Filter skips scenarios whose name does not contain it.
	Filter string

	// Check, if set, runs after the assertions of each scenario. A non-nil
	// error fails the scenario.
	Check func(s *Scenario, r *Result) error

	// OnResult, if set, is called after each scenario that ran.
	OnResult func(s *Scenario, r *Result)

	// Run options passed to every scenario.
	Options []Option
}

// RunSuite runs every scenario found under dir.
//
// For each scenario file:
// 1. Load the scenario
// 2. Skip it if it does not match the filter
// 3. Run it via harness.Run, then the optional Check
// 4. Collect and report results
func RunSuite(ctx context.Context, dir string, opts SuiteOptions) (*SuiteResult, error) {
	paths, err := FindScenarios(dir)
	if err != nil {
		return nil, err
	}

	result := &SuiteResult{Results: []ScenarioOutcome{}}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		scenario, err := LoadScenario(path)
		if err != nil {
			result.Total++
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				ScenarioPath: path,
				Error:        fmt.Sprintf("failed to load scenario: %v", err),
			})
			continue
		}

		if opts.Filter != "" && !strings.Contains(scenario.Name, opts.Filter) {
			result.Skipped++
			continue
		}
		result.Total++

		runResult, err := Run(ctx, scenario, opts.Options...)
		if err != nil {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				Name:         scenario.Name,
				ScenarioPath: path,
				Error:        fmt.Sprintf("scenario execution failed: %v", err),
			})
			continue
		}

		if opts.Check != nil {
			if err := opts.Check(scenario, runResult); err != nil {
				runResult.AddError(err.Error())
			}
		}

		result.Results = append(result.Results, ScenarioOutcome{Name: scenario.Name, Path: path, Result: runResult})
		if opts.OnResult != nil {
			opts.OnResult(scenario, runResult)
		}

		if !runResult.Pass {
			result.Failed++
			result.Failures = append(result.Failures, ScenarioFailure{
				Name:         scenario.Name,
				ScenarioPath: path,
				Error:        fmt.Sprintf("scenario assertions failed: %v", runResult.Errors),
			})
			continue
		}

		result.Passed++
	}

	return result, nil
}
