package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plaited/behavioral/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario name filter (substring)
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Path   string   `json:"path"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// TestResult holds the overall test result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	Total     int              `json:"total"`
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run a directory of scenarios",
		Long: `Run every scenario under a directory and check its assertions.

When a golden file exists at golden/<file>.golden next to a scenario, the
canonical JSON trace must match it byte for byte. --update rewrites the
golden files from the current traces.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  bsync test ./scenarios
  bsync test ./scenarios --filter tictactoe
  bsync test ./scenarios --update
  bsync test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "only run scenarios whose name contains this")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	text := formatter.Format != "json"
	w := formatter.Writer

	ctx, stop := signalContext(cmd)
	defer stop()

	suite, err := harness.RunSuite(ctx, scenariosDir, harness.SuiteOptions{
		Filter: opts.Filter,
		Check: func(s *harness.Scenario, r *harness.Result) error {
			return checkGolden(s, r, opts.Update)
		},
		OnResult: func(s *harness.Scenario, r *harness.Result) {
			if text {
				outputScenarioText(w, s, r, opts.Update)
			}
		},
		Options: []harness.Option{harness.WithLogger(opts.logger(cmd.ErrOrStderr()))},
	})
	if err != nil {
		var notFound *harness.ScenarioDirNotFoundError
		if errors.As(err, &notFound) {
			return fail(formatter, ErrCodeNotFound, NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir)))
		}
		return fail(formatter, ErrCodeScenario, WrapExitError(ExitCommandError, "failed to run scenarios", err))
	}

	result := buildTestResult(suite)

	if result.Total == 0 && text {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	if !text {
		return outputTestJSON(formatter, result)
	}
	ran := ranPaths(suite)
	for _, f := range suite.Failures {
		if !ran[f.ScenarioPath] {
			fmt.Fprintf(w, "✗ %s\n  %s\n", failureName(f), f.Error)
		}
	}
	return outputTestText(w, result)
}

// buildTestResult flattens a suite run into per-scenario results. Scenarios
// that failed to load or start are listed from the suite failures.
func buildTestResult(suite *harness.SuiteResult) TestResult {
	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, suite.Total),
		Passed:    suite.Passed,
		Failed:    suite.Failed,
		Skipped:   suite.Skipped,
		Total:     suite.Total,
	}
	for _, o := range suite.Results {
		result.Scenarios = append(result.Scenarios, ScenarioResult{
			Name:   o.Name,
			Path:   o.Path,
			Pass:   o.Result.Pass,
			Errors: o.Result.Errors,
		})
	}
	ran := ranPaths(suite)
	for _, f := range suite.Failures {
		if ran[f.ScenarioPath] {
			continue
		}
		result.Scenarios = append(result.Scenarios, ScenarioResult{
			Name:   failureName(f),
			Path:   f.ScenarioPath,
			Errors: []string{f.Error},
		})
	}
	return result
}

func ranPaths(suite *harness.SuiteResult) map[string]bool {
	ran := make(map[string]bool, len(suite.Results))
	for _, o := range suite.Results {
		ran[o.Path] = true
	}
	return ran
}

// failureName is the scenario name, or its file name when it never loaded.
func failureName(f harness.ScenarioFailure) string {
	if f.Name != "" {
		return f.Name
	}
	return filepath.Base(f.ScenarioPath)
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// checkGolden compares the canonical trace of a run with its golden file,
// or rewrites the file when update is set. Scenarios without a golden file
// are checked by their assertions only.
func checkGolden(s *harness.Scenario, r *harness.Result, update bool) error {
	snapshot := harness.NewTraceSnapshot(s.Name, r)
	data, err := snapshot.MarshalCanonical()
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}

	goldenPath := goldenFilePath(s.Path)
	if update {
		if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(goldenPath, data, 0644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	golden, err := os.ReadFile(goldenPath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(golden, data) {
		return errors.New("trace does not match golden file (run with --update to regenerate)")
	}
	return nil
}

func outputScenarioText(w io.Writer, s *harness.Scenario, r *harness.Result, update bool) {
	if !r.Pass {
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
		return
	}
	if update {
		fmt.Fprintf(w, "✓ %s (golden updated)\n", s.Name)
		return
	}
	fmt.Fprintf(w, "✓ %s\n", s.Name)
}

// outputTestJSON outputs the test result as JSON.
func outputTestJSON(formatter *OutputFormatter, result TestResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeTestFailed,
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}

	if err := formatter.Respond(response); err != nil {
		return err
	}

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the test summary as text.
func outputTestText(w io.Writer, result TestResult) error {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total", result.Passed, result.Failed, result.Total)
	if result.Skipped > 0 {
		fmt.Fprintf(w, " (%d skipped)", result.Skipped)
	}
	fmt.Fprintln(w)

	if result.Failed > 0 {
		// Test failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}

	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
