package harness

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0755))
	for _, name := range []string{"b.yaml", "a.yml", "notes.txt", filepath.Join("nested", "c.yaml")} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	paths, err := FindScenarios(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.yml"),
		filepath.Join(dir, "b.yaml"),
		filepath.Join(dir, "nested", "c.yaml"),
	}, paths)
}

func TestFindScenarios_SingleFile(t *testing.T) {
	paths, err := FindScenarios(scenarioPath("hotcold"))
	require.NoError(t, err)
	assert.Equal(t, []string{scenarioPath("hotcold")}, paths)
}

func TestFindScenarios_MissingDir(t *testing.T) {
	_, err := FindScenarios("/nonexistent/scenarios")
	var nf *ScenarioDirNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestRunSuite_RepositoryScenarios(t *testing.T) {
	var seen []string
	result, err := RunSuite(context.Background(), filepath.Join("..", "..", "testdata", "scenarios"), SuiteOptions{
		OnResult: func(s *Scenario, _ *Result) { seen = append(seen, s.Name) },
	})
	require.NoError(t, err)

	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 5, result.Passed)
	assert.Zero(t, result.Failed)
	assert.Empty(t, result.Failures)
	assert.Len(t, seen, 5)
}

func TestRunSuite_Filter(t *testing.T) {
	result, err := RunSuite(context.Background(), filepath.Join("..", "..", "testdata", "scenarios"), SuiteOptions{Filter: "tictactoe"})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 3, result.Skipped)
	require.Len(t, result.Results, 2)
	assert.Equal(t, "tictactoe_rules", result.Results[0].Name)
	assert.Equal(t, "tictactoe_x_wins", result.Results[1].Name)
}

func TestRunSuite_CollectsFailures(t *testing.T) {
	dir := t.TempDir()
	createTestProgram(t, dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a_broken.yaml"), []byte("name: [unclosed"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b_fails.yaml"), []byte(`
name: fails
description: "Expects the wrong trace"
program: ping.cue
triggers: [{event: ping}]
assertions: [{type: trace_equals, events: [ping]}]
`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "c_passes.yaml"), []byte(`
name: passes
description: "Ping gets a pong"
program: ping.cue
triggers: [{event: ping}]
assertions: [{type: trace_equals, events: [ping, pong]}]
`), 0644))

	result, err := RunSuite(context.Background(), dir, SuiteOptions{})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 2, result.Failed)
	require.Len(t, result.Failures, 2)
	assert.Contains(t, result.Failures[0].Error, "failed to load scenario")
	assert.Equal(t, "fails", result.Failures[1].Name)
	assert.Contains(t, result.Failures[1].Error, "scenario assertions failed")
}

func TestRunSuite_CheckFailsScenario(t *testing.T) {
	dir := t.TempDir()
	createTestProgram(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ping.yaml"), []byte(`
name: ping
description: "Ping gets a pong"
program: ping.cue
triggers: [{event: ping}]
assertions: [{type: trace_equals, events: [ping, pong]}]
`), 0644))

	var checked []string
	result, err := RunSuite(context.Background(), dir, SuiteOptions{
		Check: func(s *Scenario, r *Result) error {
			checked = append(checked, s.Name)
			return errors.New("golden mismatch")
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"ping"}, checked)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0].Error, "golden mismatch")
	assert.False(t, result.Results[0].Result.Pass)
}
