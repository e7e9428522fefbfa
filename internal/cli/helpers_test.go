package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

func programPath(name string) string {
	return filepath.Join("..", "..", "testdata", "programs", name+".cue")
}

func scenarioPath(name string) string {
	return filepath.Join("..", "..", "testdata", "scenarios", name+".yaml")
}

func scenariosDir() string {
	return filepath.Join("..", "..", "testdata", "scenarios")
}

// execute runs cmd with args and returns what it wrote to stdout.
func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// writeFile writes content under dir and returns the path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const pingProgram = `package p

program: ping: {
	public: ["ping"]
	threads: [{name: "reply", steps: [{wait_for: "ping"}, {request: "pong"}]}]
}
`

// copyScenarios copies the repository scenarios and programs into a
// temporary tree so tests can write golden files next to them.
func copyScenarios(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"programs", "scenarios"} {
		src := filepath.Join("..", "..", "testdata", dir)
		entries, err := os.ReadDir(src)
		require.NoError(t, err)
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			data, err := os.ReadFile(filepath.Join(src, e.Name()))
			require.NoError(t, err)
			writeFile(t, filepath.Join(root, dir), e.Name(), string(data))
		}
	}
	return filepath.Join(root, "scenarios")
}
