package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "bsync", cmd.Use)
	assert.Contains(t, cmd.Long, "behavioral programs")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "run", "trigger", "replay", "test", "trace"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)
}

func TestCommandFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   map[string]string // name -> default
	}{
		{"compile", map[string]string{"output": ""}},
		{"validate", map[string]string{"strict": "false"}},
		{"run", map[string]string{"db": "", "run-id": ""}},
		{"trigger", map[string]string{"program": "", "strategy": "priority", "seed": "0", "max-steps": "0", "db": "", "run-id": ""}},
		{"replay", map[string]string{"db": "", "run": ""}},
		{"test", map[string]string{"update": "false", "filter": ""}},
		{"trace", map[string]string{"db": "", "run": "", "event": "", "thread": "", "bids": "false"}},
	}

	root := NewRootCommand()
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			sub, _, err := root.Find([]string{tt.command})
			require.NoError(t, err)
			for name, def := range tt.flags {
				flag := sub.Flags().Lookup(name)
				require.NotNil(t, flag, "flag --%s", name)
				assert.Equal(t, def, flag.DefValue, "flag --%s", name)
			}
		})
	}
}

func TestCompileOutputShorthand(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	outputFlag := compileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	stderr := &bytes.Buffer{}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(stderr)
	cmd.SetArgs([]string{"--format", "invalid", "compile", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stderr.String(), `Error [E001]: invalid format "invalid"`)
}

func TestRootOptionsLogger(t *testing.T) {
	buf := &bytes.Buffer{}

	(&RootOptions{}).logger(buf).Debug("hidden")
	assert.Empty(t, buf.String())

	(&RootOptions{Verbose: true}).logger(buf).Debug("shown", "thread", "addHot")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "thread=addHot")
}
