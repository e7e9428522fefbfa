package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plaited/behavioral/internal/harness"
	"github.com/plaited/behavioral/internal/ir"
	"github.com/plaited/behavioral/internal/store"
)

// TriggerOptions holds flags for the trigger command.
type TriggerOptions struct {
	*RootOptions
	Program  string
	Strategy string
	Seed     uint64
	MaxSteps int
	Database string
	RunID    string
}

// NewTriggerCommand creates the trigger command.
func NewTriggerCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TriggerOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trigger <program.cue> <event>...",
		Short: "Trigger events into a fresh program instance",
		Long: `Start a program and inject host events through its public trigger,
without writing a scenario. Each event is a name, optionally followed by
a JSON object payload: name='{"key":1}'.

The run stops at the first rejected trigger or failed effect.

Examples:
  bsync trigger ./programs/hotcold.cue start
  bsync trigger ./programs/tictactoe.cue 'X={"square":4}' 'X={"square":0}'
  bsync trigger ./programs/tictactoe.cue X --strategy random --seed 7 --db ./runs.db`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrigger(opts, args[0], args[1:], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Program, "program", "", "program name (required when the file declares several)")
	cmd.Flags().StringVar(&opts.Strategy, "strategy", "priority", "selection strategy (priority|random|chaos)")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 0, "seed for the random and chaos strategies")
	cmd.Flags().IntVar(&opts.MaxSteps, "max-steps", 0, "selections allowed per super-step (default: engine default)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run to this SQLite database")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id to record under (default: generated)")

	return cmd
}

func runTrigger(opts *TriggerOptions, programPath string, events []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	steps := make([]harness.TriggerStep, len(events))
	for i, arg := range events {
		step, err := parseTriggerArg(arg)
		if err != nil {
			_ = formatter.Error(ErrCodeInvalidTrigger, err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("invalid trigger %q", arg), err)
		}
		steps[i] = step
	}

	// Recorded runs replay from the program source, so keep it absolute.
	if abs, err := filepath.Abs(programPath); err == nil {
		programPath = abs
	}

	scenario := &harness.Scenario{
		Name:        "trigger",
		Program:     programPath,
		ProgramName: opts.Program,
		Strategy:    opts.Strategy,
		Seed:        opts.Seed,
		MaxSteps:    opts.MaxSteps,
		Triggers:    steps,
		RunID:       opts.RunID,
	}

	runOpts := []harness.Option{harness.WithLogger(logger)}
	if opts.Database != "" {
		st, err := store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer st.Close()
		runOpts = append(runOpts, harness.WithStore(st))
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "program could not run", err)
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result, RunID: result.RunID}
		if result.Err != "" {
			resp.Status = "error"
			resp.Error = &CLIError{Code: ErrCodeScenario, Message: result.Err}
		}
		if err := formatter.Respond(resp); err != nil {
			return err
		}
	} else {
		outputRunText(formatter.Writer, scenario, result)
	}

	if result.Err != "" {
		return NewExitError(ExitFailure, result.Err)
	}
	return nil
}

// parseTriggerArg splits "name" or "name=<json object>" into a trigger.
func parseTriggerArg(arg string) (harness.TriggerStep, error) {
	name, payload, hasPayload := strings.Cut(arg, "=")
	if name == "" {
		return harness.TriggerStep{}, fmt.Errorf("event name is required")
	}
	step := harness.TriggerStep{Event: name}
	if !hasPayload {
		return step, nil
	}

	v, err := ir.UnmarshalIRValue([]byte(payload))
	if err != nil {
		return harness.TriggerStep{}, fmt.Errorf("payload for %s: %w", name, err)
	}
	obj, ok := ir.ToAny(v).(map[string]any)
	if !ok {
		return harness.TriggerStep{}, fmt.Errorf("payload for %s must be a JSON object", name)
	}
	step.Payload = obj
	return step, nil
}
