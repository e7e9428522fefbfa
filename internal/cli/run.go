package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/plaited/behavioral/internal/harness"
	"github.com/plaited/behavioral/internal/ir"
	"github.com/plaited/behavioral/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	RunID    string

	// RunIDs overrides the run id generator (for testing). If nil, the
	// store assigns UUIDv7 ids.
	RunIDs func() string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario.yaml>",
		Short: "Run a scenario against its program",
		Long: `Run one scenario: compile its program, inject its triggers and
check its assertions.

With --db the run is recorded to a SQLite trace store (created if it
doesn't exist) so it can later be replayed or traced.

Exit codes:
  0 - Scenario passed
  1 - Scenario failed
  2 - Command error (scenario or database could not be opened)

Examples:
  bsync run ./scenarios/tictactoe_x_wins.yaml
  bsync run ./scenarios/hotcold.yaml --db ./runs.db
  bsync run ./scenarios/hotcold.yaml --db ./runs.db --run-id demo --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarioCommand(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run to this SQLite database")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "run id to record under (default: generated)")

	return cmd
}

func runScenarioCommand(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	scenario, err := harness.LoadScenario(path)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}
	if opts.RunID != "" {
		scenario.RunID = opts.RunID
	}

	runOpts := []harness.Option{harness.WithLogger(logger)}
	if opts.Database != "" {
		logger.Debug("opening database", "path", opts.Database)
		st, err := store.Open(opts.Database)
		if err != nil {
			_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
			return WrapExitError(ExitCommandError, "failed to open database", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing database", "error", closeErr)
			}
		}()
		runOpts = append(runOpts, harness.WithStore(st))
		if opts.RunIDs != nil {
			runOpts = append(runOpts, harness.WithRunIDs(opts.RunIDs))
		}
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	formatter.VerboseLog("Running scenario %s (%s)", scenario.Name, path)
	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		_ = formatter.Error(ErrCodeScenario, err.Error(), nil)
		return WrapExitError(ExitCommandError, fmt.Sprintf("scenario %s could not run", scenario.Name), err)
	}

	if formatter.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result, RunID: result.RunID}
		if !result.Pass {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    ErrCodeTestFailed,
				Message: fmt.Sprintf("scenario %s failed", scenario.Name),
				Details: result.Errors,
			}
		}
		if err := formatter.Respond(resp); err != nil {
			return err
		}
	} else {
		outputRunText(formatter.Writer, scenario, result)
	}

	if !result.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %s failed", scenario.Name))
	}
	return nil
}

func outputRunText(w io.Writer, scenario *harness.Scenario, result *harness.Result) {
	mark := "✓"
	if !result.Pass {
		mark = "✗"
	}
	fmt.Fprintf(w, "%s %s (%s, %d selection(s))\n", mark, scenario.Name, result.Program, len(result.Trace))
	for _, ev := range result.Trace {
		fmt.Fprintf(w, "  [%d] %s%s (%s)\n", ev.Seq, ev.Event, formatPayload(ev.Payload), ev.Thread)
	}
	if result.Err != "" {
		fmt.Fprintf(w, "  stopped: %s\n", result.Err)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
	if result.RunID != "" {
		fmt.Fprintf(w, "Recorded run %s\n", result.RunID)
	}
}

// formatPayload renders a payload as " <canonical json>", or "" when unset.
func formatPayload(v ir.IRValue) string {
	if v == nil {
		return ""
	}
	data, err := ir.MarshalIRValue(v)
	if err != nil {
		return fmt.Sprintf(" <%v>", err)
	}
	return " " + string(data)
}

// signalContext cancels on SIGINT or SIGTERM. The command's context is
// used when set (for testing).
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
