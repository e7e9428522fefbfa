package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plaited/behavioral/internal/harness"
	"github.com/plaited/behavioral/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string // optional - specific run only
}

// ReplaySummary holds the overall replay result.
type ReplaySummary struct {
	Runs             []*harness.ReplayResult `json:"runs"`
	TotalRuns        int                     `json:"total_runs"`
	AllDeterministic bool                    `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute recorded runs and verify determinism",
		Long: `Re-execute recorded runs and verify they select the same events.

Each run's program is reloaded from its recorded source and must still
hash to the recorded program hash. The recorded host triggers are then
injected into a fresh instance with the recorded strategy and seed, and
every selection (seq, event, payload, selecting thread) must match.

Exit codes:
  0 - All runs are deterministic
  1 - Determinism verification failed (differences detected)
  2 - Command error (database not found, unknown run, etc.)

Examples:
  bsync replay --db ./runs.db
  bsync replay --db ./runs.db --run 0191f3c4-...
  bsync replay --db ./runs.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "replay a specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	logger := opts.logger(cmd.ErrOrStderr())

	st, err := openExistingStore(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	var runIDs []string
	if opts.RunID != "" {
		runIDs = []string{opts.RunID}
	} else {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return fail(formatter, ErrCodeDatabase, WrapExitError(ExitCommandError, "failed to list runs", err))
		}
		for _, r := range runs {
			runIDs = append(runIDs, r.ID)
		}
	}

	summary := ReplaySummary{
		Runs:             make([]*harness.ReplayResult, 0, len(runIDs)),
		TotalRuns:        len(runIDs),
		AllDeterministic: true,
	}

	for _, id := range runIDs {
		formatter.VerboseLog("Replaying run %s", id)
		res, err := harness.Replay(ctx, st, id, harness.WithLogger(logger))
		if err != nil {
			code := ErrCodeGeneric
			if errors.Is(err, store.ErrRunNotFound) {
				code = ErrCodeRunNotFound
			}
			_ = formatter.Error(code, err.Error(), nil)
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", id), err)
		}
		summary.Runs = append(summary.Runs, res)
		if !res.Deterministic {
			summary.AllDeterministic = false
		}
	}

	if formatter.Format == "json" {
		return outputReplayJSON(formatter, summary)
	}
	return outputReplayText(formatter, summary)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(formatter *OutputFormatter, summary ReplaySummary) error {
	response := CLIResponse{Status: "ok", Data: summary}
	if !summary.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    ErrCodeDeterminism,
			Message: "determinism verification failed",
		}
	}

	if err := formatter.Respond(response); err != nil {
		return err
	}

	if !summary.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(formatter *OutputFormatter, summary ReplaySummary) error {
	w := formatter.Writer

	if summary.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", summary.TotalRuns)
	fmt.Fprintln(w)

	for _, run := range summary.Runs {
		status := "✓"
		if !run.Deterministic {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Run: %s (%s)\n", status, run.RunID, run.Program)
		fmt.Fprintf(w, "  Triggers: %d, selections: %d recorded, %d replayed\n", run.Triggers, run.Recorded, run.Replayed)
		if formatter.Verbose {
			fmt.Fprintf(w, "  Strategy: %s (seed %d)\n", run.Strategy, run.Seed)
		}
		if !run.Deterministic {
			fmt.Fprintf(w, "  %s\n", run.Reason)
		}
		fmt.Fprintln(w)
	}

	if summary.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
