package cli

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plaited/behavioral/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Event    string // optional - filter to a specific event name
	Thread   string // optional - filter to selections by one thread
	Bids     bool   // show the candidate pool of each selection
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Run         store.Run          `json:"run"`
	Triggers    []store.Trigger    `json:"triggers"`
	Timeline    []store.Selection  `json:"timeline"`
	Diagnostics []store.Diagnostic `json:"diagnostics"`
	Stats       TraceStats         `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	Triggers    int            `json:"triggers"`
	Selections  int            `json:"selections"`
	Diagnostics int            `json:"diagnostics"`
	ByThread    map[string]int `json:"by_thread"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show the recorded trace of a run",
		Long: `Show what a recorded run did.

The output includes:
- Run: program, program hash, strategy, seed and outcome
- Timeline: every selected event with the thread that selected it
- Triggers: host events injected through the public trigger
- Diagnostics: effect failures, rejected triggers and other feedback
- Stats: selections per thread

--event and --thread narrow the timeline; stats always cover the whole run.
With --bids each selection also lists the candidate pool it won, with the
threads blocking or interrupted by each candidate.

Examples:
  bsync trace --db ./runs.db
  bsync trace --db ./runs.db --run 0191f3c4-... --bids
  bsync trace --db ./runs.db --run 0191f3c4-... --event X --format json
  bsync trace --db ./runs.db --thread enforceTurns`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to trace (default: latest run)")
	cmd.Flags().StringVar(&opts.Event, "event", "", "only show selections of this event")
	cmd.Flags().StringVar(&opts.Thread, "thread", "", "only show selections made by this thread")
	cmd.Flags().BoolVar(&opts.Bids, "bids", false, "show the candidate bids of each selection")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	st, err := openExistingStore(opts.Database)
	if err != nil {
		_ = formatter.Error(ErrCodeDatabase, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	var run store.Run
	if opts.RunID != "" {
		run, err = st.ReadRun(ctx, opts.RunID)
	} else {
		run, err = st.LatestRun(ctx)
	}
	if err != nil {
		_ = formatter.Error(ErrCodeRunNotFound, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	triggers, err := st.ReadTriggers(ctx, run.ID)
	if err != nil {
		return fail(formatter, ErrCodeDatabase, WrapExitError(ExitCommandError, "failed to read triggers", err))
	}
	selections, err := st.ReadSelections(ctx, run.ID)
	if err != nil {
		return fail(formatter, ErrCodeDatabase, WrapExitError(ExitCommandError, "failed to read selections", err))
	}
	timeline, err := st.QuerySelections(ctx, store.SelectionQuery{RunID: run.ID, Filter: timelineFilter(opts.Event, opts.Thread)})
	if err != nil {
		return fail(formatter, ErrCodeDatabase, WrapExitError(ExitCommandError, "failed to query selections", err))
	}
	diagnostics, err := st.ReadDiagnostics(ctx, run.ID)
	if err != nil {
		return fail(formatter, ErrCodeDatabase, WrapExitError(ExitCommandError, "failed to read diagnostics", err))
	}

	result := TraceResult{
		Run:         run,
		Triggers:    triggers,
		Timeline:    buildTimeline(timeline, opts.Bids),
		Diagnostics: diagnostics,
		Stats: TraceStats{
			Triggers:    len(triggers),
			Selections:  len(selections),
			Diagnostics: len(diagnostics),
			ByThread:    map[string]int{},
		},
	}
	for _, sel := range selections {
		result.Stats.ByThread[sel.Thread]++
	}

	if formatter.Format == "json" {
		return formatter.Respond(CLIResponse{Status: "ok", Data: result, RunID: run.ID})
	}
	return outputTraceText(formatter.Writer, result, opts.Bids)
}

// timelineFilter builds the selection filter for the event and thread
// flags. Nil selects everything.
func timelineFilter(event, thread string) store.Predicate {
	var preds []store.Predicate
	if event != "" {
		preds = append(preds, store.EventIs(event))
	}
	if thread != "" {
		preds = append(preds, store.ThreadIs(thread))
	}
	if len(preds) == 0 {
		return nil
	}
	return store.And{Predicates: preds}
}

// buildTimeline drops bids unless they were asked for.
func buildTimeline(selections []store.Selection, bids bool) []store.Selection {
	timeline := make([]store.Selection, 0, len(selections))
	for _, sel := range selections {
		if !bids {
			sel.Bids = nil
		}
		timeline = append(timeline, sel)
	}
	return timeline
}

// openExistingStore opens a trace store for reading. Unlike store.Open it
// refuses to create a missing database.
func openExistingStore(path string) (*store.Store, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found: %s", path)
		}
		return nil, err
	}
	return store.Open(path)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult, bids bool) error {
	run := result.Run
	fmt.Fprintf(w, "Trace for Run: %s\n", run.ID)
	fmt.Fprintf(w, "Program: %s (%s)\n", run.Program, truncateID(run.ProgramHash))
	fmt.Fprintf(w, "Strategy: %s (seed %d)\n", run.Strategy, run.Seed)
	fmt.Fprintf(w, "Status: %s\n", run.Status)
	if run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", run.Error)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no selections)")
	}
	for _, sel := range result.Timeline {
		fmt.Fprintf(w, "  [%d] %s%s (%s)\n", sel.Seq, sel.Event, formatPayload(sel.Payload), sel.Thread)
		if bids {
			for _, b := range sel.Bids {
				formatBid(w, b)
			}
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Triggers ===")
	if len(result.Triggers) == 0 {
		fmt.Fprintln(w, "  (no host triggers)")
	}
	for _, t := range result.Triggers {
		fmt.Fprintf(w, "  [%d] %s%s\n", t.Seq, t.Event, formatPayload(t.Payload))
	}
	fmt.Fprintln(w)

	if len(result.Diagnostics) > 0 {
		fmt.Fprintln(w, "=== Diagnostics ===")
		for _, d := range result.Diagnostics {
			subject := d.Event
			if d.Thread != "" {
				subject = d.Thread
			}
			fmt.Fprintf(w, "  [@%d] %s %s: %s\n", d.AtSeq, d.Kind, subject, d.Message)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Triggers:    %d\n", result.Stats.Triggers)
	fmt.Fprintf(w, "  Selections:  %d\n", result.Stats.Selections)
	fmt.Fprintf(w, "  Diagnostics: %d\n", result.Stats.Diagnostics)
	for _, thread := range slices.Sorted(maps.Keys(result.Stats.ByThread)) {
		fmt.Fprintf(w, "  %s: %d\n", thread, result.Stats.ByThread[thread])
	}

	return nil
}

// formatBid formats one candidate of a selection.
func formatBid(w io.Writer, b store.Bid) {
	mark := " "
	if b.Selected {
		mark = "*"
	}
	fmt.Fprintf(w, "       %s %s%s from %s (priority %d, rank %d)", mark, b.Event, formatPayload(b.Payload), b.Thread, b.Priority, b.Rank)
	if len(b.BlockedBy) > 0 {
		fmt.Fprintf(w, " blocked by [%s]", strings.Join(b.BlockedBy, ", "))
	}
	if len(b.Interrupts) > 0 {
		fmt.Fprintf(w, " interrupts [%s]", strings.Join(b.Interrupts, ", "))
	}
	fmt.Fprintln(w)
}

// truncateID shortens an ID for display.
func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12] + "..."
	}
	return id
}
