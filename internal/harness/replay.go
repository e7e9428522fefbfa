package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/plaited/behavioral/internal/compiler"
	"github.com/plaited/behavioral/internal/engine"
	"github.com/plaited/behavioral/internal/store"
)

// ReplayResult reports whether re-executing a recorded run reproduced its
// selections.
type ReplayResult struct {
	RunID         string            `json:"run_id"`
	Program       string            `json:"program"`
	Strategy      string            `json:"strategy"`
	Seed          uint64            `json:"seed"`
	Triggers      int               `json:"triggers"`
	Recorded      int               `json:"recorded"`
	Replayed      int               `json:"replayed"`
	Deterministic bool              `json:"deterministic"`
	Reason        string            `json:"reason,omitempty"`
	Divergence    *store.Divergence `json:"divergence,omitempty"`
}

// Replay re-executes a recorded run and compares its selections with the
// recording.
//
// The program is reloaded from the run's source and must hash to the
// recorded program hash. Effects come from the run's scenario file, when
// it has one. Host triggers are re-injected in order through the public
// trigger with the recorded strategy and seed. Nothing is written to st.
func Replay(ctx context.Context, st *store.Store, runID string, opts ...Option) (*ReplayResult, error) {
	cfg := config{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
	for _, opt := range opts {
		opt(&cfg)
	}

	rec, err := st.ReadRecording(ctx, runID)
	if err != nil {
		return nil, err
	}
	run := rec.Run

	source, programName := run.Source, run.Program
	var effects compiler.Effects
	maxSteps := 0
	if run.Scenario != "" {
		scenario, err := LoadScenario(run.Scenario)
		if err != nil {
			return nil, fmt.Errorf("replay %s: %w", run.ID, err)
		}
		source = scenario.Program
		maxSteps = scenario.MaxSteps
		if effects, err = buildEffects(scenario.Effects); err != nil {
			return nil, fmt.Errorf("replay %s: %w", run.ID, err)
		}
	}
	if source == "" {
		return nil, fmt.Errorf("replay %s: run has no program source", run.ID)
	}

	out := &ReplayResult{
		RunID:    run.ID,
		Program:  run.Program,
		Strategy: run.Strategy,
		Seed:     run.Seed,
		Triggers: len(rec.Triggers),
		Recorded: len(rec.Selections),
	}

	spec, hash, err := loadProgram(source, programName)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", run.ID, err)
	}
	if hash != run.ProgramHash {
		out.Reason = fmt.Sprintf("program hash changed: recorded %s, loaded %s", run.ProgramHash, hash)
		return out, nil
	}

	strategy, err := engine.ParseStrategy(run.Strategy, run.Seed)
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", run.ID, err)
	}

	result := NewResult()
	sess := session{
		spec:     spec,
		strategy: strategy,
		maxSteps: maxSteps,
		effects:  effects,
		logger:   cfg.logger,
	}
	runErr, err := sess.run(ctx, result, func(trigger engine.TriggerFunc) error {
		for i, t := range rec.Triggers {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := trigger(engine.Event{Name: t.Event, Payload: t.Payload}); err != nil {
				return fmt.Errorf("triggers[%d] %s: %w", i, t.Event, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("replay %s: %w", run.ID, err)
	}

	replayed := make([]store.Selection, len(result.Trace))
	for i, ev := range result.Trace {
		replayed[i] = store.Selection{Seq: ev.Seq, Event: ev.Event, Payload: ev.Payload, Thread: ev.Thread}
	}
	out.Replayed = len(replayed)

	if d := store.CompareSelections(rec.Selections, replayed); d != nil {
		out.Divergence = d
		out.Reason = d.Error()
		return out, nil
	}

	recordedFailed := run.Status == store.StatusError
	if recordedFailed != (runErr != nil) {
		out.Reason = fmt.Sprintf("run outcome differs: recorded %s, replay error %v", run.Status, runErr)
		return out, nil
	}

	out.Deterministic = true
	cfg.logger.Debug("replay verified", "run", run.ID, "selections", len(replayed))
	return out, nil
}
