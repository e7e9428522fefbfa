package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/plaited/behavioral/internal/engine"
	"github.com/plaited/behavioral/internal/ir"
)

// RunMeta describes a run about to be recorded. ID is generated as a
// UUIDv7 when empty.
type RunMeta struct {
	ID          string
	Program     string
	ProgramHash string
	Source      string
	Scenario    string
	Strategy    string
	Seed        uint64
}

// NewRunID returns a time-ordered UUIDv7 run id.
func NewRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id.String(), nil
}

// CreateRun inserts a run in the running state.
func (s *Store) CreateRun(ctx context.Context, meta RunMeta) (Run, error) {
	if meta.ID == "" {
		id, err := NewRunID()
		if err != nil {
			return Run{}, fmt.Errorf("create run: %w", err)
		}
		meta.ID = id
	}

	run := Run{
		ID:            meta.ID,
		Program:       meta.Program,
		ProgramHash:   meta.ProgramHash,
		Source:        meta.Source,
		Scenario:      meta.Scenario,
		Strategy:      meta.Strategy,
		Seed:          meta.Seed,
		EngineVersion: ir.EngineVersion,
		IRVersion:     ir.IRVersion,
		Status:        StatusRunning,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, program, program_hash, source, scenario, strategy, seed, engine_version, ir_version, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Program,
		run.ProgramHash,
		run.Source,
		run.Scenario,
		run.Strategy,
		int64(run.Seed),
		run.EngineVersion,
		run.IRVersion,
		run.Status,
	)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// WriteTrigger inserts a host trigger.
func (s *Store) WriteTrigger(ctx context.Context, runID string, seq int64, ev engine.Event) error {
	payload, err := marshalPayload(ev.Payload)
	if err != nil {
		return fmt.Errorf("write trigger: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO triggers (run_id, seq, event, payload)
		VALUES (?, ?, ?, ?)
	`, runID, seq, ev.Name, payload)
	if err != nil {
		return fmt.Errorf("write trigger: %w", err)
	}
	return nil
}

// WriteSelection atomically writes a selection and its bids.
func (s *Store) WriteSelection(ctx context.Context, runID string, snap engine.SelectionSnapshot) error {
	payload, err := marshalPayload(snap.Event.Payload)
	if err != nil {
		return fmt.Errorf("write selection: %w", err)
	}

	var thread string
	var priority int
	if bid, ok := snap.SelectedBid(); ok {
		thread = bid.Thread
		priority = bid.Priority
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write selection: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO selections (run_id, seq, event, payload, thread, priority)
		VALUES (?, ?, ?, ?, ?, ?)
	`, runID, snap.Seq, snap.Event.Name, payload, thread, priority)
	if err != nil {
		return fmt.Errorf("write selection: %w", err)
	}

	for i, b := range snap.Bids {
		bidPayload, err := marshalPayload(b.Event.Payload)
		if err != nil {
			return fmt.Errorf("write selection: bid %d: %w", i, err)
		}
		blockedBy, err := marshalNames(b.BlockedBy)
		if err != nil {
			return fmt.Errorf("write selection: bid %d: %w", i, err)
		}
		interrupts, err := marshalNames(b.Interrupts)
		if err != nil {
			return fmt.Errorf("write selection: bid %d: %w", i, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO bids
			(run_id, selection_seq, idx, thread, event, payload, priority, rank, is_trigger, selected, blocked_by, interrupts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			runID, snap.Seq, i,
			b.Thread, b.Event.Name, bidPayload,
			b.Priority, b.Rank, b.Trigger, b.Selected,
			blockedBy, interrupts,
		)
		if err != nil {
			return fmt.Errorf("write selection: bid %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write selection: commit: %w", err)
	}
	return nil
}

// WriteDiagnostic inserts a diagnostic.
func (s *Store) WriteDiagnostic(ctx context.Context, runID string, d Diagnostic) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO diagnostics (run_id, seq, at_seq, kind, event, thread, message)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, runID, d.Seq, d.AtSeq, d.Kind, d.Event, d.Thread, d.Message)
	if err != nil {
		return fmt.Errorf("write diagnostic: %w", err)
	}
	return nil
}

// FinishRun stores the final status and trace hash of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error) error {
	trace, err := s.readTrace(ctx, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	hash, err := ir.TraceHash(trace)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	status, msg := StatusOK, ""
	if runErr != nil {
		status, msg = StatusError, runErr.Error()
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, trace_hash = ? WHERE id = ?
	`, status, msg, hash, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// Recorder writes one run as it executes. Install Listener as the
// engine's snapshot listener and route host triggers through Trigger.
//
// Snapshot listeners cannot return errors, so the first write error is
// kept and reported by Err and Finish. Recording stops after it.
type Recorder struct {
	store *Store
	ctx   context.Context
	run   Run

	mu         sync.Mutex
	lastSeq    int64
	triggerSeq int64
	diagSeq    int64
	err        error
}

// Record creates a run and returns its recorder.
func (s *Store) Record(ctx context.Context, meta RunMeta) (*Recorder, error) {
	run, err := s.CreateRun(ctx, meta)
	if err != nil {
		return nil, err
	}
	return &Recorder{store: s, ctx: ctx, run: run}, nil
}

// Run returns the run being recorded.
func (r *Recorder) Run() Run {
	return r.run
}

// Listener returns the snapshot listener that records messages.
func (r *Recorder) Listener() engine.SnapshotListener {
	return r.record
}

// Trigger records ev as a host trigger and passes it to next.
func (r *Recorder) Trigger(next engine.TriggerFunc) engine.TriggerFunc {
	return func(ev engine.Event) error {
		r.mu.Lock()
		if r.err == nil {
			r.triggerSeq++
			r.fail(r.store.WriteTrigger(r.ctx, r.run.ID, r.triggerSeq, ev))
		}
		r.mu.Unlock()
		return next(ev)
	}
}

// Err returns the first write error.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Finish marks the run ok, or error when runErr is set, and returns any
// write error seen while recording.
func (r *Recorder) Finish(runErr error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.err != nil && runErr == nil {
		runErr = r.err
	}
	if err := r.store.FinishRun(r.ctx, r.run.ID, runErr); err != nil {
		return errors.Join(r.err, err)
	}
	return r.err
}

func (r *Recorder) record(msg engine.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return
	}

	switch m := msg.(type) {
	case engine.SelectionSnapshot:
		r.lastSeq = m.Seq
		r.fail(r.store.WriteSelection(r.ctx, r.run.ID, m))
	case engine.FeedbackError:
		r.diagnostic(m, m.Event.Name, "", m.Err.Error())
	case engine.RestrictedTriggerError:
		r.diagnostic(m, m.Event.Name, "", m.Message)
	case engine.ThreadsWarning:
		r.diagnostic(m, "", m.Thread, m.Message)
	case engine.SyncPointConflict:
		names, err := marshalNames(m.Events)
		if err != nil {
			r.fail(err)
			return
		}
		r.diagnostic(m, "", m.Thread, "requests blocked events "+names)
	}
}

func (r *Recorder) diagnostic(msg engine.Message, event, thread, text string) {
	r.diagSeq++
	r.fail(r.store.WriteDiagnostic(r.ctx, r.run.ID, Diagnostic{
		Seq:     r.diagSeq,
		AtSeq:   r.lastSeq,
		Kind:    string(msg.Kind()),
		Event:   event,
		Thread:  thread,
		Message: text,
	}))
}

func (r *Recorder) fail(err error) {
	if err != nil && r.err == nil {
		r.err = err
	}
}
