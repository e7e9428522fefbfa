package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned when a run id does not exist.
var ErrRunNotFound = errors.New("run not found")

const runColumns = `id, program, program_hash, source, scenario, strategy, seed,
	engine_version, ir_version, status, error, trace_hash`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var seed int64
	if err := row.Scan(
		&run.ID, &run.Program, &run.ProgramHash, &run.Source, &run.Scenario,
		&run.Strategy, &seed, &run.EngineVersion, &run.IRVersion,
		&run.Status, &run.Error, &run.TraceHash,
	); err != nil {
		return Run{}, err
	}
	run.Seed = uint64(seed)
	return run, nil
}

// ReadRun retrieves a single run by id.
// Returns ErrRunNotFound if it does not exist.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %s: %w", id, err)
	}
	return run, nil
}

// LatestRun returns the most recently created run. Runs are ordered by
// insertion so caller-chosen ids sort correctly next to generated ones.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY rowid DESC LIMIT 1`)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("latest run: %w", ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("latest run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, oldest first.
// Returns an empty slice (not nil) if the store has no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY rowid ASC`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadTriggers returns the host triggers of a run in injection order.
func (s *Store) ReadTriggers(ctx context.Context, runID string) ([]Trigger, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, event, payload
		FROM triggers
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query triggers: %w", err)
	}
	defer rows.Close()

	triggers := []Trigger{}
	for rows.Next() {
		var t Trigger
		var payload string
		if err := rows.Scan(&t.Seq, &t.Event, &payload); err != nil {
			return nil, fmt.Errorf("scan trigger: %w", err)
		}
		if t.Payload, err = unmarshalPayload(payload); err != nil {
			return nil, err
		}
		triggers = append(triggers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate triggers: %w", err)
	}
	return triggers, nil
}

// ReadSelections returns every selection of a run in seq order, with bids
// in pool order.
func (s *Store) ReadSelections(ctx context.Context, runID string) ([]Selection, error) {
	return s.QuerySelections(ctx, SelectionQuery{RunID: runID})
}

type seqBid struct {
	seq int64
	Bid
}

func (s *Store) readBids(ctx context.Context, runID string) ([]seqBid, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT selection_seq, thread, event, payload, priority, rank, is_trigger, selected, blocked_by, interrupts
		FROM bids
		WHERE run_id = ?
		ORDER BY selection_seq ASC, idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query bids: %w", err)
	}
	defer rows.Close()

	var bids []seqBid
	for rows.Next() {
		var b seqBid
		var payload, blockedBy, interrupts string
		if err := rows.Scan(
			&b.seq, &b.Thread, &b.Event, &payload, &b.Priority, &b.Rank,
			&b.Trigger, &b.Selected, &blockedBy, &interrupts,
		); err != nil {
			return nil, fmt.Errorf("scan bid: %w", err)
		}
		if b.Payload, err = unmarshalPayload(payload); err != nil {
			return nil, err
		}
		if b.BlockedBy, err = unmarshalNames(blockedBy); err != nil {
			return nil, err
		}
		if b.Interrupts, err = unmarshalNames(interrupts); err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bids: %w", err)
	}
	return bids, nil
}

// ReadDiagnostics returns the diagnostics of a run in emission order.
func (s *Store) ReadDiagnostics(ctx context.Context, runID string) ([]Diagnostic, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, at_seq, kind, event, thread, message
		FROM diagnostics
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query diagnostics: %w", err)
	}
	defer rows.Close()

	diags := []Diagnostic{}
	for rows.Next() {
		var d Diagnostic
		if err := rows.Scan(&d.Seq, &d.AtSeq, &d.Kind, &d.Event, &d.Thread, &d.Message); err != nil {
			return nil, fmt.Errorf("scan diagnostic: %w", err)
		}
		diags = append(diags, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate diagnostics: %w", err)
	}
	return diags, nil
}

// readTrace returns the selected event names of a run.
func (s *Store) readTrace(ctx context.Context, runID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT event FROM selections WHERE run_id = ? ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query trace: %w", err)
	}
	defer rows.Close()

	trace := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan trace: %w", err)
		}
		trace = append(trace, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trace: %w", err)
	}
	return trace, nil
}
