package store

import (
	"context"
	"fmt"

	"github.com/plaited/behavioral/internal/ir"
)

// Recording is everything needed to re-execute a run and verify it.
type Recording struct {
	Run        Run
	Triggers   []Trigger
	Selections []Selection
}

// ReadRecording loads a run with its triggers and selections.
func (s *Store) ReadRecording(ctx context.Context, runID string) (Recording, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return Recording{}, err
	}
	triggers, err := s.ReadTriggers(ctx, runID)
	if err != nil {
		return Recording{}, fmt.Errorf("read recording: %w", err)
	}
	selections, err := s.ReadSelections(ctx, runID)
	if err != nil {
		return Recording{}, fmt.Errorf("read recording: %w", err)
	}
	return Recording{Run: run, Triggers: triggers, Selections: selections}, nil
}

// Divergence is the first selection where a replay differs from its
// recording.
type Divergence struct {
	Index  int
	Want   string
	Got    string
	Reason string
}

func (d *Divergence) Error() string {
	return fmt.Sprintf("replay diverged at selection %d: want %q, got %q: %s", d.Index, d.Want, d.Got, d.Reason)
}

// CompareSelections checks a replay against its recording. Selections
// must agree on seq, event name, payload and selecting thread. Bids are
// not compared: they are diagnostic only.
func CompareSelections(recorded, replayed []Selection) *Divergence {
	for i := 0; i < len(recorded) && i < len(replayed); i++ {
		want, got := recorded[i], replayed[i]
		reason := ""
		switch {
		case want.Event != got.Event:
			reason = "event differs"
		case want.Seq != got.Seq:
			reason = fmt.Sprintf("seq %d != %d", want.Seq, got.Seq)
		case want.Thread != got.Thread:
			reason = fmt.Sprintf("selected by %q, not %q", want.Thread, got.Thread)
		case !ir.Equal(want.Payload, got.Payload):
			reason = "payload differs"
		}
		if reason != "" {
			return &Divergence{Index: i, Want: want.Event, Got: got.Event, Reason: reason}
		}
	}

	switch {
	case len(recorded) > len(replayed):
		return &Divergence{Index: len(replayed), Want: recorded[len(replayed)].Event, Reason: "replay ended early"}
	case len(replayed) > len(recorded):
		return &Divergence{Index: len(recorded), Got: replayed[len(recorded)].Event, Reason: "replay selected extra events"}
	}
	return nil
}

// GetLastSeq returns the highest selection seq of a run, or 0 when the run
// selected nothing.
func (s *Store) GetLastSeq(ctx context.Context, runID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(seq), 0) FROM selections WHERE run_id = ?
	`, runID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("get last seq: %w", err)
	}
	return seq, nil
}
