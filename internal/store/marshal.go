package store

import (
	"encoding/json"
	"fmt"

	"github.com/plaited/behavioral/internal/engine"
	"github.com/plaited/behavioral/internal/ir"
)

// marshalPayload converts an event payload to canonical JSON TEXT for
// storage. A nil payload is stored as the empty string.
func marshalPayload(payload any) (string, error) {
	v, err := payloadValue(payload)
	if err != nil || v == nil {
		return "", err
	}
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses canonical JSON TEXT back into an IRValue.
// Integers are decoded via json.Number, so values above 2^53 survive.
func unmarshalPayload(data string) (ir.IRValue, error) {
	if data == "" {
		return nil, nil
	}
	v, err := ir.UnmarshalIRValue([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return v, nil
}

// marshalNames stores a thread list as a JSON array. It is never null so
// the column can be compared byte-for-byte across runs.
func marshalNames(names []string) (string, error) {
	if names == nil {
		names = []string{}
	}
	data, err := json.Marshal(names)
	if err != nil {
		return "", fmt.Errorf("marshal names: %w", err)
	}
	return string(data), nil
}

func unmarshalNames(data string) ([]string, error) {
	var names []string
	if err := json.Unmarshal([]byte(data), &names); err != nil {
		return nil, fmt.Errorf("unmarshal names: %w", err)
	}
	if len(names) == 0 {
		return nil, nil
	}
	return names, nil
}

// SelectionFromSnapshot converts a live snapshot into the stored form, so
// a replay can be compared against its recording without a database.
func SelectionFromSnapshot(snap engine.SelectionSnapshot) (Selection, error) {
	payload, err := payloadValue(snap.Event.Payload)
	if err != nil {
		return Selection{}, err
	}
	sel := Selection{Seq: snap.Seq, Event: snap.Event.Name, Payload: payload}
	if bid, ok := snap.SelectedBid(); ok {
		sel.Thread = bid.Thread
		sel.Priority = bid.Priority
	}
	for _, b := range snap.Bids {
		p, err := payloadValue(b.Event.Payload)
		if err != nil {
			return Selection{}, err
		}
		sel.Bids = append(sel.Bids, Bid{
			Thread:     b.Thread,
			Event:      b.Event.Name,
			Payload:    p,
			Priority:   b.Priority,
			Rank:       b.Rank,
			Trigger:    b.Trigger,
			Selected:   b.Selected,
			BlockedBy:  nonEmpty(b.BlockedBy),
			Interrupts: nonEmpty(b.Interrupts),
		})
	}
	return sel, nil
}

func payloadValue(payload any) (ir.IRValue, error) {
	if payload == nil {
		return nil, nil
	}
	v, err := ir.FromAny(payload)
	if err != nil {
		return nil, fmt.Errorf("convert payload: %w", err)
	}
	return v, nil
}

func nonEmpty(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	return names
}
