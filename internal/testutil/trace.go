package testutil

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/plaited/behavioral/internal/engine"
)

// TraceRecorder collects selections from an engine's snapshot listener.
//
// Unlike a one-off closure, a TraceRecorder can be reset for test reuse,
// so the same engine can run several scenarios with separate traces.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type TraceRecorder struct {
	mu    sync.Mutex
	names []string
	seqs  []int64
}

// NewTraceRecorder creates an empty recorder.
func NewTraceRecorder() *TraceRecorder {
	return &TraceRecorder{}
}

// Attach installs a new recorder as the engine's snapshot listener.
func Attach(t testing.TB, e *engine.Engine) *TraceRecorder {
	t.Helper()
	r := NewTraceRecorder()
	require.NoError(t, e.UseSnapshot(r.Listener()))
	return r
}

// Listener returns the snapshot listener feeding the recorder.
func (r *TraceRecorder) Listener() engine.SnapshotListener {
	return func(m engine.Message) {
		s, ok := m.(engine.SelectionSnapshot)
		if !ok {
			return
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.names = append(r.names, s.Event.Name)
		r.seqs = append(r.seqs, s.Seq)
	}
}

// Names returns a copy of the selected event names in order.
func (r *TraceRecorder) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.names...)
}

// LastSeq returns the seq of the latest selection, or 0.
func (r *TraceRecorder) LastSeq() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.seqs) == 0 {
		return 0
	}
	return r.seqs[len(r.seqs)-1]
}

// Reset forgets everything recorded so far.
func (r *TraceRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.names = nil
	r.seqs = nil
}
