package harness

import (
	"github.com/plaited/behavioral/internal/engine"
	"github.com/plaited/behavioral/internal/ir"
)

// TraceEvent is one selected event of a scenario run.
type TraceEvent struct {
	Seq     int64      `json:"seq"`
	Event   string     `json:"event"`
	Payload ir.IRValue `json:"payload,omitempty"`
	Thread  string     `json:"thread"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every assertion holds.
	Pass bool `json:"pass"`

	// Trace contains every selection in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Threads is the registry after the last trigger, in priority order.
	Threads []engine.ThreadStatus `json:"threads"`

	// Err is the error that stopped the run, if any.
	Err string `json:"error,omitempty"`

	Program     string `json:"program"`
	ProgramHash string `json:"program_hash"`
	Strategy    string `json:"strategy"`
	Seed        uint64 `json:"seed"`

	// RunID is set when the run was recorded to a store.
	RunID string `json:"run_id,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:    true,
		Trace:   []TraceEvent{},
		Errors:  []string{},
		Threads: []engine.ThreadStatus{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a selection to the trace.
func (r *Result) AddTrace(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}

// Names returns the selected event names in order.
func (r *Result) Names() []string {
	names := make([]string, len(r.Trace))
	for i, ev := range r.Trace {
		names[i] = ev.Event
	}
	return names
}

// ThreadStatus reports the final status of a thread. Threads that finished
// or were interrupted report both flags false.
func (r *Result) ThreadStatus(name string) engine.Status {
	for _, t := range r.Threads {
		if t.Name == name {
			return t.Status
		}
	}
	return engine.Status{}
}
