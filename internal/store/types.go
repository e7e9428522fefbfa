package store

import "github.com/plaited/behavioral/internal/ir"

// Run statuses.
const (
	StatusRunning = "running"
	StatusOK      = "ok"
	StatusError   = "error"
)

// Run is one recorded execution of a program.
type Run struct {
	ID            string `json:"id"`
	Program       string `json:"program"`
	ProgramHash   string `json:"program_hash"`
	Source        string `json:"source,omitempty"`
	Scenario      string `json:"scenario,omitempty"`
	Strategy      string `json:"strategy"`
	Seed          uint64 `json:"seed"`
	EngineVersion string `json:"engine_version"`
	IRVersion     string `json:"ir_version"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	TraceHash     string `json:"trace_hash,omitempty"`
}

// Trigger is an event injected by the host.
type Trigger struct {
	Seq     int64      `json:"seq"`
	Event   string     `json:"event"`
	Payload ir.IRValue `json:"payload,omitempty"`
}

// Selection is a selected event together with the candidate pool it won.
type Selection struct {
	Seq      int64      `json:"seq"`
	Event    string     `json:"event"`
	Payload  ir.IRValue `json:"payload,omitempty"`
	Thread   string     `json:"thread"`
	Priority int        `json:"priority"`
	Bids     []Bid      `json:"bids,omitempty"`
}

// Bid is one stored candidate of a selection.
type Bid struct {
	Thread     string     `json:"thread"`
	Event      string     `json:"event"`
	Payload    ir.IRValue `json:"payload,omitempty"`
	Priority   int        `json:"priority"`
	Rank       int        `json:"rank"`
	Trigger    bool       `json:"trigger,omitempty"`
	Selected   bool       `json:"selected,omitempty"`
	BlockedBy  []string   `json:"blocked_by,omitempty"`
	Interrupts []string   `json:"interrupts,omitempty"`
}

// Diagnostic is a non-selection message published during a run.
type Diagnostic struct {
	Seq     int64  `json:"seq"`
	AtSeq   int64  `json:"at_seq"`
	Kind    string `json:"kind"`
	Event   string `json:"event,omitempty"`
	Thread  string `json:"thread,omitempty"`
	Message string `json:"message"`
}

// Trace returns the selected event names in order.
func Trace(selections []Selection) []string {
	names := make([]string, len(selections))
	for i, s := range selections {
		names[i] = s.Event
	}
	return names
}
