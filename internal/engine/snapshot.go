package engine

// Kind identifies a snapshot message.
type Kind string

// Snapshot message kinds.
const (
	KindSelection         Kind = "selection"
	KindFeedbackError     Kind = "feedback_error"
	KindRestrictedTrigger Kind = "restricted_trigger_error"
	KindThreadsWarning    Kind = "bthreads_warning"
	KindSyncPointConflict Kind = "sync_point_conflict"
)

// Message is one observation published to the snapshot listener. The set
// of messages is closed; switch on the concrete type or on Kind.
type Message interface {
	Kind() Kind

	message()
}

// SnapshotListener receives every message an engine publishes. It runs
// synchronously on the goroutine that is draining the trigger queue.
type SnapshotListener func(Message)

// Bid is one entry of the candidate pool at the moment of a selection.
type Bid struct {
	Thread     string
	Event      Event
	Priority   int
	Rank       int
	Trigger    bool
	Selected   bool
	BlockedBy  []string
	Interrupts []string
}

// SelectionSnapshot is published once per selected event, after the
// threads it concerns have been woken or interrupted and before its effect
// runs. Bids are sorted by priority, then rank.
type SelectionSnapshot struct {
	Seq     int64
	Event   Event
	Bids    []Bid
	Threads []ThreadStatus
}

// FeedbackError reports an effect handler that returned an error.
type FeedbackError struct {
	Event Event
	Err   error
}

// RestrictedTriggerError reports an event rejected by PublicTrigger or
// RestrictedTrigger.
type RestrictedTriggerError struct {
	Event   Event
	Message string
}

// ThreadsWarning reports a thread registration that was ignored.
type ThreadsWarning struct {
	Thread  string
	Message string
}

// SyncPointConflict reports a sync point that requests events it blocks
// itself. The block wins.
type SyncPointConflict struct {
	Thread string
	Events []string
}

func (SelectionSnapshot) Kind() Kind      { return KindSelection }
func (FeedbackError) Kind() Kind          { return KindFeedbackError }
func (RestrictedTriggerError) Kind() Kind { return KindRestrictedTrigger }
func (ThreadsWarning) Kind() Kind         { return KindThreadsWarning }
func (SyncPointConflict) Kind() Kind      { return KindSyncPointConflict }

func (SelectionSnapshot) message()      {}
func (FeedbackError) message()          {}
func (RestrictedTriggerError) message() {}
func (ThreadsWarning) message()         {}
func (SyncPointConflict) message()      {}

// SelectedBid returns the bid that won the selection.
func (s SelectionSnapshot) SelectedBid() (Bid, bool) {
	for _, b := range s.Bids {
		if b.Selected {
			return b, true
		}
	}
	return Bid{}, false
}
