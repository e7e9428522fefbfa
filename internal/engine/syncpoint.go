package engine

// SyncPoint is the declaration a behavioral thread makes each time it
// pauses.
//
//   - Request: events the thread proposes, most preferred first.
//   - RequestFunc: an event template evaluated every time candidates are
//     computed. It ranks after every entry in Request.
//   - WaitFor: events the thread wants to be woken by without proposing them.
//   - Block: events that may not be selected while the thread holds this point.
//   - Interrupt: events that terminate the thread instead of resuming it.
//
// A thread is always woken by its own requested events; WaitFor does not
// need to repeat them.
type SyncPoint struct {
	Request     []Event
	RequestFunc func() Event
	WaitFor     Listeners
	Block       Listeners
	Interrupt   Listeners
}

// Request builds a sync point that requests the given events in rank order.
func Request(events ...Event) SyncPoint {
	return SyncPoint{Request: events}
}

// WaitFor builds a sync point that waits for any of the named events.
func WaitFor(names ...string) SyncPoint {
	return SyncPoint{WaitFor: Names(names...)}
}

// IsEmpty reports whether the point declares nothing at all. A thread that
// produces an empty point is treated as completed.
func (p SyncPoint) IsEmpty() bool {
	return len(p.Request) == 0 &&
		p.RequestFunc == nil &&
		len(p.WaitFor) == 0 &&
		len(p.Block) == 0 &&
		len(p.Interrupt) == 0
}

// Requests returns the ranked request list, evaluating RequestFunc if set.
// Entries with an empty name are skipped.
func (p SyncPoint) Requests() []Event {
	out := make([]Event, 0, len(p.Request)+1)
	for _, ev := range p.Request {
		if ev.Name != "" {
			out = append(out, ev)
		}
	}
	if p.RequestFunc != nil {
		if ev := p.RequestFunc(); ev.Name != "" {
			out = append(out, ev)
		}
	}
	return out
}

// Conflicts returns the requested names that the same point also blocks.
// The block always wins: such an event can never be selected while the
// thread holds this point.
func (p SyncPoint) Conflicts() []string {
	if len(p.Block) == 0 {
		return nil
	}
	var names []string
	seen := make(map[string]bool)
	for _, ev := range p.Requests() {
		if seen[ev.Name] {
			continue
		}
		seen[ev.Name] = true
		if p.Block.Matches(ev) {
			names = append(names, ev.Name)
		}
	}
	return names
}

// wakes reports whether ev resumes a thread parked at this point, given
// the requests evaluated for the current iteration.
func (p SyncPoint) wakes(ev Event, requests []Event) bool {
	for _, r := range requests {
		if r.Name == ev.Name {
			return true
		}
	}
	return p.WaitFor.Matches(ev)
}
