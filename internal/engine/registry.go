package engine

import "sync"

// Status is the observable state of a registered thread.
//
// Running is true while the thread has been registered or woken and has
// not yet produced its next sync point. Pending is true while the thread
// is parked at a sync point. Threads that completed, were interrupted, were
// deleted, or never existed report both false.
type Status struct {
	Running bool `json:"running"`
	Pending bool `json:"pending"`
}

// Named pairs a thread name with its rule for registration.
type Named struct {
	Name string
	Rule Rule
}

// Thread is a shorthand for building a Named entry.
func Thread(name string, rule Rule) Named {
	return Named{Name: name, Rule: rule}
}

// ThreadStatus is a point-in-time view of one registered thread.
type ThreadStatus struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Status
}

// slot is one registry entry. Priority is assigned at insertion and never
// reused, so a later registration always ranks below an earlier one.
type slot struct {
	name     string
	priority int
	cursor   Cursor

	running bool
	resume  Event
	point   SyncPoint
	removed bool
}

// Threads is the thread registry of one engine.
//
// The registry may be mutated from effect handlers while a super-step is
// in progress. The scheduler never iterates the live slice: every inner
// iteration works on a copy taken under the lock, and checks removal
// before acting on a slot.
type Threads struct {
	mu       sync.Mutex
	slots    []*slot
	byName   map[string]*slot
	nextRank int

	onDuplicate func(name string)
}

func newThreads() *Threads {
	return &Threads{
		byName:   make(map[string]*slot),
		nextRank: 1,
	}
}

// Set registers threads in the given order. Names that are already
// registered are ignored and returned; the existing thread keeps running.
func (t *Threads) Set(threads ...Named) []string {
	var duplicates []string
	for _, th := range threads {
		if !t.Add(th.Name, th.Rule) {
			duplicates = append(duplicates, th.Name)
		}
	}
	return duplicates
}

// Add registers a single thread. It returns false if the name is empty,
// the rule is nil, or a thread with that name is already registered.
func (t *Threads) Add(name string, rule Rule) bool {
	if name == "" || rule == nil {
		return false
	}

	t.mu.Lock()
	if _, exists := t.byName[name]; exists {
		notify := t.onDuplicate
		t.mu.Unlock()
		if notify != nil {
			notify(name)
		}
		return false
	}
	s := &slot{
		name:     name,
		priority: t.nextRank,
		running:  true,
	}
	t.nextRank++
	t.slots = append(t.slots, s)
	t.byName[name] = s
	t.mu.Unlock()

	// The cursor is created outside the lock: rules are user code.
	cursor := rule()
	t.mu.Lock()
	s.cursor = cursor
	t.mu.Unlock()
	return true
}

// Has reports the status of the named thread.
func (t *Threads) Has(name string) Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.byName[name]
	if !ok {
		return Status{}
	}
	return Status{Running: s.running, Pending: !s.running}
}

// Delete removes the named thread. It returns false if no such thread is
// registered. A thread deleted mid-step is excluded from the current
// candidate pool.
func (t *Threads) Delete(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.byName[name]
	if !ok {
		return false
	}
	t.removeLocked(s)
	return true
}

// Names returns registered thread names in priority order.
func (t *Threads) Names() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, len(t.slots))
	for i, s := range t.slots {
		names[i] = s.name
	}
	return names
}

// Len returns the number of registered threads.
func (t *Threads) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}

// Statuses returns every registered thread in priority order.
func (t *Threads) Statuses() []ThreadStatus {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ThreadStatus, len(t.slots))
	for i, s := range t.slots {
		out[i] = ThreadStatus{
			Name:     s.name,
			Priority: s.priority,
			Status:   Status{Running: s.running, Pending: !s.running},
		}
	}
	return out
}

// parkedSlot is an immutable copy of a pending slot for one iteration.
type parkedSlot struct {
	s     *slot
	name  string
	rank  int
	point SyncPoint
}

// running returns a copy of the slots waiting to be advanced, in priority
// order.
func (t *Threads) running() []*slot {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []*slot
	for _, s := range t.slots {
		if s.running && s.cursor != nil {
			out = append(out, s)
		}
	}
	return out
}

// resumeEvent returns the event a running slot should be resumed with.
func (t *Threads) resumeEvent(s *slot) (Event, Cursor, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.removed {
		return Event{}, nil, false
	}
	return s.resume, s.cursor, true
}

// pending returns a copy of every parked slot in priority order.
func (t *Threads) pending() []parkedSlot {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []parkedSlot
	for _, s := range t.slots {
		if !s.running {
			out = append(out, parkedSlot{s: s, name: s.name, rank: s.priority, point: s.point})
		}
	}
	return out
}

// park records the sync point a running slot produced. It is a no-op for
// slots deleted while their cursor was running.
func (t *Threads) park(s *slot, point SyncPoint) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.removed {
		return
	}
	s.point = point
	s.running = false
	s.resume = Event{}
}

// wake marks a parked slot as running so it resumes with ev.
func (t *Threads) wake(s *slot, ev Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s.removed {
		return false
	}
	s.running = true
	s.resume = ev
	s.point = SyncPoint{}
	return true
}

// remove drops a slot that completed or was interrupted.
func (t *Threads) remove(s *slot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(s)
}

// alive reports whether the slot is still registered.
func (t *Threads) alive(s *slot) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !s.removed
}

func (t *Threads) removeLocked(s *slot) {
	if s.removed {
		return
	}
	s.removed = true
	if t.byName[s.name] == s {
		delete(t.byName, s.name)
	}
	for i, cur := range t.slots {
		if cur == s {
			t.slots = append(t.slots[:i:i], t.slots[i+1:]...)
			break
		}
	}
}
