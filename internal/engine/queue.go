package engine

import "sync"

// eventQueue is a thread-safe FIFO of triggered events.
//
// Trigger always enqueues. Whoever holds the stepping flag drains the queue
// one event at a time, so an event triggered from inside an effect handler
// runs only after the current super-step has finished.
//
// The queue is unbounded: a cascade of effects may trigger arbitrarily many
// follow-on events without blocking the handler that triggered them.
type eventQueue struct {
	mu     sync.Mutex
	events []Event
}

// newEventQueue creates an empty event queue.
func newEventQueue() *eventQueue {
	return &eventQueue{
		events: make([]Event, 0, 16),
	}
}

// Enqueue adds an event to the back of the queue.
func (q *eventQueue) Enqueue(e Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
}

// TryDequeue removes and returns the front event.
// Returns (Event{}, false) if the queue is empty.
func (q *eventQueue) TryDequeue() (Event, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return Event{}, false
	}

	e := q.events[0]

	// Clear the slot so the backing array does not pin the payload.
	q.events[0] = Event{}

	if len(q.events) == 1 {
		q.events = q.events[:0]
	} else {
		q.events = q.events[1:]
	}

	return e, true
}

// Len returns the current queue length.
func (q *eventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Clear drops every queued event and returns how many were dropped.
func (q *eventQueue) Clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := len(q.events)
	for i := range q.events {
		q.events[i] = Event{}
	}
	q.events = q.events[:0]
	return n
}
