// Package engine implements the behavioral synchronization engine.
//
// A behavioral program is a set of named threads. Each thread repeatedly
// pauses at a sync point where it declares the events it requests, the
// events it waits for, the events it blocks and the events that interrupt
// it. The engine selects one requested, unblocked event at a time, resumes
// the threads that care about it and repeats until nothing is selectable.
//
// ARCHITECTURE:
//
// Super-steps:
// Trigger enqueues an external event. The idle engine dequeues it and runs
// one super-step: the event joins the candidate pool at priority 0 and the
// scheduler keeps selecting events until quiescence. Queued events then
// run as fresh super-steps, in FIFO order.
//
// Iteration order inside a super-step:
//  1. Running threads advance to their next sync point
//  2. The candidate pool and blocked set are computed from a registry copy
//  3. The Strategy selects one event, stamped with the logical Clock
//  4. Interrupted threads are removed; interested threads are woken
//  5. The snapshot listener sees the selection
//  6. The effect handler for the event runs
//
// Threads are restartable cursors rather than coroutines: a Rule builds a
// Cursor, and the Sync, Sequence, Loop, Forever and Repeat helpers compose
// rules into one registry slot with one priority rank.
//
// Determinism:
// Thread priority is registration order and never reused. With the
// Priority strategy, the same registrations and the same trigger sequence
// always produce the same selections. Randomized and Chaos are seeded.
//
// Signals:
// A Signal holds a value and triggers a named event on each Set. A
// Computed derives its value from signals. Bind ties either to a program's
// trigger and disconnect.
package engine
