// Package store provides SQLite-backed durable storage for behavioral
// program runs.
//
// A run is one execution of a compiled program. The store keeps:
//   - Runs: program identity, strategy, seed, final status and trace hash
//   - Triggers: events injected by the host, in injection order
//   - Selections: every selected event with its logical clock seq
//   - Bids: the candidate pool behind each selection
//   - Diagnostics: rejected triggers, effect errors and other warnings
//
// # Ordering
//
// All reads order by seq (the engine's logical clock, or per-run counters
// for triggers and diagnostics), never by timestamps. Runs are listed in
// insertion order; generated run ids are UUIDv7 and sort the same way.
//
// Payloads are stored as RFC 8785 canonical JSON so two identical runs
// produce byte-identical rows.
//
// # Lifecycle
//
// Record inserts a run in status "running" and returns a Recorder. The
// recorder's trigger wrapper stores each host trigger before the engine
// sees it, and its snapshot listener stores each selection with its bids
// and every diagnostic message. Finish sets the final status, error and
// trace hash. Trace and replay read runs back with ReadRun,
// QuerySelections and the other readers.
//
// # Database
//
// Open runs schema.sql and then the index migrations newer than the
// database's user_version. The connection uses WAL journaling and a
// 5 second busy timeout so a reader can inspect a run while another
// process records one.
package store
