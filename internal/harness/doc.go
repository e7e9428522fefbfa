// Package harness runs behavioral programs against YAML scenarios.
//
// A scenario names a CUE program, the events a host triggers into it and
// assertions on the resulting trace. The harness compiles the program,
// runs it on a fresh engine and checks the assertions.
//
// # Scenario Format
//
//	name: hot_cold_alternate
//	description: "Hot and cold alternate after start"
//	program: ../programs/hotcold.cue
//	strategy: priority
//	triggers:
//	  - event: start
//	effects:
//	  - on: cold
//	    trigger:
//	      - event: log
//	        payload: { from: cold }
//	assertions:
//	  - type: trace_equals
//	    events: [start, hot, cold, hot, cold, hot, cold]
//	  - type: thread_status
//	    thread: mixHotCold
//	    status: pending
//
// # Assertion Types
//
//   - trace_equals: The selected event names equal the list exactly
//   - trace_contains: An event was selected, with a payload subset match
//   - trace_order: Events appear in the given order
//   - trace_count: An event was selected exactly N times
//   - thread_status: A thread ended running, pending or done
//   - error: The run stopped with an error containing a substring
//
// # Deterministic Testing
//
// With the priority strategy, or a fixed seed for random and chaos, a
// scenario always produces the same trace. Golden files in
// testdata/golden hold the canonical JSON of each trace; regenerate them
// with:
//
//	go test ./internal/harness -update
//
// Runs can also be recorded to a store with WithStore, for replay.
package harness
