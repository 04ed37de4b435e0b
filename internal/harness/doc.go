// Package harness runs YAML scenarios against the pricing controller.
//
// A scenario scripts the backend (catalog versions and price responses) and
// the user (edits, resets, the passage of time). The harness runs a real
// controller on a manual clock with an ephemeral SQLite session store, and
// records a trace of steps, controller events, transport calls and request
// log records.
//
// # Scenario Format
//
//	name: version_conflict_retry
//	description: "A 409 triggers one refetch and one retry"
//	catalogs:
//	  - preset: xy
//	    version: v1
//	  - preset: xy
//	    version: v2
//	responses:
//	  - conflict: v2
//	  - grand: "100"
//	steps:
//	  - start: true
//	  - advance: debounce
//	assertions:
//	  - type: trace_count
//	    event: price
//	    count: 2
//	  - type: final_state
//	    expect: { version: v2, phase: idle }
//
// # Assertion Types
//
//   - trace_contains: an event of the given type whose fields include match
//   - trace_order: first occurrences of event types appear in order
//   - trace_count: exactly N events of a type (optionally matching)
//   - final_state: end-state keys (version, phase, grand, inputs.<id>,
//     last_valid.<id>, errors.<id>, stored.*) have the given values
//   - stored_requests: the stored request log outcomes, in seq order
//
// # Determinism
//
// Debounce timers only fire inside an advance step, and the harness waits for
// every round trip before the next step, so traces are identical across runs
// and can be compared against golden files.
package harness
