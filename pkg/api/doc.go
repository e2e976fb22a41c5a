// Package api contains the core building blocks of the conduct workflow
// engine: the node contract, the workflow definition wire format, the
// execution record, and the observer interface used for lifecycle
// events.
//
// Most users interact with the higher-level conduct package, which
// re-exports selected types and helpers from this package. The api
// package is intended for node authors, custom integrations, and
// contributors extending the engine itself.
//
// # Nodes and edges
//
// A Node is a reusable, stateless unit of work. Each invocation returns
// an EdgeMap: a map from edge name to payload thunk with exactly one
// populated entry. The fired edge name routes control to the step
// configured for it; the thunk's payload becomes the next step's inputs.
//
// Failures are data, not control flow: a node reports missing
// parameters, I/O errors, or timeouts by firing a failure-class edge
// ("error", "invalid", ...) with a structured payload. The Go error
// return of Execute is reserved for unexpected faults and aborts the run
// as a contract violation.
//
// # Definitions
//
// A FlowDefinition is the JSON wire form of a workflow: an ordered
// sequence of single-key step objects. Branch-marked configuration keys
// ("success?") declare edge targets; a trailing "..." on a step key
// marks a loop head whose "steps" parameter carries the loop body.
// Definitions are parsed and validated by the engine before any step
// executes.
//
// # State
//
// Each execution owns a single mutable state bag threaded through every
// step. Nodes read and write documented keys; parameter values of the
// form "$.key" resolve against the bag at invocation time. The bag is
// never shared between executions.
//
// # Observers
//
// The Observer interface receives run and node lifecycle callbacks.
// Emission is fire-and-forget: observers must never affect an
// execution's outcome. Ready-made implementations cover logging
// (log/slog), basic metrics, and fan-out composition; pkg/broadcast
// turns callbacks into ExecutionEvent values for external consumers.
package api
