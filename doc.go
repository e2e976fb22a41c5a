// Package conduct provides a declarative, embeddable workflow engine for Go.
//
// Conduct executes workflows described as JSON documents: an ordered list
// of steps, each invoking a named node with a config object. Nodes report
// their outcome by firing exactly one named edge, and edges route control
// to the next step. The result is a small, auditable automation layer that
// runs fully in-process, supports multiple persistence backends, and
// integrates cleanly into existing services.
//
// # Core Concepts
//
// The programming model is intentionally small:
//
//  1. Node
//  2. Definition
//  3. Engine
//  4. Worker
//  5. LocalRunner
//
// # Node
//
// A Node is the unit of work. It receives the run's shared state bag and
// its step config, does its work, and returns an EdgeMap naming the one
// edge it fired plus a payload for the next step:
//
//	func (n *Greet) Execute(ctx context.Context, ec *api.ExecutionContext, config map[string]any) (api.EdgeMap, error) {
//	    name, _ := config["name"].(string)
//	    ec.State["greeting"] = "hello " + name
//	    return api.FireSuccess(map[string]any{"greeted": name}), nil
//	}
//
// Expected failures (bad input, missing data, unreachable services) are
// data on a failure edge such as "error", so definitions can route around
// them. The Go error return is reserved for contract violations and
// always fails the run.
//
// A catalog of builtin nodes (math, logic, hash, transform, schema, http)
// ships in pkg/nodes; custom nodes register alongside them on the same
// Registry.
//
// # Definition
//
// Workflows are data, not code. A definition is a JSON document:
//
//	{
//	  "id": "double-loop",
//	  "workflow": [
//	    {"count-up...": {
//	      "condition": {"left": "$.n", "operator": "<", "right": 10},
//	      "steps": [
//	        {"math": {"operation": "add", "values": ["$.n", 1], "outputKey": "n"}}
//	      ]
//	    }}
//	  ]
//	}
//
// A "?"-suffixed config key declares an edge target ("error?": "cleanup"),
// and a "..."-suffixed step key opens a loop whose body lives under the
// step's "steps" config entry. Definitions can also be built fluently with
// NewDefinition.
//
// # Engine
//
// The Engine registers definitions, validates them against the node
// registry, executes them, and records every run: status, final state,
// the ordered list of fired edges, and the failure (if any). Engines can
// be backed by different stores:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//   - Postgres
//   - Redis
//
// Observers (logging, metrics, event broadcast) attach at construction
// and receive fire-and-forget lifecycle callbacks.
//
// # Worker
//
// A Worker pulls start-execution tasks from a queue and runs them on an
// Engine. Queues come in in-memory and SQLite-backed variants; multiple
// workers may share one queue.
//
// # LocalRunner
//
// LocalRunner bundles an in-memory engine, queue, and worker into a
// single process-local helper for development and tests. It is
// intentionally not crash-durable.
//
// For complete programs, see the /examples directory.
package conduct
