package api

import "context"

// Node is the contract every unit of work implements. Implementations are
// stateless across executions: any per-run data lives in the shared state
// bag or in edge payloads, never on the Node value itself.
//
// Execute must return an EdgeMap with exactly one fired edge. All expected
// failure modes (missing parameters, invalid values, downstream I/O
// failure, timeout) are reported as data on a failure edge, commonly
// "error". The Go error return is reserved for unexpected faults; the
// engine treats a non-nil error as a contract violation and fails the run.
type Node interface {
	// Metadata describes the node for registration, validation, and tooling.
	Metadata() NodeMetadata

	// Execute performs the unit of work. config is the step's non-edge
	// configuration; ec carries the shared state bag and the inputs
	// produced by the edge that led to this step.
	Execute(ctx context.Context, ec *ExecutionContext, config map[string]any) (EdgeMap, error)
}

// NodeMetadata identifies a node and declares its capabilities.
type NodeMetadata struct {
	// ID is the kebab-case node identifier steps are matched against.
	ID string `json:"id"`

	// Name is the human-readable node name.
	Name string `json:"name"`

	// Version is a semantic version string.
	Version string `json:"version"`

	// Description explains what the node does.
	Description string `json:"description"`

	// Inputs and Outputs name the values the node consumes and produces.
	Inputs  []string `json:"inputs"`
	Outputs []string `json:"outputs"`

	// AIHints carry machine-readable capability hints used by tooling and
	// discovery. They do not affect execution correctness, with one
	// exception: ExpectedEdges is checked against a definition's
	// edge-target declarations when the definition is registered.
	AIHints AIHints `json:"ai_hints"`
}

// AIHints are capability hints for tooling and discovery.
type AIHints struct {
	Purpose       string         `json:"purpose"`
	WhenToUse     string         `json:"when_to_use"`
	ExpectedEdges []string       `json:"expected_edges"`
	ExampleUsage  string         `json:"example_usage,omitempty"`
	ExampleConfig map[string]any `json:"example_config,omitempty"`

	// GetFromState and PostToState document which state-bag keys the node
	// reads and writes.
	GetFromState []string `json:"get_from_state,omitempty"`
	PostToState  []string `json:"post_to_state,omitempty"`
}

// DeclaresEdge reports whether name is one of the node's expected edges.
func (m NodeMetadata) DeclaresEdge(name string) bool {
	for _, e := range m.AIHints.ExpectedEdges {
		if e == name {
			return true
		}
	}
	return false
}
