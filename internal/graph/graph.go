package graph

// StepKind tells the engine how to drive a step. The kind is decided at
// parse time from the step key's loop marker and never re-inferred
// during execution.
type StepKind int

const (
	// StepKindNode is a plain step: invoke the node once, follow the
	// fired edge's target.
	StepKindNode StepKind = iota

	// StepKindLoop is a loop head: the engine re-invokes the node between
	// body passes until it fires "done" or a failure edge.
	StepKindLoop
)

// TerminalTarget is the reserved edge-target value that explicitly ends
// the run instead of naming a step.
const TerminalTarget = "end"

// Step is one parsed entry of a workflow sequence.
type Step struct {
	// ID is the step key with the loop marker stripped ("math-1",
	// "while"). Unique across the whole definition, including bodies.
	ID string

	// NodeID is the node implementation the step binds to ("math").
	NodeID string

	Kind StepKind

	// Params is the step's non-edge configuration, passed verbatim to
	// the node. For loop heads the body sub-sequence has been lifted out
	// of Params into Body.
	Params map[string]any

	// Targets maps edge names to target step IDs (branch-marked config
	// keys with the marker stripped).
	Targets map[string]string

	// Body is the loop body sub-sequence; nil unless Kind is StepKindLoop.
	Body []*Step

	// Parent is the enclosing loop head, nil for top-level steps.
	Parent *Step

	// Next is the following step in this step's own sequence (top level
	// or loop body), nil for the last step of a sequence.
	Next *Step
}

// IsLoop reports whether the step is a loop head.
func (s *Step) IsLoop() bool { return s.Kind == StepKindLoop }

// Target returns the configured target step ID for the given edge name.
// ok is false when the edge has no target or targets the reserved
// terminal, in which case the run (or loop body pass) ends there.
func (s *Step) Target(edge string) (string, bool) {
	t, ok := s.Targets[edge]
	if !ok || t == TerminalTarget {
		return "", false
	}
	return t, true
}

// Graph is the parsed, validated form of an api.FlowDefinition, safe for
// the engine to walk. It is immutable after Parse.
type Graph struct {
	WorkflowID   string
	Name         string
	Version      string
	InitialState map[string]any

	// Steps is the top-level sequence; execution starts at Steps[0].
	Steps []*Step

	index map[string]*Step
	total int
}

// First returns the entry step of the graph.
func (g *Graph) First() *Step { return g.Steps[0] }

// Lookup finds a step by ID anywhere in the definition, including nested
// loop bodies.
func (g *Graph) Lookup(id string) (*Step, bool) {
	s, ok := g.index[id]
	return s, ok
}

// TotalSteps counts every step in the definition, including loop-body
// members. It is reported on run-started events.
func (g *Graph) TotalSteps() int { return g.total }

// Walk visits every step in definition order, bodies after their heads.
func (g *Graph) Walk(fn func(*Step)) {
	var visit func(steps []*Step)
	visit = func(steps []*Step) {
		for _, s := range steps {
			fn(s)
			if len(s.Body) > 0 {
				visit(s.Body)
			}
		}
	}
	visit(g.Steps)
}
