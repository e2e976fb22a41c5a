package api

import "context"

// Edge names with engine-level meaning.
const (
	// EdgeSuccess is the conventional success outcome.
	EdgeSuccess = "success"

	// EdgeError is the conventional failure outcome.
	EdgeError = "error"

	// EdgeDo and EdgeDone drive the loop construct: a loop head fires
	// EdgeDo to run its body once more and EdgeDone to exit the loop.
	EdgeDo   = "do"
	EdgeDone = "done"
)

// EdgeFunc is the payload thunk attached to a fired edge. It is evaluated
// by the engine exactly once, after the fired edge has been resolved, and
// its result becomes the inputs of the edge's target step.
type EdgeFunc func(ctx context.Context) map[string]any

// EdgeMap is a node invocation's return value: a map from edge name to
// payload thunk. Exactly one key must be populated per invocation; the
// engine treats an empty or multi-key map as a node contract violation.
type EdgeMap map[string]EdgeFunc

// Fire builds an EdgeMap with the single edge name carrying payload.
func Fire(name string, payload map[string]any) EdgeMap {
	return EdgeMap{name: func(context.Context) map[string]any { return payload }}
}

// FireSuccess fires the conventional "success" edge.
func FireSuccess(payload map[string]any) EdgeMap {
	return Fire(EdgeSuccess, payload)
}

// FireError fires the conventional "error" edge with a human-readable
// message. Extra fields are merged into the payload.
func FireError(message string, fields ...map[string]any) EdgeMap {
	payload := map[string]any{"message": message}
	for _, f := range fields {
		for k, v := range f {
			payload[k] = v
		}
	}
	return Fire(EdgeError, payload)
}

// Fired resolves the single populated edge of the map. It returns a
// ContractViolationError when zero or more than one edge is populated.
func (em EdgeMap) Fired() (string, EdgeFunc, error) {
	var (
		name  string
		thunk EdgeFunc
		n     int
	)
	for k, fn := range em {
		if fn == nil {
			continue
		}
		name, thunk = k, fn
		n++
	}
	switch n {
	case 1:
		return name, thunk, nil
	case 0:
		return "", nil, &ContractViolationError{Reason: "node fired no edge"}
	default:
		return "", nil, &ContractViolationError{Reason: "node fired multiple edges"}
	}
}

// failureEdges are the edge names the engine classifies as routed
// failures when they terminate a run without a configured target.
var failureEdges = map[string]struct{}{
	EdgeError:    {},
	"invalid":    {},
	"not_found":  {},
	"unresolved": {},
	"timeout":    {},
	"failed":     {},
}

// IsFailureEdge reports whether name denotes a failure-class outcome.
func IsFailureEdge(name string) bool {
	_, ok := failureEdges[name]
	return ok
}
