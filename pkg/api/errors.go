package api

import (
	"errors"
	"fmt"
)

// DefinitionError reports a malformed workflow definition. It is raised
// at load time, before any step executes.
type DefinitionError struct {
	WorkflowID string
	StepID     string
	Reason     string
}

func (e *DefinitionError) Error() string {
	if e.StepID != "" {
		return fmt.Sprintf("invalid workflow %q: step %q: %s", e.WorkflowID, e.StepID, e.Reason)
	}
	return fmt.Sprintf("invalid workflow %q: %s", e.WorkflowID, e.Reason)
}

// ContractViolationError reports a node that broke the EdgeMap contract:
// it fired zero or multiple edges, or returned a Go error instead of a
// failure edge. Contract violations are fatal for the run and are
// reported distinctly from routed failures.
type ContractViolationError struct {
	StepID string
	NodeID string
	Reason string
}

func (e *ContractViolationError) Error() string {
	if e.StepID == "" {
		return "node contract violation: " + e.Reason
	}
	return fmt.Sprintf("node contract violation at step %q (node %q): %s", e.StepID, e.NodeID, e.Reason)
}

// IsContractViolation reports whether err is a node contract violation.
func IsContractViolation(err error) bool {
	var cv *ContractViolationError
	return errors.As(err, &cv)
}

// FailureKind distinguishes the two ways a run can fail.
type FailureKind string

const (
	// FailureRouted means a node intentionally fired a failure-class edge
	// that had no configured target. This is normal graph traffic reaching
	// a terminal, not a crash.
	FailureRouted FailureKind = "routed"

	// FailureFatal means the run was aborted by the engine: a definition
	// error, a contract violation, or an unexpected node fault.
	FailureFatal FailureKind = "fatal"
)

// Failure describes a failed run's terminal condition.
type Failure struct {
	Kind   FailureKind
	StepID string
	NodeID string

	// Edge is the fired edge name for routed failures.
	Edge string

	// Payload is the failure edge's payload, returned verbatim.
	Payload map[string]any

	// Message is the human-readable reason.
	Message string
}

func (f *Failure) Error() string {
	if f.Kind == FailureRouted {
		return fmt.Sprintf("routed failure: edge %q at step %q: %s", f.Edge, f.StepID, f.Message)
	}
	return fmt.Sprintf("fatal failure at step %q: %s", f.StepID, f.Message)
}
