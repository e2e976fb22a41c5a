package api

import (
	"context"
	"time"
)

// Status represents the lifecycle state of an execution.
type Status string

const (
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// FiredEdge is one entry of an execution's ordered edge log.
type FiredEdge struct {
	StepID string    `json:"stepId"`
	NodeID string    `json:"nodeId"`
	Edge   string    `json:"edge"`
	At     time.Time `json:"at"`
}

// Execution is one run of a workflow definition. It is created when the
// run starts and mutated by the engine as steps execute; concurrent
// executions of the same or different definitions are fully independent.
type Execution struct {
	ID           string `json:"executionId"`
	WorkflowID   string `json:"workflowId"`
	WorkflowName string `json:"workflowName"`

	Status Status `json:"status"`

	// CurrentStep is the step key the cursor points at while running, and
	// the last executed step once the run has terminated.
	CurrentStep string `json:"currentStep"`

	// State is the live shared state bag. Exclusively owned by the engine
	// for the duration of the run.
	State map[string]any `json:"state"`

	// Edges is the ordered log of fired edges.
	Edges []FiredEdge `json:"edges"`

	// Output is the payload of the last fired edge, i.e. the run's result.
	Output map[string]any `json:"output,omitempty"`

	// Failure is set when Status is StatusFailed.
	Failure *Failure `json:"failure,omitempty"`

	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// Duration returns the run's wall-clock duration, using the current time
// while the run is still in flight.
func (e *Execution) Duration() time.Duration {
	if e.FinishedAt.IsZero() {
		return time.Since(e.StartedAt)
	}
	return e.FinishedAt.Sub(e.StartedAt)
}

// ExecutionListOptions filters execution listings. Zero values mean no
// filter for that field.
type ExecutionListOptions struct {
	WorkflowID string
	Status     Status
}

// Engine is the workflow execution engine API.
type Engine interface {
	// RegisterDefinition parses and validates a workflow definition and
	// stores it by ID. Malformed definitions are rejected here, before
	// any execution is possible.
	RegisterDefinition(def FlowDefinition) error

	// Execute runs the workflow with the given ID to a terminal status.
	// initialState entries override the definition's initialState; pass
	// nil to run with the definition's state as-is.
	//
	// The returned error is non-nil only for failed runs; the Execution
	// is returned in both cases and carries the terminal status, final
	// state, edge log, and output.
	Execute(ctx context.Context, workflowID string, initialState map[string]any) (*Execution, error)

	// GetExecution looks up an execution by ID.
	GetExecution(ctx context.Context, id string) (*Execution, error)

	// ListExecutions returns executions matching the given options.
	ListExecutions(ctx context.Context, opts ExecutionListOptions) ([]*Execution, error)
}
