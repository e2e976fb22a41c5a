package persistence

import (
	"context"
	"errors"

	"github.com/nertverse/conduct/pkg/api"
)

var (
	// ErrDefinitionNotFound is returned when a workflow definition is not found.
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrExecutionNotFound is returned when an execution is not found.
	ErrExecutionNotFound = errors.New("execution not found")
)

// DefinitionStore handles storage of workflow definitions, keyed by
// workflow ID. Definitions are immutable: Save overwrites whole records,
// never patches them.
type DefinitionStore interface {
	SaveDefinition(def api.FlowDefinition) error
	GetDefinition(id string) (api.FlowDefinition, error)
	ListDefinitions() ([]api.FlowDefinition, error)
}

// ExecutionFilter selects executions from the store. Empty fields mean
// no filter.
type ExecutionFilter struct {
	WorkflowID string
	Status     api.Status
}

// ExecutionStore handles storage of execution records. The engine saves
// an execution when the run starts, updates it as steps complete, and
// writes the terminal record when the run ends.
type ExecutionStore interface {
	SaveExecution(exec *api.Execution) error
	UpdateExecution(exec *api.Execution) error
	GetExecution(id string) (*api.Execution, error)
	ListExecutions(filter ExecutionFilter) ([]*api.Execution, error)
}

// EventStore is an append-only history store for lifecycle events.
// Writes are best-effort from the engine's perspective.
type EventStore interface {
	AppendEvent(ctx context.Context, ev api.ExecutionEvent) error
	ListEvents(ctx context.Context, executionID string) ([]api.ExecutionEvent, error)
}

// NoopEventStore discards all events.
type NoopEventStore struct{}

func (NoopEventStore) AppendEvent(ctx context.Context, ev api.ExecutionEvent) error { return nil }
func (NoopEventStore) ListEvents(ctx context.Context, executionID string) ([]api.ExecutionEvent, error) {
	return nil, nil
}

// Persistence bundles the store interfaces so the engine can depend on a
// single abstraction.
type Persistence struct {
	Definitions DefinitionStore
	Executions  ExecutionStore
	Events      EventStore
}
