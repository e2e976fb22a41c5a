package persistence

import (
	"context"
	"sync"

	"github.com/nertverse/conduct/pkg/api"
)

// InMemoryStore is a goroutine-safe implementation of DefinitionStore,
// ExecutionStore, and EventStore backed by maps. Best for tests and
// non-durable deployments.
type InMemoryStore struct {
	mu          sync.RWMutex
	definitions map[string]api.FlowDefinition
	executions  map[string]*api.Execution
	events      map[string][]api.ExecutionEvent
}

// NewInMemoryStore creates a new InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		definitions: make(map[string]api.FlowDefinition),
		executions:  make(map[string]*api.Execution),
		events:      make(map[string][]api.ExecutionEvent),
	}
}

var (
	_ DefinitionStore = (*InMemoryStore)(nil)
	_ ExecutionStore  = (*InMemoryStore)(nil)
	_ EventStore      = (*InMemoryStore)(nil)
)

func (s *InMemoryStore) SaveDefinition(def api.FlowDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.definitions[def.ID] = def
	return nil
}

func (s *InMemoryStore) GetDefinition(id string) (api.FlowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.definitions[id]
	if !ok {
		return api.FlowDefinition{}, ErrDefinitionNotFound
	}
	return def, nil
}

func (s *InMemoryStore) ListDefinitions() ([]api.FlowDefinition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]api.FlowDefinition, 0, len(s.definitions))
	for _, def := range s.definitions {
		out = append(out, def)
	}
	return out, nil
}

func (s *InMemoryStore) SaveExecution(exec *api.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.executions[exec.ID] = exec
	return nil
}

func (s *InMemoryStore) UpdateExecution(exec *api.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.executions[exec.ID]; !ok {
		return ErrExecutionNotFound
	}
	s.executions[exec.ID] = exec
	return nil
}

func (s *InMemoryStore) GetExecution(id string) (*api.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	exec, ok := s.executions[id]
	if !ok {
		return nil, ErrExecutionNotFound
	}
	return exec, nil
}

func (s *InMemoryStore) ListExecutions(filter ExecutionFilter) ([]*api.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*api.Execution
	for _, exec := range s.executions {
		if filter.WorkflowID != "" && exec.WorkflowID != filter.WorkflowID {
			continue
		}
		if filter.Status != "" && exec.Status != filter.Status {
			continue
		}
		result = append(result, exec)
	}
	return result, nil
}

func (s *InMemoryStore) AppendEvent(ctx context.Context, ev api.ExecutionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events[ev.ExecutionID] = append(s.events[ev.ExecutionID], ev)
	return nil
}

func (s *InMemoryStore) ListEvents(ctx context.Context, executionID string) ([]api.ExecutionEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	evs := s.events[executionID]
	out := make([]api.ExecutionEvent, len(evs))
	copy(out, evs)
	return out, nil
}
