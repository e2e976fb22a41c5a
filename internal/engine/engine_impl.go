package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/nertverse/conduct/internal/graph"
	"github.com/nertverse/conduct/internal/persistence"
	"github.com/nertverse/conduct/pkg/api"
)

// engineImpl is a synchronous, in-process workflow engine. Each Execute
// call drives one run to a terminal status; unrelated runs proceed fully
// independently and share nothing but the read-only node registry.
type engineImpl struct {
	registry *api.Registry

	definitions persistence.DefinitionStore
	executions  persistence.ExecutionStore
	events      persistence.EventStore

	observer api.Observer

	// graphs caches parsed definitions by workflow ID.
	mu     sync.RWMutex
	graphs map[string]*graph.Graph
}

// Config describes how to construct an engine. External callers use the
// constructor helpers re-exported from the root package.
type Config struct {
	Registry    *api.Registry
	Persistence persistence.Persistence
	Observer    api.Observer
}

// NewEngineWithConfig creates a new Engine using the given configuration.
func NewEngineWithConfig(cfg Config) api.Engine {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	events := cfg.Persistence.Events
	if events == nil {
		events = persistence.NoopEventStore{}
	}
	return &engineImpl{
		registry:    cfg.Registry,
		definitions: cfg.Persistence.Definitions,
		executions:  cfg.Persistence.Executions,
		events:      events,
		observer:    obs,
		graphs:      make(map[string]*graph.Graph),
	}
}

// NewInMemoryEngine returns an Engine backed entirely by in-memory stores.
func NewInMemoryEngine(reg *api.Registry) api.Engine {
	return NewInMemoryEngineWithObserver(reg, nil)
}

// NewInMemoryEngineWithObserver returns an in-memory Engine with the
// given Observer.
func NewInMemoryEngineWithObserver(reg *api.Registry, obs api.Observer) api.Engine {
	mem := persistence.NewInMemoryStore()
	return NewEngineWithConfig(Config{
		Registry: reg,
		Persistence: persistence.Persistence{
			Definitions: mem,
			Executions:  mem,
			Events:      mem,
		},
		Observer: obs,
	})
}

// NewSQLiteEngine returns an Engine that persists definitions,
// executions, and event history in a SQLite database.
func NewSQLiteEngine(reg *api.Registry, db *sql.DB) (api.Engine, error) {
	return NewSQLiteEngineWithObserver(reg, db, nil)
}

// NewSQLiteEngineWithObserver returns a SQLite-backed Engine with the
// given Observer.
func NewSQLiteEngineWithObserver(reg *api.Registry, db *sql.DB, obs api.Observer) (api.Engine, error) {
	store, err := persistence.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	events, err := persistence.NewSQLiteEventStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngineWithConfig(Config{
		Registry: reg,
		Persistence: persistence.Persistence{
			Definitions: store,
			Executions:  store,
			Events:      events,
		},
		Observer: obs,
	}), nil
}

// NewPostgresEngine returns an Engine that persists executions in
// PostgreSQL. Definitions are kept in-memory.
func NewPostgresEngine(reg *api.Registry, db *sql.DB) (api.Engine, error) {
	return NewPostgresEngineWithObserver(reg, db, nil)
}

// NewPostgresEngineWithObserver returns a Postgres-backed Engine with
// the given Observer.
func NewPostgresEngineWithObserver(reg *api.Registry, db *sql.DB, obs api.Observer) (api.Engine, error) {
	execs, err := persistence.NewPostgresExecutionStore(db)
	if err != nil {
		return nil, err
	}
	return NewEngineWithConfig(Config{
		Registry: reg,
		Persistence: persistence.Persistence{
			Definitions: persistence.NewInMemoryStore(),
			Executions:  execs,
		},
		Observer: obs,
	}), nil
}

// NewRedisEngine returns an Engine that persists executions in Redis.
// Definitions are kept in-memory.
func NewRedisEngine(reg *api.Registry, client *redis.Client) api.Engine {
	return NewRedisEngineWithObserver(reg, client, nil)
}

// NewRedisEngineWithObserver returns a Redis-backed Engine with the
// given Observer.
func NewRedisEngineWithObserver(reg *api.Registry, client *redis.Client, obs api.Observer) api.Engine {
	return NewEngineWithConfig(Config{
		Registry: reg,
		Persistence: persistence.Persistence{
			Definitions: persistence.NewInMemoryStore(),
			Executions:  persistence.NewRedisExecutionStore(client, ""),
		},
		Observer: obs,
	})
}

func (e *engineImpl) RegisterDefinition(def api.FlowDefinition) error {
	g, err := graph.Parse(def)
	if err != nil {
		return err
	}
	if err := graph.Validate(g, e.registry); err != nil {
		return err
	}
	if err := e.definitions.SaveDefinition(def); err != nil {
		return err
	}

	e.mu.Lock()
	e.graphs[def.ID] = g
	e.mu.Unlock()
	return nil
}

// graphFor returns the cached parsed graph for a workflow, re-parsing
// from the definition store when another engine instance registered it.
func (e *engineImpl) graphFor(workflowID string) (*graph.Graph, error) {
	e.mu.RLock()
	g, ok := e.graphs[workflowID]
	e.mu.RUnlock()
	if ok {
		return g, nil
	}

	def, err := e.definitions.GetDefinition(workflowID)
	if err != nil {
		if errors.Is(err, persistence.ErrDefinitionNotFound) {
			return nil, fmt.Errorf("unknown workflow: %s", workflowID)
		}
		return nil, err
	}
	g, err = graph.Parse(def)
	if err != nil {
		return nil, err
	}
	if err := graph.Validate(g, e.registry); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.graphs[workflowID] = g
	e.mu.Unlock()
	return g, nil
}

func (e *engineImpl) Execute(ctx context.Context, workflowID string, initialState map[string]any) (*api.Execution, error) {
	g, err := e.graphFor(workflowID)
	if err != nil {
		return nil, err
	}

	state := api.CloneState(g.InitialState)
	for k, v := range initialState {
		state[k] = v
	}

	exec := &api.Execution{
		ID:           uuid.NewString(),
		WorkflowID:   g.WorkflowID,
		WorkflowName: g.Name,
		Status:       api.StatusRunning,
		CurrentStep:  g.First().ID,
		State:        state,
		StartedAt:    time.Now(),
	}

	e.observer.OnRunStart(ctx, exec, g.TotalSteps())
	e.emit(ctx, api.ExecutionEvent{
		Type:        api.EventRunStarted,
		WorkflowID:  exec.WorkflowID,
		ExecutionID: exec.ID,
		TotalSteps:  g.TotalSteps(),
		State:       api.CloneState(state),
	})

	if err := e.executions.SaveExecution(exec); err != nil {
		f := &api.Failure{Kind: api.FailureFatal, Message: err.Error()}
		e.finishFailed(ctx, exec, f)
		return exec, err
	}

	return e.run(ctx, g, exec)
}

func (e *engineImpl) GetExecution(ctx context.Context, id string) (*api.Execution, error) {
	exec, err := e.executions.GetExecution(id)
	if err != nil {
		if errors.Is(err, persistence.ErrExecutionNotFound) {
			return nil, fmt.Errorf("execution not found: %s", id)
		}
		return nil, err
	}
	return exec, nil
}

func (e *engineImpl) ListExecutions(ctx context.Context, opts api.ExecutionListOptions) ([]*api.Execution, error) {
	return e.executions.ListExecutions(persistence.ExecutionFilter{
		WorkflowID: opts.WorkflowID,
		Status:     opts.Status,
	})
}

// run drives one execution from the graph's entry step to a terminal
// status. Within a run, steps execute strictly one at a time; the only
// suspension points are inside node Execute calls.
func (e *engineImpl) run(ctx context.Context, g *graph.Graph, exec *api.Execution) (*api.Execution, error) {
	step := g.First()
	inputs := map[string]any{}

	// loops tracks the active loop scopes: a head is pushed when it
	// fires "do" and popped when its body pass hands control back.
	var loops []*graph.Step

	for {
		select {
		case <-ctx.Done():
			f := &api.Failure{
				Kind:    api.FailureFatal,
				StepID:  step.ID,
				NodeID:  step.NodeID,
				Message: ctx.Err().Error(),
			}
			e.finishFailed(ctx, exec, f)
			return exec, ctx.Err()
		default:
		}

		exec.CurrentStep = step.ID
		_ = e.executions.UpdateExecution(exec)

		node, ok := e.registry.Get(step.NodeID)
		if !ok {
			// Validation guarantees this at registration time; hitting it
			// here means the registry changed underneath us.
			f := e.fatal(step, fmt.Sprintf("node %q is not registered", step.NodeID))
			e.failNode(ctx, exec, step, f)
			return exec, f
		}

		ec := &api.ExecutionContext{
			State:       exec.State,
			Inputs:      inputs,
			WorkflowID:  exec.WorkflowID,
			ExecutionID: exec.ID,
			StepID:      step.ID,
			NodeID:      step.NodeID,
		}

		e.observer.OnNodeStart(ctx, exec, step.ID, step.NodeID)
		e.emit(ctx, api.ExecutionEvent{
			Type:        api.EventNodeStarted,
			WorkflowID:  exec.WorkflowID,
			ExecutionID: exec.ID,
			StepID:      step.ID,
			NodeID:      step.NodeID,
		})

		started := time.Now()
		em, execErr := node.Execute(ctx, ec, step.Params)
		if execErr != nil {
			// Nodes report expected failures on edges; a Go error is an
			// unexpected fault and breaks the contract.
			f := e.fatal(step, fmt.Sprintf("node returned error instead of an edge: %v", execErr))
			e.failNode(ctx, exec, step, f)
			return exec, f
		}

		edge, thunk, firedErr := em.Fired()
		if firedErr != nil {
			var cv *api.ContractViolationError
			reason := firedErr.Error()
			if errors.As(firedErr, &cv) {
				reason = cv.Reason
			}
			f := e.fatal(step, reason)
			e.failNode(ctx, exec, step, f)
			return exec, f
		}

		payload := thunk(ctx)
		duration := time.Since(started)

		exec.Edges = append(exec.Edges, api.FiredEdge{
			StepID: step.ID,
			NodeID: step.NodeID,
			Edge:   edge,
			At:     time.Now(),
		})

		e.observer.OnNodeCompleted(ctx, exec, step.ID, step.NodeID, edge, payload, duration)
		e.emit(ctx, api.ExecutionEvent{
			Type:        api.EventNodeCompleted,
			WorkflowID:  exec.WorkflowID,
			ExecutionID: exec.ID,
			StepID:      step.ID,
			NodeID:      step.NodeID,
			Edge:        edge,
			Duration:    duration,
			Payload:     payload,
		})

		next, terminal := route(g, step, edge, &loops)
		if !terminal {
			_ = e.executions.UpdateExecution(exec)
			step = next
			inputs = payload
			continue
		}

		// Terminal: no configured target for the fired edge.
		exec.Output = payload
		if api.IsFailureEdge(edge) {
			f := &api.Failure{
				Kind:    api.FailureRouted,
				StepID:  step.ID,
				NodeID:  step.NodeID,
				Edge:    edge,
				Payload: payload,
				Message: payloadMessage(payload),
			}
			e.failNode(ctx, exec, step, f)
			return exec, f
		}

		exec.Status = api.StatusCompleted
		exec.FinishedAt = time.Now()
		_ = e.executions.UpdateExecution(exec)

		e.observer.OnRunCompleted(ctx, exec, exec.Duration())
		e.emit(ctx, api.ExecutionEvent{
			Type:        api.EventRunCompleted,
			WorkflowID:  exec.WorkflowID,
			ExecutionID: exec.ID,
			Duration:    exec.Duration(),
			State:       api.CloneState(exec.State),
		})
		return exec, nil
	}
}

// route resolves the next step for a fired edge, maintaining the active
// loop-scope stack.
//
// An explicit target always wins, with the reserved "end" target ending
// the run; a target naming the innermost active loop head closes the
// current body pass, so the frame count stays balanced however control
// returns to the head. Without one: a failure-class edge terminates; a loop head's
// "done" proceeds to the step following the loop construct in its own
// sequence (or hands back to the enclosing loop scope when the loop is
// the last step of a body); a loop head's "do" enters the body, opening
// a loop scope; any other edge advances through the current body pass —
// next body sibling if one remains, otherwise back to the innermost
// active loop head, which is re-invoked rather than re-entered from the
// top of its body. With no scope open, an untargeted non-failure edge
// ends the run. terminal is true when the run ends at this step.
func route(g *graph.Graph, step *graph.Step, edge string, loops *[]*graph.Step) (next *graph.Step, terminal bool) {
	if step.Targets[edge] == graph.TerminalTarget {
		return nil, true
	}
	if target, ok := step.Target(edge); ok {
		dest, _ := g.Lookup(target)
		if n := len(*loops); n > 0 && dest == (*loops)[n-1] {
			// An explicit jump back to the active loop head ends the
			// body pass; the head's next "do" opens a fresh frame.
			*loops = (*loops)[:n-1]
			return dest, false
		}
		if step.IsLoop() && edge == api.EdgeDo {
			*loops = append(*loops, step)
		}
		return dest, false
	}

	if api.IsFailureEdge(edge) {
		return nil, true
	}

	// A loop head exiting via "done" continues the outer sequence.
	if step.IsLoop() && edge == api.EdgeDone {
		if step.Next != nil {
			return step.Next, false
		}
		return popLoop(loops)
	}

	if n := len(*loops); n > 0 {
		head := (*loops)[n-1]
		if step.Parent == head && step.Next != nil {
			return step.Next, false
		}
		return popLoop(loops)
	}
	return nil, true
}

// popLoop hands control back to the innermost active loop head, or
// reports terminal when no scope is open.
func popLoop(loops *[]*graph.Step) (*graph.Step, bool) {
	n := len(*loops)
	if n == 0 {
		return nil, true
	}
	head := (*loops)[n-1]
	*loops = (*loops)[:n-1]
	return head, false
}

// fatal builds a fatal-failure value for the given step.
func (e *engineImpl) fatal(step *graph.Step, reason string) *api.Failure {
	return &api.Failure{
		Kind:    api.FailureFatal,
		StepID:  step.ID,
		NodeID:  step.NodeID,
		Message: reason,
	}
}

// failNode records a node-scoped failure and finishes the run as failed.
func (e *engineImpl) failNode(ctx context.Context, exec *api.Execution, step *graph.Step, f *api.Failure) {
	e.observer.OnNodeFailed(ctx, exec, step.ID, step.NodeID, f)
	e.emit(ctx, api.ExecutionEvent{
		Type:        api.EventNodeFailed,
		WorkflowID:  exec.WorkflowID,
		ExecutionID: exec.ID,
		StepID:      step.ID,
		NodeID:      step.NodeID,
		Payload:     f.Payload,
		Message:     f.Message,
	})
	e.finishFailed(ctx, exec, f)
}

// finishFailed writes the terminal failed record and emits run-failed.
func (e *engineImpl) finishFailed(ctx context.Context, exec *api.Execution, f *api.Failure) {
	exec.Status = api.StatusFailed
	exec.Failure = f
	exec.FinishedAt = time.Now()
	_ = e.executions.UpdateExecution(exec)

	e.observer.OnRunFailed(ctx, exec, f, exec.Duration())
	e.emit(ctx, api.ExecutionEvent{
		Type:        api.EventRunFailed,
		WorkflowID:  exec.WorkflowID,
		ExecutionID: exec.ID,
		NodeID:      f.NodeID,
		Duration:    exec.Duration(),
		Payload:     f.Payload,
		Message:     f.Message,
	})
}

// emit appends an event to the history store. Event emission is
// fire-and-forget: a failing store never affects the run.
func (e *engineImpl) emit(ctx context.Context, ev api.ExecutionEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	_ = e.events.AppendEvent(ctx, ev)
}

func payloadMessage(payload map[string]any) string {
	if payload == nil {
		return ""
	}
	if msg, ok := payload["message"].(string); ok {
		return msg
	}
	return ""
}
