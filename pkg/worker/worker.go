package worker

import (
	"context"
	"errors"
	"time"

	"github.com/nertverse/conduct/internal/taskqueue"
	"github.com/nertverse/conduct/pkg/api"
)

// Worker pulls tasks from a Queue and executes them using an Engine.
// Multiple workers may share one queue; each execution runs on exactly
// one worker.
type Worker struct {
	engine api.Engine
	queue  taskqueue.Queue
}

// New creates a new Worker.
func New(engine api.Engine, queue taskqueue.Queue) *Worker {
	return &Worker{
		engine: engine,
		queue:  queue,
	}
}

// EnqueueStartExecution enqueues a task to execute a workflow
// asynchronously. It does NOT run the workflow itself; that is done by
// ProcessOne.
func (w *Worker) EnqueueStartExecution(ctx context.Context, workflowID string, initialState map[string]any) error {
	t := taskqueue.Task{
		Type:         taskqueue.TaskTypeStartExecution,
		WorkflowID:   workflowID,
		InitialState: initialState,
		EnqueuedAt:   time.Now(),
	}
	return w.queue.Enqueue(ctx, t)
}

// EnqueueStartExecutionAt enqueues a task to execute a workflow no
// earlier than the given time.
func (w *Worker) EnqueueStartExecutionAt(ctx context.Context, workflowID string, initialState map[string]any, at time.Time) error {
	t := taskqueue.Task{
		Type:         taskqueue.TaskTypeStartExecution,
		WorkflowID:   workflowID,
		InitialState: initialState,
		EnqueuedAt:   time.Now(),
		NotBefore:    at,
	}
	return w.queue.Enqueue(ctx, t)
}

// ProcessOne pulls a single task from the queue and processes it.
// Returns (processed, error):
//   - processed == false, err != nil: nothing processed (dequeue failed
//     or the context was cancelled)
//   - processed == true: a task was processed; err reports whether the
//     execution failed.
//
// A failed execution is not re-enqueued: the terminal execution record
// carries the failure, and routing failures through the graph is the
// workflow author's responsibility.
func (w *Worker) ProcessOne(ctx context.Context) (bool, error) {
	task, err := w.queue.Dequeue(ctx)
	if err != nil {
		return false, err
	}
	if task == nil {
		return false, nil
	}

	switch task.Type {
	case taskqueue.TaskTypeStartExecution:
		_, runErr := w.engine.Execute(ctx, task.WorkflowID, task.InitialState)
		return true, runErr

	default:
		// Unknown task type; mark as processed but return an error so
		// this isn't silently ignored.
		return true, errors.New("unknown task type: " + string(task.Type))
	}
}
