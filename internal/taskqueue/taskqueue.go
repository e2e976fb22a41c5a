package taskqueue

import (
	"context"
	"time"
)

// TaskType identifies what the worker should do.
type TaskType string

const (
	// TaskTypeStartExecution asks a worker to execute a registered
	// workflow.
	TaskTypeStartExecution TaskType = "start-execution"
)

// Task is a unit of work for the worker.
type Task struct {
	ID   string
	Type TaskType

	// WorkflowID names the registered definition to execute.
	WorkflowID string

	// InitialState overrides entries of the definition's initial state.
	InitialState map[string]any

	EnqueuedAt time.Time

	// NotBefore is the earliest time this task is eligible for
	// processing. Zero means immediately.
	NotBefore time.Time
}

// Queue is a simple async task queue interface.
type Queue interface {
	// Enqueue adds a task to the queue. It should respect ctx for
	// cancellation.
	Enqueue(ctx context.Context, t Task) error

	// Dequeue removes and returns the next eligible task, blocking until
	// one is available or the context is cancelled.
	Dequeue(ctx context.Context) (*Task, error)

	// Len returns the approximate number of tasks queued.
	Len() int
}
