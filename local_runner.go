package conduct

import (
	"context"
	"errors"
	"log"
	"sync"

	"github.com/nertverse/conduct/internal/taskqueue"
	"github.com/nertverse/conduct/pkg/worker"
)

// LocalRunner bundles an in-memory Engine, an in-memory task queue, and a
// Worker to provide a simple "local runner" for development and debugging.
//
// Typical usage:
//
//	runner := conduct.NewLocalRunner(reg)
//	def := conduct.NewDefinition("my-flow", "My Flow").Step(...)
//	def.MustRegister(runner.Engine)
//
//	// Synchronous run (no queue/worker involved):
//	exec, err := conduct.Execute(ctx, runner.Engine, "my-flow", nil)
//
//	// Asynchronous run:
//	_ = runner.StartWorkers(ctx, 2)
//	_ = runner.StartExecutionAsync(ctx, "my-flow", nil)
//	...
//	runner.Stop()
type LocalRunner struct {
	// Engine is the in-memory workflow engine used by this runner.
	Engine Engine

	// Queue is the in-memory task queue used by the Worker.
	Queue taskqueue.Queue

	// Worker processes tasks from Queue using Engine.
	Worker *worker.Worker

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// NewLocalRunner constructs a LocalRunner backed by an in-memory engine
// and queue, executing nodes from the given registry.
//
// This is intended for local development, tests, and simple
// single-process deployments.
func NewLocalRunner(reg *Registry) *LocalRunner {
	eng := NewInMemoryEngine(reg)
	q := taskqueue.NewInMemoryQueue(1024)
	w := worker.New(eng, q)

	return &LocalRunner{
		Engine: eng,
		Queue:  q,
		Worker: w,
	}
}

// StartWorkers starts 'concurrency' worker goroutines that continuously
// call Worker.ProcessOne(ctx) until the context is cancelled via Stop.
//
// If StartWorkers is called more than once without Stop, it returns an
// error.
func (r *LocalRunner) StartWorkers(ctx context.Context, concurrency int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("conduct: LocalRunner already started")
	}

	if concurrency <= 0 {
		concurrency = 1
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true

	r.wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer r.wg.Done()

			for {
				processed, err := r.Worker.ProcessOne(ctx)
				if err != nil {
					// For the local runner, cancellation is a clean shutdown signal.
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return
					}
					// Other errors are terminal execution outcomes; log and keep
					// going so one failed run doesn't kill the worker loop.
					log.Printf("conduct: local runner worker error: %v", err)
					continue
				}
				if !processed {
					// This only happens if ctx was cancelled before a task was
					// obtained. The loop exits on the next Dequeue.
					continue
				}
			}
		}()
	}

	return nil
}

// Stop cancels all worker goroutines started by StartWorkers and waits
// for them to exit.
func (r *LocalRunner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	cancel := r.cancel
	r.running = false
	r.cancel = nil
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

// StartExecutionAsync enqueues a task to execute the given workflow
// asynchronously. The definition must already be registered on
// LocalRunner.Engine.
func (r *LocalRunner) StartExecutionAsync(ctx context.Context, workflowID string, initialState map[string]any) error {
	return r.Worker.EnqueueStartExecution(ctx, workflowID, initialState)
}
