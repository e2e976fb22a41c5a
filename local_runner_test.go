package conduct

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nertverse/conduct/pkg/api"
	"github.com/nertverse/conduct/pkg/nodes"
)

// TestLocalRunner_SyncAndAsync verifies that LocalRunner can run
// workflows both synchronously (direct Execute) and asynchronously via
// StartExecutionAsync plus the worker loop.
func TestLocalRunner_SyncAndAsync(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, nodes.RegisterBuiltins(reg))
	runner := NewLocalRunner(reg)

	NewDefinition("tally", "Tally").
		InitialState(map[string]any{"values": []any{1.0, 2.0, 3.0}}).
		Step("aggregate", map[string]any{"items": "$.values", "operation": "sum"}).
		MustRegister(runner.Engine)

	ctx := context.Background()

	// --- Synchronous run ---

	exec, err := Execute(ctx, runner.Engine, "tally", nil)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, exec.Status)
	assert.Equal(t, 6.0, exec.State["aggregateResult"])

	// --- Asynchronous runs via worker/queue ---

	require.NoError(t, runner.StartWorkers(ctx, 2))
	defer runner.Stop()

	const runs = 3
	for i := 0; i < runs; i++ {
		require.NoError(t, runner.StartExecutionAsync(ctx, "tally", nil))
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		execs, err := ListExecutions(ctx, runner.Engine, ExecutionListOptions{
			WorkflowID: "tally",
			Status:     StatusCompleted,
		})
		require.NoError(t, err)
		if len(execs) == runs+1 { // sync run included
			for _, e := range execs {
				assert.Equal(t, 6.0, e.State["aggregateResult"])
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d completed executions, have %d", runs+1, len(execs))
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestLocalRunnerStartWorkersTwice(t *testing.T) {
	t.Parallel()

	runner := NewLocalRunner(NewRegistry())
	ctx := context.Background()

	require.NoError(t, runner.StartWorkers(ctx, 1))
	assert.Error(t, runner.StartWorkers(ctx, 1))

	runner.Stop()

	// After Stop the runner can be started again.
	require.NoError(t, runner.StartWorkers(ctx, 1))
	runner.Stop()
}

func TestLocalRunnerStopWithoutStart(t *testing.T) {
	t.Parallel()

	runner := NewLocalRunner(NewRegistry())
	runner.Stop() // must not panic or block
}

func TestLocalRunnerFailedRunKeepsWorkersAlive(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	require.NoError(t, nodes.RegisterBuiltins(reg))
	runner := NewLocalRunner(reg)
	ctx := context.Background()

	NewDefinition("boom", "Boom").
		Step("math", map[string]any{"operation": "divide", "values": []any{1.0, 0.0}}).
		MustRegister(runner.Engine)
	NewDefinition("fine", "Fine").
		Step("math", map[string]any{"operation": "add", "values": []any{1.0, 1.0}}).
		MustRegister(runner.Engine)

	require.NoError(t, runner.StartWorkers(ctx, 1))
	defer runner.Stop()

	// The failing run must not kill the worker goroutine.
	require.NoError(t, runner.StartExecutionAsync(ctx, "boom", nil))
	require.NoError(t, runner.StartExecutionAsync(ctx, "fine", nil))

	deadline := time.Now().Add(5 * time.Second)
	for {
		done, err := ListExecutions(ctx, runner.Engine, ExecutionListOptions{WorkflowID: "fine", Status: StatusCompleted})
		require.NoError(t, err)
		if len(done) == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("worker did not survive the failed run")
		}
		time.Sleep(10 * time.Millisecond)
	}

	failed, err := ListExecutions(ctx, runner.Engine, ExecutionListOptions{WorkflowID: "boom", Status: StatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.NotNil(t, failed[0].Failure)
	assert.Equal(t, api.FailureRouted, failed[0].Failure.Kind)
}
