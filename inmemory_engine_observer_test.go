package conduct

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nertverse/conduct/pkg/broadcast"
	"github.com/nertverse/conduct/pkg/nodes"
	"github.com/nertverse/conduct/pkg/progress"
)

// TestInMemoryEngineWithObserverAndBasicMetrics verifies that:
//   - NewInMemoryEngineWithObserver is usable from the public API
//   - BasicMetrics sees the expected run and node counts
//   - The builder and Execute helpers work end-to-end without any
//     external infra.
func TestInMemoryEngineWithObserverAndBasicMetrics(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	metrics := &BasicMetrics{}
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	observer := NewCompositeObserver(NewLoggingObserver(logger), metrics)

	reg := NewRegistry()
	require.NoError(t, nodes.RegisterBuiltins(reg))
	eng := NewInMemoryEngineWithObserver(reg, observer)

	NewDefinition("two-step", "Two Step").
		InitialState(map[string]any{"text": "payload"}).
		Step("hash", map[string]any{"operation": "sha256", "value": "$.text"}).
		Target("success", "math").
		Step("math", map[string]any{"operation": "add", "values": []any{1.0, 2.0}}).
		MustRegister(eng)

	exec, err := Execute(ctx, eng, "two-step", nil)
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, exec.Status)

	snap := metrics.Snapshot()
	assert.Equal(t, int64(1), snap.RunsStarted)
	assert.Equal(t, int64(1), snap.RunsCompleted)
	assert.Equal(t, int64(0), snap.RunsFailed)
	assert.Equal(t, int64(0), snap.ActiveRuns)
	assert.Equal(t, int64(2), snap.NodesCompleted)
}

// TestEngineStreamsProgressEvents wires an engine's observer into a
// channel publisher and derives live progress from the event stream.
func TestEngineStreamsProgressEvents(t *testing.T) {
	t.Parallel()

	pub := broadcast.NewChannelPublisher(64)
	tracker := progress.NewTracker()

	reg := NewRegistry()
	require.NoError(t, nodes.RegisterBuiltins(reg))
	eng := NewInMemoryEngineWithObserver(reg, broadcast.NewEventObserver(pub))

	NewDefinition("tally", "Tally").
		InitialState(map[string]any{"values": []any{1.0, 2.0}}).
		Step("aggregate", map[string]any{"items": "$.values", "operation": "sum"}).
		MustRegister(eng)

	exec, err := Execute(context.Background(), eng, "tally", nil)
	require.NoError(t, err)

	// The run is finished, so the channel holds the whole stream.
	for {
		select {
		case ev := <-pub.Events():
			tracker.Observe(ev)
			continue
		default:
		}
		break
	}

	snap, ok := tracker.Get(exec.ID)
	require.True(t, ok)
	assert.True(t, snap.Done)
	assert.False(t, snap.Failed)
	assert.Equal(t, 1, snap.TotalSteps)
	assert.Equal(t, []string{"aggregate"}, snap.CompletedNodes)
	assert.Equal(t, 100.0, snap.PercentComplete())
}
