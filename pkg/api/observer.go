package api

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// Observer receives lifecycle callbacks from the engine.
//
// Emission is fire-and-forget from the engine's perspective: observer
// failures must never affect an execution's outcome, and implementations
// should be fast and non-blocking. For a single execution, node
// callbacks are strictly ordered and never interleave; callbacks from
// different executions carry distinct execution IDs and have no ordering
// guarantee relative to each other.
type Observer interface {
	// OnRunStart is called once per execution, before the first step.
	OnRunStart(ctx context.Context, exec *Execution, totalSteps int)

	// OnRunCompleted is called when an execution reaches StatusCompleted.
	OnRunCompleted(ctx context.Context, exec *Execution, d time.Duration)

	// OnRunFailed is called when an execution reaches StatusFailed,
	// for both routed and fatal failures.
	OnRunFailed(ctx context.Context, exec *Execution, failure *Failure, d time.Duration)

	// OnNodeStart is called before each node invocation.
	OnNodeStart(ctx context.Context, exec *Execution, stepID, nodeID string)

	// OnNodeCompleted is called after a node invocation resolved a fired
	// edge, including failure-class edges that remain routable.
	OnNodeCompleted(ctx context.Context, exec *Execution, stepID, nodeID, edge string, payload map[string]any, d time.Duration)

	// OnNodeFailed is called when a node invocation ends the run: a fired
	// failure edge with no target, or a contract violation.
	OnNodeFailed(ctx context.Context, exec *Execution, stepID, nodeID string, failure *Failure)
}

// NoopObserver is the default Observer; it does nothing.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(context.Context, *Execution, int)                     {}
func (NoopObserver) OnRunCompleted(context.Context, *Execution, time.Duration)      {}
func (NoopObserver) OnRunFailed(context.Context, *Execution, *Failure, time.Duration) {}
func (NoopObserver) OnNodeStart(context.Context, *Execution, string, string)        {}
func (NoopObserver) OnNodeCompleted(context.Context, *Execution, string, string, string, map[string]any, time.Duration) {
}
func (NoopObserver) OnNodeFailed(context.Context, *Execution, string, string, *Failure) {}

// CompositeObserver fans out callbacks to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards callbacks to
// each non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnRunStart(ctx context.Context, exec *Execution, total int) {
	for _, o := range c.observers {
		o.OnRunStart(ctx, exec, total)
	}
}

func (c *CompositeObserver) OnRunCompleted(ctx context.Context, exec *Execution, d time.Duration) {
	for _, o := range c.observers {
		o.OnRunCompleted(ctx, exec, d)
	}
}

func (c *CompositeObserver) OnRunFailed(ctx context.Context, exec *Execution, f *Failure, d time.Duration) {
	for _, o := range c.observers {
		o.OnRunFailed(ctx, exec, f, d)
	}
}

func (c *CompositeObserver) OnNodeStart(ctx context.Context, exec *Execution, stepID, nodeID string) {
	for _, o := range c.observers {
		o.OnNodeStart(ctx, exec, stepID, nodeID)
	}
}

func (c *CompositeObserver) OnNodeCompleted(ctx context.Context, exec *Execution, stepID, nodeID, edge string, payload map[string]any, d time.Duration) {
	for _, o := range c.observers {
		o.OnNodeCompleted(ctx, exec, stepID, nodeID, edge, payload, d)
	}
}

func (c *CompositeObserver) OnNodeFailed(ctx context.Context, exec *Execution, stepID, nodeID string, f *Failure) {
	for _, o := range c.observers {
		o.OnNodeFailed(ctx, exec, stepID, nodeID, f)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs lifecycle events with
// the provided slog.Logger. If logger is nil, slog.Default() is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnRunStart(ctx context.Context, exec *Execution, total int) {
	o.Logger.InfoContext(ctx, "run_started",
		slog.String("workflow_id", exec.WorkflowID),
		slog.String("execution_id", exec.ID),
		slog.Int("total_steps", total),
	)
}

func (o *LoggingObserver) OnRunCompleted(ctx context.Context, exec *Execution, d time.Duration) {
	o.Logger.InfoContext(ctx, "run_completed",
		slog.String("workflow_id", exec.WorkflowID),
		slog.String("execution_id", exec.ID),
		slog.Duration("duration", d),
	)
}

func (o *LoggingObserver) OnRunFailed(ctx context.Context, exec *Execution, f *Failure, d time.Duration) {
	o.Logger.ErrorContext(ctx, "run_failed",
		slog.String("workflow_id", exec.WorkflowID),
		slog.String("execution_id", exec.ID),
		slog.String("kind", string(f.Kind)),
		slog.String("node_id", f.NodeID),
		slog.String("reason", f.Message),
		slog.Duration("duration", d),
	)
}

func (o *LoggingObserver) OnNodeStart(ctx context.Context, exec *Execution, stepID, nodeID string) {
	o.Logger.DebugContext(ctx, "node_started",
		slog.String("execution_id", exec.ID),
		slog.String("step", stepID),
		slog.String("node_id", nodeID),
	)
}

func (o *LoggingObserver) OnNodeCompleted(ctx context.Context, exec *Execution, stepID, nodeID, edge string, payload map[string]any, d time.Duration) {
	o.Logger.DebugContext(ctx, "node_completed",
		slog.String("execution_id", exec.ID),
		slog.String("step", stepID),
		slog.String("node_id", nodeID),
		slog.String("edge", edge),
		slog.Duration("duration", d),
	)
}

func (o *LoggingObserver) OnNodeFailed(ctx context.Context, exec *Execution, stepID, nodeID string, f *Failure) {
	o.Logger.ErrorContext(ctx, "node_failed",
		slog.String("execution_id", exec.ID),
		slog.String("step", stepID),
		slog.String("node_id", nodeID),
		slog.String("kind", string(f.Kind)),
		slog.String("reason", f.Message),
	)
}

// BasicMetrics collects simple counters and aggregate node durations.
// It implements Observer and can be combined with other observers via
// NewCompositeObserver.
type BasicMetrics struct {
	NoopObserver

	runsStarted       atomic.Int64
	runsCompleted     atomic.Int64
	runsFailed        atomic.Int64
	nodesCompleted    atomic.Int64
	totalNodeDuration atomic.Int64 // nanoseconds
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	RunsStarted   int64
	RunsCompleted int64
	RunsFailed    int64
	ActiveRuns    int64

	NodesCompleted  int64
	AvgNodeDuration time.Duration
}

func (m *BasicMetrics) OnRunStart(ctx context.Context, exec *Execution, total int) {
	m.runsStarted.Add(1)
}

func (m *BasicMetrics) OnRunCompleted(ctx context.Context, exec *Execution, d time.Duration) {
	m.runsCompleted.Add(1)
}

func (m *BasicMetrics) OnRunFailed(ctx context.Context, exec *Execution, f *Failure, d time.Duration) {
	m.runsFailed.Add(1)
}

func (m *BasicMetrics) OnNodeCompleted(ctx context.Context, exec *Execution, stepID, nodeID, edge string, payload map[string]any, d time.Duration) {
	m.nodesCompleted.Add(1)
	m.totalNodeDuration.Add(d.Nanoseconds())
}

// Snapshot returns a snapshot of the current metrics.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	started := m.runsStarted.Load()
	completed := m.runsCompleted.Load()
	failed := m.runsFailed.Load()
	nodes := m.nodesCompleted.Load()
	totalNs := m.totalNodeDuration.Load()

	var avg time.Duration
	if nodes > 0 {
		avg = time.Duration(totalNs / nodes)
	}

	return BasicMetricsSnapshot{
		RunsStarted:     started,
		RunsCompleted:   completed,
		RunsFailed:      failed,
		ActiveRuns:      started - completed - failed,
		NodesCompleted:  nodes,
		AvgNodeDuration: avg,
	}
}
