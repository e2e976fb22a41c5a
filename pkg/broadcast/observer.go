package broadcast

import (
	"context"
	"time"

	"github.com/nertverse/conduct/pkg/api"
)

// EventObserver adapts Observer callbacks into ExecutionEvents and hands
// them to a Publisher. Wire it into an engine via WithObserver (or a
// CompositeObserver) to stream a run's lifecycle to external consumers.
type EventObserver struct {
	pub Publisher
}

// NewEventObserver creates an observer publishing to pub.
func NewEventObserver(pub Publisher) *EventObserver {
	return &EventObserver{pub: pub}
}

func (o *EventObserver) OnRunStart(ctx context.Context, exec *api.Execution, totalSteps int) {
	o.pub.Publish(ctx, api.ExecutionEvent{
		Type:        api.EventRunStarted,
		WorkflowID:  exec.WorkflowID,
		ExecutionID: exec.ID,
		Timestamp:   time.Now().UTC(),
		TotalSteps:  totalSteps,
		State:       exec.State,
	})
}

func (o *EventObserver) OnRunCompleted(ctx context.Context, exec *api.Execution, d time.Duration) {
	o.pub.Publish(ctx, api.ExecutionEvent{
		Type:        api.EventRunCompleted,
		WorkflowID:  exec.WorkflowID,
		ExecutionID: exec.ID,
		Timestamp:   time.Now().UTC(),
		Duration:    d,
		State:       exec.State,
	})
}

func (o *EventObserver) OnRunFailed(ctx context.Context, exec *api.Execution, failure *api.Failure, d time.Duration) {
	ev := api.ExecutionEvent{
		Type:        api.EventRunFailed,
		WorkflowID:  exec.WorkflowID,
		ExecutionID: exec.ID,
		Timestamp:   time.Now().UTC(),
		Duration:    d,
	}
	if failure != nil {
		ev.NodeID = failure.NodeID
		ev.StepID = failure.StepID
		ev.Payload = failure.Payload
		ev.Message = failure.Message
	}
	o.pub.Publish(ctx, ev)
}

func (o *EventObserver) OnNodeStart(ctx context.Context, exec *api.Execution, stepID, nodeID string) {
	o.pub.Publish(ctx, api.ExecutionEvent{
		Type:        api.EventNodeStarted,
		WorkflowID:  exec.WorkflowID,
		ExecutionID: exec.ID,
		Timestamp:   time.Now().UTC(),
		StepID:      stepID,
		NodeID:      nodeID,
	})
}

func (o *EventObserver) OnNodeCompleted(ctx context.Context, exec *api.Execution, stepID, nodeID, edge string, payload map[string]any, d time.Duration) {
	o.pub.Publish(ctx, api.ExecutionEvent{
		Type:        api.EventNodeCompleted,
		WorkflowID:  exec.WorkflowID,
		ExecutionID: exec.ID,
		Timestamp:   time.Now().UTC(),
		StepID:      stepID,
		NodeID:      nodeID,
		Edge:        edge,
		Duration:    d,
		Payload:     payload,
	})
}

func (o *EventObserver) OnNodeFailed(ctx context.Context, exec *api.Execution, stepID, nodeID string, failure *api.Failure) {
	ev := api.ExecutionEvent{
		Type:        api.EventNodeFailed,
		WorkflowID:  exec.WorkflowID,
		ExecutionID: exec.ID,
		Timestamp:   time.Now().UTC(),
		StepID:      stepID,
		NodeID:      nodeID,
	}
	if failure != nil {
		ev.Payload = failure.Payload
		ev.Message = failure.Message
	}
	o.pub.Publish(ctx, ev)
}
