package api

import "time"

// EventType identifies a lifecycle event.
type EventType string

const (
	EventRunStarted   EventType = "run.started"
	EventRunCompleted EventType = "run.completed"
	EventRunFailed    EventType = "run.failed"

	EventNodeStarted   EventType = "node.started"
	EventNodeCompleted EventType = "node.completed"
	EventNodeFailed    EventType = "node.failed"
)

// ExecutionEvent is the wire form of a lifecycle event. Downstream
// consumers track active-execution progress purely by replaying the
// event stream; the engine holds no knowledge of them.
//
// Fields beyond the common header are populated per event type:
//
//	run.started     TotalSteps, State (initial snapshot)
//	run.completed   Duration, State (final snapshot)
//	run.failed      Duration, NodeID, Payload (error payload)
//	node.started    NodeID, StepID
//	node.completed  NodeID, StepID, Edge, Duration, Payload
//	node.failed     NodeID, StepID, Payload (error payload)
type ExecutionEvent struct {
	Type        EventType `json:"type"`
	WorkflowID  string    `json:"workflowId"`
	ExecutionID string    `json:"executionId"`
	Timestamp   time.Time `json:"timestamp"`

	StepID     string         `json:"stepId,omitempty"`
	NodeID     string         `json:"nodeId,omitempty"`
	Edge       string         `json:"edge,omitempty"`
	TotalSteps int            `json:"totalSteps,omitempty"`
	Duration   time.Duration  `json:"duration,omitempty"`
	State      map[string]any `json:"state,omitempty"`
	Payload    map[string]any `json:"payload,omitempty"`
	Message    string         `json:"message,omitempty"`
}
