// Package progress derives per-execution progress from lifecycle events.
//
// The engine publishes events without knowing who consumes them; this
// package is one such consumer, turning the event stream into a live
// view of which nodes have run, which failed, and how far along each
// execution is.
package progress

import (
	"sync"

	"github.com/nertverse/conduct/pkg/api"
)

// Snapshot is the derived progress of one execution.
type Snapshot struct {
	WorkflowID  string
	ExecutionID string

	TotalSteps  int
	CurrentStep string
	CurrentNode string

	CompletedNodes []string
	FailedNodes    []string

	Done   bool
	Failed bool
}

// PercentComplete reports completion as 0-100. Loops can run a step more
// than once, so the figure is clamped rather than exact.
func (s Snapshot) PercentComplete() float64 {
	if s.Done {
		return 100
	}
	if s.TotalSteps == 0 {
		return 0
	}
	pct := float64(len(s.CompletedNodes)) / float64(s.TotalSteps) * 100
	if pct > 99 {
		pct = 99
	}
	return pct
}

// Tracker consumes lifecycle events and maintains a Snapshot per active
// execution. It can be fed directly via Observe, or wired into an engine
// as an Observer through broadcast.NewEventObserver plus a drain
// goroutine over a ChannelPublisher.
type Tracker struct {
	mu    sync.RWMutex
	execs map[string]*Snapshot
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{execs: map[string]*Snapshot{}}
}

// Observe applies one event to the tracked state.
func (t *Tracker) Observe(ev api.ExecutionEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.execs[ev.ExecutionID]
	if !ok {
		s = &Snapshot{WorkflowID: ev.WorkflowID, ExecutionID: ev.ExecutionID}
		t.execs[ev.ExecutionID] = s
	}

	switch ev.Type {
	case api.EventRunStarted:
		s.TotalSteps = ev.TotalSteps
	case api.EventNodeStarted:
		s.CurrentStep = ev.StepID
		s.CurrentNode = ev.NodeID
	case api.EventNodeCompleted:
		s.CompletedNodes = append(s.CompletedNodes, ev.NodeID)
	case api.EventNodeFailed:
		s.FailedNodes = append(s.FailedNodes, ev.NodeID)
	case api.EventRunCompleted:
		s.Done = true
		s.CurrentStep = ""
		s.CurrentNode = ""
	case api.EventRunFailed:
		s.Done = true
		s.Failed = true
	}
}

// Get returns a copy of the snapshot for an execution.
func (t *Tracker) Get(executionID string) (Snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.execs[executionID]
	if !ok {
		return Snapshot{}, false
	}
	out := *s
	out.CompletedNodes = append([]string(nil), s.CompletedNodes...)
	out.FailedNodes = append([]string(nil), s.FailedNodes...)
	return out, true
}

// Forget drops a finished execution from the tracker.
func (t *Tracker) Forget(executionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.execs, executionID)
}
