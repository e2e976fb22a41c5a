// Package broadcast fans execution lifecycle events out to external
// consumers. Delivery is fire-and-forget: a slow or absent consumer
// never blocks or fails a run.
package broadcast

import (
	"context"

	"github.com/nertverse/conduct/pkg/api"
)

// Publisher delivers lifecycle events to an external channel. Publish
// must not block; implementations drop events they cannot deliver.
type Publisher interface {
	Publish(ctx context.Context, event api.ExecutionEvent)
}

// ChannelPublisher delivers events to a buffered Go channel, dropping
// events when the buffer is full.
type ChannelPublisher struct {
	ch chan api.ExecutionEvent
}

// NewChannelPublisher creates a publisher with the given buffer size.
// Sizes below 1 get a buffer of 64.
func NewChannelPublisher(size int) *ChannelPublisher {
	if size < 1 {
		size = 64
	}
	return &ChannelPublisher{ch: make(chan api.ExecutionEvent, size)}
}

// Events returns the receive side of the publisher's channel.
func (p *ChannelPublisher) Events() <-chan api.ExecutionEvent {
	return p.ch
}

func (p *ChannelPublisher) Publish(_ context.Context, event api.ExecutionEvent) {
	select {
	case p.ch <- event:
	default:
	}
}
