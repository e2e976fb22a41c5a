package api

import (
	"fmt"
	"sync"
)

// Registry maps node IDs to Node implementations. It is safe for
// concurrent use, but the intended discipline is register-at-startup:
// once an engine is serving executions the registry is read-only and
// shared by all of them.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]Node
}

// NewRegistry creates an empty node registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]Node)}
}

// Register adds a node implementation keyed by its metadata ID.
// The node must declare at least one expected edge; duplicate IDs are
// rejected.
func (r *Registry) Register(n Node) error {
	md := n.Metadata()
	if md.ID == "" {
		return fmt.Errorf("node has empty ID")
	}
	if len(md.AIHints.ExpectedEdges) == 0 {
		return fmt.Errorf("node %q declares no expected edges", md.ID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[md.ID]; exists {
		return fmt.Errorf("node %q already registered", md.ID)
	}
	r.nodes[md.ID] = n
	return nil
}

// MustRegister is Register that panics on error. Intended for
// startup-time wiring where a registration failure is a programming bug.
func (r *Registry) MustRegister(n Node) {
	if err := r.Register(n); err != nil {
		panic(err)
	}
}

// Get returns the node registered under id.
func (r *Registry) Get(id string) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[id]
	return n, ok
}

// IDs returns the registered node IDs in unspecified order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.nodes))
	for id := range r.nodes {
		out = append(out, id)
	}
	return out
}
