// Package plugin hosts third-party node packs behind a narrow lifecycle
// boundary. A plugin's only channel into the engine is the node registry
// it is handed at load time; the engine itself never imports this
// package.
package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nertverse/conduct/pkg/api"
)

// Plugin is a loadable node pack.
type Plugin interface {
	// Name identifies the plugin; it must be unique within a Manager.
	Name() string

	// OnLoad registers the plugin's nodes on host.Registry. A non-nil
	// error aborts the load and leaves the plugin unregistered.
	OnLoad(ctx context.Context, host *Host) error

	// OnUnload releases any resources the plugin holds. Registered nodes
	// stay registered; unload is a shutdown hook, not a rollback.
	OnUnload(ctx context.Context) error

	// HealthCheck reports whether the plugin's backing resources are
	// reachable. Stateless plugins return nil.
	HealthCheck(ctx context.Context) error
}

// Host is what a plugin sees of the application.
type Host struct {
	Registry *api.Registry
	Logger   *slog.Logger
}

// Manager loads and unloads plugins in order.
type Manager struct {
	host *Host

	mu     sync.Mutex
	loaded []Plugin
	byName map[string]Plugin
}

// NewManager creates a manager handing each plugin the given registry
// and logger. A nil logger defaults to slog.Default().
func NewManager(reg *api.Registry, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		host:   &Host{Registry: reg, Logger: logger},
		byName: map[string]Plugin{},
	}
}

// Load loads p. It fails when a plugin with the same name is already
// loaded or when the plugin's OnLoad returns an error.
func (m *Manager) Load(ctx context.Context, p Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := p.Name()
	if name == "" {
		return fmt.Errorf("plugin has an empty name")
	}
	if _, dup := m.byName[name]; dup {
		return fmt.Errorf("plugin %q is already loaded", name)
	}
	if err := p.OnLoad(ctx, m.host); err != nil {
		return fmt.Errorf("loading plugin %q: %w", name, err)
	}
	m.loaded = append(m.loaded, p)
	m.byName[name] = p
	m.host.Logger.InfoContext(ctx, "plugin_loaded", slog.String("plugin", name))
	return nil
}

// UnloadAll unloads every plugin in reverse load order, returning the
// first unload error after attempting all of them.
func (m *Manager) UnloadAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var first error
	for i := len(m.loaded) - 1; i >= 0; i-- {
		p := m.loaded[i]
		if err := p.OnUnload(ctx); err != nil && first == nil {
			first = fmt.Errorf("unloading plugin %q: %w", p.Name(), err)
		}
		delete(m.byName, p.Name())
	}
	m.loaded = nil
	return first
}

// Loaded returns the names of loaded plugins in load order.
func (m *Manager) Loaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.loaded))
	for i, p := range m.loaded {
		names[i] = p.Name()
	}
	return names
}

// HealthSweep runs every plugin's HealthCheck and returns a map of
// plugin name to result, with nil values for healthy plugins.
func (m *Manager) HealthSweep(ctx context.Context) map[string]error {
	m.mu.Lock()
	plugins := append([]Plugin(nil), m.loaded...)
	m.mu.Unlock()

	results := make(map[string]error, len(plugins))
	for _, p := range plugins {
		results[p.Name()] = p.HealthCheck(ctx)
	}
	return results
}
