package plugin

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nertverse/conduct/pkg/api"
	"github.com/nertverse/conduct/pkg/nodes/math"
)

type fakePlugin struct {
	name      string
	loadErr   error
	unloadErr error
	healthErr error

	loads   int
	unloads int
	host    *Host
}

func (p *fakePlugin) Name() string { return p.name }

func (p *fakePlugin) OnLoad(ctx context.Context, host *Host) error {
	p.loads++
	p.host = host
	return p.loadErr
}

func (p *fakePlugin) OnUnload(ctx context.Context) error {
	p.unloads++
	return p.unloadErr
}

func (p *fakePlugin) HealthCheck(ctx context.Context) error {
	return p.healthErr
}

func newTestManager() *Manager {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewManager(api.NewRegistry(), logger)
}

func TestManagerLoad(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	ctx := context.Background()

	p := &fakePlugin{name: "extras"}
	require.NoError(t, m.Load(ctx, p))
	assert.Equal(t, 1, p.loads)
	assert.NotNil(t, p.host)
	assert.NotNil(t, p.host.Registry)
	assert.Equal(t, []string{"extras"}, m.Loaded())
}

func TestManagerRejectsDuplicateName(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	ctx := context.Background()

	require.NoError(t, m.Load(ctx, &fakePlugin{name: "extras"}))
	err := m.Load(ctx, &fakePlugin{name: "extras"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already loaded")
	assert.Len(t, m.Loaded(), 1)
}

func TestManagerRejectsEmptyName(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	err := m.Load(context.Background(), &fakePlugin{})
	require.Error(t, err)
	assert.Empty(t, m.Loaded())
}

func TestManagerLoadErrorLeavesPluginUnregistered(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	p := &fakePlugin{name: "broken", loadErr: errors.New("no database")}

	err := m.Load(context.Background(), p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `plugin "broken"`)
	assert.Empty(t, m.Loaded())

	// The name is free again after a failed load.
	require.NoError(t, m.Load(context.Background(), &fakePlugin{name: "broken"}))
}

func TestManagerUnloadAllUnloadsEverything(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	ctx := context.Background()

	a, b, c := &fakePlugin{name: "a"}, &fakePlugin{name: "b"}, &fakePlugin{name: "c"}
	for _, p := range []*fakePlugin{a, b, c} {
		require.NoError(t, m.Load(ctx, p))
	}

	require.NoError(t, m.UnloadAll(ctx))
	assert.Empty(t, m.Loaded())
	for _, p := range []*fakePlugin{a, b, c} {
		assert.Equal(t, 1, p.unloads)
	}
}

type orderedPlugin struct {
	fakePlugin
	order *[]string
}

func (p *orderedPlugin) OnUnload(ctx context.Context) error {
	*p.order = append(*p.order, p.name)
	return p.unloadErr
}

func TestManagerUnloadOrderIsReversed(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	ctx := context.Background()

	var order []string
	for _, name := range []string{"a", "b", "c"} {
		p := &orderedPlugin{order: &order}
		p.name = name
		require.NoError(t, m.Load(ctx, p))
	}

	require.NoError(t, m.UnloadAll(ctx))
	assert.Equal(t, []string{"c", "b", "a"}, order)
}

func TestManagerUnloadAllReturnsFirstError(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	ctx := context.Background()

	ok := &fakePlugin{name: "ok"}
	bad := &fakePlugin{name: "bad", unloadErr: errors.New("stuck")}
	require.NoError(t, m.Load(ctx, ok))
	require.NoError(t, m.Load(ctx, bad))

	err := m.UnloadAll(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `plugin "bad"`)
	// Every plugin is still unloaded despite the error.
	assert.Equal(t, 1, ok.unloads)
	assert.Empty(t, m.Loaded())
}

func TestManagerHealthSweep(t *testing.T) {
	t.Parallel()

	m := newTestManager()
	ctx := context.Background()

	require.NoError(t, m.Load(ctx, &fakePlugin{name: "healthy"}))
	require.NoError(t, m.Load(ctx, &fakePlugin{name: "sick", healthErr: errors.New("unreachable")}))

	results := m.HealthSweep(ctx)
	require.Len(t, results, 2)
	assert.NoError(t, results["healthy"])
	assert.Error(t, results["sick"])
}

// nodePackPlugin registers a real node, the way an actual node pack
// would.
type nodePackPlugin struct{}

func (nodePackPlugin) Name() string { return "arithmetic" }

func (nodePackPlugin) OnLoad(ctx context.Context, host *Host) error {
	return host.Registry.Register(math.New())
}

func (nodePackPlugin) OnUnload(ctx context.Context) error    { return nil }
func (nodePackPlugin) HealthCheck(ctx context.Context) error { return nil }

func TestPluginRegistersNodes(t *testing.T) {
	t.Parallel()

	reg := api.NewRegistry()
	m := NewManager(reg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	require.NoError(t, m.Load(context.Background(), nodePackPlugin{}))

	n, ok := reg.Get("math")
	require.True(t, ok)
	assert.Equal(t, "math", n.Metadata().ID)
}
