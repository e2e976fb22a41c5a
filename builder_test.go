package conduct

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nertverse/conduct/pkg/nodes"
)

func newBuiltinEngine(t *testing.T) Engine {
	t.Helper()
	reg := NewRegistry()
	require.NoError(t, nodes.RegisterBuiltins(reg))
	return NewInMemoryEngine(reg)
}

func TestBuilderProducesSingleKeySteps(t *testing.T) {
	t.Parallel()

	def := NewDefinition("signup", "Signup").
		Version("1.2.0").
		InitialState(map[string]any{"n": 1.0}).
		Step("math", map[string]any{"operation": "add", "values": []any{"$.n", 1.0}}).
		Definition()

	assert.Equal(t, "signup", def.ID)
	assert.Equal(t, "Signup", def.Name)
	assert.Equal(t, "1.2.0", def.Version)
	assert.Equal(t, map[string]any{"n": 1.0}, def.InitialState)
	require.Len(t, def.Workflow, 1)
	assert.Equal(t, "math", def.Workflow[0].Key)
	assert.Equal(t, "add", def.Workflow[0].Config["operation"])
}

func TestBuilderTargetSetsEdgeKey(t *testing.T) {
	t.Parallel()

	def := NewDefinition("branch", "Branch").
		Step("if", map[string]any{"condition": map[string]any{"left": 1.0, "operator": "<", "right": 2.0}}).
		Target("true", "winner").
		Target("false", "end").
		Step("math-winner", nil).
		Definition()

	cfg := def.Workflow[0].Config
	assert.Equal(t, "winner", cfg["true?"])
	assert.Equal(t, "end", cfg["false?"])
	assert.NotContains(t, cfg, "true")
}

func TestBuilderLoopNestsBodySteps(t *testing.T) {
	t.Parallel()

	def := NewDefinition("count", "Count").
		InitialState(map[string]any{"count": 0.0}).
		Loop("while", map[string]any{
			"condition": map[string]any{"left": "$.count", "operator": "<", "right": 3.0},
		}, func(b *DefinitionBuilder) {
			b.Step("math", map[string]any{
				"operation": "add",
				"values":    []any{"$.count", 1.0},
				"outputKey": "count",
			})
		}).
		Definition()

	require.Len(t, def.Workflow, 1)
	assert.Equal(t, "while...", def.Workflow[0].Key)
	body, ok := def.Workflow[0].Config["steps"].([]any)
	require.True(t, ok)
	require.Len(t, body, 1)
	step := body[0].(map[string]any)
	assert.Contains(t, step, "math")
}

func TestBuilderPanics(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { NewDefinition("x", "X").Step("", nil) })
	assert.Panics(t, func() { NewDefinition("x", "X").Target("success", "end") })
	assert.Panics(t, func() { NewDefinition("x", "X").Loop("", nil, func(*DefinitionBuilder) {}) })
	assert.Panics(t, func() { NewDefinition("x", "X").Loop("while", nil, nil) })
}

func TestBuilderDefinitionExecutes(t *testing.T) {
	t.Parallel()

	eng := newBuiltinEngine(t)

	b := NewDefinition("double-until", "Double Until").
		InitialState(map[string]any{"n": 1.0}).
		Loop("while", map[string]any{
			"condition": map[string]any{"left": "$.n", "operator": "<", "right": 10.0},
		}, func(body *DefinitionBuilder) {
			body.Step("math", map[string]any{
				"operation": "multiply",
				"values":    []any{"$.n", 2.0},
				"outputKey": "n",
			})
		})
	require.NoError(t, b.Register(eng))

	exec, err := Execute(context.Background(), eng, "double-until", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, exec.Status)
	assert.Equal(t, 16.0, exec.State["n"])
}

func TestBuilderMustRegisterPanicsOnBadDefinition(t *testing.T) {
	t.Parallel()

	eng := newBuiltinEngine(t)

	// Unknown node ID fails definition validation.
	b := NewDefinition("bad", "Bad").Step("no-such-node", nil)
	assert.Panics(t, func() { b.MustRegister(eng) })
}

func TestBuilderExplicitTargetChain(t *testing.T) {
	t.Parallel()

	eng := newBuiltinEngine(t)

	b := NewDefinition("chain", "Chain").
		InitialState(map[string]any{"text": "hello"}).
		Step("hash", map[string]any{"operation": "sha256", "value": "$.text"}).
		Target("success", "math").
		Step("math", map[string]any{"operation": "add", "values": []any{1.0, 2.0}})
	require.NoError(t, b.Register(eng))

	exec, err := Execute(context.Background(), eng, "chain", nil)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, exec.Status)
	assert.NotEmpty(t, exec.State["hashResult"])
	assert.Equal(t, 3.0, exec.State["mathResult"])
}
