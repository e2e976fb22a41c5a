package api

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFiredSingleEdge(t *testing.T) {
	t.Parallel()

	em := FireSuccess(map[string]any{"n": 1})

	edge, thunk, err := em.Fired()
	require.NoError(t, err)
	assert.Equal(t, EdgeSuccess, edge)
	assert.Equal(t, map[string]any{"n": 1}, thunk(context.Background()))
}

func TestFiredNoEdgeIsContractViolation(t *testing.T) {
	t.Parallel()

	_, _, err := EdgeMap{}.Fired()
	require.Error(t, err)
	assert.True(t, IsContractViolation(err))
}

func TestFiredMultipleEdgesIsContractViolation(t *testing.T) {
	t.Parallel()

	em := EdgeMap{
		EdgeSuccess: func(context.Context) map[string]any { return nil },
		EdgeError:   func(context.Context) map[string]any { return nil },
	}

	_, _, err := em.Fired()
	require.Error(t, err)
	assert.True(t, IsContractViolation(err))
}

func TestFiredIgnoresNilThunks(t *testing.T) {
	t.Parallel()

	em := EdgeMap{
		EdgeSuccess: func(context.Context) map[string]any { return map[string]any{"ok": true} },
		EdgeError:   nil,
	}

	edge, _, err := em.Fired()
	require.NoError(t, err)
	assert.Equal(t, EdgeSuccess, edge)
}

func TestFireErrorMergesFields(t *testing.T) {
	t.Parallel()

	em := FireError("boom", map[string]any{"code": 7})

	edge, thunk, err := em.Fired()
	require.NoError(t, err)
	assert.Equal(t, EdgeError, edge)

	payload := thunk(context.Background())
	assert.Equal(t, "boom", payload["message"])
	assert.Equal(t, 7, payload["code"])
}

func TestIsFailureEdge(t *testing.T) {
	t.Parallel()

	for _, edge := range []string{"error", "invalid", "not_found", "unresolved", "timeout", "failed"} {
		assert.True(t, IsFailureEdge(edge), edge)
	}
	for _, edge := range []string{"success", "do", "done", "valid", "true", "false"} {
		assert.False(t, IsFailureEdge(edge), edge)
	}
}
