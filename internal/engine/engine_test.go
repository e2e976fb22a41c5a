package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nertverse/conduct/pkg/api"
)

// testNode is a configurable node for engine tests: fn runs per
// invocation, edges is what the node claims it can fire.
type testNode struct {
	id    string
	edges []string
	fn    func(ctx context.Context, ec *api.ExecutionContext, config map[string]any) (api.EdgeMap, error)
}

func (n *testNode) Metadata() api.NodeMetadata {
	return api.NodeMetadata{
		ID:      n.id,
		Name:    n.id,
		Version: "0.0.1",
		AIHints: api.AIHints{ExpectedEdges: n.edges},
	}
}

func (n *testNode) Execute(ctx context.Context, ec *api.ExecutionContext, config map[string]any) (api.EdgeMap, error) {
	return n.fn(ctx, ec, config)
}

// addNode sums numeric config values into an output state key, the way
// the builtin math node does.
func addNode() *testNode {
	return &testNode{
		id:    "add",
		edges: []string{api.EdgeSuccess, api.EdgeError},
		fn: func(_ context.Context, ec *api.ExecutionContext, config map[string]any) (api.EdgeMap, error) {
			values, ok := config["values"].([]any)
			if !ok || len(values) == 0 {
				return api.FireError("add: missing required parameter \"values\""), nil
			}
			var sum float64
			for _, v := range values {
				n, ok := api.ToNumber(api.ResolveRef(ec.State, v))
				if !ok {
					return api.FireError("add: non-numeric value"), nil
				}
				sum += n
			}
			key := "mathResult"
			if k, ok := config["outputKey"].(string); ok && k != "" {
				key = k
			}
			ec.State[key] = sum
			return api.FireSuccess(map[string]any{key: sum}), nil
		},
	}
}

// whileNode is a minimal loop head driven by a condition on state.
func whileNode() *testNode {
	return &testNode{
		id:    "while",
		edges: []string{api.EdgeDo, api.EdgeDone, api.EdgeError},
		fn: func(_ context.Context, ec *api.ExecutionContext, config map[string]any) (api.EdgeMap, error) {
			cond := config["condition"].(map[string]any)
			max := 1000.0
			if m, ok := api.ToNumber(config["maxIterations"]); ok && m > 0 {
				max = m
			}

			key := api.LoopStateKey(ec.StepID)
			iter, _ := api.ToNumber(ec.State[key])
			if iter >= max {
				delete(ec.State, key)
				return api.FireError("loop exhausted", map[string]any{"iterations": int(iter)}), nil
			}

			holds, err := api.Compare(
				cond["operator"].(string),
				api.ResolveRef(ec.State, cond["left"]),
				api.ResolveRef(ec.State, cond["right"]),
			)
			if err != nil {
				return api.FireError(err.Error()), nil
			}
			if !holds {
				delete(ec.State, key)
				ec.State["whileIteration"] = iter
				return api.Fire(api.EdgeDone, map[string]any{"iterations": iter}), nil
			}
			ec.State[key] = iter + 1
			return api.Fire(api.EdgeDo, map[string]any{"iteration": iter + 1}), nil
		},
	}
}

func recordNode(id string, log *[]string) *testNode {
	return &testNode{
		id:    id,
		edges: []string{api.EdgeSuccess},
		fn: func(_ context.Context, ec *api.ExecutionContext, _ map[string]any) (api.EdgeMap, error) {
			*log = append(*log, ec.StepID)
			return api.FireSuccess(map[string]any{"step": ec.StepID}), nil
		},
	}
}

func newTestEngine(t *testing.T, nodes ...api.Node) api.Engine {
	t.Helper()
	reg := api.NewRegistry()
	for _, n := range nodes {
		reg.MustRegister(n)
	}
	return NewInMemoryEngine(reg)
}

func registerJSON(t *testing.T, eng api.Engine, raw string) api.FlowDefinition {
	t.Helper()
	def, err := api.ParseDefinition([]byte(raw))
	require.NoError(t, err)
	require.NoError(t, eng.RegisterDefinition(def))
	return def
}

func TestExecuteSingleStepCompletes(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, addNode())
	registerJSON(t, eng, `{
		"id": "sum",
		"workflow": [{"add-1": {"values": [10, 20, 30], "success?": "end"}}]
	}`)

	exec, err := eng.Execute(context.Background(), "sum", nil)
	require.NoError(t, err)

	assert.Equal(t, api.StatusCompleted, exec.Status)
	assert.Equal(t, 60.0, exec.State["mathResult"])
	require.Len(t, exec.Edges, 1)
	assert.Equal(t, "add-1", exec.Edges[0].StepID)
	assert.Equal(t, "add", exec.Edges[0].NodeID)
	assert.Equal(t, api.EdgeSuccess, exec.Edges[0].Edge)
}

func TestExecuteUntargetedSuccessTerminates(t *testing.T) {
	t.Parallel()

	var log []string
	eng := newTestEngine(t, recordNode("record", &log))
	registerJSON(t, eng, `{
		"id": "wf",
		"workflow": [
			{"record-1": {}},
			{"record-2": {}}
		]
	}`)

	exec, err := eng.Execute(context.Background(), "wf", nil)
	require.NoError(t, err)

	// With no target for the fired edge the run terminates; the second
	// step is only reachable through an explicit declaration.
	assert.Equal(t, api.StatusCompleted, exec.Status)
	assert.Equal(t, []string{"record-1"}, log)
	assert.Equal(t, map[string]any{"step": "record-1"}, exec.Output)
}

func TestExecuteFollowsEdgeTargets(t *testing.T) {
	t.Parallel()

	var log []string
	eng := newTestEngine(t, recordNode("record", &log))
	registerJSON(t, eng, `{
		"id": "wf",
		"workflow": [
			{"record-1": {"success?": "record-3"}},
			{"record-2": {}},
			{"record-3": {"success?": "record-2"}}
		]
	}`)

	exec, err := eng.Execute(context.Background(), "wf", nil)
	require.NoError(t, err)

	assert.Equal(t, api.StatusCompleted, exec.Status)
	assert.Equal(t, []string{"record-1", "record-3", "record-2"}, log)
	require.Len(t, exec.Edges, 3)
}

func TestExecuteLoopWithInlineBody(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, addNode(), whileNode())
	registerJSON(t, eng, `{
		"id": "count",
		"initialState": {"count": 0},
		"workflow": [
			{"while...": {
				"condition": {"left": "$.count", "operator": "<", "right": 3},
				"steps": [
					{"add": {"values": ["$.count", 1], "outputKey": "count"}}
				]
			}}
		]
	}`)

	exec, err := eng.Execute(context.Background(), "count", nil)
	require.NoError(t, err)

	assert.Equal(t, api.StatusCompleted, exec.Status)
	assert.Equal(t, 3.0, exec.State["count"])
	assert.Equal(t, 3.0, exec.State["whileIteration"])

	// do fired 3 times, done once, body ran 3 times.
	var dos, dones, bodies int
	for _, e := range exec.Edges {
		switch {
		case e.StepID == "while" && e.Edge == api.EdgeDo:
			dos++
		case e.StepID == "while" && e.Edge == api.EdgeDone:
			dones++
		case e.StepID == "add":
			bodies++
		}
	}
	assert.Equal(t, 3, dos)
	assert.Equal(t, 1, dones)
	assert.Equal(t, 3, bodies)

	// Loop bookkeeping is cleaned up on exit.
	_, dangling := exec.State[api.LoopStateKey("while")]
	assert.False(t, dangling)
}

func TestExecuteLoopWithExplicitTargets(t *testing.T) {
	t.Parallel()

	var log []string
	eng := newTestEngine(t, addNode(), whileNode(), recordNode("finish", &log))
	registerJSON(t, eng, `{
		"id": "count",
		"initialState": {"count": 0},
		"workflow": [
			{"while...": {
				"condition": {"left": "$.count", "operator": "<", "right": 3},
				"do?": "add",
				"done?": "finish"
			}},
			{"add": {"values": ["$.count", 1], "outputKey": "count"}},
			{"finish": {}}
		]
	}`)

	exec, err := eng.Execute(context.Background(), "count", nil)
	require.NoError(t, err)

	assert.Equal(t, api.StatusCompleted, exec.Status)
	assert.Equal(t, 3.0, exec.State["count"])
	assert.Equal(t, []string{"finish"}, log)
}

func TestExecuteBodyStepTargetsLoopHeadExplicitly(t *testing.T) {
	t.Parallel()

	// The body step routes back to the head with an explicit target
	// instead of an untargeted success. Post-loop steps must still run
	// exactly once.
	var log []string
	eng := newTestEngine(t, addNode(), whileNode(), recordNode("finish", &log))
	registerJSON(t, eng, `{
		"id": "count",
		"initialState": {"count": 0},
		"workflow": [
			{"while...": {
				"condition": {"left": "$.count", "operator": "<", "right": 3},
				"do?": "add",
				"done?": "finish"
			}},
			{"add": {"values": ["$.count", 1], "outputKey": "count", "success?": "while"}},
			{"finish": {}}
		]
	}`)

	exec, err := eng.Execute(context.Background(), "count", nil)
	require.NoError(t, err)

	assert.Equal(t, api.StatusCompleted, exec.Status)
	assert.Equal(t, 3.0, exec.State["count"])
	assert.Equal(t, []string{"finish"}, log)
}

func TestExecuteLoopDoneContinuesOuterSequence(t *testing.T) {
	t.Parallel()

	var log []string
	eng := newTestEngine(t, addNode(), whileNode(), recordNode("after", &log))
	registerJSON(t, eng, `{
		"id": "count",
		"initialState": {"count": 0},
		"workflow": [
			{"while...": {
				"condition": {"left": "$.count", "operator": "<", "right": 2},
				"steps": [{"add": {"values": ["$.count", 1], "outputKey": "count"}}]
			}},
			{"after": {}}
		]
	}`)

	exec, err := eng.Execute(context.Background(), "count", nil)
	require.NoError(t, err)

	assert.Equal(t, api.StatusCompleted, exec.Status)
	assert.Equal(t, []string{"after"}, log)
}

func TestExecuteNestedLoops(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, addNode(), whileNode())
	registerJSON(t, eng, `{
		"id": "nested",
		"initialState": {"outer": 0, "total": 0},
		"workflow": [
			{"while...": {
				"condition": {"left": "$.outer", "operator": "<", "right": 2},
				"steps": [
					{"add": {"values": ["$.outer", 1], "outputKey": "outer"}},
					{"while-2...": {
						"condition": {"left": "$.inner", "operator": "<", "right": 3},
						"steps": [
							{"add-2": {"values": ["$.inner", 1], "outputKey": "inner"}},
							{"add-3": {"values": ["$.total", 1], "outputKey": "total"}}
						]
					}}
				]
			}}
		]
	}`)

	exec, err := eng.Execute(context.Background(), "nested", map[string]any{"inner": 0})
	require.NoError(t, err)

	assert.Equal(t, api.StatusCompleted, exec.Status)
	assert.Equal(t, 2.0, exec.State["outer"])
	// Inner loop runs to 3 on the first outer pass and is already
	// satisfied on the second: 3 total increments.
	assert.Equal(t, 3.0, exec.State["total"])
}

func TestExecuteLoopExhaustionFailsRouted(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, addNode(), whileNode())
	registerJSON(t, eng, `{
		"id": "forever",
		"initialState": {"count": 0},
		"workflow": [
			{"while...": {
				"condition": {"left": 1, "operator": "<", "right": 2},
				"maxIterations": 5,
				"steps": [{"add": {"values": [1, 1]}}]
			}}
		]
	}`)

	exec, err := eng.Execute(context.Background(), "forever", nil)
	require.Error(t, err)

	assert.Equal(t, api.StatusFailed, exec.Status)
	require.NotNil(t, exec.Failure)
	assert.Equal(t, api.FailureRouted, exec.Failure.Kind)
	assert.Equal(t, api.EdgeError, exec.Failure.Edge)
	assert.Equal(t, 5, exec.Failure.Payload["iterations"])
}

func TestExecuteRoutedFailureWithoutTarget(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, addNode())
	registerJSON(t, eng, `{
		"id": "bad",
		"workflow": [{"add": {}}]
	}`)

	exec, err := eng.Execute(context.Background(), "bad", nil)
	require.Error(t, err)

	assert.Equal(t, api.StatusFailed, exec.Status)
	require.NotNil(t, exec.Failure)
	assert.Equal(t, api.FailureRouted, exec.Failure.Kind)

	// The failure payload is returned verbatim.
	assert.Equal(t, "add: missing required parameter \"values\"", exec.Failure.Payload["message"])
	assert.Equal(t, exec.Failure.Payload, exec.Output)

	var f *api.Failure
	require.ErrorAs(t, err, &f)
}

func TestExecuteRoutedFailureWithTargetContinues(t *testing.T) {
	t.Parallel()

	var log []string
	eng := newTestEngine(t, addNode(), recordNode("cleanup", &log))
	registerJSON(t, eng, `{
		"id": "recovers",
		"workflow": [
			{"add": {"error?": "cleanup"}},
			{"cleanup": {}}
		]
	}`)

	exec, err := eng.Execute(context.Background(), "recovers", nil)
	require.NoError(t, err)

	assert.Equal(t, api.StatusCompleted, exec.Status)
	assert.Equal(t, []string{"cleanup"}, log)
}

func TestExecuteContractViolationMultipleEdges(t *testing.T) {
	t.Parallel()

	double := &testNode{
		id:    "double",
		edges: []string{api.EdgeSuccess, api.EdgeError},
		fn: func(context.Context, *api.ExecutionContext, map[string]any) (api.EdgeMap, error) {
			return api.EdgeMap{
				api.EdgeSuccess: func(context.Context) map[string]any { return nil },
				api.EdgeError:   func(context.Context) map[string]any { return nil },
			}, nil
		},
	}

	eng := newTestEngine(t, double)
	registerJSON(t, eng, `{"id": "wf", "workflow": [{"double": {}}]}`)

	exec, err := eng.Execute(context.Background(), "wf", nil)
	require.Error(t, err)

	assert.Equal(t, api.StatusFailed, exec.Status)
	require.NotNil(t, exec.Failure)
	assert.Equal(t, api.FailureFatal, exec.Failure.Kind)
	assert.Contains(t, exec.Failure.Message, "multiple edges")
}

func TestExecuteNodeErrorIsFatal(t *testing.T) {
	t.Parallel()

	broken := &testNode{
		id:    "broken",
		edges: []string{api.EdgeSuccess},
		fn: func(context.Context, *api.ExecutionContext, map[string]any) (api.EdgeMap, error) {
			return nil, errors.New("kaboom")
		},
	}

	eng := newTestEngine(t, broken)
	registerJSON(t, eng, `{"id": "wf", "workflow": [{"broken": {}}]}`)

	exec, err := eng.Execute(context.Background(), "wf", nil)
	require.Error(t, err)

	assert.Equal(t, api.StatusFailed, exec.Status)
	assert.Equal(t, api.FailureFatal, exec.Failure.Kind)
	assert.Contains(t, exec.Failure.Message, "kaboom")
}

func TestExecuteInitialStateOverrides(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, addNode())
	registerJSON(t, eng, `{
		"id": "wf",
		"initialState": {"base": 10, "extra": 1},
		"workflow": [{"add": {"values": ["$.base", "$.extra"], "success?": "end"}}]
	}`)

	exec, err := eng.Execute(context.Background(), "wf", map[string]any{"extra": 5})
	require.NoError(t, err)
	assert.Equal(t, 15.0, exec.State["mathResult"])
}

func TestExecuteStateIsolationBetweenRuns(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, addNode())
	registerJSON(t, eng, `{
		"id": "wf",
		"initialState": {"base": 1},
		"workflow": [{"add": {"values": ["$.base", "$.base"], "outputKey": "base", "success?": "end"}}]
	}`)

	for i := 0; i < 3; i++ {
		exec, err := eng.Execute(context.Background(), "wf", nil)
		require.NoError(t, err)
		// Every run starts from the pristine initial state.
		assert.Equal(t, 2.0, exec.State["base"])
	}
}

func TestExecuteConcurrentRuns(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, addNode(), whileNode())
	registerJSON(t, eng, `{
		"id": "count",
		"initialState": {"count": 0},
		"workflow": [
			{"while...": {
				"condition": {"left": "$.count", "operator": "<", "right": 50},
				"steps": [{"add": {"values": ["$.count", 1], "outputKey": "count"}}]
			}}
		]
	}`)

	const runs = 16
	var wg sync.WaitGroup
	errs := make([]error, runs)
	execs := make([]*api.Execution, runs)

	wg.Add(runs)
	for i := 0; i < runs; i++ {
		go func(i int) {
			defer wg.Done()
			execs[i], errs[i] = eng.Execute(context.Background(), "count", nil)
		}(i)
	}
	wg.Wait()

	ids := make(map[string]bool, runs)
	for i := 0; i < runs; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, api.StatusCompleted, execs[i].Status)
		assert.Equal(t, 50.0, execs[i].State["count"])
		ids[execs[i].ID] = true
	}
	assert.Len(t, ids, runs)
}

func TestExecuteContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())

	blocker := &testNode{
		id:    "blocker",
		edges: []string{api.EdgeSuccess},
		fn: func(ctx context.Context, _ *api.ExecutionContext, _ map[string]any) (api.EdgeMap, error) {
			cancel()
			return api.FireSuccess(nil), nil
		},
	}

	eng := newTestEngine(t, blocker)
	registerJSON(t, eng, `{
		"id": "wf",
		"workflow": [
			{"blocker": {"success?": "blocker-2"}},
			{"blocker-2": {}}
		]
	}`)

	exec, err := eng.Execute(ctx, "wf", nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, api.StatusFailed, exec.Status)
	assert.Equal(t, api.FailureFatal, exec.Failure.Kind)
}

func TestExecuteUnknownWorkflow(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, addNode())
	_, err := eng.Execute(context.Background(), "nope", nil)
	require.Error(t, err)
}

func TestRegisterDefinitionValidates(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, addNode())

	def, err := api.ParseDefinition([]byte(`{"id": "wf", "workflow": [{"mystery": {}}]}`))
	require.NoError(t, err)

	regErr := eng.RegisterDefinition(def)
	require.Error(t, regErr)
	var de *api.DefinitionError
	assert.ErrorAs(t, regErr, &de)
}

func TestGetAndListExecutions(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(t, addNode())
	registerJSON(t, eng, `{
		"id": "sum",
		"workflow": [{"add": {"values": [1, 2], "success?": "end"}}]
	}`)
	registerJSON(t, eng, `{
		"id": "fails",
		"workflow": [{"add-1": {}}]
	}`)

	ctx := context.Background()
	ok1, err := eng.Execute(ctx, "sum", nil)
	require.NoError(t, err)
	_, _ = eng.Execute(ctx, "fails", nil)

	got, err := eng.GetExecution(ctx, ok1.ID)
	require.NoError(t, err)
	assert.Equal(t, ok1.ID, got.ID)
	assert.Equal(t, api.StatusCompleted, got.Status)

	_, err = eng.GetExecution(ctx, "missing")
	require.Error(t, err)

	completed, err := eng.ListExecutions(ctx, api.ExecutionListOptions{Status: api.StatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 1)

	byWorkflow, err := eng.ListExecutions(ctx, api.ExecutionListOptions{WorkflowID: "fails"})
	require.NoError(t, err)
	require.Len(t, byWorkflow, 1)
	assert.Equal(t, api.StatusFailed, byWorkflow[0].Status)
}

func TestObserverLifecycleOrdering(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var events []string
	obs := &orderObserver{mu: &mu, events: &events}

	reg := api.NewRegistry()
	reg.MustRegister(addNode())
	eng := NewInMemoryEngineWithObserver(reg, obs)

	registerJSON(t, eng, `{
		"id": "sum",
		"workflow": [
			{"add-1": {"values": [1], "success?": "add-2"}},
			{"add-2": {"values": [2], "success?": "end"}}
		]
	}`)

	_, err := eng.Execute(context.Background(), "sum", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"run:start",
		"node:start:add-1", "node:done:add-1",
		"node:start:add-2", "node:done:add-2",
		"run:completed",
	}, events)
}

type orderObserver struct {
	api.NoopObserver
	mu     *sync.Mutex
	events *[]string
}

func (o *orderObserver) record(ev string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	*o.events = append(*o.events, ev)
}

func (o *orderObserver) OnRunStart(_ context.Context, _ *api.Execution, _ int) {
	o.record("run:start")
}

func (o *orderObserver) OnRunCompleted(_ context.Context, _ *api.Execution, _ time.Duration) {
	o.record("run:completed")
}

func (o *orderObserver) OnNodeStart(_ context.Context, _ *api.Execution, stepID, _ string) {
	o.record("node:start:" + stepID)
}

func (o *orderObserver) OnNodeCompleted(_ context.Context, _ *api.Execution, stepID, _, _ string, _ map[string]any, _ time.Duration) {
	o.record("node:done:" + stepID)
}

func TestEveryStepRunsOnceInAcyclicFlow(t *testing.T) {
	t.Parallel()

	var log []string
	eng := newTestEngine(t, recordNode("record", &log))

	const steps = 5
	workflow := ""
	for i := 1; i <= steps; i++ {
		if i > 1 {
			workflow += ","
		}
		target := fmt.Sprintf("record-%d", i+1)
		if i == steps {
			target = "end"
		}
		workflow += fmt.Sprintf(`{"record-%d": {"success?": "%s"}}`, i, target)
	}
	registerJSON(t, eng, `{"id": "chain", "workflow": [`+workflow+`]}`)

	exec, err := eng.Execute(context.Background(), "chain", nil)
	require.NoError(t, err)

	assert.Equal(t, api.StatusCompleted, exec.Status)
	require.Len(t, log, steps)
	seen := map[string]int{}
	for _, id := range log {
		seen[id]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, id)
	}
}
