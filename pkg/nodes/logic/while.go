// Package logic provides condition-bearing nodes, including the "while"
// loop head that drives the engine's loop construct.
package logic

import (
	"context"
	"fmt"

	"github.com/nertverse/conduct/pkg/api"
)

// DefaultMaxIterations caps a loop that never satisfies its exit
// condition.
const DefaultMaxIterations = 1000

// IterationStateKey is the state key the while node posts its current
// iteration count under.
const IterationStateKey = "whileIteration"

// While implements the "while" loop-head node. Each invocation
// re-evaluates its condition against live state and fires:
//
//	do    the condition holds; the engine runs the loop body once and
//	      re-invokes this node
//	done  the condition no longer holds; the loop exits
//	error the iteration cap was exceeded
//
// The node owns its iteration counter and cap, stored in the state bag
// under the engine-reserved loop key for its step; the bookkeeping entry
// is removed when the loop exits either way.
type While struct{}

// NewWhile creates a while loop-head node.
func NewWhile() *While { return &While{} }

func (*While) Metadata() api.NodeMetadata {
	return api.NodeMetadata{
		ID:          "while",
		Name:        "While",
		Version:     "1.0.0",
		Description: "Repeats its loop body while a condition on state holds.",
		Inputs:      []string{"condition", "maxIterations"},
		Outputs:     []string{IterationStateKey},
		AIHints: api.AIHints{
			Purpose:       "Loop control",
			WhenToUse:     "As a loop head: re-evaluated between body passes until the condition fails or the cap is hit.",
			ExpectedEdges: []string{api.EdgeDo, api.EdgeDone, api.EdgeError},
			ExampleConfig: map[string]any{
				"condition": map[string]any{
					"left":     "$.count",
					"operator": "<",
					"right":    3,
				},
			},
			GetFromState: []string{"condition operands referenced via $."},
			PostToState:  []string{IterationStateKey},
		},
	}
}

// loop bookkeeping, persisted as a JSON-shaped map so it survives
// state snapshots and durable stores.
type loopState struct {
	Iteration int
	Max       int
}

func (*While) Execute(ctx context.Context, ec *api.ExecutionContext, config map[string]any) (api.EdgeMap, error) {
	cond, ok := config["condition"].(map[string]any)
	if !ok {
		return api.FireError("while: missing required parameter \"condition\""), nil
	}

	key := api.LoopStateKey(ec.StepID)
	ls := loadLoopState(ec.State, key)
	if ls.Max == 0 {
		ls.Max = DefaultMaxIterations
		if raw, ok := config["maxIterations"]; ok {
			if n, ok := api.ToNumber(raw); ok && n > 0 {
				ls.Max = int(n)
			}
		}
	}

	if ls.Iteration >= ls.Max {
		delete(ec.State, key)
		return api.Fire(api.EdgeError, map[string]any{
			"message":       fmt.Sprintf("while: exceeded %d iterations", ls.Max),
			"iterations":    ls.Iteration,
			"maxIterations": ls.Max,
		}), nil
	}

	left := api.ResolveRef(ec.State, cond["left"])
	right := api.ResolveRef(ec.State, cond["right"])
	operator, _ := cond["operator"].(string)

	holds, err := api.Compare(operator, left, right)
	if err != nil {
		delete(ec.State, key)
		return api.FireError("while: " + err.Error()), nil
	}

	if !holds {
		delete(ec.State, key)
		ec.State[IterationStateKey] = ls.Iteration
		return api.Fire(api.EdgeDone, map[string]any{
			"iterations": ls.Iteration,
		}), nil
	}

	ls.Iteration++
	saveLoopState(ec.State, key, ls)
	ec.State[IterationStateKey] = ls.Iteration
	return api.Fire(api.EdgeDo, map[string]any{
		"iteration": ls.Iteration,
	}), nil
}

func loadLoopState(state map[string]any, key string) loopState {
	raw, ok := state[key].(map[string]any)
	if !ok {
		return loopState{}
	}
	var ls loopState
	if n, ok := api.ToNumber(raw["iteration"]); ok {
		ls.Iteration = int(n)
	}
	if n, ok := api.ToNumber(raw["max"]); ok {
		ls.Max = int(n)
	}
	return ls
}

func saveLoopState(state map[string]any, key string, ls loopState) {
	state[key] = map[string]any{
		"iteration": ls.Iteration,
		"max":       ls.Max,
	}
}
