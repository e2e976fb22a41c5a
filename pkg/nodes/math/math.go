// Package math provides the arithmetic node: it folds an operation over
// a list of values and posts the result to the state bag.
package math

import (
	"context"
	"fmt"

	"github.com/nertverse/conduct/pkg/api"
)

// DefaultOutputKey is the state key the result is posted under when the
// step does not configure "outputKey".
const DefaultOutputKey = "mathResult"

// Node implements the "math" node.
type Node struct{}

// New creates a math node.
func New() *Node { return &Node{} }

func (*Node) Metadata() api.NodeMetadata {
	return api.NodeMetadata{
		ID:          "math",
		Name:        "Math",
		Version:     "1.0.0",
		Description: "Applies an arithmetic operation to a list of values.",
		Inputs:      []string{"operation", "values"},
		Outputs:     []string{DefaultOutputKey},
		AIHints: api.AIHints{
			Purpose:       "Arithmetic over workflow values",
			WhenToUse:     "When a step needs to add, subtract, multiply, or divide numbers from configuration or state.",
			ExpectedEdges: []string{api.EdgeSuccess, api.EdgeError},
			ExampleConfig: map[string]any{
				"operation": "add",
				"values":    []any{10, 20, 30},
			},
			GetFromState: []string{"values referenced via $."},
			PostToState:  []string{DefaultOutputKey},
		},
	}
}

func (*Node) Execute(ctx context.Context, ec *api.ExecutionContext, config map[string]any) (api.EdgeMap, error) {
	operation, ok := config["operation"].(string)
	if !ok || operation == "" {
		return api.FireError("math: missing required parameter \"operation\""), nil
	}
	switch operation {
	case "add", "subtract", "multiply", "divide":
	default:
		return api.FireError(fmt.Sprintf("math: unknown operation %q", operation)), nil
	}

	rawValues, ok := config["values"].([]any)
	if !ok || len(rawValues) == 0 {
		return api.FireError("math: missing required parameter \"values\""), nil
	}

	values := make([]float64, 0, len(rawValues))
	for i, raw := range rawValues {
		resolved := api.ResolveRef(ec.State, raw)
		n, ok := api.ToNumber(resolved)
		if !ok {
			return api.FireError(fmt.Sprintf("math: values[%d] is not numeric (%v)", i, resolved)), nil
		}
		values = append(values, n)
	}

	result := values[0]
	for _, v := range values[1:] {
		switch operation {
		case "add":
			result += v
		case "subtract":
			result -= v
		case "multiply":
			result *= v
		case "divide":
			if v == 0 {
				return api.FireError("math: division by zero"), nil
			}
			result /= v
		}
	}

	outputKey := DefaultOutputKey
	if k, ok := config["outputKey"].(string); ok && k != "" {
		outputKey = k
	}
	ec.State[outputKey] = result

	return api.FireSuccess(map[string]any{
		outputKey:   result,
		"operation": operation,
	}), nil
}
