package transform

import (
	"context"
	"fmt"

	"github.com/nertverse/conduct/pkg/api"
)

// Aggregate implements the "aggregate" node: it reduces a list of numbers
// (or rows, by a named field) to a single value.
type Aggregate struct{}

// NewAggregate creates an aggregate node.
func NewAggregate() *Aggregate { return &Aggregate{} }

func (*Aggregate) Metadata() api.NodeMetadata {
	return api.NodeMetadata{
		ID:          "aggregate",
		Name:        "Aggregate",
		Version:     "1.0.0",
		Description: "Reduces a list to sum, avg, min, max, or count.",
		Inputs:      []string{"items", "operation", "field"},
		Outputs:     []string{"aggregateResult"},
		AIHints: api.AIHints{
			Purpose:       "Numeric reduction over collections",
			WhenToUse:     "When a single figure is needed from a list of values or rows.",
			ExpectedEdges: []string{api.EdgeSuccess, api.EdgeError},
			ExampleConfig: map[string]any{
				"items":     "$.orders",
				"operation": "sum",
				"field":     "total",
			},
			GetFromState: []string{"items referenced via $."},
			PostToState:  []string{"aggregateResult"},
		},
	}
}

func (*Aggregate) Execute(ctx context.Context, ec *api.ExecutionContext, config map[string]any) (api.EdgeMap, error) {
	items, ok := resolveItems(ec, config)
	if !ok {
		return api.FireError("aggregate: missing or non-array parameter \"items\""), nil
	}
	op, _ := config["operation"].(string)
	if op == "" {
		return api.FireError("aggregate: missing parameter \"operation\""), nil
	}
	field, _ := config["field"].(string)

	if op == "count" {
		result := float64(len(items))
		ec.State["aggregateResult"] = result
		return fireAggregate(op, result, len(items)), nil
	}

	nums := make([]float64, 0, len(items))
	for i, item := range items {
		v := item
		if field != "" {
			fv, ok := fieldValue(item, field)
			if !ok {
				return api.FireError(fmt.Sprintf("aggregate: item %d missing field %q", i, field)), nil
			}
			v = fv
		}
		n, ok := api.ToNumber(v)
		if !ok {
			return api.FireError(fmt.Sprintf("aggregate: item %d is not numeric", i)), nil
		}
		nums = append(nums, n)
	}
	if len(nums) == 0 {
		return api.FireError("aggregate: empty list"), nil
	}

	var result float64
	switch op {
	case "sum", "avg":
		for _, n := range nums {
			result += n
		}
		if op == "avg" {
			result /= float64(len(nums))
		}
	case "min":
		result = nums[0]
		for _, n := range nums[1:] {
			if n < result {
				result = n
			}
		}
	case "max":
		result = nums[0]
		for _, n := range nums[1:] {
			if n > result {
				result = n
			}
		}
	default:
		return api.FireError(fmt.Sprintf("aggregate: unknown operation %q", op)), nil
	}

	ec.State["aggregateResult"] = result
	return fireAggregate(op, result, len(nums)), nil
}

func fireAggregate(op string, result float64, count int) api.EdgeMap {
	return api.FireSuccess(map[string]any{
		"aggregateResult": result,
		"operation":       op,
		"count":           count,
	})
}
