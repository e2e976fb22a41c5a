package transform

import (
	"context"
	"fmt"
	"sort"

	"github.com/nertverse/conduct/pkg/api"
)

// Sort implements the "sort" node: it orders a list of numbers, strings,
// or rows (maps, by a named field) and posts the result to state.
type Sort struct{}

// NewSort creates a sort node.
func NewSort() *Sort { return &Sort{} }

func (*Sort) Metadata() api.NodeMetadata {
	return api.NodeMetadata{
		ID:          "sort",
		Name:        "Sort",
		Version:     "1.0.0",
		Description: "Sorts a list of values or rows.",
		Inputs:      []string{"items", "by", "order"},
		Outputs:     []string{"sortResult"},
		AIHints: api.AIHints{
			Purpose:       "Ordering collections",
			WhenToUse:     "When downstream steps need values or rows in a defined order.",
			ExpectedEdges: []string{api.EdgeSuccess, api.EdgeError},
			ExampleConfig: map[string]any{
				"items": "$.rows",
				"by":    "score",
				"order": "desc",
			},
			GetFromState: []string{"items referenced via $."},
			PostToState:  []string{"sortResult"},
		},
	}
}

func (*Sort) Execute(ctx context.Context, ec *api.ExecutionContext, config map[string]any) (api.EdgeMap, error) {
	items, ok := resolveItems(ec, config)
	if !ok {
		return api.FireError("sort: missing or non-array parameter \"items\""), nil
	}

	order, _ := config["order"].(string)
	if order == "" {
		order = "asc"
	}
	if order != "asc" && order != "desc" {
		return api.FireError(fmt.Sprintf("sort: unknown order %q", order)), nil
	}
	desc := order == "desc"

	by, _ := config["by"].(string)

	sorted := make([]any, len(items))
	copy(sorted, items)

	var sortErr error
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if by != "" {
			av, aok := fieldValue(a, by)
			bv, bok := fieldValue(b, by)
			if !aok || !bok {
				sortErr = fmt.Errorf("sort: rows missing field %q", by)
				return false
			}
			a, b = av, bv
		}
		less, err := lessValue(a, b)
		if err != nil {
			sortErr = err
			return false
		}
		if desc {
			return !less
		}
		return less
	})
	if sortErr != nil {
		return api.FireError(sortErr.Error()), nil
	}

	ec.State["sortResult"] = sorted
	return api.FireSuccess(map[string]any{
		"sortResult": sorted,
		"count":      len(sorted),
	}), nil
}

// lessValue orders two values: numerically when both coerce to numbers,
// lexically when both are strings.
func lessValue(a, b any) (bool, error) {
	if an, aok := api.ToNumber(a); aok {
		if bn, bok := api.ToNumber(b); bok {
			return an < bn, nil
		}
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return as < bs, nil
	}
	return false, fmt.Errorf("sort: cannot compare %T with %T", a, b)
}
