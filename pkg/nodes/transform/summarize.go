package transform

import (
	"context"
	"fmt"
	"sort"

	"github.com/nertverse/conduct/pkg/api"
)

// Summarize implements the "summarize" node: a pivot-style group-by over
// rows, applying one aggregation per group.
type Summarize struct{}

// NewSummarize creates a summarize node.
func NewSummarize() *Summarize { return &Summarize{} }

func (*Summarize) Metadata() api.NodeMetadata {
	return api.NodeMetadata{
		ID:          "summarize",
		Name:        "Summarize",
		Version:     "1.0.0",
		Description: "Groups rows by a field and aggregates each group.",
		Inputs:      []string{"items", "groupBy", "operation", "field"},
		Outputs:     []string{"summaryResult"},
		AIHints: api.AIHints{
			Purpose:       "Pivot-style group-by aggregation",
			WhenToUse:     "When rows need to be rolled up into per-group figures.",
			ExpectedEdges: []string{api.EdgeSuccess, api.EdgeError},
			ExampleConfig: map[string]any{
				"items":     "$.sales",
				"groupBy":   "region",
				"operation": "sum",
				"field":     "amount",
			},
			GetFromState: []string{"items referenced via $."},
			PostToState:  []string{"summaryResult"},
		},
	}
}

func (*Summarize) Execute(ctx context.Context, ec *api.ExecutionContext, config map[string]any) (api.EdgeMap, error) {
	items, ok := resolveItems(ec, config)
	if !ok {
		return api.FireError("summarize: missing or non-array parameter \"items\""), nil
	}
	groupBy, _ := config["groupBy"].(string)
	if groupBy == "" {
		return api.FireError("summarize: missing parameter \"groupBy\""), nil
	}
	op, _ := config["operation"].(string)
	if op == "" {
		op = "count"
	}
	field, _ := config["field"].(string)
	if op != "count" && field == "" {
		return api.FireError(fmt.Sprintf("summarize: operation %q requires parameter \"field\"", op)), nil
	}

	groups := map[string][]float64{}
	counts := map[string]int{}
	keys := []string{}
	for i, item := range items {
		gv, ok := fieldValue(item, groupBy)
		if !ok {
			return api.FireError(fmt.Sprintf("summarize: item %d missing field %q", i, groupBy)), nil
		}
		key := fmt.Sprintf("%v", gv)
		if _, seen := counts[key]; !seen {
			keys = append(keys, key)
		}
		counts[key]++
		if op == "count" {
			continue
		}
		fv, ok := fieldValue(item, field)
		if !ok {
			return api.FireError(fmt.Sprintf("summarize: item %d missing field %q", i, field)), nil
		}
		n, ok := api.ToNumber(fv)
		if !ok {
			return api.FireError(fmt.Sprintf("summarize: item %d field %q is not numeric", i, field)), nil
		}
		groups[key] = append(groups[key], n)
	}

	summary := map[string]any{}
	for key := range counts {
		if op == "count" {
			summary[key] = float64(counts[key])
			continue
		}
		nums := groups[key]
		var v float64
		switch op {
		case "sum", "avg":
			for _, n := range nums {
				v += n
			}
			if op == "avg" {
				v /= float64(len(nums))
			}
		case "min":
			v = nums[0]
			for _, n := range nums[1:] {
				if n < v {
					v = n
				}
			}
		case "max":
			v = nums[0]
			for _, n := range nums[1:] {
				if n > v {
					v = n
				}
			}
		default:
			return api.FireError(fmt.Sprintf("summarize: unknown operation %q", op)), nil
		}
		summary[key] = v
	}

	sort.Strings(keys)

	ec.State["summaryResult"] = summary
	return api.FireSuccess(map[string]any{
		"summaryResult": summary,
		"groups":        keys,
		"operation":     op,
	}), nil
}
