package logic

import (
	"context"

	"github.com/nertverse/conduct/pkg/api"
)

// If implements the "if" node: it evaluates a single comparison against
// live state and fires "true" or "false".
type If struct{}

// NewIf creates an if node.
func NewIf() *If { return &If{} }

func (*If) Metadata() api.NodeMetadata {
	return api.NodeMetadata{
		ID:          "if",
		Name:        "If",
		Version:     "1.0.0",
		Description: "Branches on a comparison between two values.",
		Inputs:      []string{"condition"},
		Outputs:     nil,
		AIHints: api.AIHints{
			Purpose:       "Conditional branching",
			WhenToUse:     "When the next step depends on a comparison over state or inputs.",
			ExpectedEdges: []string{"true", "false", api.EdgeError},
			ExampleConfig: map[string]any{
				"condition": map[string]any{
					"left":     "$.total",
					"operator": ">=",
					"right":    100,
				},
			},
			GetFromState: []string{"condition operands referenced via $."},
		},
	}
}

func (*If) Execute(ctx context.Context, ec *api.ExecutionContext, config map[string]any) (api.EdgeMap, error) {
	cond, ok := config["condition"].(map[string]any)
	if !ok {
		return api.FireError("if: missing required parameter \"condition\""), nil
	}

	left := api.ResolveRef(ec.State, cond["left"])
	right := api.ResolveRef(ec.State, cond["right"])
	operator, _ := cond["operator"].(string)

	holds, err := api.Compare(operator, left, right)
	if err != nil {
		return api.FireError("if: " + err.Error()), nil
	}

	payload := map[string]any{"result": holds}
	if holds {
		return api.Fire("true", payload), nil
	}
	return api.Fire("false", payload), nil
}
