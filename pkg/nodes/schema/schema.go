// Package schema provides a declarative field-validation node.
package schema

import (
	"context"
	"fmt"

	"github.com/nertverse/conduct/pkg/api"
)

// Validate implements the "validate" node: it checks a value (usually a
// "$." reference to a state entry) against a flat field/type schema.
//
// Config:
//
//	value:    the object to validate (literal or "$." reference)
//	fields:   map of field name to expected type: string, number,
//	          boolean, array, object
//	required: list of field names that must be present
//
// Fires "valid" when all checks pass, "invalid" with a list of problems
// when any check fails, and "error" for malformed configuration.
type Validate struct{}

// NewValidate creates a validate node.
func NewValidate() *Validate { return &Validate{} }

func (*Validate) Metadata() api.NodeMetadata {
	return api.NodeMetadata{
		ID:          "validate",
		Name:        "Validate",
		Version:     "1.0.0",
		Description: "Validates an object against a flat field/type schema.",
		Inputs: []string{"value", "fields", "required"},
		AIHints: api.AIHints{
			Purpose:       "Guarding downstream steps against malformed data",
			WhenToUse:     "After fetching or transforming data whose shape is not guaranteed.",
			ExpectedEdges: []string{"valid", "invalid", api.EdgeError},
			ExampleConfig: map[string]any{
				"value":    "$.user",
				"fields":   map[string]any{"name": "string", "age": "number"},
				"required": []any{"name"},
			},
			GetFromState: []string{"value referenced via $."},
		},
	}
}

func (*Validate) Execute(ctx context.Context, ec *api.ExecutionContext, config map[string]any) (api.EdgeMap, error) {
	raw := api.ResolveRef(ec.State, config["value"])
	obj, ok := raw.(map[string]any)
	if !ok {
		return api.FireError("validate: parameter \"value\" is not an object"), nil
	}

	fields := map[string]string{}
	if rawFields, present := config["fields"]; present {
		fm, ok := rawFields.(map[string]any)
		if !ok {
			return api.FireError("validate: parameter \"fields\" is not an object"), nil
		}
		for name, t := range fm {
			ts, ok := t.(string)
			if !ok {
				return api.FireError(fmt.Sprintf("validate: field %q has a non-string type", name)), nil
			}
			fields[name] = ts
		}
	}

	var required []string
	if rawRequired, present := config["required"]; present {
		rl, ok := rawRequired.([]any)
		if !ok {
			return api.FireError("validate: parameter \"required\" is not an array"), nil
		}
		for _, r := range rl {
			rs, ok := r.(string)
			if !ok {
				return api.FireError("validate: \"required\" entries must be strings"), nil
			}
			required = append(required, rs)
		}
	}
	if len(fields) == 0 && len(required) == 0 {
		return api.FireError("validate: at least one of \"fields\" or \"required\" is needed"), nil
	}

	var problems []any
	for _, name := range required {
		if _, present := obj[name]; !present {
			problems = append(problems, fmt.Sprintf("missing required field %q", name))
		}
	}
	for name, want := range fields {
		v, present := obj[name]
		if !present {
			continue
		}
		if !typeMatches(v, want) {
			problems = append(problems, fmt.Sprintf("field %q: expected %s, got %s", name, want, typeName(v)))
		}
	}

	if len(problems) > 0 {
		return api.Fire("invalid", map[string]any{
			"message": fmt.Sprintf("validation failed with %d problem(s)", len(problems)),
			"errors":  problems,
		}), nil
	}
	return api.Fire("valid", map[string]any{"validated": true}), nil
}

func typeMatches(v any, want string) bool {
	switch want {
	case "string":
		_, ok := v.(string)
		return ok
	case "number":
		return isNumber(v)
	case "boolean":
		_, ok := v.(bool)
		return ok
	case "array":
		_, ok := v.([]any)
		return ok
	case "object":
		_, ok := v.(map[string]any)
		return ok
	default:
		return false
	}
}

// isNumber checks the value's JSON type strictly: numeric strings do not
// count, unlike the loose coercion ordering comparisons use.
func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32, int, int32, int64, uint, uint64:
		return true
	default:
		return false
	}
}

func typeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	case nil:
		return "null"
	default:
		if isNumber(v) {
			return "number"
		}
		return fmt.Sprintf("%T", v)
	}
}
