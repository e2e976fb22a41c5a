package api

import (
	"fmt"
	"strconv"
	"strings"
)

// StateRefPrefix marks a parameter value as a reference into the shared
// state bag: "$.count" resolves to state["count"].
const StateRefPrefix = "$."

// loopStatePrefix is the engine-reserved state-key prefix under which a
// loop head keeps its iteration bookkeeping.
const loopStatePrefix = "__loop:"

// ExecutionContext is built fresh by the engine for every step invocation
// within one run.
//
// State is the single mutable map shared across the entire run. The
// engine owns it exclusively; nodes may read and write its entries but
// must never replace the map itself. Inputs is the payload produced by
// the edge that led to this step.
type ExecutionContext struct {
	State  map[string]any
	Inputs map[string]any

	WorkflowID  string
	ExecutionID string

	// StepID is the step key currently executing; NodeID is that step's
	// node identifier.
	StepID string
	NodeID string
}

// LoopStateKey returns the reserved state key holding loop bookkeeping
// for the given loop-head step.
func LoopStateKey(stepID string) string {
	return loopStatePrefix + stepID
}

// IsReservedStateKey reports whether key is reserved for engine or
// loop-head bookkeeping and should be hidden from user-facing snapshots.
func IsReservedStateKey(key string) bool {
	return strings.HasPrefix(key, loopStatePrefix)
}

// ResolveRef resolves v against the state bag when it is a "$." state
// reference; any other value is returned unchanged. A reference to a
// missing key resolves to nil.
func ResolveRef(state map[string]any, v any) any {
	s, ok := v.(string)
	if !ok || !strings.HasPrefix(s, StateRefPrefix) {
		return v
	}
	return state[strings.TrimPrefix(s, StateRefPrefix)]
}

// ToNumber coerces v to a float64 for ordering comparisons. JSON numbers
// decode as float64, but state entries written by nodes may be any Go
// numeric type, and numeric strings are accepted the way loosely-typed
// definitions expect.
func ToNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

// Compare evaluates a binary comparison between left and right.
//
// Operators: "==" (loose, numeric when both sides coerce), "===" (strict
// equality on type and value), "!=", and the orderings "<", "<=", ">",
// ">=" which coerce both sides to numbers. Named aliases ("equals",
// "notEquals", "less", "lessOrEqual", "greater", "greaterOrEqual") are
// accepted identically.
func Compare(operator string, left, right any) (bool, error) {
	switch operator {
	case "==", "equals", "eq":
		if lf, lok := ToNumber(left); lok {
			if rf, rok := ToNumber(right); rok {
				return lf == rf, nil
			}
		}
		return fmt.Sprint(left) == fmt.Sprint(right), nil
	case "===", "strictEquals":
		return left == right, nil
	case "!=", "notEquals", "ne":
		eq, _ := Compare("==", left, right)
		return !eq, nil
	case "<", "less", "lt":
		return compareNumeric(left, right, func(l, r float64) bool { return l < r })
	case "<=", "lessOrEqual", "lte":
		return compareNumeric(left, right, func(l, r float64) bool { return l <= r })
	case ">", "greater", "gt":
		return compareNumeric(left, right, func(l, r float64) bool { return l > r })
	case ">=", "greaterOrEqual", "gte":
		return compareNumeric(left, right, func(l, r float64) bool { return l >= r })
	default:
		return false, fmt.Errorf("unknown comparison operator: %q", operator)
	}
}

func compareNumeric(left, right any, cmp func(l, r float64) bool) (bool, error) {
	lf, lok := ToNumber(left)
	rf, rok := ToNumber(right)
	if !lok || !rok {
		return false, fmt.Errorf("ordering comparison requires numeric operands, got %T and %T", left, right)
	}
	return cmp(lf, rf), nil
}

// CloneState deep-copies a state map so concurrent executions never share
// mutable structures. Values are limited to JSON-shaped data (maps,
// slices, scalars); other values are copied by reference.
func CloneState(state map[string]any) map[string]any {
	if state == nil {
		return map[string]any{}
	}
	out := make(map[string]any, len(state))
	for k, v := range state {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneState(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}
