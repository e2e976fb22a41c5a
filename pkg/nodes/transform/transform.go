// Package transform provides data-shaping nodes: sort, aggregate, and
// pivot-style summarize.
package transform

import (
	"github.com/nertverse/conduct/pkg/api"
)

// resolveItems resolves the "items" parameter, which is either a literal
// array or a "$." reference into the state bag.
func resolveItems(ec *api.ExecutionContext, config map[string]any) ([]any, bool) {
	raw := api.ResolveRef(ec.State, config["items"])
	items, ok := raw.([]any)
	return items, ok
}

// fieldValue reads a named field from a row, tolerating non-map rows.
func fieldValue(row any, field string) (any, bool) {
	m, ok := row.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := m[field]
	return v, ok
}
