package persistence

import "encoding/json"

// Workflow state is JSON-shaped by construction (definitions arrive as
// JSON and nodes write JSON-compatible values), so stores serialize
// execution fields with encoding/json rather than gob.

// EncodeJSON serializes v, mapping nil to an empty payload.
func EncodeJSON(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// DecodeJSON deserializes data into a T, mapping an empty payload to the
// zero value.
func DecodeJSON[T any](data []byte) (T, error) {
	var v T
	if len(data) == 0 {
		return v, nil
	}
	err := json.Unmarshal(data, &v)
	return v, err
}
