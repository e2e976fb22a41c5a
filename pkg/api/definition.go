package api

import (
	"encoding/json"
	"fmt"
)

// FlowDefinition is the wire form of a workflow: a JSON object with an
// id, name, semantic version, initial state, and an ordered sequence of
// steps. Definitions are immutable once loaded; the engine re-parses
// them into a graph per registration and never mutates them.
type FlowDefinition struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Version      string         `json:"version"`
	InitialState map[string]any `json:"initialState,omitempty"`
	Workflow     []RawStep      `json:"workflow"`
}

// RawStep is one entry of the workflow sequence: a single-key JSON
// object whose key names a node instance (optionally loop-marked) and
// whose value is the step's configuration. Branch-marked configuration
// keys ("success?", "error?", ...) declare edge targets; everything else
// is passed to the node as parameters.
type RawStep struct {
	Key    string
	Config map[string]any
}

// UnmarshalJSON enforces the single-key object shape.
func (s *RawStep) UnmarshalJSON(data []byte) error {
	var m map[string]map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	if len(m) != 1 {
		return fmt.Errorf("step must be a single-key object, got %d keys", len(m))
	}
	for k, cfg := range m {
		s.Key = k
		s.Config = cfg
	}
	if s.Config == nil {
		s.Config = map[string]any{}
	}
	return nil
}

// MarshalJSON restores the single-key object shape.
func (s RawStep) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]map[string]any{s.Key: s.Config})
}

// ParseDefinition decodes a FlowDefinition from its JSON form.
func ParseDefinition(data []byte) (FlowDefinition, error) {
	var def FlowDefinition
	if err := json.Unmarshal(data, &def); err != nil {
		return FlowDefinition{}, fmt.Errorf("parse workflow definition: %w", err)
	}
	if def.InitialState == nil {
		def.InitialState = map[string]any{}
	}
	return def, nil
}
