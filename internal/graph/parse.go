package graph

import (
	"fmt"
	"strings"

	"github.com/nertverse/conduct/pkg/api"
)

const (
	// loopMarker on a step key denotes a loop head ("while...").
	loopMarker = "..."

	// edgeMarker on a configuration key denotes an edge-target
	// declaration ("success?").
	edgeMarker = "?"

	// bodyParam is the loop-head configuration key carrying the nested
	// body sub-sequence.
	bodyParam = "steps"
)

// Parse turns a FlowDefinition into a validated Graph. All structural
// problems are reported as *api.DefinitionError before any step can
// execute; node-level checks against a registry are done separately by
// Validate.
func Parse(def api.FlowDefinition) (*Graph, error) {
	if def.ID == "" {
		return nil, &api.DefinitionError{Reason: "workflow id is required"}
	}
	if len(def.Workflow) == 0 {
		return nil, &api.DefinitionError{WorkflowID: def.ID, Reason: "workflow has no steps"}
	}

	g := &Graph{
		WorkflowID:   def.ID,
		Name:         def.Name,
		Version:      def.Version,
		InitialState: api.CloneState(def.InitialState),
		index:        make(map[string]*Step),
	}

	steps, err := parseSequence(g, def.ID, def.Workflow, nil)
	if err != nil {
		return nil, err
	}
	g.Steps = steps

	if err := resolveTargets(g); err != nil {
		return nil, err
	}

	return g, nil
}

func parseSequence(g *Graph, workflowID string, raw []api.RawStep, parent *Step) ([]*Step, error) {
	steps := make([]*Step, 0, len(raw))
	for _, rs := range raw {
		s, err := parseStep(g, workflowID, rs, parent)
		if err != nil {
			return nil, err
		}
		if len(steps) > 0 {
			steps[len(steps)-1].Next = s
		}
		steps = append(steps, s)
	}
	return steps, nil
}

func parseStep(g *Graph, workflowID string, rs api.RawStep, parent *Step) (*Step, error) {
	if rs.Key == "" {
		return nil, &api.DefinitionError{WorkflowID: workflowID, Reason: "step has empty key"}
	}

	s := &Step{
		Kind:    StepKindNode,
		Params:  make(map[string]any),
		Targets: make(map[string]string),
		Parent:  parent,
	}

	key := rs.Key
	if strings.HasSuffix(key, loopMarker) {
		s.Kind = StepKindLoop
		key = strings.TrimSuffix(key, loopMarker)
	}
	s.ID = key
	s.NodeID = nodeIDFromKey(key)

	if s.ID == "" || s.NodeID == "" {
		return nil, &api.DefinitionError{WorkflowID: workflowID, StepID: rs.Key, Reason: "step key resolves to no node id"}
	}
	if _, dup := g.index[s.ID]; dup {
		return nil, &api.DefinitionError{WorkflowID: workflowID, StepID: s.ID, Reason: "duplicate step key"}
	}
	g.index[s.ID] = s
	g.total++

	for k, v := range rs.Config {
		if strings.HasSuffix(k, edgeMarker) {
			edge := strings.TrimSuffix(k, edgeMarker)
			target, ok := v.(string)
			if !ok || edge == "" || target == "" {
				return nil, &api.DefinitionError{
					WorkflowID: workflowID, StepID: s.ID,
					Reason: fmt.Sprintf("edge declaration %q must name a target step", k),
				}
			}
			s.Targets[edge] = target
			continue
		}
		if s.Kind == StepKindLoop && k == bodyParam {
			body, err := parseBody(g, workflowID, s, v)
			if err != nil {
				return nil, err
			}
			s.Body = body
			continue
		}
		s.Params[k] = v
	}

	if s.Kind == StepKindLoop {
		// A loop body is given either inline (nested "steps") or by an
		// explicit "do" target pointing at steps declared elsewhere.
		if len(s.Body) == 0 {
			if _, ok := s.Targets[api.EdgeDo]; !ok {
				return nil, &api.DefinitionError{WorkflowID: workflowID, StepID: s.ID, Reason: "loop head needs a body or a \"do\" target"}
			}
		} else if _, ok := s.Targets[api.EdgeDo]; !ok {
			// Default the do edge to the first body step.
			s.Targets[api.EdgeDo] = s.Body[0].ID
		}
	}

	return s, nil
}

// parseBody decodes the loop-head "steps" parameter, which arrives from
// JSON as a []any of single-key objects.
func parseBody(g *Graph, workflowID string, head *Step, v any) ([]*Step, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, &api.DefinitionError{
			WorkflowID: workflowID, StepID: head.ID,
			Reason: fmt.Sprintf("loop body %q must be an array of steps, got %T", bodyParam, v),
		}
	}

	raw := make([]api.RawStep, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok || len(obj) != 1 {
			return nil, &api.DefinitionError{
				WorkflowID: workflowID, StepID: head.ID,
				Reason: "loop body steps must be single-key objects",
			}
		}
		for k, cfg := range obj {
			c, ok := cfg.(map[string]any)
			if !ok {
				return nil, &api.DefinitionError{
					WorkflowID: workflowID, StepID: head.ID,
					Reason: fmt.Sprintf("loop body step %q has non-object configuration", k),
				}
			}
			raw = append(raw, api.RawStep{Key: k, Config: c})
		}
	}

	return parseSequence(g, workflowID, raw, head)
}

// resolveTargets verifies every edge-target declaration names a step
// that exists (anywhere in the definition) or the reserved terminal. The
// loop-body entry reached via "do" must additionally live inside the
// head's own body.
func resolveTargets(g *Graph) error {
	var err error
	g.Walk(func(s *Step) {
		if err != nil {
			return
		}
		for edge, target := range s.Targets {
			if target == TerminalTarget {
				continue
			}
			dest, ok := g.index[target]
			if !ok {
				err = &api.DefinitionError{
					WorkflowID: g.WorkflowID, StepID: s.ID,
					Reason: fmt.Sprintf("edge %q targets unknown step %q", edge, target),
				}
				return
			}
			if s.IsLoop() && edge == api.EdgeDo && len(s.Body) > 0 && !inBody(s, dest) {
				err = &api.DefinitionError{
					WorkflowID: g.WorkflowID, StepID: s.ID,
					Reason: fmt.Sprintf("loop entry edge %q must target a step inside the loop body, got %q", edge, target),
				}
				return
			}
		}
	})
	return err
}

// inBody reports whether dest is nested anywhere under head's body.
func inBody(head, dest *Step) bool {
	for p := dest.Parent; p != nil; p = p.Parent {
		if p == head {
			return true
		}
	}
	return false
}

// Validate checks the graph against a node registry: every step's node
// must be registered, and every edge-target declaration must name an
// edge the node is capable of producing. Loop heads may always declare
// "do" and "done".
func Validate(g *Graph, reg *api.Registry) error {
	var err error
	g.Walk(func(s *Step) {
		if err != nil {
			return
		}
		node, ok := reg.Get(s.NodeID)
		if !ok {
			err = &api.DefinitionError{
				WorkflowID: g.WorkflowID, StepID: s.ID,
				Reason: fmt.Sprintf("unknown node %q", s.NodeID),
			}
			return
		}
		md := node.Metadata()
		for edge := range s.Targets {
			if s.IsLoop() && (edge == api.EdgeDo || edge == api.EdgeDone) {
				continue
			}
			if !md.DeclaresEdge(edge) {
				err = &api.DefinitionError{
					WorkflowID: g.WorkflowID, StepID: s.ID,
					Reason: fmt.Sprintf("node %q cannot produce edge %q", s.NodeID, edge),
				}
				return
			}
		}
	})
	return err
}

// nodeIDFromKey strips a numeric instance suffix from a step key:
// "math-1" binds to node "math", "http-request" stays "http-request".
func nodeIDFromKey(key string) string {
	i := strings.LastIndex(key, "-")
	if i <= 0 || i == len(key)-1 {
		return key
	}
	for _, r := range key[i+1:] {
		if r < '0' || r > '9' {
			return key
		}
	}
	return key[:i]
}
