package conduct

import (
	"fmt"

	"github.com/nertverse/conduct/pkg/api"
)

// DefinitionBuilder provides a fluent API for constructing definitions in
// code, as an alternative to authoring JSON:
//
//	def := conduct.NewDefinition("signup", "Signup").
//	    Step("validate", map[string]any{
//	        "value":    "$.user",
//	        "required": []any{"email"},
//	    }).
//	    Target("invalid", "end").
//	    Step("http-request", map[string]any{
//	        "url":    "https://api.example.com/users",
//	        "method": "POST",
//	        "body":   "$.user",
//	    }).
//	    Definition()
//
//	if err := eng.RegisterDefinition(def); err != nil {
//	    log.Fatal(err)
//	}
//
// The builder produces exactly what ParseDefinition produces from JSON;
// registration applies the same validation to both.
type DefinitionBuilder struct {
	def  api.FlowDefinition
	last map[string]any
}

// NewDefinition creates a builder for a definition with the given ID and
// human-readable name.
func NewDefinition(id, name string) *DefinitionBuilder {
	return &DefinitionBuilder{
		def: api.FlowDefinition{
			ID:   id,
			Name: name,
		},
	}
}

// Version sets the definition's version string.
func (b *DefinitionBuilder) Version(v string) *DefinitionBuilder {
	b.def.Version = v
	return b
}

// InitialState sets the definition's baseline state bag.
func (b *DefinitionBuilder) InitialState(state map[string]any) *DefinitionBuilder {
	b.def.InitialState = state
	return b
}

// Step appends a step invoking the node named by key. A numeric suffix
// ("-2") disambiguates repeated nodes, exactly as in JSON form.
func (b *DefinitionBuilder) Step(key string, config map[string]any) *DefinitionBuilder {
	if key == "" {
		panic("conduct: step key must not be empty")
	}
	if config == nil {
		config = map[string]any{}
	}
	b.def.Workflow = append(b.def.Workflow, api.RawStep{Key: key, Config: config})
	b.last = config
	return b
}

// Target declares an edge target on the most recently added step,
// equivalent to an "edge?" config key in JSON form.
func (b *DefinitionBuilder) Target(edge, target string) *DefinitionBuilder {
	if b.last == nil {
		panic("conduct: Target called before any Step")
	}
	b.last[edge+"?"] = target
	return b
}

// Loop appends a loop-head step. key names the condition node (without
// the "..." marker); body builds the loop body in a nested builder, and
// its steps land under the head's "steps" config entry.
func (b *DefinitionBuilder) Loop(key string, config map[string]any, body func(*DefinitionBuilder)) *DefinitionBuilder {
	if key == "" {
		panic("conduct: loop key must not be empty")
	}
	if body == nil {
		panic(fmt.Sprintf("conduct: loop %q has no body", key))
	}
	if config == nil {
		config = map[string]any{}
	}

	nested := &DefinitionBuilder{}
	body(nested)
	steps := make([]any, len(nested.def.Workflow))
	for i, s := range nested.def.Workflow {
		steps[i] = map[string]any{s.Key: s.Config}
	}
	config["steps"] = steps

	b.def.Workflow = append(b.def.Workflow, api.RawStep{Key: key + "...", Config: config})
	b.last = config
	return b
}

// Definition returns the built FlowDefinition.
func (b *DefinitionBuilder) Definition() FlowDefinition {
	return b.def
}

// Register registers the built definition with the given engine.
func (b *DefinitionBuilder) Register(eng Engine) error {
	return eng.RegisterDefinition(b.def)
}

// MustRegister is like Register but panics on error.
// Useful for initialization in main().
func (b *DefinitionBuilder) MustRegister(eng Engine) {
	if err := b.Register(eng); err != nil {
		panic(err)
	}
}
