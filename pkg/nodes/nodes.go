// Package nodes registers the builtin node catalog.
package nodes

import (
	"github.com/nertverse/conduct/pkg/api"
	"github.com/nertverse/conduct/pkg/nodes/hash"
	"github.com/nertverse/conduct/pkg/nodes/httpx"
	"github.com/nertverse/conduct/pkg/nodes/logic"
	"github.com/nertverse/conduct/pkg/nodes/math"
	"github.com/nertverse/conduct/pkg/nodes/schema"
	"github.com/nertverse/conduct/pkg/nodes/transform"
)

// RegisterBuiltins registers every builtin node on the registry. It
// returns the first registration error, which only occurs when a builtin
// ID is already taken.
func RegisterBuiltins(reg *api.Registry) error {
	builtins := []api.Node{
		math.New(),
		logic.NewWhile(),
		logic.NewIf(),
		hash.New(),
		transform.NewSort(),
		transform.NewAggregate(),
		transform.NewSummarize(),
		schema.NewValidate(),
		httpx.NewRequest(),
	}
	for _, n := range builtins {
		if err := reg.Register(n); err != nil {
			return err
		}
	}
	return nil
}
