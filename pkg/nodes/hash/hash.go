// Package hash provides the digest/token node.
package hash

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"

	"github.com/nertverse/conduct/pkg/api"
)

// Node implements the "hash" node: hex digests of a string value, or
// random token generation.
type Node struct{}

// New creates a hash node.
func New() *Node { return &Node{} }

func (*Node) Metadata() api.NodeMetadata {
	return api.NodeMetadata{
		ID:          "hash",
		Name:        "Hash",
		Version:     "1.0.0",
		Description: "Computes digests of a value or generates opaque tokens.",
		Inputs:      []string{"operation", "value"},
		Outputs:     []string{"hashResult", "tokenResult"},
		AIHints: api.AIHints{
			Purpose:       "Hashing and token generation",
			WhenToUse:     "When a workflow needs a digest of a value or a unique opaque token.",
			ExpectedEdges: []string{api.EdgeSuccess, api.EdgeError},
			ExampleConfig: map[string]any{
				"operation": "sha256",
				"value":     "$.payload",
			},
			GetFromState: []string{"value referenced via $."},
			PostToState:  []string{"hashResult", "tokenResult"},
		},
	}
}

func (*Node) Execute(ctx context.Context, ec *api.ExecutionContext, config map[string]any) (api.EdgeMap, error) {
	operation, ok := config["operation"].(string)
	if !ok || operation == "" {
		return api.FireError("hash: missing required parameter \"operation\""), nil
	}

	if operation == "token" {
		token := uuid.NewString()
		ec.State["tokenResult"] = token
		return api.FireSuccess(map[string]any{"tokenResult": token}), nil
	}

	raw := api.ResolveRef(ec.State, config["value"])
	value, ok := raw.(string)
	if !ok {
		return api.FireError("hash: parameter \"value\" must be a string"), nil
	}

	var digest []byte
	switch operation {
	case "sha256":
		sum := sha256.Sum256([]byte(value))
		digest = sum[:]
	case "sha1":
		sum := sha1.Sum([]byte(value))
		digest = sum[:]
	case "md5":
		sum := md5.Sum([]byte(value))
		digest = sum[:]
	default:
		return api.FireError(fmt.Sprintf("hash: unknown operation %q", operation)), nil
	}

	result := hex.EncodeToString(digest)
	ec.State["hashResult"] = result
	return api.FireSuccess(map[string]any{
		"hashResult": result,
		"operation":  operation,
	}), nil
}
