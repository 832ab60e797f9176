// Package tools implements the tool-provider host: the Provider contract
// backend adapters satisfy, and the Registry that routes capability
// invocations to them.
package tools

import (
	"context"

	"flux-tools/internal/domain/entity"
)

// Provider is the capability contract every backend adapter must satisfy.
// Implementations validate parameters against the named tool's shape, invoke
// their remote endpoint through the resilient invocation client, and validate
// the response shape before returning it.
type Provider interface {
	// Name returns the provider's registry name.
	Name() string

	// ListTools returns the provider's full tool listing. The slice is fully
	// materialized per call; callers may iterate it repeatedly. Internal
	// failures are returned as errors, never panics.
	ListTools(ctx context.Context) ([]entity.Tool, error)

	// CallTool invokes the named tool with the given parameters.
	//
	// An unknown tool name is a TOOL_NOT_FOUND not-found error, not a
	// validation error. Parameter-shape mismatches are INVALID_PARAMETERS
	// validation errors and never reach the network.
	CallTool(ctx context.Context, name string, params map[string]any) (map[string]any, error)
}
