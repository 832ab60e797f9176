// Package provider contains the backend adapters that plug into the tool
// host, plus the Toolset base they are built from. A Toolset composes the
// schema validator and the resilient invocation client: parameters are
// validated before the network, responses after, and unknown tool names are
// not-found errors.
package provider

import (
	"context"
	"fmt"

	"flux-tools/internal/domain/entity"
	"flux-tools/internal/infra/invoker"
	"flux-tools/internal/schema"
)

// Invoker is the slice of the invocation client a toolset needs. It is
// satisfied by *invoker.Client.
type Invoker interface {
	Invoke(ctx context.Context, target string, opts invoker.Options) (map[string]any, error)
}

// RemoteTool binds a tool descriptor to its remote endpoint.
type RemoteTool struct {
	// Descriptor is the immutable tool descriptor advertised in listings.
	Descriptor entity.Tool

	// Params validates caller-supplied parameters before the network call.
	Params *schema.Compiled

	// Response validates the remote payload before it is trusted.
	Response *schema.Compiled

	// Call builds and issues the remote request for this tool.
	Call func(ctx context.Context, inv Invoker, params map[string]any) (map[string]any, error)
}

// Toolset is a Provider implementation backed by a fixed set of remote
// tools. The tool set is immutable after construction; Toolset is safe for
// concurrent use.
type Toolset struct {
	name  string
	inv   Invoker
	tools []RemoteTool
	index map[string]*RemoteTool
}

// NewToolset creates a provider named name exposing the given tools.
func NewToolset(name string, inv Invoker, tools []RemoteTool) *Toolset {
	index := make(map[string]*RemoteTool, len(tools))
	for i := range tools {
		index[tools[i].Descriptor.Name] = &tools[i]
	}
	return &Toolset{name: name, inv: inv, tools: tools, index: index}
}

// Name implements tools.Provider.
func (t *Toolset) Name() string {
	return t.name
}

// ListTools implements tools.Provider. The listing is rebuilt per call so
// callers can iterate it repeatedly without sharing state.
func (t *Toolset) ListTools(ctx context.Context) ([]entity.Tool, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]entity.Tool, len(t.tools))
	for i, tool := range t.tools {
		out[i] = tool.Descriptor
	}
	return out, nil
}

// CallTool implements tools.Provider.
func (t *Toolset) CallTool(ctx context.Context, name string, params map[string]any) (map[string]any, error) {
	tool, ok := t.index[name]
	if !ok {
		return nil, entity.NewNotFoundError(entity.CodeToolNotFound,
			fmt.Sprintf("provider %q has no tool %q", t.name, name))
	}

	if params == nil {
		params = map[string]any{}
	}
	if tool.Params != nil {
		if err := tool.Params.Validate(params); err != nil {
			return nil, entity.NewValidationError(entity.CodeInvalidParameters,
				fmt.Sprintf("parameters for tool %q do not match its declared shape", name), err)
		}
	}

	payload, err := tool.Call(ctx, t.inv, params)
	if err != nil {
		return nil, err
	}

	if tool.Response != nil {
		if err := tool.Response.Validate(payload); err != nil {
			// The remote answered with an unexpected shape: its fault, not
			// the caller's.
			return nil, entity.NewServiceError(entity.CodeExtraction,
				fmt.Sprintf("response for tool %q does not match its declared shape", name), err)
		}
	}

	return payload, nil
}
