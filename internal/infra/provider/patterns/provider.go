// Package patterns adapts the prompt-pattern runner into a tool provider.
package patterns

import (
	"context"
	"strings"

	"flux-tools/internal/domain/entity"
	"flux-tools/internal/infra/invoker"
	"flux-tools/internal/infra/provider"
	"flux-tools/internal/schema"
)

// ProviderName is the registry name this provider registers under.
const ProviderName = "patterns"

const (
	// ToolExecutePattern runs a named pattern over an input text.
	ToolExecutePattern = "execute_pattern"

	// ToolListPatterns lists the pattern names the runner knows about.
	ToolListPatterns = "list_patterns"
)

var executeParamShape = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"pattern": map[string]any{
			"type":        "string",
			"description": "name of the pattern to run",
		},
		"input": map[string]any{
			"type":        "string",
			"description": "text the pattern is applied to",
		},
		"variables": map[string]any{
			"type":        "object",
			"description": "values substituted into the pattern template",
		},
	},
	"required":             []any{"pattern", "input"},
	"additionalProperties": false,
}

var executeResponseShape = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"output": map[string]any{"type": "string"},
	},
	"required": []any{"output"},
}

var listParamShape = map[string]any{
	"type":                 "object",
	"properties":           map[string]any{},
	"additionalProperties": false,
}

var listResponseShape = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"patterns": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	},
	"required": []any{"patterns"},
}

// New builds the patterns provider against the runner at baseURL.
func New(baseURL string, inv provider.Invoker) *provider.Toolset {
	base := strings.TrimRight(baseURL, "/")

	tools := []provider.RemoteTool{
		{
			Descriptor: entity.Tool{
				Name:           ToolExecutePattern,
				Description:    "Run a named prompt pattern over an input text",
				ParameterShape: executeParamShape,
			},
			Params:   schema.MustCompile(executeParamShape),
			Response: schema.MustCompile(executeResponseShape),
			Call: func(ctx context.Context, inv provider.Invoker, params map[string]any) (map[string]any, error) {
				return inv.Invoke(ctx, base+"/patterns/execute", invoker.Options{
					Method: "POST",
					Body:   params,
				})
			},
		},
		{
			Descriptor: entity.Tool{
				Name:           ToolListPatterns,
				Description:    "List the patterns available to execute_pattern",
				ParameterShape: listParamShape,
			},
			Params:   schema.MustCompile(listParamShape),
			Response: schema.MustCompile(listResponseShape),
			Call: func(ctx context.Context, inv provider.Invoker, params map[string]any) (map[string]any, error) {
				return inv.Invoke(ctx, base+"/patterns", invoker.Options{Method: "GET"})
			},
		},
	}

	return provider.NewToolset(ProviderName, inv, tools)
}
