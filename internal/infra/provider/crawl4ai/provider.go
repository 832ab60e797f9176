// Package crawl4ai adapts the content-extraction microservice into a tool
// provider. It exposes two tools: extract_content, which fetches a page and
// returns filtered markdown, and check_robots, which asks the service whether
// a URL may be crawled.
package crawl4ai

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"flux-tools/internal/domain/entity"
	"flux-tools/internal/infra/invoker"
	"flux-tools/internal/infra/provider"
	"flux-tools/internal/schema"
)

// ProviderName is the registry name this provider registers under.
const ProviderName = "crawl4ai"

const (
	// ToolExtractContent fetches a URL through the extraction service and
	// returns its content as markdown.
	ToolExtractContent = "extract_content"

	// ToolCheckRobots asks the extraction service whether robots.txt allows
	// crawling a URL.
	ToolCheckRobots = "check_robots"
)

var stringList = map[string]any{
	"type":  "array",
	"items": map[string]any{"type": "string"},
}

var extractParamShape = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"url": map[string]any{
			"type":        "string",
			"description": "URL of the page to extract",
		},
		"selectors": map[string]any{
			"type":        "object",
			"description": "CSS selectors scoping the extraction",
			"properties": map[string]any{
				"base_selector":     map[string]any{"type": "string"},
				"include_selectors": stringList,
				"exclude_selectors": stringList,
			},
			"additionalProperties": false,
		},
		"extraction_schema": map[string]any{
			"type":        "object",
			"description": "schema for structured data extraction",
			"properties": map[string]any{
				"name":          map[string]any{"type": "string"},
				"base_selector": map[string]any{"type": "string"},
				"fields": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "object"},
				},
			},
			"required": []any{"name", "base_selector", "fields"},
		},
		"use_browser": map[string]any{
			"type":        "boolean",
			"description": "render the page with Playwright before extraction",
		},
		"headless": map[string]any{
			"type": "boolean",
		},
		"verbose": map[string]any{
			"type": "boolean",
		},
		"user_agent": map[string]any{
			"type": "string",
		},
		"filter_type": map[string]any{
			"type": "string",
			"enum": []any{"pruning", "bm25"},
		},
		"threshold": map[string]any{
			"type":    "number",
			"minimum": 0,
			"maximum": 1,
		},
		"query": map[string]any{
			"type":        "string",
			"description": "relevance query, used by the bm25 filter",
		},
		"use_cache": map[string]any{
			"type": "boolean",
		},
		"js_scripts":     stringList,
		"wait_selectors": stringList,
		"check_robots_txt": map[string]any{
			"type": "boolean",
		},
		"respect_rate_limits": map[string]any{
			"type": "boolean",
		},
	},
	"required":             []any{"url"},
	"additionalProperties": false,
}

var extractResponseShape = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"content":        map[string]any{"type": "object"},
		"extracted_data": map[string]any{},
		"metadata":       map[string]any{"type": "object"},
	},
	"required": []any{"content"},
}

var robotsParamShape = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"url": map[string]any{
			"type":        "string",
			"description": "URL to check against robots.txt",
		},
		"user_agent": map[string]any{
			"type": "string",
		},
	},
	"required":             []any{"url"},
	"additionalProperties": false,
}

var robotsResponseShape = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"allowed": map[string]any{"type": "boolean"},
	},
	"required": []any{"allowed"},
}

// New builds the crawl4ai provider against the service at baseURL.
func New(baseURL string, inv provider.Invoker) *provider.Toolset {
	base := strings.TrimRight(baseURL, "/")

	tools := []provider.RemoteTool{
		{
			Descriptor: entity.Tool{
				Name:           ToolExtractContent,
				Description:    "Extract the content of a web page as filtered markdown",
				ParameterShape: extractParamShape,
			},
			Params:   schema.MustCompile(extractParamShape),
			Response: schema.MustCompile(extractResponseShape),
			Call: func(ctx context.Context, inv provider.Invoker, params map[string]any) (map[string]any, error) {
				return inv.Invoke(ctx, base+"/extract", invoker.Options{
					Method: "POST",
					Body:   params,
				})
			},
		},
		{
			Descriptor: entity.Tool{
				Name:           ToolCheckRobots,
				Description:    "Check whether robots.txt allows crawling a URL",
				ParameterShape: robotsParamShape,
			},
			Params:   schema.MustCompile(robotsParamShape),
			Response: schema.MustCompile(robotsResponseShape),
			Call: func(ctx context.Context, inv provider.Invoker, params map[string]any) (map[string]any, error) {
				target, err := robotsCheckURL(base, params)
				if err != nil {
					return nil, err
				}
				return inv.Invoke(ctx, target, invoker.Options{Method: "GET"})
			},
		},
	}

	return provider.NewToolset(ProviderName, inv, tools)
}

func robotsCheckURL(base string, params map[string]any) (string, error) {
	raw, ok := params["url"].(string)
	if !ok {
		return "", entity.NewValidationError(entity.CodeInvalidParameters,
			"robots check requires a string url", nil)
	}
	q := url.Values{}
	q.Set("url", raw)
	if ua, ok := params["user_agent"].(string); ok && ua != "" {
		q.Set("user_agent", ua)
	}
	return fmt.Sprintf("%s/robots-check?%s", base, q.Encode()), nil
}
