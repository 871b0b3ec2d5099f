package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

// indexFilesTool returns the tool definition for index_files
func indexFilesTool() mcp.Tool {
	return mcp.Tool{
		Name:        "index_files",
		Description: "Ingest source files into the chunk-level semantic index",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"paths": map[string]interface{}{
					"type":        "array",
					"description": "Source file paths to ingest",
					"items": map[string]interface{}{
						"type": "string",
					},
				},
			},
			Required: []string{"paths"},
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_code",
		Description: "Search indexed chunks with a natural-language query, fused across facet and code indices",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language search query",
				},
				"max_hits": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of fused hits to return",
					"minimum":     1,
					"maximum":     100,
				},
				"min_score": map[string]interface{}{
					"type":        "number",
					"description": "Minimum per-index similarity score (0-1)",
					"minimum":     0,
					"maximum":     1,
				},
			},
			Required: []string{"query"},
		},
	}
}

// browseFacetsTool returns the tool definition for browse_facets
func browseFacetsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "browse_facets",
		Description: "List entries of one facet index, optionally filtered by an all-words-present text match",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"facet": map[string]interface{}{
					"type":        "string",
					"description": "Facet to browse",
					"enum":        []string{"summaries", "keywords", "topics", "goals", "dependencies"},
				},
				"filter": map[string]interface{}{
					"type":        "string",
					"description": "Optional filter; every word must appear in the facet value",
				},
			},
			Required: []string{"facet"},
		},
	}
}
