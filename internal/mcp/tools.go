package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dkeller/facetidx/internal/index"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuery    = -32004 // Query parameter is empty
)

// handleIndexFiles handles the index_files tool invocation
func (s *Server) handleIndexFiles(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	rawPaths, ok := args["paths"].([]interface{})
	if !ok || len(rawPaths) == 0 {
		return nil, newMCPError(ErrorCodeInvalidParams, "paths parameter is required", map[string]interface{}{
			"param":  "paths",
			"reason": "missing or empty",
		})
	}
	paths := make([]string, 0, len(rawPaths))
	for _, raw := range rawPaths {
		p, ok := raw.(string)
		if !ok || p == "" {
			return nil, newMCPError(ErrorCodeInvalidParams, "paths must be non-empty strings", nil)
		}
		paths = append(paths, p)
	}

	stats, err := s.pipeline.ImportFiles(ctx, paths)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "ingestion failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	files := make([]map[string]interface{}, 0, len(stats.Files))
	for _, fs := range stats.Files {
		files = append(files, map[string]interface{}{
			"filename": fs.Filename,
			"lines":    fs.Lines,
			"blobs":    fs.Blobs,
			"chunks":   fs.Chunks,
			"errors":   fs.Errors,
		})
	}

	response := map[string]interface{}{
		"files_imported": stats.FilesImported,
		"files_skipped":  stats.FilesSkipped,
		"chunks_written": stats.ChunksWritten,
		"duration_ms":    stats.Duration.Milliseconds(),
		"files":          files,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	query, ok := args["query"].(string)
	if !ok || query == "" {
		return nil, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	maxHits := getIntDefault(args, "max_hits", s.defaultMaxHits)
	if maxHits < 1 || maxHits > 100 {
		return nil, newMCPError(ErrorCodeInvalidParams, "max_hits must be between 1 and 100", map[string]interface{}{
			"param": "max_hits",
			"value": maxHits,
		})
	}
	minScore := getFloatDefault(args, "min_score", s.defaultMinScore)

	result, err := s.engine.Query(ctx, query, maxHits, minScore)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "query failed", map[string]interface{}{
			"error": err.Error(),
		})
	}

	hits := make([]map[string]interface{}, 0, len(result.Hits))
	for _, rendered := range s.engine.Render(result.Hits) {
		hit := map[string]interface{}{
			"chunk_id": rendered.Hit.Item,
			"score":    rendered.Hit.Score,
		}
		if rendered.Err != nil {
			hit["error"] = rendered.Err.Error()
		} else {
			hit["filename"] = rendered.Chunk.Filename
			hit["tree_name"] = rendered.Chunk.TreeName
			hit["code"] = rendered.Chunk.Code()
			if rendered.Chunk.Docs != nil {
				hit["docs"] = rendered.Chunk.Docs
			}
		}
		hits = append(hits, hit)
	}

	response := map[string]interface{}{
		"hit_count": len(result.Hits),
		"hits":      hits,
	}
	if len(result.Degraded) > 0 {
		response["degraded_indices"] = result.Degraded
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleBrowseFacets handles the browse_facets tool invocation
func (s *Server) handleBrowseFacets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	facetName, ok := args["facet"].(string)
	if !ok || facetName == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "facet parameter is required", map[string]interface{}{
			"param":  "facet",
			"reason": "missing or empty",
		})
	}
	facet, err := index.ParseFacet(facetName)
	if err != nil {
		return nil, newMCPError(ErrorCodeInvalidParams, "unknown facet", map[string]interface{}{
			"param": "facet",
			"value": facetName,
		})
	}

	filter, _ := args["filter"].(string)
	entries := s.engine.Browse(facet, filter)

	response := map[string]interface{}{
		"facet":       facet.String(),
		"entry_count": len(entries),
		"entries":     entries,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// newMCPError builds a JSON-RPC style error with optional data payload
func newMCPError(code int, message string, data map[string]interface{}) error {
	if data == nil {
		return fmt.Errorf("mcp error %d: %s", code, message)
	}
	payload, _ := json.Marshal(data)
	return fmt.Errorf("mcp error %d: %s: %s", code, message, payload)
}

// formatJSON pretty-prints a response payload
func formatJSON(v interface{}) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func getIntDefault(args map[string]interface{}, key string, def int) int {
	if raw, ok := args[key]; ok {
		if f, ok := raw.(float64); ok {
			return int(f)
		}
	}
	return def
}

func getFloatDefault(args map[string]interface{}, key string, def float64) float64 {
	if raw, ok := args[key]; ok {
		if f, ok := raw.(float64); ok {
			return f
		}
	}
	return def
}
