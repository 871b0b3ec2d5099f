// Package mcp exposes the indexing core as an MCP stdio server with
// index_files, search_code and browse_facets tools.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/dkeller/facetidx/internal/fusion"
	"github.com/dkeller/facetidx/internal/pipeline"
)

const (
	// ServerName is the MCP server name
	ServerName = "facetidx"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with application dependencies
type Server struct {
	mcp      *server.MCPServer
	pipeline *pipeline.Pipeline
	engine   *fusion.Engine

	defaultMaxHits  int
	defaultMinScore float64
}

// NewServer creates a new MCP server over an already-wired pipeline and
// query engine.
func NewServer(p *pipeline.Pipeline, e *fusion.Engine, maxHits int, minScore float64) *Server {
	s := &Server{
		mcp:             server.NewMCPServer(ServerName, ServerVersion),
		pipeline:        p,
		engine:          e,
		defaultMaxHits:  maxHits,
		defaultMinScore: minScore,
	}
	s.registerTools()
	return s
}

// Serve starts the MCP server on stdio and blocks until shutdown
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexFilesTool(), s.handleIndexFiles)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(browseFacetsTool(), s.handleBrowseFacets)
}
