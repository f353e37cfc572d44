package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/vectorpipe/vectorpipe/internal/query"
	"github.com/vectorpipe/vectorpipe/internal/storage"
	"github.com/vectorpipe/vectorpipe/internal/vectorindex"
)

const (
	// ServerName is the MCP server name
	ServerName = "vectorpipe"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with pipeline dependencies
type Server struct {
	mcp    *server.MCPServer
	query  *query.Service
	ledger storage.Storage
	index  vectorindex.Index
}

// NewServer creates a new MCP server over existing pipeline components.
// The caller owns the component lifecycles.
func NewServer(q *query.Service, ledger storage.Storage, index vectorindex.Index) *Server {
	s := &Server{
		mcp:    server.NewMCPServer(ServerName, ServerVersion),
		query:  q,
		ledger: ledger,
		index:  index,
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
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(pipelineStatusTool(), s.handlePipelineStatus)
}
