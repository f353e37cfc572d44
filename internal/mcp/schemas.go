package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vectorpipe/vectorpipe/pkg/types"
)

// searchDocumentsTool returns the tool definition for search_documents
func searchDocumentsTool() mcp.Tool {
	return mcp.Tool{
		Name:        "search_documents",
		Description: "Search indexed documents by semantic similarity and return the most relevant chunks",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Natural language query text",
				},
				"top_n": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of chunks to return (1-100)",
					"default":     10,
					"minimum":     1,
					"maximum":     types.MaxTopN,
				},
			},
			Required: []string{"query"},
		},
	}
}

// pipelineStatusTool returns the tool definition for pipeline_status
func pipelineStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "pipeline_status",
		Description: "Report ingestion pipeline health: document and chunk counts by status, queue depth, dead letters, and indexed vector count",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
