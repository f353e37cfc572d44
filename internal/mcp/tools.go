package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/vectorpipe/vectorpipe/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeDependency    = -32001 // Embedding provider or vector index unavailable
)

// handleSearchDocuments handles the search_documents tool invocation
func (s *Server) handleSearchDocuments(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	queryText, ok := args["query"].(string)
	if !ok || queryText == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}
	topN := getIntDefault(args, "top_n", 10)

	hits, err := s.query.Search(ctx, types.QueryRequest{QueryText: queryText, TopN: topN})
	if err != nil {
		switch {
		case errors.Is(err, types.ErrValidation):
			return nil, newMCPError(ErrorCodeInvalidParams, err.Error(), map[string]interface{}{
				"param": "top_n",
				"value": topN,
			})
		case types.IsRetryable(err):
			return nil, newMCPError(ErrorCodeDependency, "dependency unavailable, retry shortly", map[string]interface{}{
				"error": err.Error(),
			})
		default:
			return nil, newMCPError(ErrorCodeInternalError, "search failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	results := make([]map[string]interface{}, 0, len(hits))
	for _, hit := range hits {
		results = append(results, map[string]interface{}{
			"doc_id":   hit.DocID,
			"chunk_id": hit.ChunkID,
			"ordinal":  hit.Ordinal,
			"text":     hit.Text,
			"score":    hit.Score,
		})
	}

	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"results": results,
		"count":   len(results),
	})), nil
}

// handlePipelineStatus handles the pipeline_status tool invocation
func (s *Server) handlePipelineStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	docCounts, err := s.ledger.CountDocumentsByStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to count documents", map[string]interface{}{
			"error": err.Error(),
		})
	}
	chunkCounts, err := s.ledger.CountChunksByStatus(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to count chunks", map[string]interface{}{
			"error": err.Error(),
		})
	}
	depth, err := s.ledger.QueueDepth(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to read queue depth", map[string]interface{}{
			"error": err.Error(),
		})
	}
	deadLetters, err := s.ledger.ListDeadLetters(ctx, 1000)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to list dead letters", map[string]interface{}{
			"error": err.Error(),
		})
	}
	vectors, err := s.index.Count(ctx)
	if err != nil {
		return nil, newMCPError(ErrorCodeDependency, "vector index unavailable", map[string]interface{}{
			"error": err.Error(),
		})
	}

	response := map[string]interface{}{
		"documents": map[string]interface{}{
			"discovered": docCounts[types.DocStatusDiscovered],
			"chunking":   docCounts[types.DocStatusChunking],
			"chunked":    docCounts[types.DocStatusChunked],
			"failed":     docCounts[types.DocStatusFailed],
		},
		"chunks": map[string]interface{}{
			"published": chunkCounts[types.ChunkStatusPublished],
			"embedded":  chunkCounts[types.ChunkStatusEmbedded],
			"failed":    chunkCounts[types.ChunkStatusFailed],
		},
		"queue": map[string]interface{}{
			"depth":        depth,
			"dead_letters": len(deadLetters),
		},
		"index": map[string]interface{}{
			"vectors": vectors,
		},
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getIntDefault extracts an integer parameter with a default value
func getIntDefault(args map[string]interface{}, key string, defaultValue int) int {
	if val, ok := args[key].(float64); ok {
		return int(val)
	}
	if val, ok := args[key].(int); ok {
		return val
	}
	return defaultValue
}
