// Package mcp exposes the pipeline over the Model Context Protocol so
// assistants can search the indexed corpus and inspect ingestion health
// without touching the HTTP surface.
//
// The server speaks MCP over stdio and registers two tools:
//
//   - search_documents: similarity search over indexed chunks, served by
//     the same query service as the HTTP API, including its result cache
//     and model pinning.
//   - pipeline_status: document, chunk, queue, and index counts from the
//     coordination store, useful for answering "has my document landed
//     yet".
//
// Tool errors carry JSON-RPC style codes: invalid parameters map to
// -32602, internal failures to -32603, with domain-specific codes above
// -32000 for dependency problems.
package mcp
