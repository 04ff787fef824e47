// Package mcp exposes the ragify pipeline as MCP tools.
//
// The server uses the MCP SDK (github.com/modelcontextprotocol/go-sdk/mcp)
// and registers two tools, index_documents and query_documents, which call
// the pipeline directly. Tool failures are reported as tool results with
// IsError set, so the calling model can see them.
package mcp
