// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets AI assistants retrieve context, index documents and manage
// session memory over stdio or streamable HTTP.
package mcp

import "errors"

// ErrMissingRetriever is returned when the retriever service is not provided.
var ErrMissingRetriever = errors.New("mcp: retriever service is required")

// errToolUnavailable is returned by tools whose backing service is not wired.
var errToolUnavailable = errors.New("mcp: tool is not available in this configuration")
