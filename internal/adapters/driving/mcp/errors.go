// Package mcp provides an MCP (Model Context Protocol) server adapter for the
// SSPI engine. It lets AI assistants query scores, intermediates and metadata.
// Pipeline operations are not exposed.
package mcp

import "errors"

// ErrMissingQueryService is returned when the query service is not provided.
var ErrMissingQueryService = errors.New("mcp: query service is required")

// ErrMissingMetadataService is returned when the metadata service is not provided.
var ErrMissingMetadataService = errors.New("mcp: metadata service is required")
