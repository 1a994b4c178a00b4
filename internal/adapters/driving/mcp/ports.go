package mcp

import (
	"github.com/sspi-index/sspi-engine/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
type Ports struct {
	// Query answers observation queries.
	Query driving.QueryService

	// Metadata resolves indicator details and country groups.
	Metadata driving.MetadataService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Query == nil {
		return ErrMissingQueryService
	}
	if p.Metadata == nil {
		return ErrMissingMetadataService
	}
	return nil
}
