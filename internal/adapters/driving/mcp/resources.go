package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/sspi-index/sspi-engine/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for SSPI resources.
	uriScheme = "sspi://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "indicators",
		Name:        "indicators",
		Description: "Details of every indicator: goalposts, datasets and intermediates",
		MIMEType:    "application/json",
	}, s.handleIndicatorsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "indicators/{code}",
		Name:        "indicator-detail",
		Description: "Detail of one indicator",
		MIMEType:    "application/json",
	}, s.handleIndicatorResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "country_groups/{name}",
		Name:        "country-group",
		Description: "Member countries of a named group",
		MIMEType:    "application/json",
	}, s.handleCountryGroupResource)
}

func (s *Server) handleIndicatorsResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	doc, err := s.ports.Metadata.Document(domain.DocIndicatorDetail, "")
	if err != nil {
		return nil, fmt.Errorf("listing indicators: %w", err)
	}
	return jsonResource(req.Params.URI, doc)
}

func (s *Server) handleIndicatorResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	code := extractKey(req.Params.URI, "indicators/")
	if code == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	detail, err := s.ports.Metadata.Indicator(code)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownIndicator) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return nil, err
	}
	return jsonResource(req.Params.URI, detail)
}

func (s *Server) handleCountryGroupResource(
	_ context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	name := extractKey(req.Params.URI, "country_groups/")
	if name == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	group, err := s.ports.Metadata.CountryGroup(name)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownCountryGroup) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return nil, err
	}
	return jsonResource(req.Params.URI, group)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractKey returns the last path segment of a URI like sspi://indicators/{code}.
func extractKey(uri, path string) string {
	prefix := uriScheme + path
	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	key := strings.TrimPrefix(uri, prefix)
	if strings.Contains(key, "/") {
		return ""
	}
	return key
}
