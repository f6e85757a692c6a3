package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for store resources.
	uriScheme = "sanctum://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "collections",
		Name:        "collections",
		Description: "Statistics for every vector store collection",
		MIMEType:    "application/json",
	}, s.handleCollectionsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "collections/{name}/sources",
		Name:        "collection-sources",
		Description: "Distinct sources indexed in a collection, with chunk counts",
		MIMEType:    "application/json",
	}, s.handleSourcesResource)
}

// handleCollectionsResource returns stats for all collections.
func (s *Server) handleCollectionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Store == nil {
		return jsonResult(req.Params.URI, []domain.CollectionStats{})
	}

	all := make([]domain.CollectionStats, 0, len(domain.AllCollections()))
	for _, c := range domain.AllCollections() {
		stats, err := s.ports.Store.Stats(ctx, c)
		if err != nil {
			return nil, fmt.Errorf("stats for %s: %w", c, err)
		}
		all = append(all, *stats)
	}
	return jsonResult(req.Params.URI, all)
}

// handleSourcesResource lists the sources stored in one collection.
func (s *Server) handleSourcesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Store == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	collection, err := domain.ParseCollection(extractCollection(req.Params.URI))
	if err != nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	docs, err := s.ports.Store.List(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", collection, err)
	}

	type sourceInfo struct {
		Source string `json:"source"`
		Chunks int    `json:"chunks"`
	}

	counts := make(map[string]int)
	var order []string
	for i := range docs {
		src := docs[i].Source()
		if src == "" {
			continue
		}
		if counts[src] == 0 {
			order = append(order, src)
		}
		counts[src]++
	}

	infos := make([]sourceInfo, len(order))
	for i, src := range order {
		infos[i] = sourceInfo{Source: src, Chunks: counts[src]}
	}
	return jsonResult(req.Params.URI, infos)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractCollection extracts the name from a URI like sanctum://collections/{name}/sources.
func extractCollection(uri string) string {
	const prefix = uriScheme + "collections/"
	const suffix = "/sources"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}
	return strings.TrimSuffix(uri, suffix)
}
