package mcp

import (
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Retriever assembles context for queries.
	Retriever driving.RetrieverService

	// Indexer adds documents to collections.
	Indexer driving.IndexerService

	// Memory stores and recalls session summaries and preferences.
	Memory driving.SessionMemoryService

	// Store backs the collection resources.
	Store driving.VectorStore
}

// Validate ensures all required ports are set.
// Indexer, Memory and Store are optional; their tools report unavailability.
func (p *Ports) Validate() error {
	if p.Retriever == nil {
		return ErrMissingRetriever
	}
	return nil
}
