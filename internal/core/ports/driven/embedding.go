// Package driven provides interfaces for infrastructure adapters (secondary/outbound ports).
package driven

import (
	"context"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

// EmbeddingService generates vector embeddings from text.
//
// Failures are returned wrapped in domain.ErrTransport so callers can
// distinguish collaborator failures from validation errors.
//
// Implementations may include:
//   - OpenAI (text-embedding-3-small, text-embedding-3-large)
//   - Ollama (nomic-embed-text, all-minilm)
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	// An empty model uses the service's configured model.
	Embed(ctx context.Context, text, model string) (*domain.Embedding, error)

	// ModelName returns the name of the default embedding model.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
