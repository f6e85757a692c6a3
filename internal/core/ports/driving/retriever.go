package driving

import (
	"context"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

// RetrieverService assembles token-budgeted context for a query.
type RetrieverService interface {
	// Retrieve embeds the query, searches the requested collections and
	// assembles a context string within opts.MaxTokens. Embedding failures
	// are returned to the caller.
	Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions, model string) (*domain.RetrievalResult, error)
}
