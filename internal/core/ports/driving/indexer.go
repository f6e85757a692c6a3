package driving

import (
	"context"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

// IndexerService orchestrates chunking, embedding and storing for one source.
type IndexerService interface {
	// IndexDocument runs the pipeline for one document. Failures are reported
	// in the result, never as a partial commit.
	IndexDocument(ctx context.Context, req domain.IndexRequest, onProgress domain.ProgressFunc) domain.IndexingResult

	// IndexFile reads a file (converting binary formats to markdown when a
	// converter is available) and indexes it with the path as source.
	IndexFile(ctx context.Context, path string, collection domain.Collection, model string, onProgress domain.ProgressFunc) domain.IndexingResult

	// IndexURL converts a remote document and indexes it with the URL as source.
	IndexURL(ctx context.Context, url string, collection domain.Collection, model string, onProgress domain.ProgressFunc) domain.IndexingResult

	// Reembed refreshes a source's vectors under model. Fails with
	// domain.ErrRequiresOriginalSource when the stored model differs.
	Reembed(ctx context.Context, collection domain.Collection, source, model string) error
}
