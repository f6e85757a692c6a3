package driven

import "github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"

// Chunker splits document text into bounded, heading-aware chunks.
type Chunker interface {
	// Name returns the chunker name for logging.
	Name() string

	// Options returns the chunker's configured options.
	Options() domain.ChunkOptions

	// Chunk splits content into chunks tagged with source.
	// Returns an empty slice for empty or whitespace-only content.
	Chunk(content, source string, opts domain.ChunkOptions) []domain.Chunk
}
