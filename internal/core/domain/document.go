package domain

// Chunk is a bounded text segment produced by the chunker.
// Chunks are transient: only their embedded form survives as a VectorDocument.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// Content is the chunk text.
	Content string

	// Metadata holds positional and heading information.
	Metadata ChunkMetadata
}

// ChunkMetadata describes where a chunk sits within its source.
type ChunkMetadata struct {
	// Source is the tag grouping every chunk of one ingestion (file path, URL, query).
	Source string

	// Heading is the nearest preceding markdown heading, empty if none.
	Heading string

	// ChunkIndex is the zero-based position of the chunk within its source.
	ChunkIndex int

	// TotalChunks is the number of chunks produced for the source.
	TotalChunks int
}

// ChunkOptions configures how content is split into chunks.
type ChunkOptions struct {
	// MaxChunkSize is the soft cap on chunk length in characters.
	MaxChunkSize int

	// ChunkOverlap is the number of trailing characters carried into the next chunk.
	ChunkOverlap int

	// RespectHeadings tags chunks with the nearest preceding markdown heading.
	RespectHeadings bool

	// RespectParagraphs splits on blank lines before packing.
	RespectParagraphs bool
}

// DefaultChunkOptions returns the options used when none are configured.
func DefaultChunkOptions() ChunkOptions {
	return ChunkOptions{
		MaxChunkSize:      1000,
		ChunkOverlap:      200,
		RespectHeadings:   true,
		RespectParagraphs: true,
	}
}

// ConvertedDocument is the markdown rendition of a binary document
// (PDF, DOCX, PPTX, XLSX, HTML) produced by a DocumentConverter.
type ConvertedDocument struct {
	// Markdown is the converted content.
	Markdown string

	// Title is the document title, falling back to the file name.
	Title string

	// Pages is the page count when the format has pages.
	Pages int

	// SourceFile is the original file name, set for file conversions.
	SourceFile string

	// SourceURL is the original URL, set for URL conversions.
	SourceURL string

	// CharacterCount is the length of Markdown.
	CharacterCount int

	// WordCount is the whitespace-delimited word count of Markdown.
	WordCount int
}
