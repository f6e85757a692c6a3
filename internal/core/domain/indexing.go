package domain

// IndexingStage identifies a step of the indexing pipeline.
type IndexingStage string

// Indexing stages in pipeline order.
const (
	StageChunking  IndexingStage = "chunking"
	StageEmbedding IndexingStage = "embedding"
	StageStoring   IndexingStage = "storing"
	StageComplete  IndexingStage = "complete"
	StageError     IndexingStage = "error"
)

// String returns the string representation.
func (s IndexingStage) String() string {
	return string(s)
}

// IndexingProgress is a transient status event emitted during indexing.
type IndexingProgress struct {
	Stage   IndexingStage
	Current int
	Total   int
	Message string
}

// ProgressFunc receives indexing progress events. May be nil.
type ProgressFunc func(IndexingProgress)

// IndexRequest describes one document to index.
type IndexRequest struct {
	// Content is the raw document text.
	Content string

	// Source is the tag grouping the document's chunks.
	Source string

	// Collection is the target collection.
	Collection Collection

	// EmbeddingModel is the model used for every chunk. Empty uses the client default.
	EmbeddingModel string

	// Metadata is merged into every stored chunk (e.g. title, url).
	Metadata map[string]any
}

// IndexingResult is the structured outcome of an indexing run.
type IndexingResult struct {
	Source              string        `json:"source"`
	Collection          Collection    `json:"collection"`
	ChunksCreated       int           `json:"chunksCreated"`
	EmbeddingsGenerated int           `json:"embeddingsGenerated"`
	Success             bool          `json:"success"`
	Error               string        `json:"error,omitempty"`
	FailedStage         IndexingStage `json:"failedStage,omitempty"`
}
