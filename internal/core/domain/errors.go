package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrValidation indicates vectors of mismatched length were compared.
	ErrValidation = errors.New("validation failed")

	// ErrUnknownCollection indicates a collection name outside the fixed namespace.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrTransport indicates an embedding, LLM, or converter call failed.
	ErrTransport = errors.New("transport error")

	// ErrStorageQuota indicates the persistence backend rejected a write for size.
	// The vector store responds by evicting and retrying once.
	ErrStorageQuota = errors.New("storage quota exceeded")

	// ErrParse indicates an LLM response or a document could not be decoded.
	// Session memory responds to the former by falling back to a heuristic summary.
	ErrParse = errors.New("parse error")

	// ErrRequiresOriginalSource indicates re-embedding under a different model,
	// which needs the original document text.
	ErrRequiresOriginalSource = errors.New("requires original source: re-embedding under a different model needs the source document")

	// ErrLLMUnavailable indicates the LLM service is not configured.
	// Summarisation falls back to the heuristic path.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured
	// or returned an empty vector.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrConverterUnavailable indicates no document converter is configured.
	ErrConverterUnavailable = errors.New("document converter unavailable")

	// ErrUnsupportedType indicates a file type that cannot be indexed.
	ErrUnsupportedType = errors.New("unsupported type")
)

// IndexingError names the pipeline stage that failed.
type IndexingError struct {
	Stage IndexingStage
	Err   error
}

// Error implements error.
func (e *IndexingError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *IndexingError) Unwrap() error {
	return e.Err
}
