package driven

import (
	"context"
	"io"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

// DocumentConverter turns binary documents into markdown before indexing.
// This is an optional service - when nil, only plain text and markdown are indexed.
type DocumentConverter interface {
	// Supports returns true if files with the extension (including the dot) can be converted.
	Supports(ext string) bool

	// Convert converts the named file read from r.
	Convert(ctx context.Context, filename string, r io.Reader) (*domain.ConvertedDocument, error)

	// ConvertURL fetches and converts a remote document.
	ConvertURL(ctx context.Context, url string) (*domain.ConvertedDocument, error)

	// Ping validates the converter is reachable.
	Ping(ctx context.Context) error
}
