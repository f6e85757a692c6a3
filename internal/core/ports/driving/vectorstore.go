package driving

import (
	"context"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

// VectorStore persists embedded documents in named collections and
// performs exact cosine similarity search over them.
//
// Every mutation is persisted before it returns. Operations on an
// unknown collection fail with domain.ErrUnknownCollection.
type VectorStore interface {
	// Upsert inserts or overwrites a document by ID. Overwrites keep CreatedAt.
	Upsert(ctx context.Context, collection domain.Collection, doc domain.VectorDocument) error

	// UpsertMany upserts documents in a single persisted write.
	UpsertMany(ctx context.Context, collection domain.Collection, docs []domain.VectorDocument) error

	// Get returns a document by ID.
	Get(ctx context.Context, collection domain.Collection, id string) (*domain.VectorDocument, error)

	// List returns every document in a collection.
	List(ctx context.Context, collection domain.Collection) ([]domain.VectorDocument, error)

	// Search ranks a collection against the query vector.
	// Results have score >= minScore, descending, at most limit (limit <= 0 is unlimited).
	Search(ctx context.Context, collection domain.Collection, query []float64, limit int, minScore float64) ([]domain.SearchResult, error)

	// SearchAcross searches each collection, merges and re-ranks globally.
	SearchAcross(ctx context.Context, collections []domain.Collection, query []float64, limit int, minScore float64) ([]domain.SearchResult, error)

	// DeleteByID removes one document. Returns domain.ErrNotFound if absent.
	DeleteByID(ctx context.Context, collection domain.Collection, id string) error

	// DeleteBySource removes every document whose source metadata equals source
	// in one persisted write, returning how many were removed.
	DeleteBySource(ctx context.Context, collection domain.Collection, source string) (int, error)

	// ReplaceSource deletes a source's documents and upserts docs in one persisted write.
	ReplaceSource(ctx context.Context, collection domain.Collection, source string, docs []domain.VectorDocument) error

	// Clear removes every document from a collection.
	Clear(ctx context.Context, collection domain.Collection) error

	// Stats summarises a collection.
	Stats(ctx context.Context, collection domain.Collection) (*domain.CollectionStats, error)

	// ExportSnapshot serialises the full store as one JSON object
	// with an array per collection.
	ExportSnapshot(ctx context.Context) ([]byte, error)

	// ImportSnapshot replaces the full store. Every collection key must be present.
	ImportSnapshot(ctx context.Context, data []byte) error
}
