package driven

import (
	"context"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

// SnapshotBackend persists the full vector store state as one unit.
// The vector store loads once on first access and saves after every mutation.
type SnapshotBackend interface {
	// Load returns the persisted snapshot. A backend with nothing stored
	// returns an empty snapshot, not an error.
	Load(ctx context.Context) (domain.Snapshot, error)

	// Save replaces the persisted snapshot atomically.
	// A write rejected for size returns an error wrapping domain.ErrStorageQuota.
	Save(ctx context.Context, snapshot domain.Snapshot) error

	// Close releases resources.
	Close() error
}

// EvictionPolicy decides which documents to drop when a snapshot
// is too large to persist. Eviction is lossy.
type EvictionPolicy interface {
	// Name returns the policy name for logging.
	Name() string

	// Evict returns the reduced snapshot and the documents it dropped.
	// The input snapshot must not be modified.
	Evict(snapshot domain.Snapshot) (domain.Snapshot, []domain.EvictedDocument)
}
