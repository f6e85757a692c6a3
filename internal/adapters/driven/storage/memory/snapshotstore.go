package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
)

// Ensure SnapshotStore implements the interface.
var _ driven.SnapshotBackend = (*SnapshotStore)(nil)

// SnapshotStore is an in-memory implementation of driven.SnapshotBackend.
// It keeps the encoded JSON so saves and loads go through the same codec
// as the persistent backends.
type SnapshotStore struct {
	mu       sync.RWMutex
	data     []byte
	maxBytes int
	saves    int
	failNext error
}

// SnapshotOption configures a SnapshotStore.
type SnapshotOption func(*SnapshotStore)

// WithMaxBytes rejects saves whose encoding exceeds n bytes.
// Zero disables the limit.
func WithMaxBytes(n int) SnapshotOption {
	return func(s *SnapshotStore) {
		if n >= 0 {
			s.maxBytes = n
		}
	}
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore(opts ...SnapshotOption) *SnapshotStore {
	s := &SnapshotStore{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load decodes the stored snapshot.
func (s *SnapshotStore) Load(_ context.Context) (domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.data) == 0 {
		return domain.NewSnapshot(), nil
	}
	return domain.UnmarshalSnapshot(s.data)
}

// Save encodes and stores the snapshot.
func (s *SnapshotStore) Save(_ context.Context, snapshot domain.Snapshot) error {
	data, err := domain.MarshalSnapshot(snapshot)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return err
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		return fmt.Errorf("%w: snapshot is %d bytes, limit is %d", domain.ErrStorageQuota, len(data), s.maxBytes)
	}
	s.data = data
	s.saves++
	return nil
}

// Close is a no-op.
func (s *SnapshotStore) Close() error {
	return nil
}

// Saves returns the number of successful saves.
func (s *SnapshotStore) Saves() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.saves
}

// Size returns the length of the stored encoding in bytes.
func (s *SnapshotStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// SetMaxBytes changes the quota.
func (s *SnapshotStore) SetMaxBytes(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxBytes = n
}

// FailNextSave makes the next Save return err without storing anything.
func (s *SnapshotStore) FailNextSave(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}
