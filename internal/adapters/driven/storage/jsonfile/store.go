// Package jsonfile persists the vector store snapshot as a single JSON file.
//
// Saves write to a temporary file in the same directory and rename it over
// the target, so a crash mid-write leaves the previous snapshot intact.
package jsonfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
)

// Ensure Store implements the interface.
var _ driven.SnapshotBackend = (*Store)(nil)

// DefaultFileName is the snapshot file name inside the data directory.
const DefaultFileName = "vectors.json"

// Store is a file-backed implementation of driven.SnapshotBackend.
type Store struct {
	mu       sync.Mutex
	path     string
	maxBytes int
}

// Option configures a Store.
type Option func(*Store)

// WithMaxBytes rejects saves whose encoding exceeds n bytes.
func WithMaxBytes(n int) Option {
	return func(s *Store) {
		if n >= 0 {
			s.maxBytes = n
		}
	}
}

// NewStore creates a store writing to path.
// If path is empty, defaults to ~/.sanctum/data/vectors.json.
func NewStore(path string, opts ...Option) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".sanctum", "data", DefaultFileName)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &Store{path: path}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Path returns the snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads and decodes the snapshot file.
func (s *Store) Load(_ context.Context) (domain.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.NewSnapshot(), nil
		}
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if len(data) == 0 {
		return domain.NewSnapshot(), nil
	}

	snap, err := domain.UnmarshalSnapshot(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.path, err)
	}
	return snap, nil
}

// Save encodes the snapshot and atomically replaces the file.
func (s *Store) Save(ctx context.Context, snapshot domain.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := domain.MarshalSnapshot(snapshot)
	if err != nil {
		return err
	}
	if s.maxBytes > 0 && len(data) > s.maxBytes {
		return fmt.Errorf("%w: snapshot is %d bytes, limit is %d", domain.ErrStorageQuota, len(data), s.maxBytes)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".vectors-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("setting snapshot permissions: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing snapshot: %w", err)
	}
	return nil
}

// Close is a no-op; every save is already durable.
func (s *Store) Close() error {
	return nil
}
