package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driving"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/logger"
)

// Ensure VectorStore implements the interface.
var _ driving.VectorStore = (*VectorStore)(nil)

// VectorStore keeps every collection in memory and persists the whole store
// through a snapshot backend after each mutation.
//
// Readers work on an immutable state value and never block on persistence.
// Mutations are serialised by one store-wide writer lock: the backend saves
// the store as a single unit, so two concurrent writers would otherwise race
// on the load-mutate-save cycle and lose updates.
type VectorStore struct {
	backend driven.SnapshotBackend
	policy  driven.EvictionPolicy
	onEvict func(domain.EvictionReport)
	now     func() time.Time

	writeMu sync.Mutex
	loadMu  sync.Mutex
	mu      sync.RWMutex
	state   *storeState
}

// VectorStoreOption configures a VectorStore.
type VectorStoreOption func(*VectorStore)

// WithEvictionPolicy sets the policy applied when the backend rejects a save
// for size. Passing nil disables eviction.
func WithEvictionPolicy(policy driven.EvictionPolicy) VectorStoreOption {
	return func(s *VectorStore) {
		s.policy = policy
	}
}

// WithEvictionHook registers a callback invoked after an eviction succeeds.
func WithEvictionHook(fn func(domain.EvictionReport)) VectorStoreOption {
	return func(s *VectorStore) {
		s.onEvict = fn
	}
}

// WithClock overrides the time source used for document timestamps.
func WithClock(now func() time.Time) VectorStoreOption {
	return func(s *VectorStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewVectorStore creates a vector store over backend. Nothing is loaded
// until the first operation.
func NewVectorStore(backend driven.SnapshotBackend, opts ...VectorStoreOption) *VectorStore {
	s := &VectorStore{
		backend: backend,
		policy:  KeepMostRecent{PerCollection: DefaultEvictKeep},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// storeState is an immutable view of every collection.
type storeState struct {
	collections map[domain.Collection]*collectionIndex
}

// collectionIndex keeps embeddings and their magnitudes apart from
// metadata so a scan touches only the vectors.
type collectionIndex struct {
	docs    []domain.VectorDocument
	byID    map[string]int
	vectors [][]float64
	norms   []float64
}

func newCollectionIndex(docs []domain.VectorDocument) *collectionIndex {
	idx := &collectionIndex{
		docs:    docs,
		byID:    make(map[string]int, len(docs)),
		vectors: make([][]float64, len(docs)),
		norms:   make([]float64, len(docs)),
	}
	for i, d := range docs {
		idx.byID[d.ID] = i
		idx.vectors[i] = d.Embedding
		idx.norms[i] = magnitude(d.Embedding)
	}
	return idx
}

func newStoreState(snap domain.Snapshot) *storeState {
	st := &storeState{collections: make(map[domain.Collection]*collectionIndex, len(domain.AllCollections()))}
	for _, c := range domain.AllCollections() {
		st.collections[c] = newCollectionIndex(snap[c])
	}
	return st
}

// snapshot returns a copy whose slices can be modified without touching st.
func (st *storeState) snapshot() domain.Snapshot {
	snap := domain.NewSnapshot()
	for c, idx := range st.collections {
		snap[c] = append(snap[c], idx.docs...)
	}
	return snap
}

// current returns the loaded state, loading it from the backend on first use.
// A failed load is retried on the next call.
func (s *VectorStore) current(ctx context.Context) (*storeState, error) {
	s.mu.RLock()
	st := s.state
	s.mu.RUnlock()
	if st != nil {
		return st, nil
	}

	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	s.mu.RLock()
	st = s.state
	s.mu.RUnlock()
	if st != nil {
		return st, nil
	}

	snap, err := s.backend.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vector store: %w", err)
	}
	if snap == nil {
		snap = domain.NewSnapshot()
	}
	st = newStoreState(snap)
	logger.Debug("Loaded vector store: %d documents", snap.Size())

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	return st, nil
}

// mutate runs fn against a private copy of the store and commits the result
// only if the backend accepts it. fn reports whether anything changed;
// unchanged snapshots are not written.
func (s *VectorStore) mutate(ctx context.Context, fn func(snap domain.Snapshot) (bool, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	st, err := s.current(ctx)
	if err != nil {
		return err
	}

	snap := st.snapshot()
	changed, err := fn(snap)
	if err != nil || !changed {
		return err
	}

	saved, err := s.persist(ctx, snap)
	if err != nil {
		return err
	}

	next := newStoreState(saved)
	s.mu.Lock()
	s.state = next
	s.mu.Unlock()
	return nil
}

// persist saves snap. On a quota error the eviction policy trims the
// snapshot and the save is retried once. Eviction loses data.
func (s *VectorStore) persist(ctx context.Context, snap domain.Snapshot) (domain.Snapshot, error) {
	err := s.backend.Save(ctx, snap)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, domain.ErrStorageQuota) || s.policy == nil {
		return nil, fmt.Errorf("save snapshot: %w", err)
	}

	reduced, evicted := s.policy.Evict(snap)
	logger.Warn("Storage quota exceeded, %s policy evicting %d documents", s.policy.Name(), len(evicted))

	if err := s.backend.Save(ctx, reduced); err != nil {
		return nil, fmt.Errorf("save snapshot after evicting %d documents: %w", len(evicted), err)
	}
	if s.onEvict != nil {
		s.onEvict(domain.EvictionReport{Evicted: evicted})
	}
	return reduced, nil
}

func checkCollection(c domain.Collection) error {
	if !c.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownCollection, c)
	}
	return nil
}

// upsertInto merges docs into list, keeping CreatedAt of replaced documents.
func (s *VectorStore) upsertInto(list []domain.VectorDocument, docs []domain.VectorDocument) ([]domain.VectorDocument, error) {
	now := s.now()
	pos := make(map[string]int, len(list))
	for i, d := range list {
		pos[d.ID] = i
	}

	for _, doc := range docs {
		if doc.ID == "" {
			return nil, fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
		}
		doc = doc.Clone()
		doc.UpdatedAt = now

		if i, ok := pos[doc.ID]; ok {
			doc.CreatedAt = list[i].CreatedAt
			list[i] = doc
			continue
		}
		if doc.CreatedAt.IsZero() {
			doc.CreatedAt = now
		}
		pos[doc.ID] = len(list)
		list = append(list, doc)
	}
	return list, nil
}

// Upsert inserts or overwrites a document by ID.
func (s *VectorStore) Upsert(ctx context.Context, collection domain.Collection, doc domain.VectorDocument) error {
	return s.UpsertMany(ctx, collection, []domain.VectorDocument{doc})
}

// UpsertMany upserts documents in a single persisted write.
func (s *VectorStore) UpsertMany(ctx context.Context, collection domain.Collection, docs []domain.VectorDocument) error {
	if err := checkCollection(collection); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	return s.mutate(ctx, func(snap domain.Snapshot) (bool, error) {
		list, err := s.upsertInto(snap[collection], docs)
		if err != nil {
			return false, err
		}
		snap[collection] = list
		return true, nil
	})
}

// Get returns a copy of a document by ID.
func (s *VectorStore) Get(ctx context.Context, collection domain.Collection, id string) (*domain.VectorDocument, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	idx := st.collections[collection]
	i, ok := idx.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: document %q in %s", domain.ErrNotFound, id, collection)
	}
	doc := idx.docs[i].Clone()
	return &doc, nil
}

// List returns copies of every document in a collection.
func (s *VectorStore) List(ctx context.Context, collection domain.Collection) ([]domain.VectorDocument, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	docs := st.collections[collection].docs
	out := make([]domain.VectorDocument, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out, nil
}

// Search ranks every document in a collection by cosine similarity to query.
func (s *VectorStore) Search(
	ctx context.Context, collection domain.Collection, query []float64, limit int, minScore float64,
) ([]domain.SearchResult, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return searchIndex(st.collections[collection], collection, query, limit, minScore)
}

func searchIndex(
	idx *collectionIndex, collection domain.Collection, query []float64, limit int, minScore float64,
) ([]domain.SearchResult, error) {
	results := []domain.SearchResult{}
	if len(query) == 0 || len(idx.docs) == 0 {
		return results, nil
	}

	qNorm := magnitude(query)
	for i, vec := range idx.vectors {
		if len(vec) != len(query) {
			return nil, fmt.Errorf("%w: document %q in %s has %d dimensions, query has %d",
				domain.ErrValidation, idx.docs[i].ID, collection, len(vec), len(query))
		}
		score := cosine(dot(query, vec), qNorm, idx.norms[i])
		if score < minScore {
			continue
		}
		d := idx.docs[i]
		results = append(results, domain.SearchResult{
			ID:         d.ID,
			Content:    d.Content,
			Score:      score,
			Metadata:   copyMetadata(d.Metadata),
			Collection: collection,
		})
	}

	sortResults(results)
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// SearchAcross searches each collection, then merges and re-ranks the results.
func (s *VectorStore) SearchAcross(
	ctx context.Context, collections []domain.Collection, query []float64, limit int, minScore float64,
) ([]domain.SearchResult, error) {
	for _, c := range collections {
		if err := checkCollection(c); err != nil {
			return nil, err
		}
	}
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	merged := []domain.SearchResult{}
	seen := make(map[domain.Collection]bool, len(collections))
	for _, c := range collections {
		if seen[c] {
			continue
		}
		seen[c] = true

		results, err := searchIndex(st.collections[c], c, query, limit, minScore)
		if err != nil {
			return nil, err
		}
		merged = append(merged, results...)
	}

	sortResults(merged)
	if limit > 0 && len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// sortResults orders by descending score. Equal scores keep scan order.
func sortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
}

func copyMetadata(meta map[string]any) map[string]any {
	if meta == nil {
		return nil
	}
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// DeleteByID removes one document.
func (s *VectorStore) DeleteByID(ctx context.Context, collection domain.Collection, id string) error {
	if err := checkCollection(collection); err != nil {
		return err
	}

	return s.mutate(ctx, func(snap domain.Snapshot) (bool, error) {
		docs := snap[collection]
		for i, d := range docs {
			if d.ID == id {
				snap[collection] = append(docs[:i:i], docs[i+1:]...)
				return true, nil
			}
		}
		return false, fmt.Errorf("%w: document %q in %s", domain.ErrNotFound, id, collection)
	})
}

// DeleteBySource removes every document tagged with source in one write.
func (s *VectorStore) DeleteBySource(ctx context.Context, collection domain.Collection, source string) (int, error) {
	if err := checkCollection(collection); err != nil {
		return 0, err
	}

	removed := 0
	err := s.mutate(ctx, func(snap domain.Snapshot) (bool, error) {
		var kept []domain.VectorDocument
		kept, removed = withoutSource(snap[collection], source)
		snap[collection] = kept
		return removed > 0, nil
	})
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		logger.Debug("Deleted %d documents from %s for source %q", removed, collection, source)
	}
	return removed, nil
}

func withoutSource(docs []domain.VectorDocument, source string) ([]domain.VectorDocument, int) {
	kept := make([]domain.VectorDocument, 0, len(docs))
	for _, d := range docs {
		if d.Source() != source {
			kept = append(kept, d)
		}
	}
	return kept, len(docs) - len(kept)
}

// ReplaceSource drops a source's documents and upserts docs in one write,
// so readers never see a mix of old and new chunks.
func (s *VectorStore) ReplaceSource(
	ctx context.Context, collection domain.Collection, source string, docs []domain.VectorDocument,
) error {
	if err := checkCollection(collection); err != nil {
		return err
	}

	return s.mutate(ctx, func(snap domain.Snapshot) (bool, error) {
		kept, removed := withoutSource(snap[collection], source)
		list, err := s.upsertInto(kept, docs)
		if err != nil {
			return false, err
		}
		snap[collection] = list
		return removed > 0 || len(docs) > 0, nil
	})
}

// Clear removes every document from a collection.
func (s *VectorStore) Clear(ctx context.Context, collection domain.Collection) error {
	if err := checkCollection(collection); err != nil {
		return err
	}

	return s.mutate(ctx, func(snap domain.Snapshot) (bool, error) {
		if len(snap[collection]) == 0 {
			return false, nil
		}
		snap[collection] = []domain.VectorDocument{}
		return true, nil
	})
}

// Stats summarises a collection. The oldest timestamp is the earliest
// CreatedAt and the newest is the latest UpdatedAt.
func (s *VectorStore) Stats(ctx context.Context, collection domain.Collection) (*domain.CollectionStats, error) {
	if err := checkCollection(collection); err != nil {
		return nil, err
	}
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}

	docs := st.collections[collection].docs
	stats := &domain.CollectionStats{Collection: collection, Count: len(docs)}
	sources := make(map[string]struct{})
	for i, d := range docs {
		if src := d.Source(); src != "" {
			sources[src] = struct{}{}
		}
		if i == 0 || d.CreatedAt.Before(*stats.OldestTimestamp) {
			t := d.CreatedAt
			stats.OldestTimestamp = &t
		}
		if i == 0 || d.UpdatedAt.After(*stats.NewestTimestamp) {
			t := d.UpdatedAt
			stats.NewestTimestamp = &t
		}
	}
	stats.DistinctSources = len(sources)
	return stats, nil
}

// ExportSnapshot serialises the full store.
func (s *VectorStore) ExportSnapshot(ctx context.Context) ([]byte, error) {
	st, err := s.current(ctx)
	if err != nil {
		return nil, err
	}
	return domain.MarshalSnapshot(st.snapshot())
}

// ImportSnapshot validates data and replaces the full store with it.
// Timestamps are kept as exported.
func (s *VectorStore) ImportSnapshot(ctx context.Context, data []byte) error {
	imported, err := domain.UnmarshalSnapshot(data)
	if err != nil {
		return err
	}

	return s.mutate(ctx, func(snap domain.Snapshot) (bool, error) {
		for _, c := range domain.AllCollections() {
			snap[c] = imported[c]
		}
		return true, nil
	})
}
