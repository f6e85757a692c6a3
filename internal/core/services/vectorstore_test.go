package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driven/storage/memory"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

func vdoc(id, source string, vec ...float64) domain.VectorDocument {
	return domain.VectorDocument{
		ID:        id,
		Content:   "content " + id,
		Embedding: vec,
		Metadata:  map[string]any{domain.MetaSource: source},
	}
}

// fixedClock returns successive timestamps one second apart.
func fixedClock() func() time.Time {
	var mu sync.Mutex
	t := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}

func TestVectorStore_LazyLoad(t *testing.T) {
	backend := memory.NewSnapshotStore()
	seed := domain.NewSnapshot()
	seed[domain.CollectionReferences] = []domain.VectorDocument{vdoc("r1", "a.md", 1, 0)}
	require.NoError(t, backend.Save(context.Background(), seed))

	store := NewVectorStore(backend)
	assert.Nil(t, store.state, "nothing is loaded before first access")

	doc, err := store.Get(context.Background(), domain.CollectionReferences, "r1")
	require.NoError(t, err)
	assert.Equal(t, "a.md", doc.Source())
	assert.NotNil(t, store.state)
}

func TestVectorStore_UnknownCollection(t *testing.T) {
	store, _ := newTestVectorStore()
	ctx := context.Background()
	bad := domain.Collection("drafts")

	assert.ErrorIs(t, store.Upsert(ctx, bad, vdoc("x", "s", 1)), domain.ErrUnknownCollection)
	_, err := store.Search(ctx, bad, []float64{1}, 5, 0)
	assert.ErrorIs(t, err, domain.ErrUnknownCollection)
	_, err = store.SearchAcross(ctx, []domain.Collection{domain.CollectionReferences, bad}, []float64{1}, 5, 0)
	assert.ErrorIs(t, err, domain.ErrUnknownCollection)
	_, err = store.DeleteBySource(ctx, bad, "s")
	assert.ErrorIs(t, err, domain.ErrUnknownCollection)
	_, err = store.Stats(ctx, bad)
	assert.ErrorIs(t, err, domain.ErrUnknownCollection)
}

func TestVectorStore_Upsert_PreservesCreatedAt(t *testing.T) {
	store, backend := newTestVectorStore(WithClock(fixedClock()))
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.CollectionReferences, vdoc("r1", "a.md", 1, 0)))
	first, err := store.Get(ctx, domain.CollectionReferences, "r1")
	require.NoError(t, err)

	updated := vdoc("r1", "a.md", 0, 1)
	updated.Content = "rewritten"
	updated.CreatedAt = time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.Upsert(ctx, domain.CollectionReferences, updated))

	second, err := store.Get(ctx, domain.CollectionReferences, "r1")
	require.NoError(t, err)
	assert.Equal(t, "rewritten", second.Content)
	assert.True(t, second.CreatedAt.Equal(first.CreatedAt), "createdAt survives overwrite")
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt), "updatedAt is refreshed")
	assert.Equal(t, 2, backend.Saves(), "every mutation is persisted")

	list, err := store.List(ctx, domain.CollectionReferences)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestVectorStore_Upsert_KeepsExplicitCreatedAtForNewDocs(t *testing.T) {
	store, _ := newTestVectorStore()
	ctx := context.Background()
	created := time.Date(2020, 5, 5, 0, 0, 0, 0, time.UTC)

	doc := vdoc("p1", "", 1)
	doc.CreatedAt = created
	require.NoError(t, store.Upsert(ctx, domain.CollectionPreferences, doc))

	got, err := store.Get(ctx, domain.CollectionPreferences, "p1")
	require.NoError(t, err)
	assert.True(t, got.CreatedAt.Equal(created))
}

func TestVectorStore_Upsert_RequiresID(t *testing.T) {
	store, backend := newTestVectorStore()

	err := store.Upsert(context.Background(), domain.CollectionReferences, vdoc("", "a.md", 1))

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 0, backend.Saves())
}

func TestVectorStore_IsolatedFromCallerMutation(t *testing.T) {
	store, _ := newTestVectorStore()
	ctx := context.Background()

	doc := vdoc("r1", "a.md", 1, 0)
	require.NoError(t, store.Upsert(ctx, domain.CollectionReferences, doc))
	doc.Embedding[0] = 42
	doc.Metadata[domain.MetaSource] = "mutated"

	got, err := store.Get(ctx, domain.CollectionReferences, "r1")
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0}, got.Embedding)
	assert.Equal(t, "a.md", got.Source())

	got.Metadata[domain.MetaSource] = "again"
	again, err := store.Get(ctx, domain.CollectionReferences, "r1")
	require.NoError(t, err)
	assert.Equal(t, "a.md", again.Source())
}

func TestVectorStore_Search_OrderingAndFilters(t *testing.T) {
	store, _ := newTestVectorStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertMany(ctx, domain.CollectionReferences, []domain.VectorDocument{
		vdoc("far", "a.md", 0, 1),
		vdoc("near", "a.md", 1, 0.1),
		vdoc("exact", "a.md", 1, 0),
		vdoc("mid", "b.md", 1, 1),
	}))

	results, err := store.Search(ctx, domain.CollectionReferences, []float64{1, 0}, 2, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "exact", results[0].ID)
	assert.Equal(t, "near", results[1].ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-12)
	assert.Equal(t, domain.CollectionReferences, results[0].Collection)

	all, err := store.Search(ctx, domain.CollectionReferences, []float64{1, 0}, 0, 0.5)
	require.NoError(t, err)
	assert.Len(t, all, 3, "limit 0 is unlimited; far scores 0 and is filtered")
}

func TestVectorStore_Search_EmptyCases(t *testing.T) {
	store, _ := newTestVectorStore()
	ctx := context.Background()

	results, err := store.Search(ctx, domain.CollectionReferences, []float64{1, 0}, 5, 0)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)

	require.NoError(t, store.Upsert(ctx, domain.CollectionReferences, vdoc("r1", "a.md", 1, 0)))
	results, err = store.Search(ctx, domain.CollectionReferences, nil, 5, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorStore_Search_DimensionMismatch(t *testing.T) {
	store, _ := newTestVectorStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, domain.CollectionReferences, vdoc("r1", "a.md", 1, 0, 0)))

	_, err := store.Search(ctx, domain.CollectionReferences, []float64{1, 0}, 5, 0)

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestVectorStore_Search_MatchesNaiveScan(t *testing.T) {
	store, _ := newTestVectorStore()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(3))

	docs := make([]domain.VectorDocument, 200)
	for i := range docs {
		docs[i] = vdoc(fmt.Sprintf("d%03d", i), "bulk.md", randomVector(rng, 8)...)
	}
	require.NoError(t, store.UpsertMany(ctx, domain.CollectionReferences, docs))

	query := randomVector(rng, 8)
	results, err := store.Search(ctx, domain.CollectionReferences, query, 20, -1)
	require.NoError(t, err)
	require.Len(t, results, 20)

	naive := make(map[string]float64, len(docs))
	for _, d := range docs {
		naive[d.ID], _ = CosineSimilarity(query, d.Embedding)
	}
	for i, r := range results {
		assert.Equal(t, naive[r.ID], r.Score)
		if i > 0 {
			assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
		}
	}
}

func TestVectorStore_Search_Properties(t *testing.T) {
	store, _ := newTestVectorStore()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(5))

	docs := make([]domain.VectorDocument, 60)
	for i := range docs {
		docs[i] = vdoc(fmt.Sprintf("p%02d", i), "src", randomVector(rng, 4)...)
	}
	require.NoError(t, store.UpsertMany(ctx, domain.CollectionSessions, docs))

	for trial := 0; trial < 20; trial++ {
		limit := rng.Intn(10) + 1
		minScore := rng.Float64()*1.2 - 0.6
		results, err := store.Search(ctx, domain.CollectionSessions, randomVector(rng, 4), limit, minScore)
		require.NoError(t, err)

		assert.LessOrEqual(t, len(results), limit)
		for i, r := range results {
			assert.GreaterOrEqual(t, r.Score, minScore)
			if i > 0 {
				assert.GreaterOrEqual(t, results[i-1].Score, r.Score)
			}
		}
	}
}

func TestVectorStore_SearchAcross(t *testing.T) {
	store, _ := newTestVectorStore()
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.CollectionReferences, vdoc("ref", "a.md", 1, 0.5)))
	require.NoError(t, store.Upsert(ctx, domain.CollectionWebResearch, vdoc("web", "query", 1, 0)))
	require.NoError(t, store.Upsert(ctx, domain.CollectionSessions, vdoc("ses", "b.md", 1, 0.1)))

	results, err := store.SearchAcross(ctx,
		[]domain.Collection{domain.CollectionReferences, domain.CollectionWebResearch, domain.CollectionReferences},
		[]float64{1, 0}, 5, 0)
	require.NoError(t, err)

	require.Len(t, results, 2, "sessions not requested; duplicate collection searched once")
	assert.Equal(t, "web", results[0].ID)
	assert.Equal(t, domain.CollectionWebResearch, results[0].Collection)
	assert.Equal(t, "ref", results[1].ID)
	assert.Equal(t, domain.CollectionReferences, results[1].Collection)

	top, err := store.SearchAcross(ctx, domain.AllCollections(), []float64{1, 0}, 2, 0)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "web", top[0].ID)
	assert.Equal(t, "ses", top[1].ID)
}

func TestVectorStore_DeleteByID(t *testing.T) {
	store, backend := newTestVectorStore()
	ctx := context.Background()
	require.NoError(t, store.UpsertMany(ctx, domain.CollectionReferences, []domain.VectorDocument{
		vdoc("a", "x.md", 1), vdoc("b", "x.md", 1), vdoc("c", "x.md", 1),
	}))

	require.NoError(t, store.DeleteByID(ctx, domain.CollectionReferences, "b"))
	list, err := store.List(ctx, domain.CollectionReferences)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "c", list[1].ID)

	saves := backend.Saves()
	err = store.DeleteByID(ctx, domain.CollectionReferences, "b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, saves, backend.Saves(), "missing id does not write")

	_, err = store.Get(ctx, domain.CollectionReferences, "b")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVectorStore_DeleteBySource_ExactAndIsolated(t *testing.T) {
	store, backend := newTestVectorStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertMany(ctx, domain.CollectionReferences, []domain.VectorDocument{
		vdoc("r1", "novel.md", 1), vdoc("r2", "novel.md", 1), vdoc("r3", "novel.md.bak", 1), vdoc("r4", "notes.md", 1),
	}))
	require.NoError(t, store.Upsert(ctx, domain.CollectionSessions, vdoc("s1", "novel.md", 1)))
	saves := backend.Saves()

	removed, err := store.DeleteBySource(ctx, domain.CollectionReferences, "novel.md")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, saves+1, backend.Saves(), "one write for the whole source")

	refs, err := store.List(ctx, domain.CollectionReferences)
	require.NoError(t, err)
	var ids []string
	for _, d := range refs {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"r3", "r4"}, ids)

	sessions, err := store.List(ctx, domain.CollectionSessions)
	require.NoError(t, err)
	assert.Len(t, sessions, 1, "other collections are untouched")

	removed, err = store.DeleteBySource(ctx, domain.CollectionReferences, "novel.md")
	require.NoError(t, err)
	assert.Equal(t, 0, removed)
	assert.Equal(t, saves+1, backend.Saves(), "nothing removed, nothing written")
}

func TestVectorStore_ReplaceSource(t *testing.T) {
	store, backend := newTestVectorStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertMany(ctx, domain.CollectionReferences, []domain.VectorDocument{
		vdoc("old1", "ch1.md", 1), vdoc("old2", "ch1.md", 1), vdoc("keep", "ch2.md", 1),
	}))
	saves := backend.Saves()

	require.NoError(t, store.ReplaceSource(ctx, domain.CollectionReferences, "ch1.md",
		[]domain.VectorDocument{vdoc("new1", "ch1.md", 2)}))

	assert.Equal(t, saves+1, backend.Saves())
	list, err := store.List(ctx, domain.CollectionReferences)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "keep", list[0].ID)
	assert.Equal(t, "new1", list[1].ID)
}

func TestVectorStore_FailedSaveLeavesStateUntouched(t *testing.T) {
	store, backend := newTestVectorStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, domain.CollectionReferences, vdoc("r1", "a.md", 1)))

	boom := errors.New("disk full")
	backend.FailNextSave(boom)
	_, err := store.DeleteBySource(ctx, domain.CollectionReferences, "a.md")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	_, err = store.Get(ctx, domain.CollectionReferences, "r1")
	assert.NoError(t, err, "in-memory state only changes after a successful save")
}

func TestVectorStore_QuotaEvictsAndRetries(t *testing.T) {
	var reports []domain.EvictionReport
	backend := memory.NewSnapshotStore()
	store := NewVectorStore(backend,
		WithClock(fixedClock()),
		WithEvictionPolicy(KeepMostRecent{PerCollection: 2}),
		WithEvictionHook(func(r domain.EvictionReport) { reports = append(reports, r) }),
	)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, store.Upsert(ctx, domain.CollectionReferences, vdoc(fmt.Sprintf("r%d", i), "a.md", 1)))
	}
	backend.SetMaxBytes(backend.Size())

	require.NoError(t, store.Upsert(ctx, domain.CollectionReferences, vdoc("r4", "a.md", 1)))

	require.Len(t, reports, 1)
	assert.ElementsMatch(t, []domain.EvictedDocument{
		{Collection: domain.CollectionReferences, ID: "r0"},
		{Collection: domain.CollectionReferences, ID: "r1"},
		{Collection: domain.CollectionReferences, ID: "r2"},
	}, reports[0].Evicted)

	list, err := store.List(ctx, domain.CollectionReferences)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "r3", list[0].ID)
	assert.Equal(t, "r4", list[1].ID)
}

func TestVectorStore_QuotaStillExceededAfterEviction(t *testing.T) {
	backend := memory.NewSnapshotStore(memory.WithMaxBytes(10))
	store := NewVectorStore(backend, WithEvictionPolicy(KeepMostRecent{PerCollection: 5}))

	err := store.Upsert(context.Background(), domain.CollectionReferences, vdoc("r1", "a.md", 1))

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrStorageQuota)
	list, err := store.List(context.Background(), domain.CollectionReferences)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestVectorStore_QuotaWithoutPolicy(t *testing.T) {
	backend := memory.NewSnapshotStore(memory.WithMaxBytes(10))
	store := NewVectorStore(backend, WithEvictionPolicy(nil))

	err := store.Upsert(context.Background(), domain.CollectionReferences, vdoc("r1", "a.md", 1))
	assert.ErrorIs(t, err, domain.ErrStorageQuota)
}

func TestVectorStore_Stats(t *testing.T) {
	store, _ := newTestVectorStore(WithClock(fixedClock()))
	ctx := context.Background()

	empty, err := store.Stats(ctx, domain.CollectionSessions)
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Count)
	assert.Nil(t, empty.OldestTimestamp)
	assert.Nil(t, empty.NewestTimestamp)

	require.NoError(t, store.Upsert(ctx, domain.CollectionSessions, vdoc("s1", "a.md", 1)))
	require.NoError(t, store.Upsert(ctx, domain.CollectionSessions, vdoc("s2", "a.md", 1)))
	require.NoError(t, store.Upsert(ctx, domain.CollectionSessions, vdoc("s3", "b.md", 1)))
	require.NoError(t, store.Upsert(ctx, domain.CollectionSessions, vdoc("s4", "", 1)))

	stats, err := store.Stats(ctx, domain.CollectionSessions)
	require.NoError(t, err)
	assert.Equal(t, domain.CollectionSessions, stats.Collection)
	assert.Equal(t, 4, stats.Count)
	assert.Equal(t, 2, stats.DistinctSources)
	require.NotNil(t, stats.OldestTimestamp)
	require.NotNil(t, stats.NewestTimestamp)
	assert.True(t, stats.NewestTimestamp.Sub(*stats.OldestTimestamp) == 3*time.Second)
}

func TestVectorStore_Clear(t *testing.T) {
	store, backend := newTestVectorStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, domain.CollectionWebResearch, vdoc("w1", "q", 1)))
	require.NoError(t, store.Upsert(ctx, domain.CollectionReferences, vdoc("r1", "a", 1)))

	require.NoError(t, store.Clear(ctx, domain.CollectionWebResearch))
	saves := backend.Saves()
	require.NoError(t, store.Clear(ctx, domain.CollectionWebResearch))
	assert.Equal(t, saves, backend.Saves(), "clearing an empty collection does not write")

	web, err := store.List(ctx, domain.CollectionWebResearch)
	require.NoError(t, err)
	assert.Empty(t, web)
	refs, err := store.List(ctx, domain.CollectionReferences)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestVectorStore_ExportImport_RoundTrip(t *testing.T) {
	source, _ := newTestVectorStore(WithClock(fixedClock()))
	ctx := context.Background()

	require.NoError(t, source.UpsertMany(ctx, domain.CollectionReferences, []domain.VectorDocument{
		vdoc("r1", "a.md", 0.1, 0.2), vdoc("r2", "b.md", 0.3, 0.4),
	}))
	require.NoError(t, source.Upsert(ctx, domain.CollectionPreferences, vdoc("p1", "", 1, 1)))

	data, err := source.ExportSnapshot(ctx)
	require.NoError(t, err)

	target, _ := newTestVectorStore()
	require.NoError(t, target.Upsert(ctx, domain.CollectionSessions, vdoc("stale", "x", 1, 1)))
	require.NoError(t, target.ImportSnapshot(ctx, data))

	for _, c := range domain.AllCollections() {
		want, err := source.List(ctx, c)
		require.NoError(t, err)
		got, err := target.List(ctx, c)
		require.NoError(t, err)
		require.Len(t, got, len(want), "collection %s", c)
		for i := range want {
			assert.Equal(t, want[i].ID, got[i].ID)
			assert.Equal(t, want[i].Content, got[i].Content)
			assert.Equal(t, want[i].Embedding, got[i].Embedding)
			assert.Equal(t, want[i].Source(), got[i].Source())
			assert.True(t, want[i].CreatedAt.Equal(got[i].CreatedAt))
			assert.True(t, want[i].UpdatedAt.Equal(got[i].UpdatedAt))
		}
	}

	again, err := target.ExportSnapshot(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, string(data), string(again))
}

func TestVectorStore_Import_RejectsMissingCollection(t *testing.T) {
	store, backend := newTestVectorStore()
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, domain.CollectionReferences, vdoc("r1", "a.md", 1)))
	saves := backend.Saves()

	err := store.ImportSnapshot(ctx, []byte(`{"references": [], "sessions": [], "preferences": []}`))

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, saves, backend.Saves())
	list, err := store.List(ctx, domain.CollectionReferences)
	require.NoError(t, err)
	assert.Len(t, list, 1, "state is unchanged")
}

func TestVectorStore_ConcurrentWritersDoNotLoseUpdates(t *testing.T) {
	store, backend := newTestVectorStore()
	ctx := context.Background()

	const writers = 8
	const perWriter = 25
	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			c := domain.AllCollections()[w%4]
			for i := 0; i < perWriter; i++ {
				doc := vdoc(fmt.Sprintf("w%d-%d", w, i), fmt.Sprintf("src%d", w), 1, float64(i))
				assert.NoError(t, store.Upsert(ctx, c, doc))
				_, _ = store.Search(ctx, c, []float64{1, 0}, 3, 0)
			}
		}(w)
	}
	wg.Wait()

	total := 0
	for _, c := range domain.AllCollections() {
		list, err := store.List(ctx, c)
		require.NoError(t, err)
		total += len(list)
	}
	assert.Equal(t, writers*perWriter, total)

	persisted, err := backend.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, writers*perWriter, persisted.Size())
}

func TestVectorStore_LoadErrorIsRetried(t *testing.T) {
	backend := &flakyBackend{SnapshotStore: memory.NewSnapshotStore(), failLoads: 1}
	store := NewVectorStore(backend)
	ctx := context.Background()

	_, err := store.List(ctx, domain.CollectionReferences)
	require.Error(t, err)

	list, err := store.List(ctx, domain.CollectionReferences)
	require.NoError(t, err)
	assert.Empty(t, list)
}

type flakyBackend struct {
	*memory.SnapshotStore
	failLoads int
}

func (f *flakyBackend) Load(ctx context.Context) (domain.Snapshot, error) {
	if f.failLoads > 0 {
		f.failLoads--
		return nil, errors.New("backend unavailable")
	}
	return f.SnapshotStore.Load(ctx)
}
