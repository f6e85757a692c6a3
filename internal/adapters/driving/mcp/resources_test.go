package mcp

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driven/storage/memory"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/services"
)

func TestExtractCollection(t *testing.T) {
	tests := []struct {
		name     string
		uri      string
		expected string
	}{
		{"valid", "sanctum://collections/references/sources", "references"},
		{"invalid prefix", "file://collections/references/sources", ""},
		{"missing suffix", "sanctum://collections/references", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, extractCollection(tt.uri))
		})
	}
}

func newStoreServer(t *testing.T) *Server {
	t.Helper()
	store := services.NewVectorStore(memory.NewSnapshotStore())
	ctx := context.Background()
	for i, src := range []string{"a.md", "a.md", "b.md"} {
		require.NoError(t, store.Upsert(ctx, domain.CollectionReferences, domain.VectorDocument{
			ID:        string(rune('x' + i)),
			Content:   "text",
			Embedding: []float64{1, 0},
			Metadata:  map[string]any{domain.MetaSource: src},
		}))
	}
	return newTestServer(t, &Ports{Store: store})
}

func readRequest(uri string) *mcp.ReadResourceRequest {
	return &mcp.ReadResourceRequest{Params: &mcp.ReadResourceParams{URI: uri}}
}

func TestServer_handleCollectionsResource(t *testing.T) {
	server := newStoreServer(t)

	result, err := server.handleCollectionsResource(context.Background(), readRequest("sanctum://collections"))
	require.NoError(t, err)
	require.Len(t, result.Contents, 1)
	assert.Equal(t, "application/json", result.Contents[0].MIMEType)

	var stats []domain.CollectionStats
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &stats))
	require.Len(t, stats, 4)
	assert.Equal(t, domain.CollectionReferences, stats[0].Collection)
	assert.Equal(t, 3, stats[0].Count)
	assert.Equal(t, 2, stats[0].DistinctSources)
	assert.Equal(t, 0, stats[1].Count)

	empty := newTestServer(t, &Ports{})
	result, err = empty.handleCollectionsResource(context.Background(), readRequest("sanctum://collections"))
	require.NoError(t, err)
	assert.Equal(t, "[]", result.Contents[0].Text)
}

func TestServer_handleSourcesResource(t *testing.T) {
	server := newStoreServer(t)

	result, err := server.handleSourcesResource(context.Background(), readRequest("sanctum://collections/references/sources"))
	require.NoError(t, err)

	var sources []struct {
		Source string `json:"source"`
		Chunks int    `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal([]byte(result.Contents[0].Text), &sources))
	require.Len(t, sources, 2)
	assert.Equal(t, "a.md", sources[0].Source)
	assert.Equal(t, 2, sources[0].Chunks)
	assert.Equal(t, 1, sources[1].Chunks)

	_, err = server.handleSourcesResource(context.Background(), readRequest("sanctum://collections/bogus/sources"))
	assert.Error(t, err)

	_, err = newTestServer(t, &Ports{}).handleSourcesResource(context.Background(), readRequest("sanctum://collections/references/sources"))
	assert.Error(t, err)
}
