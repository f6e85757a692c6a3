package services

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driven/storage/memory"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
)

// mockEmbeddingService maps text to vectors through embedFn.
type mockEmbeddingService struct {
	embedFn func(text string) []float64
	err     error
	// failOn makes Embed fail for any text equal to it.
	failOn string

	mu       sync.Mutex
	calls    int32
	inFlight int32
	maxSeen  int32
	models   []string
}

func newMockEmbedding(fn func(text string) []float64) *mockEmbeddingService {
	return &mockEmbeddingService{embedFn: fn}
}

func (m *mockEmbeddingService) Embed(_ context.Context, text, model string) (*domain.Embedding, error) {
	atomic.AddInt32(&m.calls, 1)
	cur := atomic.AddInt32(&m.inFlight, 1)
	defer atomic.AddInt32(&m.inFlight, -1)

	m.mu.Lock()
	if cur > m.maxSeen {
		m.maxSeen = cur
	}
	m.models = append(m.models, model)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}
	if m.failOn != "" && text == m.failOn {
		return nil, fmt.Errorf("%w: embedding backend refused %q", domain.ErrTransport, text)
	}
	return &domain.Embedding{Vector: m.embedFn(text)}, nil
}

func (m *mockEmbeddingService) ModelName() string {
	return "mock-embed"
}

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return m.err
}

func (m *mockEmbeddingService) Close() error {
	return nil
}

func (m *mockEmbeddingService) callCount() int {
	return int(atomic.LoadInt32(&m.calls))
}

// mockLLMService returns a canned response.
type mockLLMService struct {
	response string
	err      error
	prompts  []string
}

func (m *mockLLMService) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func (m *mockLLMService) ModelName() string {
	return "mock-llm"
}

func (m *mockLLMService) Ping(_ context.Context) error {
	return m.err
}

func (m *mockLLMService) Close() error {
	return nil
}

// mockPromptStore serves prompts from a map.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", fmt.Errorf("prompt %q: %w", name, domain.ErrNotFound)
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// lengthEmbedding gives every text a 3-dimensional vector derived from its length.
func lengthEmbedding(text string) []float64 {
	n := float64(len(text))
	return []float64{1, n, n * n}
}

func newTestVectorStore(opts ...VectorStoreOption) (*VectorStore, *memory.SnapshotStore) {
	backend := memory.NewSnapshotStore()
	return NewVectorStore(backend, opts...), backend
}
