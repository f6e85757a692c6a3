package mcp

import (
	"context"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driving"
)

var (
	_ driving.RetrieverService     = (*mockRetriever)(nil)
	_ driving.IndexerService       = (*mockIndexer)(nil)
	_ driving.SessionMemoryService = (*mockMemory)(nil)
)

// mockRetriever is a mock implementation of driving.RetrieverService.
type mockRetriever struct {
	result  *domain.RetrievalResult
	err     error
	gotOpts domain.RetrieveOptions
	gotText string
}

func (m *mockRetriever) Retrieve(
	_ context.Context, query string, opts domain.RetrieveOptions, _ string,
) (*domain.RetrievalResult, error) {
	m.gotText = query
	m.gotOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &domain.RetrievalResult{}, nil
	}
	return m.result, nil
}

// mockIndexer is a mock implementation of driving.IndexerService.
type mockIndexer struct {
	result  domain.IndexingResult
	gotReq  domain.IndexRequest
	gotPath string
	gotURL  string
	gotColl domain.Collection
}

func (m *mockIndexer) IndexDocument(
	_ context.Context, req domain.IndexRequest, _ domain.ProgressFunc,
) domain.IndexingResult {
	m.gotReq = req
	m.gotColl = req.Collection
	return m.result
}

func (m *mockIndexer) IndexFile(
	_ context.Context, path string, collection domain.Collection, _ string, _ domain.ProgressFunc,
) domain.IndexingResult {
	m.gotPath = path
	m.gotColl = collection
	return m.result
}

func (m *mockIndexer) IndexURL(
	_ context.Context, url string, collection domain.Collection, _ string, _ domain.ProgressFunc,
) domain.IndexingResult {
	m.gotURL = url
	m.gotColl = collection
	return m.result
}

func (m *mockIndexer) Reembed(_ context.Context, _ domain.Collection, _, _ string) error {
	return nil
}

// mockMemory is a mock implementation of driving.SessionMemoryService.
type mockMemory struct {
	outcome     domain.SummaryOutcome
	saveResult  domain.MemoryResult
	summaries   []domain.RecalledSummary
	preferences []domain.RecalledPreference
	err         error

	savedPath  string
	savedDraft domain.SummaryDraft
	summarised []domain.Message
	prefsAsked bool
}

func (m *mockMemory) Summarize(_ context.Context, messages []domain.Message) domain.SummaryOutcome {
	m.summarised = messages
	return m.outcome
}

func (m *mockMemory) Save(_ context.Context, path string, draft domain.SummaryDraft) domain.MemoryResult {
	m.savedPath = path
	m.savedDraft = draft
	return m.saveResult
}

func (m *mockMemory) RetrieveRelevant(_ context.Context, _, _ string, _ int) ([]domain.RecalledSummary, error) {
	return m.summaries, m.err
}

func (m *mockMemory) ListSummaries(_ context.Context, _ string) ([]domain.ConversationSummary, error) {
	return nil, m.err
}

func (m *mockMemory) DeleteSummary(_ context.Context, _ string) error {
	return m.err
}

func (m *mockMemory) SavePreference(_ context.Context, _, _, _ string) domain.MemoryResult {
	return m.saveResult
}

func (m *mockMemory) RetrievePreferences(_ context.Context, _, _ string, _ int) ([]domain.RecalledPreference, error) {
	m.prefsAsked = true
	return m.preferences, m.err
}

func (m *mockMemory) AutoSave(
	_ context.Context, _ string, _ []domain.Message, _, _ int,
) *domain.MemoryResult {
	return nil
}
