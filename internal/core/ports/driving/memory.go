package driving

import (
	"context"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

// SessionMemoryService summarises conversations and recalls them later.
type SessionMemoryService interface {
	// Summarize asks the LLM for a JSON summary, falling back to a heuristic.
	Summarize(ctx context.Context, messages []domain.Message) domain.SummaryOutcome

	// Save embeds and stores a summary tagged with documentPath.
	Save(ctx context.Context, documentPath string, draft domain.SummaryDraft) domain.MemoryResult

	// RetrieveRelevant returns summaries for documentPath, or from other
	// documents when strongly similar to the query.
	RetrieveRelevant(ctx context.Context, documentPath, query string, maxResults int) ([]domain.RecalledSummary, error)

	// ListSummaries returns the stored summaries for documentPath, newest first.
	// An empty documentPath lists all summaries.
	ListSummaries(ctx context.Context, documentPath string) ([]domain.ConversationSummary, error)

	// DeleteSummary removes a stored summary.
	DeleteSummary(ctx context.Context, id string) error

	// SavePreference embeds and stores a preference, optionally scoped to documentPath.
	SavePreference(ctx context.Context, content, documentPath, category string) domain.MemoryResult

	// RetrievePreferences returns preferences relevant to the query. When documentPath
	// is set, only preferences for that document or global ones are returned.
	RetrievePreferences(ctx context.Context, query, documentPath string, maxResults int) ([]domain.RecalledPreference, error)

	// AutoSave summarises and saves once the conversation is long enough.
	// Returns nil when the thresholds are not met.
	AutoSave(ctx context.Context, documentPath string, messages []domain.Message, threshold, minUserMessages int) *domain.MemoryResult
}
