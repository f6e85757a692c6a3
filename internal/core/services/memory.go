package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driving"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/logger"
)

// Ensure SessionMemoryService implements the interface.
var _ driving.SessionMemoryService = (*SessionMemoryService)(nil)

// Session memory tuning.
const (
	// CrossDocumentThreshold is the score a summary from another document
	// must exceed to be recalled.
	CrossDocumentThreshold = 0.7

	// DefaultRecallResults is used when maxResults is not positive.
	DefaultRecallResults = 3

	memoryMinScore  = 0.3
	recallOverfetch = 3

	heuristicTurns    = 3
	heuristicTurnSize = 200

	summaryMaxTokens   = 500
	summaryTemperature = 0.3
)

// fallbackSummaryPrompt is used when no prompt store is configured.
const fallbackSummaryPrompt = `Summarize this conversation. Respond with ONLY a JSON object:
{"summary": "2-3 sentence overview", "keyPoints": ["point"], "decisions": ["decision"]}

Conversation:
%s`

// SessionMemoryService stores conversation summaries and writing
// preferences as vectors and recalls them by similarity.
type SessionMemoryService struct {
	embedder driven.EmbeddingService
	llm      driven.LLMService
	prompts  driven.PromptStore
	store    driving.VectorStore
	model    string
	now      func() time.Time
}

// MemoryOption configures a SessionMemoryService.
type MemoryOption func(*SessionMemoryService)

// WithLLM sets the LLM used for summaries. Without one every summary is heuristic.
func WithLLM(llm driven.LLMService) MemoryOption {
	return func(s *SessionMemoryService) {
		s.llm = llm
	}
}

// WithPromptStore sets where the summary prompt is loaded from.
func WithPromptStore(prompts driven.PromptStore) MemoryOption {
	return func(s *SessionMemoryService) {
		s.prompts = prompts
	}
}

// WithEmbeddingModel overrides the embedder's default model.
func WithEmbeddingModel(model string) MemoryOption {
	return func(s *SessionMemoryService) {
		s.model = model
	}
}

// WithMemoryClock sets the time source for summary timestamps.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(s *SessionMemoryService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSessionMemoryService creates a new session memory service.
func NewSessionMemoryService(
	embedder driven.EmbeddingService, store driving.VectorStore, opts ...MemoryOption,
) *SessionMemoryService {
	s := &SessionMemoryService{
		embedder: embedder,
		store:    store,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize asks the LLM for a JSON summary of messages. Any failure along
// the way (no LLM, LLM error, malformed output) yields the heuristic
// summary tagged as a fallback with the reason in Err.
func (s *SessionMemoryService) Summarize(ctx context.Context, messages []domain.Message) domain.SummaryOutcome {
	logger.Section("Conversation Summary")

	fallback := func(reason error) domain.SummaryOutcome {
		logger.Debug("Using heuristic summary: %v", reason)
		return domain.SummaryOutcome{
			Kind:  domain.SummaryFallback,
			Draft: HeuristicSummary(messages),
			Err:   reason,
		}
	}

	if s.llm == nil {
		return fallback(domain.ErrLLMUnavailable)
	}

	prompt := renderPrompt(s.summaryPrompt(), FormatTranscript(messages))
	response, err := s.llm.Generate(ctx, prompt, driven.GenerateOptions{
		MaxTokens:   summaryMaxTokens,
		Temperature: summaryTemperature,
	})
	if err != nil {
		logger.Warn("Summary generation failed: %v", err)
		return fallback(fmt.Errorf("generate summary: %w", err))
	}

	draft, err := ParseSummary(response)
	if err != nil {
		logger.Warn("Could not parse summary response: %v", err)
		return fallback(err)
	}
	logger.Debug("Parsed summary with %d key points, %d decisions", len(draft.KeyPoints), len(draft.Decisions))
	return domain.SummaryOutcome{Kind: domain.SummaryParsed, Draft: draft}
}

func (s *SessionMemoryService) summaryPrompt() string {
	if s.prompts == nil {
		return fallbackSummaryPrompt
	}
	prompt, err := s.prompts.Load(driven.PromptConversationSummary)
	if err != nil || strings.TrimSpace(prompt) == "" {
		logger.Debug("Summary prompt unavailable, using built-in: %v", err)
		return fallbackSummaryPrompt
	}
	return prompt
}

// renderPrompt substitutes the transcript into the template's %s, or
// appends it when the template has no placeholder.
func renderPrompt(template, transcript string) string {
	if strings.Contains(template, "%s") {
		return strings.Replace(template, "%s", transcript, 1)
	}
	return template + "\n\n" + transcript
}

// FormatTranscript renders messages one per line as "Role: content".
func FormatTranscript(messages []domain.Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n")
		}
		role := m.Role
		if role != "" {
			role = strings.ToUpper(role[:1]) + role[1:]
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}

// ParseSummary extracts the outermost JSON object from an LLM response.
// Errors wrap domain.ErrParse.
func ParseSummary(response string) (domain.SummaryDraft, error) {
	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start < 0 || end <= start {
		return domain.SummaryDraft{}, fmt.Errorf("%w: no JSON object in response", domain.ErrParse)
	}

	var draft domain.SummaryDraft
	if err := json.Unmarshal([]byte(response[start:end+1]), &draft); err != nil {
		return domain.SummaryDraft{}, fmt.Errorf("%w: %w", domain.ErrParse, err)
	}
	draft.Summary = strings.TrimSpace(draft.Summary)
	if draft.Summary == "" {
		return domain.SummaryDraft{}, fmt.Errorf("%w: summary is empty", domain.ErrParse)
	}
	draft.KeyPoints = nonEmpty(draft.KeyPoints)
	draft.Decisions = nonEmpty(draft.Decisions)
	return draft, nil
}

// HeuristicSummary summarises the most recent user turns. It never
// produces key points or decisions.
func HeuristicSummary(messages []domain.Message) domain.SummaryDraft {
	var recent []string
	for i := len(messages) - 1; i >= 0 && len(recent) < heuristicTurns; i-- {
		m := messages[i]
		if m.Role != domain.RoleUser {
			continue
		}
		if text := strings.TrimSpace(m.Content); text != "" {
			recent = append(recent, truncate(text, heuristicTurnSize))
		}
	}

	draft := domain.SummaryDraft{KeyPoints: []string{}, Decisions: []string{}}
	if len(recent) == 0 {
		draft.Summary = "Conversation with no user messages."
		return draft
	}
	// Restore chronological order.
	for i, j := 0, len(recent)-1; i < j; i, j = i+1, j-1 {
		recent[i], recent[j] = recent[j], recent[i]
	}
	draft.Summary = "User discussed: " + strings.Join(recent, "; ")
	return draft
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// summaryText is the text embedded for a saved summary.
func summaryText(documentPath string, draft domain.SummaryDraft) string {
	return fmt.Sprintf("Document: %s\nSummary: %s\nKey Points: %s\nDecisions: %s",
		documentPath, draft.Summary, strings.Join(draft.KeyPoints, "; "), strings.Join(draft.Decisions, "; "))
}

// Save embeds a summary and stores it in the sessions collection.
func (s *SessionMemoryService) Save(
	ctx context.Context, documentPath string, draft domain.SummaryDraft,
) domain.MemoryResult {
	fail := func(err error) domain.MemoryResult {
		logger.Error("Saving session summary for %s failed: %v", documentPath, err)
		return domain.MemoryResult{Success: false, Error: err.Error()}
	}

	if strings.TrimSpace(documentPath) == "" {
		return fail(fmt.Errorf("%w: document path is required", domain.ErrInvalidInput))
	}
	if strings.TrimSpace(draft.Summary) == "" {
		return fail(fmt.Errorf("%w: summary is empty", domain.ErrInvalidInput))
	}
	draft.KeyPoints = nonEmpty(draft.KeyPoints)
	draft.Decisions = nonEmpty(draft.Decisions)

	text := summaryText(documentPath, draft)
	vector, model, err := s.embed(ctx, text)
	if err != nil {
		return fail(err)
	}

	summary := domain.ConversationSummary{
		ID:           uuid.New().String(),
		DocumentPath: documentPath,
		Summary:      draft.Summary,
		KeyPoints:    draft.KeyPoints,
		Decisions:    draft.Decisions,
		Timestamp:    s.now().UTC(),
	}
	doc := domain.VectorDocument{
		ID:        summary.ID,
		Content:   text,
		Embedding: vector,
		Metadata: map[string]any{
			domain.MetaType:           domain.TypeConversationSummary,
			domain.MetaDocumentPath:   documentPath,
			domain.MetaSource:         documentPath,
			domain.MetaSummary:        summary.Summary,
			domain.MetaKeyPoints:      summary.KeyPoints,
			domain.MetaDecisions:      summary.Decisions,
			domain.MetaTimestamp:      summary.Timestamp.Format(time.RFC3339Nano),
			domain.MetaEmbeddingModel: model,
		},
		CreatedAt: summary.Timestamp,
	}
	if err := s.store.Upsert(ctx, domain.CollectionSessions, doc); err != nil {
		return fail(fmt.Errorf("store summary: %w", err))
	}

	logger.Info("Saved session summary for %s", documentPath)
	return domain.MemoryResult{Summary: &summary, Success: true}
}

func (s *SessionMemoryService) embed(ctx context.Context, text string) ([]float64, string, error) {
	if s.embedder == nil {
		return nil, "", domain.ErrEmbeddingUnavailable
	}
	model := s.model
	if model == "" {
		model = s.embedder.ModelName()
	}
	emb, err := s.embedder.Embed(ctx, text, model)
	if err != nil {
		return nil, "", fmt.Errorf("embed: %w", err)
	}
	if emb == nil || len(emb.Vector) == 0 {
		return nil, "", fmt.Errorf("embed: %w: empty embedding", domain.ErrTransport)
	}
	return emb.Vector, model, nil
}

// RetrieveRelevant searches the sessions collection and keeps summaries
// saved for documentPath, plus those from other documents scoring above
// CrossDocumentThreshold.
func (s *SessionMemoryService) RetrieveRelevant(
	ctx context.Context, documentPath, query string, maxResults int,
) ([]domain.RecalledSummary, error) {
	if maxResults <= 0 {
		maxResults = DefaultRecallResults
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.RecalledSummary{}, nil
	}

	vector, _, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	results, err := s.store.Search(ctx, domain.CollectionSessions, vector, maxResults*recallOverfetch, memoryMinScore)
	if err != nil {
		return nil, fmt.Errorf("search sessions: %w", err)
	}

	recalled := make([]domain.RecalledSummary, 0, maxResults)
	for _, r := range results {
		if r.MetaString(domain.MetaType) != domain.TypeConversationSummary {
			continue
		}
		samePath := r.MetaString(domain.MetaDocumentPath) == documentPath
		if !samePath && r.Score <= CrossDocumentThreshold {
			continue
		}
		recalled = append(recalled, domain.RecalledSummary{
			ConversationSummary: summaryFromMetadata(r.ID, r.Metadata, time.Time{}),
			Score:               r.Score,
		})
		if len(recalled) == maxResults {
			break
		}
	}
	logger.Debug("Recalled %d of %d session candidates for %s", len(recalled), len(results), documentPath)
	return recalled, nil
}

func summaryFromMetadata(id string, meta map[string]any, fallbackTime time.Time) domain.ConversationSummary {
	str := func(key string) string {
		v, _ := meta[key].(string)
		return v
	}
	ts := fallbackTime
	if parsed, err := time.Parse(time.RFC3339Nano, str(domain.MetaTimestamp)); err == nil {
		ts = parsed
	}
	keyPoints := domain.MetaStrings(meta, domain.MetaKeyPoints)
	if keyPoints == nil {
		keyPoints = []string{}
	}
	decisions := domain.MetaStrings(meta, domain.MetaDecisions)
	if decisions == nil {
		decisions = []string{}
	}
	return domain.ConversationSummary{
		ID:           id,
		DocumentPath: str(domain.MetaDocumentPath),
		Summary:      str(domain.MetaSummary),
		KeyPoints:    keyPoints,
		Decisions:    decisions,
		Timestamp:    ts,
	}
}

// ListSummaries returns stored summaries, newest first.
func (s *SessionMemoryService) ListSummaries(ctx context.Context, documentPath string) ([]domain.ConversationSummary, error) {
	docs, err := s.store.List(ctx, domain.CollectionSessions)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.ConversationSummary, 0, len(docs))
	for _, d := range docs {
		if d.MetaString(domain.MetaType) != domain.TypeConversationSummary {
			continue
		}
		if documentPath != "" && d.MetaString(domain.MetaDocumentPath) != documentPath {
			continue
		}
		summaries = append(summaries, summaryFromMetadata(d.ID, d.Metadata, d.CreatedAt))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].Timestamp.After(summaries[j].Timestamp)
	})
	return summaries, nil
}

// DeleteSummary removes a stored summary.
func (s *SessionMemoryService) DeleteSummary(ctx context.Context, id string) error {
	if err := s.store.DeleteByID(ctx, domain.CollectionSessions, id); err != nil {
		return fmt.Errorf("delete summary %s: %w", id, err)
	}
	return nil
}

// SavePreference embeds a preference and stores it in the preferences
// collection. An empty documentPath makes it global.
func (s *SessionMemoryService) SavePreference(
	ctx context.Context, content, documentPath, category string,
) domain.MemoryResult {
	fail := func(err error) domain.MemoryResult {
		logger.Error("Saving preference failed: %v", err)
		return domain.MemoryResult{Success: false, Error: err.Error()}
	}

	content = strings.TrimSpace(content)
	if content == "" {
		return fail(fmt.Errorf("%w: preference is empty", domain.ErrInvalidInput))
	}

	vector, model, err := s.embed(ctx, content)
	if err != nil {
		return fail(err)
	}

	pref := domain.Preference{
		ID:           uuid.New().String(),
		Content:      content,
		DocumentPath: documentPath,
		Category:     category,
		CreatedAt:    s.now().UTC(),
	}
	meta := map[string]any{
		domain.MetaType:           domain.TypePreference,
		domain.MetaEmbeddingModel: model,
	}
	if documentPath != "" {
		meta[domain.MetaDocumentPath] = documentPath
		meta[domain.MetaSource] = documentPath
	}
	if category != "" {
		meta[domain.MetaCategory] = category
	}

	err = s.store.Upsert(ctx, domain.CollectionPreferences, domain.VectorDocument{
		ID:        pref.ID,
		Content:   content,
		Embedding: vector,
		Metadata:  meta,
		CreatedAt: pref.CreatedAt,
	})
	if err != nil {
		return fail(fmt.Errorf("store preference: %w", err))
	}
	return domain.MemoryResult{Preference: &pref, Success: true}
}

// RetrievePreferences returns preferences similar to query. A non-empty
// documentPath restricts results to that document's and global preferences.
func (s *SessionMemoryService) RetrievePreferences(
	ctx context.Context, query, documentPath string, maxResults int,
) ([]domain.RecalledPreference, error) {
	if maxResults <= 0 {
		maxResults = domain.DefaultMaxResults
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.RecalledPreference{}, nil
	}

	vector, _, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	limit := maxResults
	if documentPath != "" {
		limit = maxResults * recallOverfetch
	}
	results, err := s.store.Search(ctx, domain.CollectionPreferences, vector, limit, memoryMinScore)
	if err != nil {
		return nil, fmt.Errorf("search preferences: %w", err)
	}

	prefs := make([]domain.RecalledPreference, 0, maxResults)
	for _, r := range results {
		if r.MetaString(domain.MetaType) != domain.TypePreference {
			continue
		}
		path := r.MetaString(domain.MetaDocumentPath)
		if documentPath != "" && path != "" && path != documentPath {
			continue
		}
		prefs = append(prefs, domain.RecalledPreference{
			Preference: domain.Preference{
				ID:           r.ID,
				Content:      r.Content,
				DocumentPath: path,
				Category:     r.MetaString(domain.MetaCategory),
			},
			Score: r.Score,
		})
		if len(prefs) == maxResults {
			break
		}
	}
	return prefs, nil
}

// AutoSave summarises and saves the conversation once it has at least
// threshold messages of which at least minUserMessages are from the user.
// Returns nil when either count falls short.
func (s *SessionMemoryService) AutoSave(
	ctx context.Context, documentPath string, messages []domain.Message, threshold, minUserMessages int,
) *domain.MemoryResult {
	users := 0
	for _, m := range messages {
		if m.Role == domain.RoleUser {
			users++
		}
	}
	if len(messages) < threshold || users < minUserMessages {
		logger.Debug("Auto-save skipped: %d messages (need %d), %d from user (need %d)",
			len(messages), threshold, users, minUserMessages)
		return nil
	}

	outcome := s.Summarize(ctx, messages)
	result := s.Save(ctx, documentPath, outcome.Draft)
	result.Fallback = outcome.IsFallback()
	return &result
}
