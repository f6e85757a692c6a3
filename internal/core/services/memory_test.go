package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
)

// pathEmbedding scores a saved summary against any query by the document
// named in its text. Queries embed to (1, 0).
func pathEmbedding(scores map[string]float64) func(string) []float64 {
	return func(text string) []float64 {
		for path, score := range scores {
			if strings.HasPrefix(text, "Document: "+path+"\n") {
				return unitAt(score)
			}
		}
		return []float64{1, 0}
	}
}

// conversation returns total messages, the first users of them from the user.
func conversation(total, users int) []domain.Message {
	msgs := make([]domain.Message, 0, total)
	for i := 0; i < total; i++ {
		role := domain.RoleAssistant
		if i < users {
			role = domain.RoleUser
		}
		msgs = append(msgs, domain.Message{Role: role, Content: fmt.Sprintf("message %d", i)})
	}
	return msgs
}

func countUsers(msgs []domain.Message) int {
	n := 0
	for _, m := range msgs {
		if m.Role == domain.RoleUser {
			n++
		}
	}
	return n
}

func newTestMemory(embedFn func(string) []float64, opts ...MemoryOption) (*SessionMemoryService, *VectorStore) {
	store, _ := newTestVectorStore()
	return NewSessionMemoryService(newMockEmbedding(embedFn), store, opts...), store
}

func TestParseSummary(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     domain.SummaryDraft
		wantErr  bool
	}{
		{
			name:     "bare object",
			response: `{"summary": "Worked on chapter two.", "keyPoints": ["pacing"], "decisions": ["cut the prologue"]}`,
			want: domain.SummaryDraft{
				Summary:   "Worked on chapter two.",
				KeyPoints: []string{"pacing"},
				Decisions: []string{"cut the prologue"},
			},
		},
		{
			name:     "wrapped in prose and fences",
			response: "Here you go:\n```json\n{\"summary\": \"Plot review.\", \"keyPoints\": [], \"decisions\": []}\n```\nThanks!",
			want:     domain.SummaryDraft{Summary: "Plot review.", KeyPoints: []string{}, Decisions: []string{}},
		},
		{
			name:     "missing arrays",
			response: `{"summary": "Short."}`,
			want:     domain.SummaryDraft{Summary: "Short.", KeyPoints: []string{}, Decisions: []string{}},
		},
		{
			name:     "blank entries dropped",
			response: `{"summary": "S", "keyPoints": ["", " a "], "decisions": ["  "]}`,
			want:     domain.SummaryDraft{Summary: "S", KeyPoints: []string{"a"}, Decisions: []string{}},
		},
		{name: "no json", response: "I could not summarise this.", wantErr: true},
		{name: "malformed", response: `{"summary": "unterminated}`, wantErr: true},
		{name: "empty summary", response: `{"summary": "  ", "keyPoints": ["x"]}`, wantErr: true},
		{name: "wrong types", response: `{"summary": 42}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSummary(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrParse))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestHeuristicSummary(t *testing.T) {
	msgs := []domain.Message{
		{Role: domain.RoleUser, Content: "first question"},
		{Role: domain.RoleAssistant, Content: "answer"},
		{Role: domain.RoleUser, Content: "second question"},
		{Role: domain.RoleUser, Content: "   "},
		{Role: domain.RoleUser, Content: "third question"},
		{Role: domain.RoleUser, Content: "fourth question"},
		{Role: domain.RoleAssistant, Content: "final answer"},
	}

	draft := HeuristicSummary(msgs)

	assert.Equal(t, "User discussed: second question; third question; fourth question", draft.Summary)
	assert.Empty(t, draft.KeyPoints)
	assert.Empty(t, draft.Decisions)
	assert.NotNil(t, draft.KeyPoints)
}

func TestHeuristicSummary_Truncates(t *testing.T) {
	long := strings.Repeat("é", 150)
	draft := HeuristicSummary([]domain.Message{{Role: domain.RoleUser, Content: long}})

	assert.True(t, strings.HasSuffix(draft.Summary, "..."))
	assert.LessOrEqual(t, len(draft.Summary), len("User discussed: ")+heuristicTurnSize+3)
	assert.True(t, strings.HasPrefix(draft.Summary, "User discussed: é"))
}

func TestHeuristicSummary_NoUserMessages(t *testing.T) {
	draft := HeuristicSummary([]domain.Message{{Role: domain.RoleAssistant, Content: "hello"}})
	assert.NotEmpty(t, draft.Summary)
}

func TestFormatTranscript(t *testing.T) {
	got := FormatTranscript([]domain.Message{
		{Role: domain.RoleUser, Content: "Hi"},
		{Role: domain.RoleAssistant, Content: "Hello"},
	})
	assert.Equal(t, "User: Hi\nAssistant: Hello", got)
}

func TestMemory_Summarize_Parsed(t *testing.T) {
	llm := &mockLLMService{response: `{"summary": "Outlined act one.", "keyPoints": ["hero wants home"], "decisions": []}`}
	prompts := &mockPromptStore{prompts: map[string]string{
		driven.PromptConversationSummary: "Summarise:\n%s\nJSON only.",
	}}
	memory, _ := newTestMemory(queryEmbedding, WithLLM(llm), WithPromptStore(prompts))

	outcome := memory.Summarize(context.Background(), []domain.Message{
		{Role: domain.RoleUser, Content: "Let's outline act one"},
	})

	assert.Equal(t, domain.SummaryParsed, outcome.Kind)
	assert.False(t, outcome.IsFallback())
	assert.NoError(t, outcome.Err)
	assert.Equal(t, "Outlined act one.", outcome.Draft.Summary)
	assert.Equal(t, []string{"hero wants home"}, outcome.Draft.KeyPoints)
	require.Len(t, llm.prompts, 1)
	assert.Equal(t, "Summarise:\nUser: Let's outline act one\nJSON only.", llm.prompts[0])
}

func TestMemory_Summarize_Fallbacks(t *testing.T) {
	msgs := []domain.Message{{Role: domain.RoleUser, Content: "rename the villain"}}

	tests := []struct {
		name    string
		opts    []MemoryOption
		wantErr error
	}{
		{"no llm", nil, domain.ErrLLMUnavailable},
		{"llm error", []MemoryOption{WithLLM(&mockLLMService{err: fmt.Errorf("%w: timeout", domain.ErrTransport)})}, domain.ErrTransport},
		{"malformed output", []MemoryOption{WithLLM(&mockLLMService{response: "Sure! The user renamed the villain."})}, domain.ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			memory, _ := newTestMemory(queryEmbedding, tt.opts...)
			outcome := memory.Summarize(context.Background(), msgs)

			assert.True(t, outcome.IsFallback())
			assert.ErrorIs(t, outcome.Err, tt.wantErr)
			assert.Equal(t, "User discussed: rename the villain", outcome.Draft.Summary)
			assert.Empty(t, outcome.Draft.KeyPoints)
			assert.Empty(t, outcome.Draft.Decisions)
		})
	}
}

func TestMemory_Summarize_MissingPromptUsesBuiltIn(t *testing.T) {
	llm := &mockLLMService{response: `{"summary": "ok"}`}
	memory, _ := newTestMemory(queryEmbedding, WithLLM(llm), WithPromptStore(&mockPromptStore{}))

	outcome := memory.Summarize(context.Background(), []domain.Message{{Role: domain.RoleUser, Content: "hello"}})

	assert.Equal(t, domain.SummaryParsed, outcome.Kind)
	require.Len(t, llm.prompts, 1)
	assert.Contains(t, llm.prompts[0], "User: hello")
	assert.Contains(t, llm.prompts[0], `"keyPoints"`)
}

func TestRenderPrompt_NoPlaceholder(t *testing.T) {
	assert.Equal(t, "Summarise.\n\nUser: hi", renderPrompt("Summarise.", "User: hi"))
}

func TestMemory_Save(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	embedder := newMockEmbedding(queryEmbedding)
	store, _ := newTestVectorStore()
	memory := NewSessionMemoryService(embedder, store, WithMemoryClock(func() time.Time { return now }))
	ctx := context.Background()

	result := memory.Save(ctx, "novel.md", domain.SummaryDraft{
		Summary:   "Reworked the opening.",
		KeyPoints: []string{"start in media res", ""},
		Decisions: []string{"drop the dream sequence"},
	})
	require.True(t, result.Success, result.Error)
	require.NotNil(t, result.Summary)
	assert.Equal(t, "novel.md", result.Summary.DocumentPath)
	assert.Equal(t, now, result.Summary.Timestamp)
	assert.Equal(t, []string{"start in media res"}, result.Summary.KeyPoints)

	doc, err := store.Get(ctx, domain.CollectionSessions, result.Summary.ID)
	require.NoError(t, err)
	assert.Equal(t, "Document: novel.md\nSummary: Reworked the opening.\nKey Points: start in media res\nDecisions: drop the dream sequence", doc.Content)
	assert.Equal(t, domain.TypeConversationSummary, doc.MetaString(domain.MetaType))
	assert.Equal(t, "novel.md", doc.MetaString(domain.MetaDocumentPath))
	assert.Equal(t, "novel.md", doc.Source())
	assert.Equal(t, "Reworked the opening.", doc.MetaString(domain.MetaSummary))
	assert.Equal(t, []string{"drop the dream sequence"}, domain.MetaStrings(doc.Metadata, domain.MetaDecisions))
	assert.Equal(t, now.Format(time.RFC3339Nano), doc.MetaString(domain.MetaTimestamp))
	assert.Equal(t, "mock-embed", doc.MetaString(domain.MetaEmbeddingModel))
}

func TestMemory_Save_EmbeddingModelOverride(t *testing.T) {
	embedder := newMockEmbedding(queryEmbedding)
	store, _ := newTestVectorStore()
	memory := NewSessionMemoryService(embedder, store, WithEmbeddingModel("mxbai-embed-large"))
	ctx := context.Background()

	result := memory.Save(ctx, "novel.md", domain.SummaryDraft{Summary: "Tightened chapter two."})
	require.True(t, result.Success, result.Error)

	assert.Equal(t, []string{"mxbai-embed-large"}, embedder.models)
	doc, err := store.Get(ctx, domain.CollectionSessions, result.Summary.ID)
	require.NoError(t, err)
	assert.Equal(t, "mxbai-embed-large", doc.MetaString(domain.MetaEmbeddingModel))
}

func TestMemory_Save_Failures(t *testing.T) {
	ctx := context.Background()
	draft := domain.SummaryDraft{Summary: "s"}

	memory, store := newTestMemory(queryEmbedding)
	assert.False(t, memory.Save(ctx, "", draft).Success)
	assert.False(t, memory.Save(ctx, "a.md", domain.SummaryDraft{}).Success)

	failing := newMockEmbedding(queryEmbedding)
	failing.err = fmt.Errorf("%w: refused", domain.ErrTransport)
	broken := NewSessionMemoryService(failing, store)
	result := broken.Save(ctx, "a.md", draft)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "transport error")

	result = NewSessionMemoryService(nil, store).Save(ctx, "a.md", draft)
	assert.False(t, result.Success)
	assert.Contains(t, result.Error, domain.ErrEmbeddingUnavailable.Error())

	docs, err := store.List(ctx, domain.CollectionSessions)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemory_RetrieveRelevant_PathOrStrongMatch(t *testing.T) {
	memory, _ := newTestMemory(pathEmbedding(map[string]float64{
		"doc.md":    0.5,
		"other.md":  0.6,
		"strong.md": 0.9,
		"weak.md":   0.2,
	}))
	ctx := context.Background()
	for _, path := range []string{"doc.md", "other.md", "strong.md", "weak.md"} {
		require.True(t, memory.Save(ctx, path, domain.SummaryDraft{Summary: "about " + path}).Success)
	}

	recalled, err := memory.RetrieveRelevant(ctx, "doc.md", "what did we decide?", 5)
	require.NoError(t, err)

	paths := make([]string, len(recalled))
	for i, r := range recalled {
		paths[i] = r.DocumentPath
	}
	assert.Equal(t, []string{"strong.md", "doc.md"}, paths)
	assert.InDelta(t, 0.5, recalled[1].Score, 1e-9)
	assert.Equal(t, "about doc.md", recalled[1].Summary)
}

func TestMemory_RetrieveRelevant_Truncates(t *testing.T) {
	memory, _ := newTestMemory(pathEmbedding(map[string]float64{"doc.md": 0.8}))
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		require.True(t, memory.Save(ctx, "doc.md", domain.SummaryDraft{Summary: fmt.Sprintf("session %d", i)}).Success)
	}

	recalled, err := memory.RetrieveRelevant(ctx, "doc.md", "q", 2)
	require.NoError(t, err)
	assert.Len(t, recalled, 2)

	recalled, err = memory.RetrieveRelevant(ctx, "doc.md", "q", 0)
	require.NoError(t, err)
	assert.Len(t, recalled, DefaultRecallResults)
}

func TestMemory_RetrieveRelevant_IgnoresOtherTypes(t *testing.T) {
	memory, store := newTestMemory(queryEmbedding)
	ctx := context.Background()
	require.NoError(t, store.Upsert(ctx, domain.CollectionSessions, domain.VectorDocument{
		ID:        "stray",
		Content:   "not a summary",
		Embedding: []float64{1, 0},
		Metadata:  map[string]any{domain.MetaDocumentPath: "doc.md"},
	}))

	recalled, err := memory.RetrieveRelevant(ctx, "doc.md", "q", 3)
	require.NoError(t, err)
	assert.Empty(t, recalled)

	recalled, err = memory.RetrieveRelevant(ctx, "doc.md", "  ", 3)
	require.NoError(t, err)
	assert.Empty(t, recalled)
}

func TestMemory_ListAndDeleteSummaries(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Hour)
	}
	memory, _ := newTestMemory(queryEmbedding, WithMemoryClock(clock))
	ctx := context.Background()

	first := memory.Save(ctx, "a.md", domain.SummaryDraft{Summary: "first"})
	second := memory.Save(ctx, "b.md", domain.SummaryDraft{Summary: "second"})
	third := memory.Save(ctx, "a.md", domain.SummaryDraft{Summary: "third"})
	require.True(t, first.Success && second.Success && third.Success)

	all, err := memory.ListSummaries(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"third", "second", "first"}, []string{all[0].Summary, all[1].Summary, all[2].Summary})

	forA, err := memory.ListSummaries(ctx, "a.md")
	require.NoError(t, err)
	require.Len(t, forA, 2)
	assert.Equal(t, "third", forA[0].Summary)

	require.NoError(t, memory.DeleteSummary(ctx, third.Summary.ID))
	forA, err = memory.ListSummaries(ctx, "a.md")
	require.NoError(t, err)
	require.Len(t, forA, 1)
	assert.Equal(t, "first", forA[0].Summary)

	err = memory.DeleteSummary(ctx, third.Summary.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemory_Preferences(t *testing.T) {
	scores := map[string]float64{
		"Use British spelling": 0.9,
		"Keep chapters short":  0.8,
		"Avoid adverbs":        0.7,
		"Irrelevant":           0.1,
	}
	embedFn := func(text string) []float64 {
		if s, ok := scores[text]; ok {
			return unitAt(s)
		}
		return []float64{1, 0}
	}
	memory, _ := newTestMemory(embedFn)
	ctx := context.Background()

	global := memory.SavePreference(ctx, "Use British spelling", "", "style")
	require.True(t, global.Success, global.Error)
	assert.True(t, global.Preference.IsGlobal())
	require.True(t, memory.SavePreference(ctx, "Keep chapters short", "novel.md", "structure").Success)
	require.True(t, memory.SavePreference(ctx, "Avoid adverbs", "essay.md", "").Success)
	require.True(t, memory.SavePreference(ctx, "Irrelevant", "", "").Success)

	all, err := memory.RetrievePreferences(ctx, "style rules", "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Use British spelling", all[0].Content)
	assert.Equal(t, "style", all[0].Category)

	scoped, err := memory.RetrievePreferences(ctx, "style rules", "novel.md", 10)
	require.NoError(t, err)
	contents := make([]string, len(scoped))
	for i, p := range scoped {
		contents[i] = p.Content
	}
	assert.Equal(t, []string{"Use British spelling", "Keep chapters short"}, contents)
	assert.Equal(t, "novel.md", scoped[1].DocumentPath)

	limited, err := memory.RetrievePreferences(ctx, "style rules", "", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	empty := memory.SavePreference(ctx, "   ", "", "")
	assert.False(t, empty.Success)
}

func TestMemory_AutoSave_Thresholds(t *testing.T) {
	memory, store := newTestMemory(queryEmbedding)
	ctx := context.Background()

	seven := conversation(7, 5)
	require.Equal(t, 5, countUsers(seven))
	assert.Nil(t, memory.AutoSave(ctx, "doc.md", seven, 8, 3))

	eight := conversation(8, 5)
	require.Equal(t, 5, countUsers(eight))
	result := memory.AutoSave(ctx, "doc.md", eight, 8, 3)
	require.NotNil(t, result)
	require.True(t, result.Success, result.Error)
	require.NotNil(t, result.Summary)
	assert.Equal(t, "doc.md", result.Summary.DocumentPath)
	assert.True(t, result.Fallback, "no LLM configured")

	docs, err := store.List(ctx, domain.CollectionSessions)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestMemory_AutoSave_TooFewUserMessages(t *testing.T) {
	memory, _ := newTestMemory(queryEmbedding)
	msgs := conversation(10, 2)
	require.Equal(t, 2, countUsers(msgs))

	assert.Nil(t, memory.AutoSave(context.Background(), "doc.md", msgs, 8, 3))
}

func TestMemory_AutoSave_UsesLLM(t *testing.T) {
	llm := &mockLLMService{response: `{"summary": "Drafted the ending.", "keyPoints": [], "decisions": ["bittersweet"]}`}
	memory, _ := newTestMemory(queryEmbedding, WithLLM(llm))

	result := memory.AutoSave(context.Background(), "doc.md", conversation(4, 2), 4, 2)

	require.NotNil(t, result)
	assert.True(t, result.Success)
	assert.False(t, result.Fallback)
	assert.Equal(t, "Drafted the ending.", result.Summary.Summary)
	assert.Equal(t, []string{"bittersweet"}, result.Summary.Decisions)
}
