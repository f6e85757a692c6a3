package domain

import (
	"fmt"
	"strings"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message is one turn of a conversation transcript.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationSummary is a persisted session memory tied to a document.
type ConversationSummary struct {
	ID           string    `json:"id"`
	DocumentPath string    `json:"documentPath"`
	Summary      string    `json:"summary"`
	KeyPoints    []string  `json:"keyPoints"`
	Decisions    []string  `json:"decisions"`
	Timestamp    time.Time `json:"timestamp"`
}

// SummaryDraft is the content of a summary before it is saved.
type SummaryDraft struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"keyPoints"`
	Decisions []string `json:"decisions"`
}

// SummaryKind tags how a SummaryDraft was produced.
type SummaryKind string

// Summary kinds.
const (
	// SummaryParsed means the LLM returned well-formed JSON.
	SummaryParsed SummaryKind = "parsed"

	// SummaryFallback means the heuristic summary was used.
	SummaryFallback SummaryKind = "fallback"
)

// SummaryOutcome is the tagged result of summarising a conversation.
type SummaryOutcome struct {
	Kind  SummaryKind
	Draft SummaryDraft

	// Err is the reason for a fallback. Nil for parsed outcomes.
	Err error
}

// IsFallback returns true if the heuristic summary was used.
func (o SummaryOutcome) IsFallback() bool {
	return o.Kind == SummaryFallback
}

// Preference is a saved writing preference.
type Preference struct {
	ID           string    `json:"id"`
	Content      string    `json:"content"`
	DocumentPath string    `json:"documentPath,omitempty"`
	Category     string    `json:"category,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// IsGlobal returns true if the preference is not scoped to a document.
func (p Preference) IsGlobal() bool {
	return p.DocumentPath == ""
}

// RecalledSummary is a conversation summary returned by a relevance search.
type RecalledSummary struct {
	ConversationSummary
	Score float64 `json:"score"`
}

// RecalledPreference is a preference returned by a relevance search.
type RecalledPreference struct {
	Preference
	Score float64 `json:"score"`
}

// MemoryResult is the structured outcome of a session memory mutation.
type MemoryResult struct {
	Summary    *ConversationSummary `json:"summary,omitempty"`
	Preference *Preference          `json:"preference,omitempty"`
	Success    bool                 `json:"success"`
	Error      string               `json:"error,omitempty"`

	// Fallback is true when the summary came from the heuristic path.
	Fallback bool `json:"fallback,omitempty"`
}

// FormatMemoryContext renders recalled summaries as a prompt section.
// Returns an empty string when nothing was recalled.
func FormatMemoryContext(recalled []RecalledSummary) string {
	if len(recalled) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("## Previous Sessions\n")
	for _, r := range recalled {
		b.WriteString("\n")
		if !r.Timestamp.IsZero() {
			fmt.Fprintf(&b, "[%s] ", r.Timestamp.Format("2006-01-02"))
		}
		b.WriteString(r.Summary)
		b.WriteString("\n")
		if len(r.KeyPoints) > 0 {
			fmt.Fprintf(&b, "Key points: %s\n", strings.Join(r.KeyPoints, "; "))
		}
		if len(r.Decisions) > 0 {
			fmt.Fprintf(&b, "Decisions: %s\n", strings.Join(r.Decisions, "; "))
		}
	}
	return b.String()
}
