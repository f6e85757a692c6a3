package httpapi

import "github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"

// RetrieveRequest is the body of POST /v1/retrieve.
type RetrieveRequest struct {
	Query       string   `json:"query"`
	Collections []string `json:"collections,omitempty"`
	MaxResults  int      `json:"maxResults,omitempty"`
	MinScore    *float64 `json:"minScore,omitempty"`
	MaxTokens   int      `json:"maxTokens,omitempty"`
	Model       string   `json:"model,omitempty"`
}

// IndexRequest is the body of POST /v1/index. Content wins over path, path over url.
type IndexRequest struct {
	Content    string         `json:"content,omitempty"`
	Source     string         `json:"source,omitempty"`
	Path       string         `json:"path,omitempty"`
	URL        string         `json:"url,omitempty"`
	Collection string         `json:"collection,omitempty"`
	Model      string         `json:"model,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// DeleteSourceResponse is returned by DELETE /v1/collections/{name}/sources.
type DeleteSourceResponse struct {
	Source  string `json:"source"`
	Deleted int    `json:"deleted"`
}

// SaveSummaryRequest is the body of POST /v1/memory/summaries.
// Messages are summarised first; otherwise the given summary is stored.
type SaveSummaryRequest struct {
	DocumentPath string           `json:"documentPath"`
	Messages     []domain.Message `json:"messages,omitempty"`
	Summary      string           `json:"summary,omitempty"`
	KeyPoints    []string         `json:"keyPoints,omitempty"`
	Decisions    []string         `json:"decisions,omitempty"`
}

// RecallRequest is the body of POST /v1/memory/recall.
type RecallRequest struct {
	DocumentPath string `json:"documentPath"`
	Query        string `json:"query"`
	MaxResults   int    `json:"maxResults,omitempty"`
}

// RecallResponse is returned by POST /v1/memory/recall.
type RecallResponse struct {
	Summaries []domain.RecalledSummary `json:"summaries"`
	Context   string                   `json:"context"`
}

// AutoSaveRequest is the body of POST /v1/memory/autosave. Zero thresholds
// use the configured defaults.
type AutoSaveRequest struct {
	DocumentPath    string           `json:"documentPath"`
	Messages        []domain.Message `json:"messages"`
	Threshold       int              `json:"threshold,omitempty"`
	MinUserMessages int              `json:"minUserMessages,omitempty"`
}

// AutoSaveResponse is returned by POST /v1/memory/autosave.
type AutoSaveResponse struct {
	Saved  bool                 `json:"saved"`
	Result *domain.MemoryResult `json:"result,omitempty"`
}

// PreferenceRequest is the body of POST /v1/preferences.
type PreferenceRequest struct {
	Content      string `json:"content"`
	DocumentPath string `json:"documentPath,omitempty"`
	Category     string `json:"category,omitempty"`
}

// PreferenceSearchRequest is the body of POST /v1/preferences/search.
type PreferenceSearchRequest struct {
	Query        string `json:"query"`
	DocumentPath string `json:"documentPath,omitempty"`
	MaxResults   int    `json:"maxResults,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
