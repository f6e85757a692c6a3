package domain

// CharsPerToken is the fixed character-per-token ratio used for budget estimates.
const CharsPerToken = 4

// Retrieval defaults.
const (
	DefaultMaxResults = 5
	DefaultMinScore   = 0.3
	DefaultMaxTokens  = 2000
)

// ContextDelimiter separates entries in an assembled context string.
const ContextDelimiter = "\n\n---\n\n"

// RetrieveOptions configures a retrieval query.
type RetrieveOptions struct {
	// Collections to search. Defaults to references.
	Collections []Collection

	// MaxResults is the maximum number of accepted results.
	MaxResults int

	// MinScore is the minimum cosine similarity of a candidate.
	// Nil means DefaultMinScore; zero accepts every candidate.
	MinScore *float64

	// MaxTokens is the token budget of the assembled context.
	MaxTokens int
}

// DefaultRetrieveOptions returns the options used when none are given.
func DefaultRetrieveOptions() RetrieveOptions {
	return RetrieveOptions{
		Collections: []Collection{CollectionReferences},
		MaxResults:  DefaultMaxResults,
		MinScore:    ScoreThreshold(DefaultMinScore),
		MaxTokens:   DefaultMaxTokens,
	}
}

// ScoreThreshold returns a MinScore value.
func ScoreThreshold(v float64) *float64 {
	return &v
}

// Threshold returns MinScore, or DefaultMinScore when it is unset.
func (o RetrieveOptions) Threshold() float64 {
	if o.MinScore == nil {
		return DefaultMinScore
	}
	return *o.MinScore
}

// WithDefaults fills unset fields with defaults.
func (o RetrieveOptions) WithDefaults() RetrieveOptions {
	d := DefaultRetrieveOptions()
	if len(o.Collections) == 0 {
		o.Collections = d.Collections
	}
	if o.MaxResults <= 0 {
		o.MaxResults = d.MaxResults
	}
	if o.MinScore == nil {
		o.MinScore = d.MinScore
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = d.MaxTokens
	}
	return o
}

// RetrievalResult is the outcome of a retrieval query.
type RetrievalResult struct {
	// Results are the accepted candidates in descending score order.
	Results []SearchResult `json:"results"`

	// Context is the formatted entries joined by ContextDelimiter.
	Context string `json:"context"`

	// TokensEstimate is the estimated token cost of Context. Never exceeds MaxTokens.
	TokensEstimate int `json:"tokensEstimate"`
}

// EstimateTokens estimates the token cost of text at CharsPerToken characters per token.
func EstimateTokens(text string) int {
	return (len(text) + CharsPerToken - 1) / CharsPerToken
}
