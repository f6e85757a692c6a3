package domain

import (
	"fmt"
	"time"
)

// Collection is a named, independent partition of the vector store.
type Collection string

// The fixed collection namespace. Names are part of the export format.
const (
	// CollectionReferences holds indexed reference documents.
	CollectionReferences Collection = "references"

	// CollectionSessions holds conversation summaries.
	CollectionSessions Collection = "sessions"

	// CollectionPreferences holds saved writing preferences.
	CollectionPreferences Collection = "preferences"

	// CollectionWebResearch holds indexed web research results.
	CollectionWebResearch Collection = "web_research"
)

// AllCollections returns every collection in namespace order.
func AllCollections() []Collection {
	return []Collection{
		CollectionReferences,
		CollectionSessions,
		CollectionPreferences,
		CollectionWebResearch,
	}
}

// IsValid returns true if the collection is part of the fixed namespace.
func (c Collection) IsValid() bool {
	switch c {
	case CollectionReferences, CollectionSessions, CollectionPreferences, CollectionWebResearch:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (c Collection) String() string {
	return string(c)
}

// Description returns a human-readable description of the collection.
func (c Collection) Description() string {
	switch c {
	case CollectionReferences:
		return "Reference documents"
	case CollectionSessions:
		return "Conversation summaries"
	case CollectionPreferences:
		return "Writing preferences"
	case CollectionWebResearch:
		return "Web research"
	default:
		return unknownDescription
	}
}

// ParseCollection converts a name into a Collection.
func ParseCollection(name string) (Collection, error) {
	c := Collection(name)
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCollection, name)
	}
	return c, nil
}

// Well-known metadata keys written by the indexer and session memory.
const (
	MetaSource         = "source"
	MetaHeading        = "heading"
	MetaChunkIndex     = "chunkIndex"
	MetaTotalChunks    = "totalChunks"
	MetaTitle          = "title"
	MetaURL            = "url"
	MetaType           = "type"
	MetaDocumentPath   = "documentPath"
	MetaEmbeddingModel = "embeddingModel"
	MetaSummary        = "summary"
	MetaKeyPoints      = "keyPoints"
	MetaDecisions      = "decisions"
	MetaCategory       = "category"
	MetaTimestamp      = "timestamp"
)

// Metadata type values.
const (
	TypeConversationSummary = "conversation_summary"
	TypePreference          = "preference"
)

// VectorDocument is an embedded record stored in a collection.
// The JSON shape is the export format.
type VectorDocument struct {
	// ID is unique within a collection.
	ID string `json:"id"`

	// Content is the embedded text.
	Content string `json:"content"`

	// Embedding is the vector computed from Content.
	Embedding []float64 `json:"embedding"`

	// Metadata holds arbitrary key-value pairs (see Meta* keys).
	Metadata map[string]any `json:"metadata"`

	// CreatedAt is preserved across upserts.
	CreatedAt time.Time `json:"createdAt"`

	// UpdatedAt is refreshed on every upsert.
	UpdatedAt time.Time `json:"updatedAt"`
}

// MetaString returns a string metadata value, or empty if absent or not a string.
func (d *VectorDocument) MetaString(key string) string {
	if d.Metadata == nil {
		return ""
	}
	s, _ := d.Metadata[key].(string)
	return s
}

// Source returns the source tag of the document.
func (d *VectorDocument) Source() string {
	return d.MetaString(MetaSource)
}

// Clone returns a deep copy of the document's slices and top-level metadata map.
func (d VectorDocument) Clone() VectorDocument {
	out := d
	if d.Embedding != nil {
		out.Embedding = append([]float64(nil), d.Embedding...)
	}
	if d.Metadata != nil {
		out.Metadata = make(map[string]any, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// Snapshot is the full persisted state of the vector store.
type Snapshot map[Collection][]VectorDocument

// NewSnapshot returns a snapshot with every collection present and empty.
func NewSnapshot() Snapshot {
	s := make(Snapshot, len(AllCollections()))
	for _, c := range AllCollections() {
		s[c] = []VectorDocument{}
	}
	return s
}

// Size returns the total number of documents across collections.
func (s Snapshot) Size() int {
	n := 0
	for _, docs := range s {
		n += len(docs)
	}
	return n
}

// SearchResult is a read-only projection of a scored document. Never persisted.
type SearchResult struct {
	// ID is the matched document ID.
	ID string `json:"id"`

	// Content is the matched document text.
	Content string `json:"content"`

	// Score is the cosine similarity with the query.
	Score float64 `json:"score"`

	// Metadata is the matched document's metadata.
	Metadata map[string]any `json:"metadata"`

	// Collection is the collection the document came from.
	Collection Collection `json:"collection"`
}

// MetaString returns a string metadata value, or empty if absent or not a string.
func (r *SearchResult) MetaString(key string) string {
	if r.Metadata == nil {
		return ""
	}
	s, _ := r.Metadata[key].(string)
	return s
}

// CollectionStats summarises a collection.
type CollectionStats struct {
	Collection      Collection `json:"collection"`
	Count           int        `json:"count"`
	DistinctSources int        `json:"distinctSources"`
	OldestTimestamp *time.Time `json:"oldestTimestamp,omitempty"`
	NewestTimestamp *time.Time `json:"newestTimestamp,omitempty"`
}

// EvictedDocument identifies a document dropped by an eviction policy.
type EvictedDocument struct {
	Collection Collection `json:"collection"`
	ID         string     `json:"id"`
}

// EvictionReport lists what an eviction pass removed.
type EvictionReport struct {
	Evicted []EvictedDocument `json:"evicted"`
}

// Embedding is the output of an embedding model.
type Embedding struct {
	// Vector is the embedding.
	Vector []float64

	// TokenCount is the number of input tokens, when the provider reports it.
	TokenCount int
}
