package domain

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or LLM.
type AIProvider string

// Available AI providers.
const (
	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderAnthropic is Anthropic cloud API.
	AIProviderAnthropic AIProvider = "anthropic"
)

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	switch p {
	case AIProviderOllama, AIProviderOpenAI, AIProviderAnthropic:
		return true
	default:
		return false
	}
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return p == AIProviderOpenAI || p == AIProviderAnthropic
}

// IsLocal returns true if this provider runs locally.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderAnthropic:
		return "Anthropic (cloud)"
	default:
		return unknownDescription
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI).
	APIKey string
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	if !e.Provider.IsValid() {
		return false
	}
	if e.Provider.RequiresAPIKey() && e.APIKey == "" {
		return false
	}
	return true
}

// LLMSettings holds LLM provider configuration.
type LLMSettings struct {
	// Provider is the LLM service provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key (for OpenAI/Anthropic).
	APIKey string
}

// IsConfigured returns true if the LLM provider is set up.
func (l LLMSettings) IsConfigured() bool {
	if !l.Provider.IsValid() {
		return false
	}
	if l.Provider.RequiresAPIKey() && l.APIKey == "" {
		return false
	}
	return true
}

// StoreBackend identifies where the vector store snapshot is persisted.
type StoreBackend string

// Available store backends.
const (
	// StoreBackendMemory keeps the snapshot in process memory only.
	StoreBackendMemory StoreBackend = "memory"

	// StoreBackendFile writes the snapshot to a JSON file.
	StoreBackendFile StoreBackend = "file"

	// StoreBackendSQLite writes the snapshot to an embedded SQLite database.
	StoreBackendSQLite StoreBackend = "sqlite"

	// StoreBackendPostgres writes the snapshot to a PostgreSQL database.
	StoreBackendPostgres StoreBackend = "postgres"
)

// IsValid returns true if the backend is recognised.
func (b StoreBackend) IsValid() bool {
	switch b {
	case StoreBackendMemory, StoreBackendFile, StoreBackendSQLite, StoreBackendPostgres:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (b StoreBackend) String() string {
	return string(b)
}

// Description returns a human-readable description of the backend.
func (b StoreBackend) Description() string {
	switch b {
	case StoreBackendMemory:
		return "Memory (not persisted)"
	case StoreBackendFile:
		return "JSON file"
	case StoreBackendSQLite:
		return "SQLite (embedded)"
	case StoreBackendPostgres:
		return "PostgreSQL"
	default:
		return unknownDescription
	}
}

// AllStoreBackends returns all available store backends.
func AllStoreBackends() []StoreBackend {
	return []StoreBackend{
		StoreBackendMemory,
		StoreBackendFile,
		StoreBackendSQLite,
		StoreBackendPostgres,
	}
}

// StoreSettings holds vector store persistence configuration.
type StoreSettings struct {
	// Backend selects the snapshot backend.
	Backend StoreBackend

	// Path is the file or database path for file and sqlite backends.
	// Empty means the default location under the config directory.
	Path string

	// DSN is the connection string for the postgres backend.
	DSN string

	// MaxBytes caps the encoded snapshot size. Zero disables the cap.
	MaxBytes int

	// EvictKeep is the number of most recently updated documents kept
	// per collection when a write exceeds MaxBytes.
	EvictKeep int
}

// ChunkingSettings holds chunker configuration.
type ChunkingSettings struct {
	// ChunkSize is the soft cap on chunk length in characters.
	ChunkSize int

	// ChunkOverlap is the number of characters carried into the next chunk.
	ChunkOverlap int

	// RespectHeadings tags chunks with their nearest markdown heading.
	RespectHeadings bool

	// RespectParagraphs splits on blank lines before packing.
	RespectParagraphs bool
}

// IndexingSettings holds indexer configuration.
type IndexingSettings struct {
	// Concurrency is the number of embedding calls in flight per run.
	Concurrency int

	// RateLimit caps embedding calls per second. Zero disables the limit.
	RateLimit int
}

// RetrievalSettings holds retriever defaults.
type RetrievalSettings struct {
	// MaxResults is the default number of accepted results.
	MaxResults int

	// MinScorePercent is the default minimum similarity as a percentage (30 = 0.3).
	MinScorePercent int

	// MaxTokens is the default context token budget.
	MaxTokens int
}

// MinScore returns the minimum similarity as a fraction.
func (r RetrievalSettings) MinScore() float64 {
	return float64(r.MinScorePercent) / 100
}

// MemorySettings holds session memory configuration.
type MemorySettings struct {
	// AutoSaveThreshold is the message count that triggers auto-save.
	AutoSaveThreshold int

	// MinUserMessages is the user message count required for auto-save.
	MinUserMessages int

	// EmbeddingModel overrides the embedding model used for summary
	// vectors. Empty uses the embedder's default.
	EmbeddingModel string
}

// ConverterSettings holds document converter configuration.
type ConverterSettings struct {
	// URL is the base URL of the docling conversion server. Empty leaves only
	// local HTML and DOCX extraction.
	URL string
}

// IsConfigured returns true if a converter URL is set.
func (c ConverterSettings) IsConfigured() bool {
	return c.URL != ""
}

// AppSettings holds all application settings.
type AppSettings struct {
	// Embedding holds embedding provider settings.
	Embedding EmbeddingSettings

	// LLM holds LLM provider settings.
	LLM LLMSettings

	// Store holds vector store persistence settings.
	Store StoreSettings

	// Chunking holds chunker settings.
	Chunking ChunkingSettings

	// Indexing holds indexer settings.
	Indexing IndexingSettings

	// Retrieval holds retriever defaults.
	Retrieval RetrievalSettings

	// Memory holds session memory settings.
	Memory MemorySettings

	// Converter holds document converter settings.
	Converter ConverterSettings
}

// DefaultAppSettings returns settings with sensible defaults.
// Embedding defaults to a local Ollama instance; the LLM is left
// unconfigured, so summaries use the heuristic fallback until one is set.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Embedding: EmbeddingSettings{
			Provider: AIProviderOllama,
			Model:    "nomic-embed-text",
			BaseURL:  "http://localhost:11434",
		},
		// LLM is left unconfigured - user must set it via 'sanctum settings set'
		LLM: LLMSettings{},
		Store: StoreSettings{
			Backend:   StoreBackendSQLite,
			MaxBytes:  0,
			EvictKeep: 100,
		},
		Chunking: ChunkingSettings{
			ChunkSize:         1000,
			ChunkOverlap:      200,
			RespectHeadings:   true,
			RespectParagraphs: true,
		},
		Indexing: IndexingSettings{
			Concurrency: 4,
			RateLimit:   0,
		},
		Retrieval: RetrievalSettings{
			MaxResults:      DefaultMaxResults,
			MinScorePercent: 30,
			MaxTokens:       DefaultMaxTokens,
		},
		Memory: MemorySettings{
			AutoSaveThreshold: 8,
			MinUserMessages:   3,
		},
		Converter: ConverterSettings{},
	}
}

// AllEmbeddingProviders returns providers that support embeddings.
func AllEmbeddingProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
	}
}

// AllLLMProviders returns providers that support LLM operations.
func AllLLMProviders() []AIProvider {
	return []AIProvider{
		AIProviderOllama,
		AIProviderOpenAI,
		AIProviderAnthropic,
	}
}

// DefaultEmbeddingModels returns default models for each embedding provider.
func DefaultEmbeddingModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama: "nomic-embed-text",
		AIProviderOpenAI: "text-embedding-3-small",
	}
}

// DefaultLLMModels returns default models for each LLM provider.
func DefaultLLMModels() map[AIProvider]string {
	return map[AIProvider]string{
		AIProviderOllama:    "llama3.2",
		AIProviderOpenAI:    "gpt-4o-mini",
		AIProviderAnthropic: "claude-3-5-sonnet-latest",
	}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		// Ollama models
		"nomic-embed-text":  768,
		"mxbai-embed-large": 1024,
		"all-minilm":        384,
		// OpenAI models
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
	}
}
