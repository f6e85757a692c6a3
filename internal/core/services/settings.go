package services

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// Config keys for settings storage.
//
//nolint:gosec // G101: These are config key names, not actual credentials.
const (
	keyEmbedProvider      = "embedding.provider"
	keyEmbedModel         = "embedding.model"
	keyEmbedBaseURL       = "embedding.base_url"
	keyEmbedAPIKey        = "embedding.api_key"
	keyLLMProvider        = "llm.provider"
	keyLLMModel           = "llm.model"
	keyLLMBaseURL         = "llm.base_url"
	keyLLMAPIKey          = "llm.api_key"
	keyStoreBackend       = "store.backend"
	keyStorePath          = "store.path"
	keyStoreDSN           = "store.dsn"
	keyStoreMaxBytes      = "store.max_bytes"
	keyStoreEvictKeep     = "store.evict_keep"
	keyChunkSize          = "chunking.chunk_size"
	keyChunkOverlap       = "chunking.chunk_overlap"
	keyChunkHeadings      = "chunking.respect_headings"
	keyChunkParagraphs    = "chunking.respect_paragraphs"
	keyIndexConcurrency   = "indexing.concurrency"
	keyIndexRateLimit     = "indexing.rate_limit"
	keyRAGMaxResults      = "rag.max_results"
	keyRAGMinScore        = "rag.min_score_percent"
	keyRAGMaxTokens       = "rag.max_tokens"
	keyMemoryThreshold    = "memory.autosave_threshold"
	keyMemoryMinUserMsgs  = "memory.min_user_messages"
	keyMemoryEmbedModel   = "memory.embedding_model"
	keyConverterURL       = "converter.url"
	defaultOllamaBaseURL  = "http://localhost:11434"
	envOpenAIAPIKey       = "OPENAI_API_KEY"
	envAnthropicAPIKey    = "ANTHROPIC_API_KEY"
	apiKeyRedactedDisplay = "********"
)

// intKeys are settings stored as integers; the rest are strings.
var intKeys = map[string]bool{
	keyStoreMaxBytes:     true,
	keyStoreEvictKeep:    true,
	keyChunkSize:         true,
	keyChunkOverlap:      true,
	keyIndexConcurrency:  true,
	keyIndexRateLimit:    true,
	keyRAGMaxResults:     true,
	keyRAGMinScore:       true,
	keyRAGMaxTokens:      true,
	keyMemoryThreshold:   true,
	keyMemoryMinUserMsgs: true,
}

// boolKeys are settings stored as booleans.
var boolKeys = map[string]bool{
	keyChunkHeadings:   true,
	keyChunkParagraphs: true,
}

// SettingKeys returns every key accepted by Set, sorted.
func SettingKeys() []string {
	keys := []string{
		keyEmbedProvider, keyEmbedModel, keyEmbedBaseURL, keyEmbedAPIKey,
		keyLLMProvider, keyLLMModel, keyLLMBaseURL, keyLLMAPIKey,
		keyStoreBackend, keyStorePath, keyStoreDSN, keyConverterURL,
		keyMemoryEmbedModel,
	}
	for k := range intKeys {
		keys = append(keys, k)
	}
	for k := range boolKeys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
	getenv      func(string) string
}

// NewSettingsService creates a new settings service.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
		getenv:      os.Getenv,
	}
}

// Get retrieves current application settings. Missing or invalid values
// fall back to defaults. Empty API keys are read from OPENAI_API_KEY or
// ANTHROPIC_API_KEY.
func (s *SettingsService) Get() (*domain.AppSettings, error) {
	d := domain.DefaultAppSettings()

	settings := &domain.AppSettings{
		Embedding: domain.EmbeddingSettings{
			Provider: s.getProvider(keyEmbedProvider, d.Embedding.Provider),
			Model:    s.getString(keyEmbedModel, d.Embedding.Model),
			BaseURL:  s.configStore.GetString(keyEmbedBaseURL),
			APIKey:   s.configStore.GetString(keyEmbedAPIKey),
		},
		LLM: domain.LLMSettings{
			Provider: s.getProvider(keyLLMProvider, d.LLM.Provider),
			Model:    s.getString(keyLLMModel, d.LLM.Model),
			BaseURL:  s.configStore.GetString(keyLLMBaseURL),
			APIKey:   s.configStore.GetString(keyLLMAPIKey),
		},
		Store: domain.StoreSettings{
			Backend:   s.getBackend(d.Store.Backend),
			Path:      s.configStore.GetString(keyStorePath),
			DSN:       s.configStore.GetString(keyStoreDSN),
			MaxBytes:  s.getInt(keyStoreMaxBytes, d.Store.MaxBytes),
			EvictKeep: s.getInt(keyStoreEvictKeep, d.Store.EvictKeep),
		},
		Chunking: domain.ChunkingSettings{
			ChunkSize:         s.getInt(keyChunkSize, d.Chunking.ChunkSize),
			ChunkOverlap:      s.getIntAllowZero(keyChunkOverlap, d.Chunking.ChunkOverlap),
			RespectHeadings:   s.getBool(keyChunkHeadings, d.Chunking.RespectHeadings),
			RespectParagraphs: s.getBool(keyChunkParagraphs, d.Chunking.RespectParagraphs),
		},
		Indexing: domain.IndexingSettings{
			Concurrency: s.getInt(keyIndexConcurrency, d.Indexing.Concurrency),
			RateLimit:   s.getInt(keyIndexRateLimit, d.Indexing.RateLimit),
		},
		Retrieval: domain.RetrievalSettings{
			MaxResults:      s.getInt(keyRAGMaxResults, d.Retrieval.MaxResults),
			MinScorePercent: s.getIntAllowZero(keyRAGMinScore, d.Retrieval.MinScorePercent),
			MaxTokens:       s.getInt(keyRAGMaxTokens, d.Retrieval.MaxTokens),
		},
		Memory: domain.MemorySettings{
			AutoSaveThreshold: s.getInt(keyMemoryThreshold, d.Memory.AutoSaveThreshold),
			MinUserMessages:   s.getInt(keyMemoryMinUserMsgs, d.Memory.MinUserMessages),
			EmbeddingModel:    s.configStore.GetString(keyMemoryEmbedModel),
		},
		Converter: domain.ConverterSettings{
			URL: s.configStore.GetString(keyConverterURL),
		},
	}

	if settings.Embedding.APIKey == "" {
		settings.Embedding.APIKey = s.envAPIKey(settings.Embedding.Provider)
	}
	if settings.LLM.APIKey == "" {
		settings.LLM.APIKey = s.envAPIKey(settings.LLM.Provider)
	}
	if settings.Embedding.Provider.IsLocal() && settings.Embedding.BaseURL == "" {
		settings.Embedding.BaseURL = defaultOllamaBaseURL
	}
	if settings.LLM.Provider.IsLocal() && settings.LLM.BaseURL == "" {
		settings.LLM.BaseURL = defaultOllamaBaseURL
	}

	return settings, nil
}

func (s *SettingsService) envAPIKey(provider domain.AIProvider) string {
	switch provider {
	case domain.AIProviderOpenAI:
		return s.getenv(envOpenAIAPIKey)
	case domain.AIProviderAnthropic:
		return s.getenv(envAnthropicAPIKey)
	default:
		return ""
	}
}

// Save persists application settings. API keys are only written when set
// so that keys supplied through the environment never land on disk.
func (s *SettingsService) Save(settings *domain.AppSettings) error {
	values := []struct {
		key   string
		value any
	}{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyStoreBackend, settings.Store.Backend.String()},
		{keyStorePath, settings.Store.Path},
		{keyStoreDSN, settings.Store.DSN},
		{keyStoreMaxBytes, settings.Store.MaxBytes},
		{keyStoreEvictKeep, settings.Store.EvictKeep},
		{keyChunkSize, settings.Chunking.ChunkSize},
		{keyChunkOverlap, settings.Chunking.ChunkOverlap},
		{keyChunkHeadings, settings.Chunking.RespectHeadings},
		{keyChunkParagraphs, settings.Chunking.RespectParagraphs},
		{keyIndexConcurrency, settings.Indexing.Concurrency},
		{keyIndexRateLimit, settings.Indexing.RateLimit},
		{keyRAGMaxResults, settings.Retrieval.MaxResults},
		{keyRAGMinScore, settings.Retrieval.MinScorePercent},
		{keyRAGMaxTokens, settings.Retrieval.MaxTokens},
		{keyMemoryThreshold, settings.Memory.AutoSaveThreshold},
		{keyMemoryMinUserMsgs, settings.Memory.MinUserMessages},
		{keyMemoryEmbedModel, settings.Memory.EmbeddingModel},
		{keyConverterURL, settings.Converter.URL},
	}
	for _, v := range values {
		if err := s.configStore.Set(v.key, v.value); err != nil {
			return fmt.Errorf("save %s: %w", v.key, err)
		}
	}

	if settings.Embedding.APIKey != "" && settings.Embedding.APIKey != s.envAPIKey(settings.Embedding.Provider) {
		if err := s.configStore.Set(keyEmbedAPIKey, settings.Embedding.APIKey); err != nil {
			return fmt.Errorf("save embedding api_key: %w", err)
		}
	}
	if settings.LLM.APIKey != "" && settings.LLM.APIKey != s.envAPIKey(settings.LLM.Provider) {
		if err := s.configStore.Set(keyLLMAPIKey, settings.LLM.APIKey); err != nil {
			return fmt.Errorf("save llm api_key: %w", err)
		}
	}

	return nil
}

// Set updates a single setting by key, converting integer settings from
// their string form. Unknown keys fail with domain.ErrInvalidInput.
func (s *SettingsService) Set(key, value string) error {
	key = strings.TrimSpace(key)
	if !slices.Contains(SettingKeys(), key) {
		return fmt.Errorf("%w: unknown setting %q", domain.ErrInvalidInput, key)
	}

	if intKeys[key] {
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return fmt.Errorf("%w: %s must be a non-negative integer, got %q", domain.ErrInvalidInput, key, value)
		}
		return s.configStore.Set(key, n)
	}
	if boolKeys[key] {
		b, err := strconv.ParseBool(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("%w: %s must be true or false, got %q", domain.ErrInvalidInput, key, value)
		}
		return s.configStore.Set(key, b)
	}

	switch key {
	case keyEmbedProvider, keyLLMProvider:
		if value != "" && !domain.AIProvider(value).IsValid() {
			return fmt.Errorf("%w: invalid provider %q", domain.ErrInvalidInput, value)
		}
	case keyStoreBackend:
		if !domain.StoreBackend(value).IsValid() {
			return fmt.Errorf("%w: invalid store backend %q", domain.ErrInvalidInput, value)
		}
	}
	return s.configStore.Set(key, value)
}

// SetEmbeddingProvider configures the embedding provider.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid embedding provider: %s", provider)
	}
	if !slices.Contains(domain.AllEmbeddingProviders(), provider) {
		return fmt.Errorf("provider %s does not support embeddings", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if apiKey == "" {
		apiKey = s.envAPIKey(provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings.Embedding.Provider = provider
	settings.Embedding.Model = modelOrDefault(model, domain.DefaultEmbeddingModels()[provider])
	if provider.IsLocal() {
		if settings.Embedding.BaseURL == "" {
			settings.Embedding.BaseURL = defaultOllamaBaseURL
		}
	} else {
		settings.Embedding.BaseURL = ""
	}
	settings.Embedding.APIKey = apiKey

	return s.Save(settings)
}

// SetLLMProvider configures the LLM provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	if !provider.IsValid() {
		return fmt.Errorf("invalid LLM provider: %s", provider)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if apiKey == "" {
		apiKey = s.envAPIKey(provider)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return fmt.Errorf("API key required for %s", provider)
	}

	settings.LLM.Provider = provider
	settings.LLM.Model = modelOrDefault(model, domain.DefaultLLMModels()[provider])
	if provider.IsLocal() {
		if settings.LLM.BaseURL == "" {
			settings.LLM.BaseURL = defaultOllamaBaseURL
		}
	} else {
		settings.LLM.BaseURL = ""
	}
	settings.LLM.APIKey = apiKey

	return s.Save(settings)
}

func modelOrDefault(model, fallback string) string {
	if model != "" {
		return model
	}
	return fallback
}

// SetStoreBackend configures where the vector store is persisted.
// location is a path for file and sqlite backends and a DSN for postgres.
func (s *SettingsService) SetStoreBackend(backend domain.StoreBackend, location string) error {
	if !backend.IsValid() {
		return fmt.Errorf("%w: invalid store backend %q", domain.ErrInvalidInput, backend)
	}
	if backend == domain.StoreBackendPostgres && location == "" {
		return fmt.Errorf("%w: postgres backend requires a DSN", domain.ErrInvalidInput)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Store.Backend = backend
	switch backend {
	case domain.StoreBackendPostgres:
		settings.Store.DSN = location
	case domain.StoreBackendFile, domain.StoreBackendSQLite:
		settings.Store.Path = location
	}
	return s.Save(settings)
}

// Validate checks that current settings are usable. An unconfigured LLM is
// valid; summaries then use the heuristic fallback.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	if !settings.Embedding.IsConfigured() {
		return fmt.Errorf("%w: embedding provider %q is not configured", domain.ErrValidation, settings.Embedding.Provider)
	}
	if settings.LLM.Provider != "" && !settings.LLM.IsConfigured() {
		return fmt.Errorf("%w: LLM provider %q is missing an API key", domain.ErrValidation, settings.LLM.Provider)
	}
	if settings.Store.Backend == domain.StoreBackendPostgres && settings.Store.DSN == "" {
		return fmt.Errorf("%w: postgres backend requires store.dsn", domain.ErrValidation)
	}
	if settings.Chunking.ChunkOverlap >= settings.Chunking.ChunkSize {
		return fmt.Errorf("%w: chunk overlap %d must be smaller than chunk size %d",
			domain.ErrValidation, settings.Chunking.ChunkOverlap, settings.Chunking.ChunkSize)
	}
	if settings.Retrieval.MinScorePercent > 100 {
		return fmt.Errorf("%w: rag.min_score_percent must be at most 100", domain.ErrValidation)
	}
	return nil
}

// GetDefaults returns default settings.
func (s *SettingsService) GetDefaults() domain.AppSettings {
	return domain.DefaultAppSettings()
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(&settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig() error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(&settings.LLM)
}

// Describe returns key/value pairs for display with API keys redacted.
func Describe(settings *domain.AppSettings) [][2]string {
	redact := func(key string) string {
		if key == "" {
			return ""
		}
		return apiKeyRedactedDisplay
	}
	return [][2]string{
		{keyEmbedProvider, settings.Embedding.Provider.String()},
		{keyEmbedModel, settings.Embedding.Model},
		{keyEmbedBaseURL, settings.Embedding.BaseURL},
		{keyEmbedAPIKey, redact(settings.Embedding.APIKey)},
		{keyLLMProvider, settings.LLM.Provider.String()},
		{keyLLMModel, settings.LLM.Model},
		{keyLLMBaseURL, settings.LLM.BaseURL},
		{keyLLMAPIKey, redact(settings.LLM.APIKey)},
		{keyStoreBackend, settings.Store.Backend.String()},
		{keyStorePath, settings.Store.Path},
		{keyStoreDSN, redact(settings.Store.DSN)},
		{keyStoreMaxBytes, strconv.Itoa(settings.Store.MaxBytes)},
		{keyStoreEvictKeep, strconv.Itoa(settings.Store.EvictKeep)},
		{keyChunkSize, strconv.Itoa(settings.Chunking.ChunkSize)},
		{keyChunkOverlap, strconv.Itoa(settings.Chunking.ChunkOverlap)},
		{keyChunkHeadings, strconv.FormatBool(settings.Chunking.RespectHeadings)},
		{keyChunkParagraphs, strconv.FormatBool(settings.Chunking.RespectParagraphs)},
		{keyIndexConcurrency, strconv.Itoa(settings.Indexing.Concurrency)},
		{keyIndexRateLimit, strconv.Itoa(settings.Indexing.RateLimit)},
		{keyRAGMaxResults, strconv.Itoa(settings.Retrieval.MaxResults)},
		{keyRAGMinScore, strconv.Itoa(settings.Retrieval.MinScorePercent)},
		{keyRAGMaxTokens, strconv.Itoa(settings.Retrieval.MaxTokens)},
		{keyMemoryThreshold, strconv.Itoa(settings.Memory.AutoSaveThreshold)},
		{keyMemoryMinUserMsgs, strconv.Itoa(settings.Memory.MinUserMessages)},
		{keyMemoryEmbedModel, settings.Memory.EmbeddingModel},
		{keyConverterURL, settings.Converter.URL},
	}
}

// Helper methods for reading config with defaults.

func (s *SettingsService) getString(key, defaultVal string) string {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func (s *SettingsService) getInt(key string, defaultVal int) int {
	val := s.configStore.GetInt(key)
	if val == 0 {
		return defaultVal
	}
	return val
}

// getIntAllowZero treats an explicit zero as a value rather than "unset".
func (s *SettingsService) getIntAllowZero(key string, defaultVal int) int {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetInt(key)
}

func (s *SettingsService) getBool(key string, defaultVal bool) bool {
	if _, exists := s.configStore.Get(key); !exists {
		return defaultVal
	}
	return s.configStore.GetBool(key)
}

func (s *SettingsService) getProvider(key string, defaultVal domain.AIProvider) domain.AIProvider {
	val := s.configStore.GetString(key)
	if val == "" {
		return defaultVal
	}
	provider := domain.AIProvider(val)
	if !provider.IsValid() {
		return defaultVal
	}
	return provider
}

func (s *SettingsService) getBackend(defaultVal domain.StoreBackend) domain.StoreBackend {
	backend := domain.StoreBackend(s.configStore.GetString(keyStoreBackend))
	if !backend.IsValid() {
		return defaultVal
	}
	return backend
}
