package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

// Test helper functions in settings.go

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSettingsCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, c := range settingsCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"show", "set", "keys", "embedding", "llm", "store"}, names)
}

func TestSettingsShowCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runCLI(t, "", "settings", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "[embedding]")
	assert.Contains(t, out, "embedding.model")
	assert.Contains(t, out, "nomic-embed-text")
	assert.Contains(t, out, "[rag]")
	assert.Contains(t, out, "Configuration is valid.")
	assert.Contains(t, out, "heuristic fallback")
}

func TestSettingsSetCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runCLI(t, "", "settings", "set", "rag.max_tokens", "3000")
	require.NoError(t, err)
	assert.Contains(t, out, "rag.max_tokens = 3000")

	settings, err := settingsService.Get()
	require.NoError(t, err)
	assert.Equal(t, 3000, settings.Retrieval.MaxTokens)

	out, err = runCLI(t, "", "settings", "set", "llm.api_key", "sk-1234567890abcdef")
	require.NoError(t, err)
	assert.Contains(t, out, "llm.api_key = sk-1...cdef")

	_, err = runCLI(t, "", "settings", "set", "rag.max_tokens", "lots")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = runCLI(t, "", "settings", "set", "search.mode", "hybrid")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsKeysCmd(t *testing.T) {
	out, err := runCLI(t, "", "settings", "keys")
	require.NoError(t, err)
	assert.Contains(t, out, "converter.url\n")
	assert.Contains(t, out, "store.backend\n")
}

func TestSettingsStoreCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := runCLI(t, "", "settings", "store", "file", "/tmp/vectors.json")
	require.NoError(t, err)
	assert.Contains(t, out, "JSON file")

	settings, err := settingsService.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.StoreBackendFile, settings.Store.Backend)
	assert.Equal(t, "/tmp/vectors.json", settings.Store.Path)

	_, err = runCLI(t, "", "settings", "store", "postgres")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSettingsEmbeddingCmd_Interactive(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	// Ollama is the first provider; accept its default model.
	out, err := runCLI(t, "1\n\n", "settings", "embedding")
	require.NoError(t, err)
	assert.Contains(t, out, "Validating configuration... OK")

	settings, err := settingsService.Get()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultEmbeddingModels()[domain.AIProviderOllama], settings.Embedding.Model)
}
