package ai

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

func TestConfigValidator_NothingToValidate(t *testing.T) {
	validator := NewConfigValidator()
	require.NotNil(t, validator)

	assert.NoError(t, validator.ValidateEmbedding(nil))
	assert.NoError(t, validator.ValidateEmbedding(&domain.EmbeddingSettings{Model: "test-model"}))
	assert.NoError(t, validator.ValidateLLM(nil))
	assert.NoError(t, validator.ValidateLLM(&domain.LLMSettings{Model: "test-model"}))
}

func TestConfigValidator_PingsProvider(t *testing.T) {
	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer healthy.Close()

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	validator := NewConfigValidator(WithDimensionCheck(false), WithValidationTimeout(2*time.Second))

	assert.NoError(t, validator.ValidateEmbedding(&domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama, BaseURL: healthy.URL,
	}))
	assert.Error(t, validator.ValidateEmbedding(&domain.EmbeddingSettings{
		Provider: domain.AIProviderOllama, BaseURL: down.URL,
	}))
	assert.NoError(t, validator.ValidateLLM(&domain.LLMSettings{
		Provider: domain.AIProviderOllama, BaseURL: healthy.URL,
	}))
	assert.Error(t, validator.ValidateLLM(&domain.LLMSettings{
		Provider: domain.AIProviderOllama, BaseURL: down.URL,
	}))
}

func TestConfigValidator_ChecksDimensions(t *testing.T) {
	ollamaWithDims := func(dims int) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/api/tags" {
				_, _ = w.Write([]byte(`{"models":[]}`))
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"embedding": make([]float64, dims)})
		}))
	}

	tests := []struct {
		name    string
		model   string
		dims    int
		wantErr bool
	}{
		{"matching dimension", "nomic-embed-text", 768, false},
		{"wrong dimension", "nomic-embed-text", 384, true},
		{"unknown model is not checked", "my-custom-embed", 5, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := ollamaWithDims(tt.dims)
			defer server.Close()

			err := NewConfigValidator().ValidateEmbedding(&domain.EmbeddingSettings{
				Provider: domain.AIProviderOllama, BaseURL: server.URL, Model: tt.model,
			})
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrValidation)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
