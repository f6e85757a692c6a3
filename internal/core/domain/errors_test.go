package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrValidation", ErrValidation},
		{"ErrUnknownCollection", ErrUnknownCollection},
		{"ErrTransport", ErrTransport},
		{"ErrStorageQuota", ErrStorageQuota},
		{"ErrParse", ErrParse},
		{"ErrRequiresOriginalSource", ErrRequiresOriginalSource},
		{"ErrLLMUnavailable", ErrLLMUnavailable},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrConverterUnavailable", ErrConverterUnavailable},
		{"ErrUnsupportedType", ErrUnsupportedType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

// TestErrNotFound tests ErrNotFound error
func TestErrNotFound(t *testing.T) {
	assert.Equal(t, "not found", ErrNotFound.Error())
	assert.True(t, errors.Is(ErrNotFound, ErrNotFound))
	assert.False(t, errors.Is(ErrNotFound, ErrValidation))
}

// TestErrors_Wrapping tests that wrapped errors keep their identity
func TestErrors_Wrapping(t *testing.T) {
	wrapped := fmt.Errorf("save snapshot: %w", ErrStorageQuota)

	assert.True(t, errors.Is(wrapped, ErrStorageQuota))
	assert.False(t, errors.Is(wrapped, ErrTransport))
	assert.Contains(t, wrapped.Error(), "storage quota exceeded")
}

// TestIndexingError tests the stage-naming error wrapper
func TestIndexingError(t *testing.T) {
	err := &IndexingError{Stage: StageEmbedding, Err: fmt.Errorf("chunk 3: %w", ErrTransport)}

	assert.Equal(t, "embedding stage failed: chunk 3: transport error", err.Error())
	assert.True(t, errors.Is(err, ErrTransport))

	var ie *IndexingError
	wrapped := fmt.Errorf("index: %w", err)
	assert.True(t, errors.As(wrapped, &ie))
	assert.Equal(t, StageEmbedding, ie.Stage)
}
