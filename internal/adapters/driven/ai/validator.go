package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
)

// Ensure ConfigValidator implements the interface.
var _ driven.AIConfigValidator = (*ConfigValidator)(nil)

// sampleText is embedded to check the model's vector size.
const sampleText = "sanctum embedding check"

// ConfigValidator checks that configured providers answer before settings are saved.
type ConfigValidator struct {
	timeout  time.Duration
	checkDim bool
}

// ValidatorOption configures a ConfigValidator.
type ValidatorOption func(*ConfigValidator)

// WithValidationTimeout bounds each check.
func WithValidationTimeout(d time.Duration) ValidatorOption {
	return func(v *ConfigValidator) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithDimensionCheck embeds a short text after the ping and compares the
// vector length with the model's known dimension. Unknown models pass.
func WithDimensionCheck(enabled bool) ValidatorOption {
	return func(v *ConfigValidator) {
		v.checkDim = enabled
	}
}

// NewConfigValidator creates a validator that pings providers and checks
// embedding dimensions.
func NewConfigValidator(opts ...ValidatorOption) *ConfigValidator {
	v := &ConfigValidator{timeout: pingTimeout, checkDim: true}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateEmbedding pings the embedding provider. Unconfigured settings pass.
func (v *ConfigValidator) ValidateEmbedding(config *domain.EmbeddingSettings) error {
	svc, err := CreateEmbeddingService(config)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	if err := svc.Ping(ctx); err != nil {
		return err
	}
	if !v.checkDim {
		return nil
	}

	want, known := domain.EmbeddingDimensions()[svc.ModelName()]
	if !known {
		return nil
	}
	emb, err := svc.Embed(ctx, sampleText, "")
	if err != nil {
		return fmt.Errorf("sample embedding: %w", err)
	}
	if got := len(emb.Vector); got != want {
		return fmt.Errorf("%w: model %s returned %d dimensions, expected %d",
			domain.ErrValidation, svc.ModelName(), got, want)
	}
	return nil
}

// ValidateLLM pings the LLM provider. Unconfigured settings pass.
func (v *ConfigValidator) ValidateLLM(config *domain.LLMSettings) error {
	svc, err := CreateLLMService(config)
	if err != nil || svc == nil {
		return err
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	defer cancel()
	return svc.Ping(ctx)
}
