// Package converter combines document converters.
package converter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/logger"
)

// Ensure Chain implements the interface.
var _ driven.DocumentConverter = (*Chain)(nil)

// Chain tries converters in order. A converter that fails because it is
// unreachable hands the document to the next one; any other error is final.
type Chain struct {
	converters []driven.DocumentConverter
}

// NewChain creates a chain. Nil converters are skipped.
func NewChain(converters ...driven.DocumentConverter) *Chain {
	c := &Chain{}
	for _, conv := range converters {
		if conv != nil {
			c.converters = append(c.converters, conv)
		}
	}
	return c
}

// Supports reports whether any converter accepts ext.
func (c *Chain) Supports(ext string) bool {
	for _, conv := range c.converters {
		if conv.Supports(ext) {
			return true
		}
	}
	return false
}

// Convert buffers r so each candidate converter can read it from the start.
func (c *Chain) Convert(ctx context.Context, filename string, r io.Reader) (*domain.ConvertedDocument, error) {
	ext := filepath.Ext(filename)
	var data []byte
	lastErr := fmt.Errorf("%w: %s", domain.ErrUnsupportedType, ext)
	for _, conv := range c.converters {
		if !conv.Supports(ext) {
			continue
		}
		if data == nil {
			var err error
			if data, err = io.ReadAll(r); err != nil {
				return nil, fmt.Errorf("read %s: %w", filepath.Base(filename), err)
			}
		}
		doc, err := conv.Convert(ctx, filename, bytes.NewReader(data))
		if err == nil {
			return doc, nil
		}
		if !fallThrough(err) {
			return nil, err
		}
		logger.Debug("converter failed for %s, trying next: %v", filename, err)
		lastErr = err
	}
	return nil, lastErr
}

// ConvertURL returns the first successful conversion.
func (c *Chain) ConvertURL(ctx context.Context, rawURL string) (*domain.ConvertedDocument, error) {
	lastErr := error(domain.ErrConverterUnavailable)
	for _, conv := range c.converters {
		doc, err := conv.ConvertURL(ctx, rawURL)
		if err == nil {
			return doc, nil
		}
		if !fallThrough(err) {
			return nil, err
		}
		logger.Debug("converter failed for %s, trying next: %v", rawURL, err)
		lastErr = err
	}
	return nil, lastErr
}

// Ping succeeds when at least one converter is reachable.
func (c *Chain) Ping(ctx context.Context) error {
	errs := make([]error, 0, len(c.converters))
	for _, conv := range c.converters {
		err := conv.Ping(ctx)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return domain.ErrConverterUnavailable
	}
	return errors.Join(errs...)
}

func fallThrough(err error) bool {
	return errors.Is(err, domain.ErrTransport) ||
		errors.Is(err, domain.ErrConverterUnavailable) ||
		errors.Is(err, domain.ErrUnsupportedType)
}
