package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driving"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/logger"
)

// Ensure RetrieverService implements the interface.
var _ driving.RetrieverService = (*RetrieverService)(nil)

// RetrieverService assembles context for a prompt from the vector store.
type RetrieverService struct {
	embedder driven.EmbeddingService
	store    driving.VectorStore
}

// NewRetrieverService creates a new retriever.
// The embedder may be nil; Retrieve then fails with domain.ErrEmbeddingUnavailable.
func NewRetrieverService(embedder driven.EmbeddingService, store driving.VectorStore) *RetrieverService {
	return &RetrieverService{
		embedder: embedder,
		store:    store,
	}
}

// Retrieve embeds query once, overfetches candidates across the requested
// collections and walks them in score order, accepting each formatted entry
// only while the running token estimate stays within opts.MaxTokens.
func (s *RetrieverService) Retrieve(
	ctx context.Context, query string, opts domain.RetrieveOptions, model string,
) (*domain.RetrievalResult, error) {
	logger.Section("Retrieval")
	opts = opts.WithDefaults()

	empty := &domain.RetrievalResult{Results: []domain.SearchResult{}}
	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no context")
		return empty, nil
	}
	for _, c := range opts.Collections {
		if !c.IsValid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCollection, c)
		}
	}

	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	emb, err := s.embedder.Embed(ctx, query, model)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if emb == nil || len(emb.Vector) == 0 {
		return nil, fmt.Errorf("embed query: %w: empty embedding", domain.ErrTransport)
	}

	limit := opts.MaxResults * 2
	logger.Debug("Collections: %v, candidates: %d, min score: %.2f, budget: %d tokens",
		opts.Collections, limit, opts.Threshold(), opts.MaxTokens)

	candidates, err := s.store.SearchAcross(ctx, opts.Collections, emb.Vector, limit, opts.Threshold())
	if err != nil {
		return nil, fmt.Errorf("search collections: %w", err)
	}

	result := empty
	var entries []string
	tokens := 0
	for _, c := range candidates {
		if len(result.Results) >= opts.MaxResults {
			break
		}
		entry := FormatContextEntry(c)
		cost := domain.EstimateTokens(entry)
		if len(entries) > 0 {
			cost += domain.EstimateTokens(domain.ContextDelimiter)
		}
		if tokens+cost > opts.MaxTokens {
			logger.Debug("Budget reached after %d results (%d tokens, next needs %d)",
				len(result.Results), tokens, cost)
			break
		}
		tokens += cost
		entries = append(entries, entry)
		result.Results = append(result.Results, c)
	}

	result.Context = strings.Join(entries, domain.ContextDelimiter)
	result.TokensEstimate = tokens
	logger.Info("Retrieved %d of %d candidates (~%d tokens)", len(result.Results), len(candidates), tokens)
	return result, nil
}

// FormatContextEntry renders a search result as a context entry: a bracketed
// header of whichever of source, heading, title and url are present, then
// the content.
func FormatContextEntry(r domain.SearchResult) string {
	var parts []string
	if v := r.MetaString(domain.MetaSource); v != "" {
		parts = append(parts, "Source: "+v)
	}
	if v := r.MetaString(domain.MetaHeading); v != "" {
		parts = append(parts, "Section: "+v)
	}
	if v := r.MetaString(domain.MetaTitle); v != "" {
		parts = append(parts, "Title: "+v)
	}
	if v := r.MetaString(domain.MetaURL); v != "" {
		parts = append(parts, "URL: "+v)
	}
	if len(parts) == 0 {
		return r.Content
	}
	return "[" + strings.Join(parts, " | ") + "]\n" + r.Content
}
