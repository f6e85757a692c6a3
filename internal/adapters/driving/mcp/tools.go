package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

// RetrieveInput is the input schema for the retrieve_context tool.
type RetrieveInput struct {
	Query       string   `json:"query" jsonschema:"the question or passage to find context for"`
	Collections []string `json:"collections,omitempty" jsonschema:"collections to search (default references)"`
	MaxResults  int      `json:"max_results,omitempty" jsonschema:"maximum number of entries (default 5)"`
	MinScore    *float64 `json:"min_score,omitempty" jsonschema:"minimum similarity between 0 and 1 (default 0.3)"`
	MaxTokens   int      `json:"max_tokens,omitempty" jsonschema:"token budget of the assembled context (default 2000)"`
}

// RetrieveOutput is the output schema for the retrieve_context tool.
type RetrieveOutput struct {
	Context        string         `json:"context"`
	TokensEstimate int            `json:"tokens_estimate"`
	Sources        []SourceOutput `json:"sources"`
}

// SourceOutput describes one entry of an assembled context.
type SourceOutput struct {
	ID         string  `json:"id"`
	Collection string  `json:"collection"`
	Source     string  `json:"source,omitempty"`
	Heading    string  `json:"heading,omitempty"`
	Score      float64 `json:"score"`
}

// IndexInput is the input schema for the index_document tool.
// Exactly one of content, path or url is used, in that order of preference.
type IndexInput struct {
	Content    string `json:"content,omitempty" jsonschema:"markdown or plain text to index"`
	Source     string `json:"source,omitempty" jsonschema:"source name for content, used to replace earlier versions"`
	Path       string `json:"path,omitempty" jsonschema:"local file to read and index"`
	URL        string `json:"url,omitempty" jsonschema:"remote document to convert and index"`
	Collection string `json:"collection,omitempty" jsonschema:"target collection (default references)"`
}

// IndexOutput is the output schema for the index_document tool.
type IndexOutput struct {
	Source        string `json:"source"`
	Collection    string `json:"collection"`
	ChunksCreated int    `json:"chunks_created"`
}

// RecallInput is the input schema for the recall_memories tool.
type RecallInput struct {
	DocumentPath       string `json:"document_path" jsonschema:"the document being worked on"`
	Query              string `json:"query" jsonschema:"what the session is about"`
	MaxResults         int    `json:"max_results,omitempty" jsonschema:"maximum summaries to return (default 3)"`
	IncludePreferences bool   `json:"include_preferences,omitempty" jsonschema:"also return matching writing preferences"`
}

// RecallOutput is the output schema for the recall_memories tool.
type RecallOutput struct {
	Context     string                      `json:"context"`
	Summaries   []domain.RecalledSummary    `json:"summaries"`
	Preferences []domain.RecalledPreference `json:"preferences,omitempty"`
}

// SaveMemoryInput is the input schema for the save_memory tool.
// When messages are given they are summarised; otherwise summary is stored as is.
type SaveMemoryInput struct {
	DocumentPath string           `json:"document_path" jsonschema:"the document the session was about"`
	Messages     []domain.Message `json:"messages,omitempty" jsonschema:"conversation to summarise"`
	Summary      string           `json:"summary,omitempty" jsonschema:"a ready-made summary"`
	KeyPoints    []string         `json:"key_points,omitempty"`
	Decisions    []string         `json:"decisions,omitempty"`
}

// SaveMemoryOutput is the output schema for the save_memory tool.
type SaveMemoryOutput struct {
	ID       string `json:"id"`
	Summary  string `json:"summary"`
	Fallback bool   `json:"fallback"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve_context",
		Description: "Find reference passages relevant to a query, formatted within a token budget",
	}, s.handleRetrieve)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_document",
		Description: "Chunk, embed and store a document so it can be retrieved later",
	}, s.handleIndex)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "recall_memories",
		Description: "Recall summaries of earlier writing sessions for a document",
	}, s.handleRecall)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "save_memory",
		Description: "Summarise a conversation and store it as session memory",
	}, s.handleSaveMemory)
}

func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	collections, err := parseCollections(input.Collections)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	opts := domain.RetrieveOptions{
		Collections: collections,
		MaxResults:  input.MaxResults,
		MinScore:    input.MinScore,
		MaxTokens:   input.MaxTokens,
	}
	result, err := s.ports.Retriever.Retrieve(ctx, input.Query, opts, "")
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Context:        result.Context,
		TokensEstimate: result.TokensEstimate,
		Sources:        make([]SourceOutput, len(result.Results)),
	}
	for i := range result.Results {
		r := &result.Results[i]
		output.Sources[i] = SourceOutput{
			ID:         r.ID,
			Collection: r.Collection.String(),
			Source:     r.MetaString(domain.MetaSource),
			Heading:    r.MetaString(domain.MetaHeading),
			Score:      r.Score,
		}
	}
	return nil, output, nil
}

func (s *Server) handleIndex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexInput,
) (*mcp.CallToolResult, IndexOutput, error) {
	if s.ports.Indexer == nil {
		return nil, IndexOutput{}, errToolUnavailable
	}

	collection := domain.CollectionReferences
	if input.Collection != "" {
		c, err := domain.ParseCollection(input.Collection)
		if err != nil {
			return nil, IndexOutput{}, err
		}
		collection = c
	}

	var result domain.IndexingResult
	switch {
	case strings.TrimSpace(input.Content) != "":
		if input.Source == "" {
			return nil, IndexOutput{}, fmt.Errorf("%w: source is required with content", domain.ErrInvalidInput)
		}
		result = s.ports.Indexer.IndexDocument(ctx, domain.IndexRequest{
			Content:    input.Content,
			Source:     input.Source,
			Collection: collection,
		}, nil)
	case input.Path != "":
		result = s.ports.Indexer.IndexFile(ctx, input.Path, collection, "", nil)
	case input.URL != "":
		result = s.ports.Indexer.IndexURL(ctx, input.URL, collection, "", nil)
	default:
		return nil, IndexOutput{}, fmt.Errorf("%w: one of content, path or url is required", domain.ErrInvalidInput)
	}

	if !result.Success {
		return nil, IndexOutput{}, fmt.Errorf("index %s failed at %s: %s", result.Source, result.FailedStage, result.Error)
	}
	return nil, IndexOutput{
		Source:        result.Source,
		Collection:    result.Collection.String(),
		ChunksCreated: result.ChunksCreated,
	}, nil
}

func (s *Server) handleRecall(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RecallInput,
) (*mcp.CallToolResult, RecallOutput, error) {
	if s.ports.Memory == nil {
		return nil, RecallOutput{}, errToolUnavailable
	}

	summaries, err := s.ports.Memory.RetrieveRelevant(ctx, input.DocumentPath, input.Query, input.MaxResults)
	if err != nil {
		return nil, RecallOutput{}, err
	}

	output := RecallOutput{
		Context:   domain.FormatMemoryContext(summaries),
		Summaries: summaries,
	}

	if input.IncludePreferences {
		prefs, err := s.ports.Memory.RetrievePreferences(ctx, input.Query, input.DocumentPath, input.MaxResults)
		if err != nil {
			return nil, RecallOutput{}, err
		}
		output.Preferences = prefs
	}
	return nil, output, nil
}

func (s *Server) handleSaveMemory(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SaveMemoryInput,
) (*mcp.CallToolResult, SaveMemoryOutput, error) {
	if s.ports.Memory == nil {
		return nil, SaveMemoryOutput{}, errToolUnavailable
	}

	var (
		draft    domain.SummaryDraft
		fallback bool
	)
	switch {
	case len(input.Messages) > 0:
		outcome := s.ports.Memory.Summarize(ctx, input.Messages)
		draft = outcome.Draft
		fallback = outcome.IsFallback()
	case strings.TrimSpace(input.Summary) != "":
		draft = domain.SummaryDraft{
			Summary:   input.Summary,
			KeyPoints: input.KeyPoints,
			Decisions: input.Decisions,
		}
	default:
		return nil, SaveMemoryOutput{}, fmt.Errorf("%w: messages or summary is required", domain.ErrInvalidInput)
	}

	result := s.ports.Memory.Save(ctx, input.DocumentPath, draft)
	if !result.Success {
		return nil, SaveMemoryOutput{}, errors.New(result.Error)
	}
	return nil, SaveMemoryOutput{
		ID:       result.Summary.ID,
		Summary:  result.Summary.Summary,
		Fallback: fallback,
	}, nil
}

func parseCollections(names []string) ([]domain.Collection, error) {
	collections := make([]domain.Collection, 0, len(names))
	for _, name := range names {
		c, err := domain.ParseCollection(name)
		if err != nil {
			return nil, err
		}
		collections = append(collections, c)
	}
	return collections, nil
}
