package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driving"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/logger"
)

// Ensure IndexerService implements the interface.
var _ driving.IndexerService = (*IndexerService)(nil)

// DefaultIndexConcurrency is the default number of in-flight embedding requests.
const DefaultIndexConcurrency = 4

// plainTextExtensions are read directly without conversion.
var plainTextExtensions = map[string]bool{
	"":          true,
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// IndexerService runs the chunk, embed and store pipeline for one source.
type IndexerService struct {
	chunker   driven.Chunker
	embedder  driven.EmbeddingService
	store     driving.VectorStore
	converter driven.DocumentConverter

	chunkOpts   domain.ChunkOptions
	concurrency int
	limiter     *rate.Limiter
}

// IndexerOption configures an IndexerService.
type IndexerOption func(*IndexerService)

// WithConverter enables indexing of formats the converter supports.
func WithConverter(converter driven.DocumentConverter) IndexerOption {
	return func(s *IndexerService) {
		s.converter = converter
	}
}

// WithConcurrency bounds the number of concurrent embedding requests.
func WithConcurrency(n int) IndexerOption {
	return func(s *IndexerService) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithRateLimit caps embedding requests per second. Zero means unlimited.
func WithRateLimit(perSecond float64) IndexerOption {
	return func(s *IndexerService) {
		if perSecond > 0 {
			s.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// NewIndexerService creates a new indexer.
// The embedder may be nil, in which case every run fails at the embedding stage.
func NewIndexerService(
	chunker driven.Chunker,
	embedder driven.EmbeddingService,
	store driving.VectorStore,
	opts ...IndexerOption,
) *IndexerService {
	s := &IndexerService{
		chunker:     chunker,
		embedder:    embedder,
		store:       store,
		chunkOpts:   chunker.Options(),
		concurrency: DefaultIndexConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// progressReporter serialises progress callbacks from worker goroutines.
type progressReporter struct {
	mu sync.Mutex
	fn domain.ProgressFunc
}

func (p *progressReporter) emit(stage domain.IndexingStage, current, total int, format string, args ...any) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fn(domain.IndexingProgress{
		Stage:   stage,
		Current: current,
		Total:   total,
		Message: fmt.Sprintf(format, args...),
	})
}

// IndexDocument chunks, embeds and stores one document. Nothing is written
// unless every chunk was embedded, and the source's previous chunks are
// replaced in the same write.
func (s *IndexerService) IndexDocument(
	ctx context.Context, req domain.IndexRequest, onProgress domain.ProgressFunc,
) domain.IndexingResult {
	progress := &progressReporter{fn: onProgress}
	result := domain.IndexingResult{Source: req.Source, Collection: req.Collection}

	fail := func(stage domain.IndexingStage, err error) domain.IndexingResult {
		ierr := &domain.IndexingError{Stage: stage, Err: err}
		if isCancelled(err) {
			logger.Warn("Indexing %s cancelled during %s", req.Source, stage)
		} else {
			logger.Error("Indexing %s failed: %v", req.Source, ierr)
		}
		progress.emit(domain.StageError, 0, 0, "%s", ierr.Error())
		result.Success = false
		result.Error = ierr.Error()
		result.FailedStage = stage
		return result
	}

	logger.Section("Indexing")
	logger.Debug("Source: %q, collection: %s", req.Source, req.Collection)

	if strings.TrimSpace(req.Source) == "" {
		return fail(domain.StageChunking, fmt.Errorf("%w: source is required", domain.ErrInvalidInput))
	}
	if !req.Collection.IsValid() {
		return fail(domain.StageChunking, fmt.Errorf("%w: %q", domain.ErrUnknownCollection, req.Collection))
	}

	// Chunking
	progress.emit(domain.StageChunking, 0, 0, "Splitting %s into chunks", req.Source)
	chunks := s.chunker.Chunk(req.Content, req.Source, s.chunkOpts)
	result.ChunksCreated = len(chunks)
	total := len(chunks)
	logger.Debug("Created %d chunks", total)

	if total == 0 {
		result.Success = true
		progress.emit(domain.StageComplete, 0, 0, "Nothing to index in %s", req.Source)
		return result
	}

	// Embedding
	if s.embedder == nil {
		return fail(domain.StageEmbedding, domain.ErrEmbeddingUnavailable)
	}
	model := req.EmbeddingModel
	if model == "" {
		model = s.embedder.ModelName()
	}

	progress.emit(domain.StageEmbedding, 0, total, "Embedding %d chunks with %s", total, model)
	vectors, err := s.embedChunks(ctx, chunks, model, progress)
	if err != nil {
		return fail(domain.StageEmbedding, err)
	}
	result.EmbeddingsGenerated = len(vectors)

	// Storing
	progress.emit(domain.StageStoring, 0, total, "Storing %d chunks in %s", total, req.Collection)
	docs := make([]domain.VectorDocument, total)
	for i, ch := range chunks {
		docs[i] = domain.VectorDocument{
			ID:        ch.ID,
			Content:   ch.Content,
			Embedding: vectors[i],
			Metadata:  chunkMetadata(ch, req.Metadata, model),
		}
	}
	if err := s.store.ReplaceSource(ctx, req.Collection, req.Source, docs); err != nil {
		return fail(domain.StageStoring, err)
	}

	result.Success = true
	progress.emit(domain.StageComplete, total, total, "Indexed %d chunks from %s", total, req.Source)
	logger.Info("Indexed %s: %d chunks into %s", req.Source, total, req.Collection)
	return result
}

// embedChunks embeds every chunk with bounded concurrency. vectors[i]
// always belongs to chunks[i]. The first failure cancels the rest.
func (s *IndexerService) embedChunks(
	ctx context.Context, chunks []domain.Chunk, model string, progress *progressReporter,
) ([][]float64, error) {
	total := len(chunks)
	vectors := make([][]float64, total)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	var mu sync.Mutex
	done := 0

	for i := range chunks {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if s.limiter != nil {
				if err := s.limiter.Wait(gctx); err != nil {
					return err
				}
			}
			emb, err := s.embedder.Embed(gctx, chunks[i].Content, model)
			if err != nil {
				return fmt.Errorf("chunk %d of %d: %w", i+1, total, err)
			}
			if emb == nil || len(emb.Vector) == 0 {
				return fmt.Errorf("chunk %d of %d: %w: empty embedding", i+1, total, domain.ErrTransport)
			}
			vectors[i] = emb.Vector

			mu.Lock()
			done++
			current := done
			mu.Unlock()
			progress.emit(domain.StageEmbedding, current, total, "Embedded chunk %d of %d", current, total)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dims := len(vectors[0])
	for i, v := range vectors {
		if len(v) != dims {
			return nil, fmt.Errorf("%w: chunk %d has %d dimensions, chunk 1 has %d",
				domain.ErrValidation, i+1, len(v), dims)
		}
	}
	return vectors, nil
}

// chunkMetadata merges request metadata with the chunk's positional fields.
// Positional fields win on conflict.
func chunkMetadata(ch domain.Chunk, extra map[string]any, model string) map[string]any {
	meta := make(map[string]any, len(extra)+5)
	for k, v := range extra {
		meta[k] = v
	}
	meta[domain.MetaSource] = ch.Metadata.Source
	meta[domain.MetaChunkIndex] = ch.Metadata.ChunkIndex
	meta[domain.MetaTotalChunks] = ch.Metadata.TotalChunks
	meta[domain.MetaEmbeddingModel] = model
	if ch.Metadata.Heading != "" {
		meta[domain.MetaHeading] = ch.Metadata.Heading
	}
	return meta
}

// IndexFile reads path and indexes it with the path as source. Markdown and
// plain text are read directly; other formats go through the converter.
func (s *IndexerService) IndexFile(
	ctx context.Context, path string, collection domain.Collection, model string, onProgress domain.ProgressFunc,
) domain.IndexingResult {
	content, meta, err := s.readFile(ctx, path)
	if err != nil {
		ierr := &domain.IndexingError{Stage: domain.StageChunking, Err: err}
		if onProgress != nil {
			onProgress(domain.IndexingProgress{Stage: domain.StageError, Message: ierr.Error()})
		}
		return domain.IndexingResult{
			Source:      path,
			Collection:  collection,
			Error:       ierr.Error(),
			FailedStage: domain.StageChunking,
		}
	}

	return s.IndexDocument(ctx, domain.IndexRequest{
		Content:        content,
		Source:         path,
		Collection:     collection,
		EmbeddingModel: model,
		Metadata:       meta,
	}, onProgress)
}

func (s *IndexerService) readFile(ctx context.Context, path string) (string, map[string]any, error) {
	ext := strings.ToLower(filepath.Ext(path))
	name := filepath.Base(path)

	if plainTextExtensions[ext] {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", nil, fmt.Errorf("read %s: %w", path, err)
		}
		content := string(data)
		return content, map[string]any{domain.MetaTitle: markdownTitle(content, name)}, nil
	}

	if s.converter == nil || !s.converter.Supports(ext) {
		return "", nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	doc, err := s.converter.Convert(ctx, name, f)
	if err != nil {
		return "", nil, fmt.Errorf("convert %s: %w", name, err)
	}
	return doc.Markdown, convertedMetadata(doc, name), nil
}

// IndexURL converts a remote document and indexes it with the URL as source.
func (s *IndexerService) IndexURL(
	ctx context.Context, url string, collection domain.Collection, model string, onProgress domain.ProgressFunc,
) domain.IndexingResult {
	fail := func(err error) domain.IndexingResult {
		ierr := &domain.IndexingError{Stage: domain.StageChunking, Err: err}
		if onProgress != nil {
			onProgress(domain.IndexingProgress{Stage: domain.StageError, Message: ierr.Error()})
		}
		return domain.IndexingResult{Source: url, Collection: collection, Error: ierr.Error(), FailedStage: domain.StageChunking}
	}

	if s.converter == nil {
		return fail(domain.ErrConverterUnavailable)
	}
	doc, err := s.converter.ConvertURL(ctx, url)
	if err != nil {
		return fail(fmt.Errorf("convert %s: %w", url, err))
	}

	meta := convertedMetadata(doc, url)
	meta[domain.MetaURL] = url
	return s.IndexDocument(ctx, domain.IndexRequest{
		Content:        doc.Markdown,
		Source:         url,
		Collection:     collection,
		EmbeddingModel: model,
		Metadata:       meta,
	}, onProgress)
}

func convertedMetadata(doc *domain.ConvertedDocument, fallbackTitle string) map[string]any {
	title := doc.Title
	if title == "" {
		title = fallbackTitle
	}
	meta := map[string]any{domain.MetaTitle: title}
	if doc.Pages > 0 {
		meta["pages"] = doc.Pages
	}
	return meta
}

// markdownTitle returns the first level-one heading, or fallback.
func markdownTitle(content, fallback string) string {
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			if title := strings.TrimSpace(strings.TrimPrefix(line, "# ")); title != "" {
				return title
			}
		}
	}
	return fallback
}

// Reembed refreshes a source's vectors under model. Chunks keep only their
// own text, so a model change cannot be applied without the original
// document; it fails with domain.ErrRequiresOriginalSource instead of
// mixing vectors from two models. Re-embedding under the stored model is a
// no-op.
func (s *IndexerService) Reembed(ctx context.Context, collection domain.Collection, source, model string) error {
	docs, err := s.store.List(ctx, collection)
	if err != nil {
		return err
	}
	if model == "" && s.embedder != nil {
		model = s.embedder.ModelName()
	}

	found := 0
	for _, d := range docs {
		if d.Source() != source {
			continue
		}
		found++
		if stored := d.MetaString(domain.MetaEmbeddingModel); stored != model {
			return fmt.Errorf("%w: %s was embedded with %q; re-index it from the original document to use %q",
				domain.ErrRequiresOriginalSource, source, stored, model)
		}
	}
	if found == 0 {
		return fmt.Errorf("%w: no documents for source %q in %s", domain.ErrNotFound, source, collection)
	}
	logger.Debug("Source %q already embedded with %s", source, model)
	return nil
}

// isCancelled reports whether err came from context cancellation.
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
