// Command sanctum is the retrieval core of a writing assistant: it indexes
// reference material into a local vector store and serves relevant context
// over a CLI, an MCP server and a REST API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driven/ai"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driven/config/file"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driven/converter"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driven/converter/docling"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driven/converter/local"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driven/storage/jsonfile"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driven/storage/memory"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driven/storage/postgres"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driven/storage/sqlite"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/adapters/driving/cli"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/services"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/logger"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/postprocessors/chunker"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cli.LoadEnv()

	cfgStore, err := file.NewConfigStore("")
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	settingsService := services.NewSettingsService(cfgStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("loading settings: %w", err)
	}

	backend, err := openBackend(ctx, settings.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	keep := settings.Store.EvictKeep
	if keep <= 0 {
		keep = services.DefaultEvictKeep
	}
	store := services.NewVectorStore(backend,
		services.WithEvictionPolicy(services.KeepMostRecent{PerCollection: keep}),
		services.WithEvictionHook(func(r domain.EvictionReport) {
			logger.Warn("store over quota, evicted %d documents", len(r.Evicted))
		}),
	)

	var embedder driven.EmbeddingService
	var llm driven.LLMService
	aiServices, err := ai.Init(ctx, settings)
	if err != nil {
		logger.Warn("embedding unavailable, indexing and retrieval are disabled: %v", err)
	} else {
		defer aiServices.Close()
		embedder = aiServices.EmbeddingService
		llm = aiServices.LLMService
	}

	chunk := chunker.New(
		chunker.WithChunkSize(settings.Chunking.ChunkSize),
		chunker.WithOverlap(settings.Chunking.ChunkOverlap),
		chunker.WithHeadings(settings.Chunking.RespectHeadings),
		chunker.WithParagraphs(settings.Chunking.RespectParagraphs),
	)
	indexerOpts := []services.IndexerOption{
		services.WithConcurrency(settings.Indexing.Concurrency),
		services.WithRateLimit(float64(settings.Indexing.RateLimit)),
	}
	indexerOpts = append(indexerOpts, services.WithConverter(buildConverter(settings.Converter)))

	memoryOpts := []services.MemoryOption{}
	if llm != nil {
		memoryOpts = append(memoryOpts, services.WithLLM(llm))
	}
	if settings.Memory.EmbeddingModel != "" {
		memoryOpts = append(memoryOpts, services.WithEmbeddingModel(settings.Memory.EmbeddingModel))
	}
	prompts, err := file.NewPromptStore("")
	if err != nil {
		logger.Warn("prompt overrides unavailable: %v", err)
	} else {
		memoryOpts = append(memoryOpts, services.WithPromptStore(prompts))
	}

	cli.SetServices(cli.Services{
		Store:     store,
		Indexer:   services.NewIndexerService(chunk, embedder, store, indexerOpts...),
		Retriever: services.NewRetrieverService(embedder, store),
		Memory:    services.NewSessionMemoryService(embedder, store, memoryOpts...),
		Settings:  settingsService,
	})
	cli.SetVersion(version)

	return cli.Execute(ctx)
}

// buildConverter prefers a configured Docling server and falls back to
// local HTML and DOCX extraction.
func buildConverter(cfg domain.ConverterSettings) driven.DocumentConverter {
	if cfg.IsConfigured() {
		return converter.NewChain(docling.New(docling.Config{BaseURL: cfg.URL}), local.New())
	}
	return converter.NewChain(local.New())
}

// openBackend builds the snapshot backend selected in settings.
func openBackend(ctx context.Context, cfg domain.StoreSettings) (driven.SnapshotBackend, error) {
	switch cfg.Backend {
	case domain.StoreBackendMemory:
		return memory.NewSnapshotStore(memory.WithMaxBytes(cfg.MaxBytes)), nil
	case domain.StoreBackendFile:
		s, err := jsonfile.NewStore(cfg.Path, jsonfile.WithMaxBytes(cfg.MaxBytes))
		if err != nil {
			return nil, fmt.Errorf("opening json store: %w", err)
		}
		return s, nil
	case domain.StoreBackendSQLite, "":
		s, err := sqlite.NewStore(cfg.Path, sqlite.WithMaxBytes(cfg.MaxBytes))
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		return s, nil
	case domain.StoreBackendPostgres:
		s, err := postgres.NewStore(ctx, cfg.DSN, postgres.WithMaxBytes(cfg.MaxBytes))
		if err != nil {
			return nil, fmt.Errorf("opening postgres store: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: store backend %q", domain.ErrUnsupportedType, cfg.Backend)
	}
}
