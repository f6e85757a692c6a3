// Package httpapi exposes the RAG services as a small JSON REST API.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driving"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/logger"
)

// ErrMissingService is returned by New when a required service is nil.
var ErrMissingService = errors.New("httpapi: store, retriever, indexer and memory services are required")

// maxBodyBytes bounds request bodies. Imports carry whole snapshots.
const maxBodyBytes = 256 << 20

// Config configures a Server.
type Config struct {
	Store     driving.VectorStore
	Retriever driving.RetrieverService
	Indexer   driving.IndexerService
	Memory    driving.SessionMemoryService

	// Retrieval fills fields a retrieve request leaves unset.
	Retrieval domain.RetrieveOptions

	// AutoSaveThreshold and MinUserMessages are the autosave defaults.
	AutoSaveThreshold int
	MinUserMessages   int

	// AllowedOrigins lists CORS origins. Empty allows any origin.
	AllowedOrigins []string
}

// Server serves the REST API.
type Server struct {
	cfg Config
}

// New creates a server.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil || cfg.Retriever == nil || cfg.Indexer == nil || cfg.Memory == nil {
		return nil, ErrMissingService
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Server{cfg: cfg}, nil
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/retrieve", s.handleRetrieve)
		r.Post("/index", s.handleIndex)

		r.Get("/collections/{name}/stats", s.handleStats)
		r.Delete("/collections/{name}/documents/{id}", s.handleDeleteDocument)
		r.Delete("/collections/{name}/sources", s.handleDeleteSource)

		r.Get("/export", s.handleExport)
		r.Post("/import", s.handleImport)

		r.Post("/memory/summaries", s.handleSaveSummary)
		r.Post("/memory/recall", s.handleRecall)
		r.Post("/memory/autosave", s.handleAutoSave)

		r.Post("/preferences", s.handleSavePreference)
		r.Post("/preferences/search", s.handleSearchPreferences)
	})

	return r
}

// Run listens on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	logger.Info("REST API listening on %s", addr)
	err := httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return fmt.Errorf("serve: %w", err)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrUnknownCollection),
		errors.Is(err, domain.ErrUnsupportedType),
		errors.Is(err, domain.ErrParse):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrRequiresOriginalSource):
		return http.StatusConflict
	case errors.Is(err, domain.ErrEmbeddingUnavailable),
		errors.Is(err, domain.ErrLLMUnavailable),
		errors.Is(err, domain.ErrConverterUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrTransport):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrStorageQuota):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}
