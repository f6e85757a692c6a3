package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/logger"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	var req RetrieveRequest
	if !decode(w, r, &req) {
		return
	}

	opts := domain.RetrieveOptions{
		MaxResults: firstPositive(req.MaxResults, s.cfg.Retrieval.MaxResults),
		MinScore:   req.MinScore,
		MaxTokens:  firstPositive(req.MaxTokens, s.cfg.Retrieval.MaxTokens),
	}
	if opts.MinScore == nil {
		opts.MinScore = s.cfg.Retrieval.MinScore
	}
	for _, name := range req.Collections {
		c, err := domain.ParseCollection(name)
		if err != nil {
			writeError(w, err)
			return
		}
		opts.Collections = append(opts.Collections, c)
	}

	result, err := s.cfg.Retriever.Retrieve(r.Context(), req.Query, opts, req.Model)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if !decode(w, r, &req) {
		return
	}

	collection := domain.CollectionReferences
	if req.Collection != "" {
		c, err := domain.ParseCollection(req.Collection)
		if err != nil {
			writeError(w, err)
			return
		}
		collection = c
	}

	var result domain.IndexingResult
	switch {
	case req.Content != "":
		result = s.cfg.Indexer.IndexDocument(r.Context(), domain.IndexRequest{
			Content:        req.Content,
			Source:         req.Source,
			Collection:     collection,
			EmbeddingModel: req.Model,
			Metadata:       req.Metadata,
		}, nil)
	case req.Path != "":
		result = s.cfg.Indexer.IndexFile(r.Context(), req.Path, collection, req.Model, nil)
	case req.URL != "":
		result = s.cfg.Indexer.IndexURL(r.Context(), req.URL, collection, req.Model, nil)
	default:
		writeError(w, fmt.Errorf("%w: one of content, path or url is required", domain.ErrInvalidInput))
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionParam(w, r)
	if !ok {
		return
	}
	stats, err := s.cfg.Store.Stats(r.Context(), collection)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionParam(w, r)
	if !ok {
		return
	}
	if err := s.cfg.Store.DeleteByID(r.Context(), collection, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	collection, ok := collectionParam(w, r)
	if !ok {
		return
	}
	source := r.URL.Query().Get("source")
	if strings.TrimSpace(source) == "" {
		writeError(w, fmt.Errorf("%w: source query parameter is required", domain.ErrInvalidInput))
		return
	}
	n, err := s.cfg.Store.DeleteBySource(r.Context(), collection, source)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, DeleteSourceResponse{Source: source, Deleted: n})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	data, err := s.cfg.Store.ExportSnapshot(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="vectors.json"`)
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeBodyError(w, err)
		return
	}
	if err := s.cfg.Store.ImportSnapshot(r.Context(), data); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSaveSummary(w http.ResponseWriter, r *http.Request) {
	var req SaveSummaryRequest
	if !decode(w, r, &req) {
		return
	}

	draft := domain.SummaryDraft{Summary: req.Summary, KeyPoints: req.KeyPoints, Decisions: req.Decisions}
	fallback := false
	if len(req.Messages) > 0 {
		outcome := s.cfg.Memory.Summarize(r.Context(), req.Messages)
		draft = outcome.Draft
		fallback = outcome.IsFallback()
		if outcome.Err != nil {
			logger.Debug("summary fell back to heuristic: %v", outcome.Err)
		}
	}

	result := s.cfg.Memory.Save(r.Context(), req.DocumentPath, draft)
	result.Fallback = result.Fallback || fallback
	writeMemoryResult(w, result, http.StatusCreated)
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	var req RecallRequest
	if !decode(w, r, &req) {
		return
	}
	summaries, err := s.cfg.Memory.RetrieveRelevant(r.Context(), req.DocumentPath, req.Query, req.MaxResults)
	if err != nil {
		writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []domain.RecalledSummary{}
	}
	writeJSON(w, http.StatusOK, RecallResponse{
		Summaries: summaries,
		Context:   domain.FormatMemoryContext(summaries),
	})
}

func (s *Server) handleAutoSave(w http.ResponseWriter, r *http.Request) {
	var req AutoSaveRequest
	if !decode(w, r, &req) {
		return
	}
	result := s.cfg.Memory.AutoSave(r.Context(), req.DocumentPath, req.Messages,
		firstPositive(req.Threshold, s.cfg.AutoSaveThreshold),
		firstPositive(req.MinUserMessages, s.cfg.MinUserMessages))
	writeJSON(w, http.StatusOK, AutoSaveResponse{Saved: result != nil && result.Success, Result: result})
}

func (s *Server) handleSavePreference(w http.ResponseWriter, r *http.Request) {
	var req PreferenceRequest
	if !decode(w, r, &req) {
		return
	}
	result := s.cfg.Memory.SavePreference(r.Context(), req.Content, req.DocumentPath, req.Category)
	writeMemoryResult(w, result, http.StatusCreated)
}

func (s *Server) handleSearchPreferences(w http.ResponseWriter, r *http.Request) {
	var req PreferenceSearchRequest
	if !decode(w, r, &req) {
		return
	}
	prefs, err := s.cfg.Memory.RetrievePreferences(r.Context(), req.Query, req.DocumentPath, req.MaxResults)
	if err != nil {
		writeError(w, err)
		return
	}
	if prefs == nil {
		prefs = []domain.RecalledPreference{}
	}
	writeJSON(w, http.StatusOK, prefs)
}

func collectionParam(w http.ResponseWriter, r *http.Request) (domain.Collection, bool) {
	c, err := domain.ParseCollection(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, err)
		return "", false
	}
	return c, true
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeBodyError(w, err)
		return false
	}
	return true
}

func writeBodyError(w http.ResponseWriter, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeJSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{Error: err.Error()})
		return
	}
	writeError(w, fmt.Errorf("%w: decode request: %v", domain.ErrInvalidInput, err))
}

// writeMemoryResult reports a failed mutation with the status its message implies.
func writeMemoryResult(w http.ResponseWriter, result domain.MemoryResult, okStatus int) {
	if result.Success {
		writeJSON(w, okStatus, result)
		return
	}
	status := http.StatusUnprocessableEntity
	if strings.Contains(result.Error, domain.ErrEmbeddingUnavailable.Error()) {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed: %v", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

func firstPositive(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}
