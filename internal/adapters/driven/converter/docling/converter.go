// Package docling provides a document converter backed by a Docling HTTP server.
//
// The server converts PDF, Office and HTML documents into markdown. It is
// started separately and listens on http://localhost:3126 by default.
package docling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
)

// Ensure Converter implements the interface.
var _ driven.DocumentConverter = (*Converter)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "http://localhost:3126"
	DefaultTimeout = 5 * time.Minute
)

var supportedExtensions = map[string]bool{
	".pdf":  true,
	".docx": true,
	".doc":  true,
	".pptx": true,
	".ppt":  true,
	".xlsx": true,
	".xls":  true,
	".html": true,
	".htm":  true,
}

// SupportedExtensions returns the file extensions the server accepts.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".doc", ".pptx", ".ppt", ".xlsx", ".xls", ".html", ".htm"}
}

// Config holds configuration for the Docling converter.
type Config struct {
	// BaseURL is the server address (default: http://localhost:3126).
	BaseURL string

	// Timeout bounds a whole conversion (default: 5m). Large PDFs are slow.
	Timeout time.Duration
}

// Converter calls a Docling server to produce markdown.
type Converter struct {
	client  *http.Client
	baseURL string
}

type convertResponse struct {
	Success  bool   `json:"success"`
	Markdown string `json:"markdown"`
	Metadata struct {
		Title      string `json:"title"`
		Pages      *int   `json:"pages"`
		SourceFile string `json:"source_file"`
		SourceURL  string `json:"source_url"`
	} `json:"metadata"`
	CharacterCount int    `json:"character_count"`
	WordCount      int    `json:"word_count"`
	Detail         string `json:"detail"`
}

// New creates a Docling converter.
func New(cfg Config) *Converter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Converter{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// Supports reports whether files with ext can be converted. Case-insensitive.
func (c *Converter) Supports(ext string) bool {
	return supportedExtensions[strings.ToLower(ext)]
}

// Convert uploads the file as multipart field "file".
func (c *Converter) Convert(ctx context.Context, filename string, r io.Reader) (*domain.ConvertedDocument, error) {
	name := filepath.Base(filename)
	if !c.Supports(filepath.Ext(name)) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, filepath.Ext(name))
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert", &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	doc, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if doc.SourceFile == "" {
		doc.SourceFile = name
	}
	if doc.Title == "" {
		doc.Title = strings.TrimSuffix(name, filepath.Ext(name))
	}
	return doc, nil
}

// ConvertURL asks the server to fetch and convert rawURL.
func (c *Converter) ConvertURL(ctx context.Context, rawURL string) (*domain.ConvertedDocument, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", domain.ErrInvalidInput, rawURL)
	}

	form := url.Values{"url": {rawURL}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/convert-url", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	doc, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if doc.SourceURL == "" {
		doc.SourceURL = rawURL
	}
	if doc.Title == "" {
		doc.Title = rawURL
	}
	return doc, nil
}

// Ping checks the /health endpoint.
func (c *Converter) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", http.NoBody)
	if err != nil {
		return fmt.Errorf("docling: failed to create ping request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: docling: ping failed: %w", domain.ErrConverterUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: docling: health returned status %d", domain.ErrConverterUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Converter) do(req *http.Request) (*domain.ConvertedDocument, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: docling: send request: %w", domain.ErrTransport, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: docling: read response: %w", domain.ErrTransport, err)
	}

	var out convertResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(raw))
		if decodeErr == nil && out.Detail != "" {
			msg = out.Detail
		}
		if resp.StatusCode == http.StatusBadRequest && strings.Contains(msg, "Unsupported file type") {
			return nil, fmt.Errorf("%w: docling: %s", domain.ErrUnsupportedType, msg)
		}
		return nil, fmt.Errorf("%w: docling error (status %d): %s", domain.ErrTransport, resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: docling: decode response: %w", domain.ErrTransport, decodeErr)
	}
	if !out.Success {
		return nil, fmt.Errorf("%w: docling: conversion reported failure", domain.ErrTransport)
	}

	doc := &domain.ConvertedDocument{
		Markdown:       out.Markdown,
		Title:          out.Metadata.Title,
		SourceFile:     out.Metadata.SourceFile,
		SourceURL:      out.Metadata.SourceURL,
		CharacterCount: out.CharacterCount,
		WordCount:      out.WordCount,
	}
	if out.Metadata.Pages != nil {
		doc.Pages = *out.Metadata.Pages
	}
	if doc.CharacterCount == 0 {
		doc.CharacterCount = len(doc.Markdown)
	}
	if doc.WordCount == 0 {
		doc.WordCount = len(strings.Fields(doc.Markdown))
	}
	return doc, nil
}
