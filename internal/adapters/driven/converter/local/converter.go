// Package local converts HTML and DOCX documents without an external server.
//
// Output is plain text with HTML headings kept as markdown headings, so the
// chunker can still split on sections. Quality is below a Docling server;
// it is used when none is configured or reachable.
package local

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
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

const (
	// DefaultTimeout bounds a URL fetch.
	DefaultTimeout = 30 * time.Second

	// MaxDocumentBytes caps how much of a file or page is read.
	MaxDocumentBytes = 32 << 20

	userAgent = "sanctum/1.0 (+reference indexer)"
)

// Converter handles .html, .htm and .docx files and fetches HTML pages.
type Converter struct {
	client *http.Client
}

// Option configures a Converter.
type Option func(*Converter)

// WithHTTPClient replaces the client used for URL fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(conv *Converter) {
		if c != nil {
			conv.client = c
		}
	}
}

// New creates a local converter.
func New(opts ...Option) *Converter {
	c := &Converter{client: &http.Client{Timeout: DefaultTimeout}}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Supports reports whether ext is HTML or DOCX. Case-insensitive.
func (c *Converter) Supports(ext string) bool {
	switch strings.ToLower(ext) {
	case ".html", ".htm", ".docx":
		return true
	}
	return false
}

// Convert extracts text from the named document read from r.
func (c *Converter) Convert(_ context.Context, filename string, r io.Reader) (*domain.ConvertedDocument, error) {
	name := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(name))
	if !c.Supports(ext) {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, ext)
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}

	var text, title string
	if ext == ".docx" {
		text, title, err = convertDOCX(data)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrParse, name, err)
		}
	} else {
		text, title = convertHTML(string(data))
	}
	if title == "" {
		title = titleFromFilename(name)
	}
	return newDocument(text, title, name, ""), nil
}

// ConvertURL fetches rawURL and converts it when the response is HTML or plain text.
func (c *Converter) ConvertURL(ctx context.Context, rawURL string) (*domain.ConvertedDocument, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid url %q", domain.ErrInvalidInput, rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.8")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", domain.ErrTransport, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: fetch %s: status %d", domain.ErrTransport, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxDocumentBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", domain.ErrTransport, rawURL, err)
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	var text, title string
	switch {
	case mediaType == "text/html" || mediaType == "application/xhtml+xml":
		text, title = convertHTML(string(body))
	case mediaType == "text/plain" || mediaType == "text/markdown":
		text = strings.TrimSpace(string(bytes.ToValidUTF8(body, nil)))
	default:
		return nil, fmt.Errorf("%w: %s returned %q", domain.ErrUnsupportedType, rawURL, mediaType)
	}
	if title == "" {
		title = rawURL
	}
	return newDocument(text, title, "", rawURL), nil
}

// Ping always succeeds: nothing external is needed.
func (c *Converter) Ping(context.Context) error {
	return nil
}

func newDocument(text, title, file, sourceURL string) *domain.ConvertedDocument {
	return &domain.ConvertedDocument{
		Markdown:       text,
		Title:          title,
		SourceFile:     file,
		SourceURL:      sourceURL,
		CharacterCount: len(text),
		WordCount:      len(strings.Fields(text)),
	}
}

// titleFromFilename turns "battle-of_hastings.html" into "battle of hastings".
func titleFromFilename(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ReplaceAll(name, "_", " ")
	return strings.ReplaceAll(name, "-", " ")
}
