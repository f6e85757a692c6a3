// Package chunker provides a markdown-aware text chunker.
//
// Content is split into paragraphs on blank lines and packed greedily into
// chunks of at most MaxChunkSize characters. Paragraphs longer than the limit
// are split on sentence-ending punctuation. Each chunk is tagged with the
// nearest preceding markdown heading, and the tail of every flushed chunk is
// carried into the next one as overlap.
//
// Lengths are measured in bytes. Overlap cuts never split a UTF-8 sequence.
package chunker

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 1000

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 200

const (
	paragraphSep = "\n\n"
	sentenceSep  = " "
)

var (
	headingPattern   = regexp.MustCompile(`(?m)^#{1,6}[ \t]+(.+?)[ \t]*#*[ \t]*$`)
	paragraphPattern = regexp.MustCompile(`\n[ \t\r]*\n`)
)

// Processor splits document content into heading-aware chunks.
type Processor struct {
	chunkSize         int
	overlap           int
	respectHeadings   bool
	respectParagraphs bool
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithHeadings enables or disables heading tags.
func WithHeadings(enabled bool) Option {
	return func(p *Processor) {
		p.respectHeadings = enabled
	}
}

// WithParagraphs enables or disables blank-line paragraph splitting.
func WithParagraphs(enabled bool) Option {
	return func(p *Processor) {
		p.respectParagraphs = enabled
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize:         DefaultChunkSize,
		overlap:           DefaultChunkOverlap,
		respectHeadings:   true,
		respectParagraphs: true,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Options returns the processor's configured options.
func (p *Processor) Options() domain.ChunkOptions {
	return domain.ChunkOptions{
		MaxChunkSize:      p.chunkSize,
		ChunkOverlap:      p.overlap,
		RespectHeadings:   p.respectHeadings,
		RespectParagraphs: p.respectParagraphs,
	}
}

// Chunk splits content into chunks tagged with source.
// Zero or negative sizes in opts fall back to the processor's configuration.
func (p *Processor) Chunk(content, source string, opts domain.ChunkOptions) []domain.Chunk {
	if strings.TrimSpace(content) == "" {
		return []domain.Chunk{}
	}
	opts = p.normalise(opts)

	var headings []heading
	if opts.RespectHeadings {
		headings = scanHeadings(content)
	}

	b := &builder{
		opts:     opts,
		source:   source,
		headings: headings,
	}

	for _, para := range splitParagraphs(content, opts.RespectParagraphs) {
		if len(para.text) <= opts.MaxChunkSize {
			b.add(para, paragraphSep)
			continue
		}
		b.flush()
		for _, sentence := range splitSentences(para) {
			b.add(sentence, sentenceSep)
		}
	}
	b.flush()

	for i := range b.chunks {
		b.chunks[i].Metadata.TotalChunks = len(b.chunks)
	}
	return b.chunks
}

func (p *Processor) normalise(opts domain.ChunkOptions) domain.ChunkOptions {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = p.chunkSize
	}
	if opts.ChunkOverlap < 0 {
		opts.ChunkOverlap = 0
	}
	if opts.ChunkOverlap >= opts.MaxChunkSize {
		opts.ChunkOverlap = opts.MaxChunkSize / 4
	}
	return opts
}

// heading is a markdown heading and its byte offset in the document.
type heading struct {
	text   string
	offset int
}

// segment is a piece of the document and its byte offset.
type segment struct {
	text   string
	offset int
}

func scanHeadings(content string) []heading {
	matches := headingPattern.FindAllStringSubmatchIndex(content, -1)
	headings := make([]heading, 0, len(matches))
	for _, m := range matches {
		headings = append(headings, heading{
			text:   strings.TrimSpace(content[m[2]:m[3]]),
			offset: m[0],
		})
	}
	return headings
}

// headingAt returns the heading with the greatest offset <= offset.
func headingAt(headings []heading, offset int) string {
	i := sort.Search(len(headings), func(i int) bool {
		return headings[i].offset > offset
	})
	if i == 0 {
		return ""
	}
	return headings[i-1].text
}

func splitParagraphs(content string, respectParagraphs bool) []segment {
	if !respectParagraphs {
		return []segment{trimSegment(content, 0)}
	}

	var paras []segment
	start := 0
	for _, loc := range paragraphPattern.FindAllStringIndex(content, -1) {
		if seg := trimSegment(content[start:loc[0]], start); seg.text != "" {
			paras = append(paras, seg)
		}
		start = loc[1]
	}
	if seg := trimSegment(content[start:], start); seg.text != "" {
		paras = append(paras, seg)
	}
	return paras
}

// splitSentences cuts a paragraph after runs of . ! or ? that are followed
// by whitespace or the end of the text. Closing quotes and brackets stay
// with their sentence.
func splitSentences(para segment) []segment {
	text := para.text
	var sentences []segment
	start := 0
	for i := 0; i < len(text); i++ {
		if !isTerminator(text[i]) {
			continue
		}
		end := i + 1
		for end < len(text) && (isTerminator(text[end]) || isCloser(text[end])) {
			end++
		}
		if end < len(text) && !isSpace(text[end]) {
			i = end - 1
			continue
		}
		if seg := trimSegment(text[start:end], para.offset+start); seg.text != "" {
			sentences = append(sentences, seg)
		}
		start = end
		i = end - 1
	}
	if seg := trimSegment(text[start:], para.offset+start); seg.text != "" {
		sentences = append(sentences, seg)
	}
	return sentences
}

func trimSegment(s string, offset int) segment {
	trimmed := strings.TrimLeft(s, " \t\r\n")
	offset += len(s) - len(trimmed)
	return segment{text: strings.TrimRight(trimmed, " \t\r\n"), offset: offset}
}

func isTerminator(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}

func isCloser(c byte) bool {
	return c == '"' || c == '\'' || c == ')' || c == ']'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// builder accumulates pieces into chunks.
type builder struct {
	opts     domain.ChunkOptions
	source   string
	headings []heading
	chunks   []domain.Chunk

	buf strings.Builder
	// start is the offset of the first piece added since the last flush.
	start int
	// fresh is true once the buffer holds more than the overlap seed.
	fresh bool
}

// add appends a piece, flushing first if it would overflow the buffer.
// A piece that is alone longer than the limit becomes its own chunk.
func (b *builder) add(piece segment, sep string) {
	if b.buf.Len() > 0 && b.buf.Len()+len(sep)+len(piece.text) > b.opts.MaxChunkSize {
		if b.fresh {
			b.flush()
		}
		b.trimSeed(b.opts.MaxChunkSize - len(sep) - len(piece.text))
	}

	if b.buf.Len() > 0 {
		b.buf.WriteString(sep)
	}
	b.buf.WriteString(piece.text)

	if !b.fresh {
		b.start = piece.offset
		b.fresh = true
	}
}

// flush emits the buffer as a chunk and seeds the next buffer with overlap.
func (b *builder) flush() {
	if !b.fresh {
		return
	}
	text := b.buf.String()
	content := strings.TrimSpace(text)
	if content != "" {
		b.chunks = append(b.chunks, domain.Chunk{
			ID:      uuid.New().String(),
			Content: content,
			Metadata: domain.ChunkMetadata{
				Source:     b.source,
				Heading:    headingAt(b.headings, b.start),
				ChunkIndex: len(b.chunks),
			},
		})
	}

	b.buf.Reset()
	b.fresh = false
	if b.opts.ChunkOverlap > 0 && len(text) >= b.opts.ChunkOverlap {
		b.buf.WriteString(tail(text, b.opts.ChunkOverlap))
	}
}

// trimSeed shrinks an overlap-only buffer to at most n bytes.
func (b *builder) trimSeed(n int) {
	if b.fresh || b.buf.Len() <= n {
		return
	}
	seed := ""
	if n > 0 {
		seed = tail(b.buf.String(), n)
	}
	b.buf.Reset()
	b.buf.WriteString(seed)
}

// tail returns at most the last n bytes of s, starting on a rune boundary.
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	start := len(s) - n
	for start < len(s) && !utf8.RuneStart(s[start]) {
		start++
	}
	return s[start:]
}
