package chunker

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
)

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := New()
		if p.chunkSize != DefaultChunkSize {
			t.Errorf("expected chunkSize %d, got %d", DefaultChunkSize, p.chunkSize)
		}
		if p.overlap != DefaultChunkOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultChunkOverlap, p.overlap)
		}
		if !p.respectHeadings || !p.respectParagraphs {
			t.Error("expected headings and paragraphs to be respected by default")
		}
	})

	t.Run("custom chunk size", func(t *testing.T) {
		p := New(WithChunkSize(500))
		if p.chunkSize != 500 {
			t.Errorf("expected chunkSize 500, got %d", p.chunkSize)
		}
	})

	t.Run("custom overlap", func(t *testing.T) {
		p := New(WithOverlap(100))
		if p.overlap != 100 {
			t.Errorf("expected overlap 100, got %d", p.overlap)
		}
	})

	t.Run("overlap exceeds chunk size", func(t *testing.T) {
		p := New(WithChunkSize(100), WithOverlap(150))
		if p.overlap >= p.chunkSize {
			t.Error("overlap should be reduced when it exceeds chunk size")
		}
	})

	t.Run("zero values ignored", func(t *testing.T) {
		p := New(WithChunkSize(0), WithOverlap(-1))
		if p.chunkSize != DefaultChunkSize {
			t.Errorf("expected default chunkSize, got %d", p.chunkSize)
		}
		if p.overlap != DefaultChunkOverlap {
			t.Errorf("expected default overlap, got %d", p.overlap)
		}
	})

	t.Run("options reflect configuration", func(t *testing.T) {
		p := New(WithChunkSize(300), WithOverlap(30), WithHeadings(false), WithParagraphs(false))
		assert.Equal(t, domain.ChunkOptions{
			MaxChunkSize:      300,
			ChunkOverlap:      30,
			RespectHeadings:   false,
			RespectParagraphs: false,
		}, p.Options())
	})
}

func TestProcessor_Name(t *testing.T) {
	p := New()
	if p.Name() != "chunker" {
		t.Errorf("expected name 'chunker', got '%s'", p.Name())
	}
}

func TestProcessor_Chunk_EmptyContent(t *testing.T) {
	p := New()

	for _, content := range []string{"", "   ", "\n\n\t\n"} {
		chunks := p.Chunk(content, "empty.md", p.Options())
		require.NotNil(t, chunks)
		assert.Empty(t, chunks)
	}
}

func TestProcessor_Chunk_SmallContent(t *testing.T) {
	p := New(WithChunkSize(100), WithOverlap(20))

	chunks := p.Chunk("This is a small piece of content.", "small.md", p.Options())

	require.Len(t, chunks, 1)
	assert.Equal(t, "This is a small piece of content.", chunks[0].Content)
	assert.Equal(t, "small.md", chunks[0].Metadata.Source)
	assert.Equal(t, 0, chunks[0].Metadata.ChunkIndex)
	assert.Equal(t, 1, chunks[0].Metadata.TotalChunks)
	assert.Empty(t, chunks[0].Metadata.Heading)
	assert.NotEmpty(t, chunks[0].ID)
}

func TestProcessor_Chunk_PacksParagraphs(t *testing.T) {
	p := New(WithChunkSize(50), WithOverlap(0))

	content := "First paragraph here.\n\nSecond one.\n\nThird paragraph is a bit longer than others."
	chunks := p.Chunk(content, "doc.md", p.Options())

	require.Len(t, chunks, 2)
	assert.Equal(t, "First paragraph here.\n\nSecond one.", chunks[0].Content)
	assert.Equal(t, "Third paragraph is a bit longer than others.", chunks[1].Content)
}

func TestProcessor_Chunk_ExactSizeParagraph(t *testing.T) {
	p := New(WithChunkSize(40), WithOverlap(0))

	exact := strings.Repeat("a", 40)
	chunks := p.Chunk("intro\n\n"+exact+"\n\ntail", "doc.md", p.Options())

	require.Len(t, chunks, 3)
	assert.Equal(t, "intro", chunks[0].Content)
	assert.Equal(t, exact, chunks[1].Content, "a paragraph equal to the limit is kept whole")
	assert.Equal(t, "tail", chunks[2].Content)
}

func TestProcessor_Chunk_OversizedParagraphSplitsSentences(t *testing.T) {
	p := New(WithChunkSize(60), WithOverlap(0))

	para := "The first sentence is here. The second sentence follows it! " +
		"Does a third one exist? Yes, and it ends the paragraph."
	chunks := p.Chunk("Lead in.\n\n"+para, "doc.md", p.Options())

	require.GreaterOrEqual(t, len(chunks), 3)
	assert.Equal(t, "Lead in.", chunks[0].Content, "buffer is flushed before splitting")
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 60, "chunk %q", c.Content)
	}
	assert.True(t, strings.HasPrefix(chunks[1].Content, "The first sentence is here."))
}

func TestProcessor_Chunk_UnsplittableSentence(t *testing.T) {
	p := New(WithChunkSize(20), WithOverlap(5))

	long := strings.Repeat("x", 55)
	chunks := p.Chunk("short.\n\n"+long+"\n\nend.", "doc.md", p.Options())

	var found bool
	for _, c := range chunks {
		if c.Content == long {
			found = true
		} else {
			assert.LessOrEqual(t, len(c.Content), 20)
		}
	}
	assert.True(t, found, "an unsplittable sentence is emitted whole")
}

func TestProcessor_Chunk_Overlap(t *testing.T) {
	p := New(WithChunkSize(30), WithOverlap(8))

	content := "aaaaaaaaaa bbbbbbbbbb.\n\ncccccccccc dddddddddd.\n\neeeeeeeeee."
	chunks := p.Chunk(content, "doc.md", p.Options())

	require.Len(t, chunks, 3)
	for i := 1; i < len(chunks); i++ {
		seed, _, _ := strings.Cut(chunks[i].Content, "\n\n")
		assert.NotEmpty(t, seed)
		assert.LessOrEqual(t, len(seed), 8)
		assert.True(t, strings.HasSuffix(chunks[i-1].Content, seed),
			"chunk %d should start with the tail of chunk %d: %q", i, i-1, chunks[i].Content)
	}
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 30)
	}
}

func TestProcessor_Chunk_OverlapIsRuneSafe(t *testing.T) {
	p := New(WithChunkSize(24), WithOverlap(7))

	content := "ééééééééééé.\n\nüüüüüüüüüüü.\n\nööööööööööö."
	chunks := p.Chunk(content, "doc.md", p.Options())

	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c.Content), "chunk %q is not valid UTF-8", c.Content)
	}
}

func TestProcessor_Chunk_HeadingTags(t *testing.T) {
	p := New(WithChunkSize(40), WithOverlap(0))

	content := "Preamble text.\n\n# Intro\n\nIntro body text goes here.\n\n" +
		"## Details ##\n\nDetail paragraph one is here.\n\nDetail paragraph two."
	chunks := p.Chunk(content, "doc.md", p.Options())

	require.Len(t, chunks, 5)
	assert.Equal(t, "Preamble text.\n\n# Intro", chunks[0].Content)
	assert.Empty(t, chunks[0].Metadata.Heading)
	assert.Equal(t, "Intro", chunks[1].Metadata.Heading)
	for _, c := range chunks[2:] {
		assert.Equal(t, "Details", c.Metadata.Heading)
	}
}

func TestProcessor_Chunk_HeadingsDisabled(t *testing.T) {
	p := New(WithChunkSize(40), WithOverlap(0), WithHeadings(false))

	chunks := p.Chunk("# Title\n\nBody text.\n\n## Next\n\nMore body.", "doc.md", p.Options())

	for _, c := range chunks {
		assert.Empty(t, c.Metadata.Heading)
	}
}

func TestProcessor_Chunk_ParagraphsDisabled(t *testing.T) {
	p := New(WithChunkSize(30), WithOverlap(0), WithParagraphs(false))

	chunks := p.Chunk("One sentence.\n\nTwo sentence.\n\nThree sentence here.", "doc.md", p.Options())

	require.GreaterOrEqual(t, len(chunks), 2)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c.Content), 30)
	}
}

func TestProcessor_Chunk_IndexAndTotal(t *testing.T) {
	p := New(WithChunkSize(100), WithOverlap(10))

	var sb strings.Builder
	for i := 0; i < 20; i++ {
		fmt.Fprintf(&sb, "Paragraph number %d has some text in it.\n\n", i)
	}
	chunks := p.Chunk(sb.String(), "doc.md", p.Options())

	require.Greater(t, len(chunks), 1)
	seen := make(map[string]bool)
	for i, c := range chunks {
		assert.Equal(t, i, c.Metadata.ChunkIndex)
		assert.Equal(t, len(chunks), c.Metadata.TotalChunks)
		assert.False(t, seen[c.ID], "duplicate chunk ID")
		seen[c.ID] = true
	}
}

// TestProcessor_Chunk_MarkdownDocument chunks a ~5000 character document with
// two headings at the default size.
func TestProcessor_Chunk_MarkdownDocument(t *testing.T) {
	p := New()

	para := strings.Repeat("Words flow into sentences. ", 12)
	var sb strings.Builder
	sb.WriteString("# Alpha\n\n")
	for i := 0; i < 8; i++ {
		sb.WriteString(para + "\n\n")
	}
	sb.WriteString("## Beta\n\n")
	for i := 0; i < 8; i++ {
		sb.WriteString(para + "\n\n")
	}
	content := sb.String()
	require.GreaterOrEqual(t, len(content), 4900)

	chunks := p.Chunk(content, "novel.md", domain.ChunkOptions{
		MaxChunkSize:      1000,
		ChunkOverlap:      200,
		RespectHeadings:   true,
		RespectParagraphs: true,
	})

	require.GreaterOrEqual(t, len(chunks), 5)
	assert.Equal(t, "Alpha", chunks[0].Metadata.Heading)
	assert.Equal(t, "Beta", chunks[len(chunks)-1].Metadata.Heading)

	seenBeta := false
	for _, c := range chunks {
		require.Contains(t, []string{"Alpha", "Beta"}, c.Metadata.Heading)
		if c.Metadata.Heading == "Beta" {
			seenBeta = true
		} else {
			assert.False(t, seenBeta, "Alpha chunk after a Beta chunk")
		}
		assert.LessOrEqual(t, len(c.Content), 1000)
	}
}

// TestProcessor_Chunk_SizeBound checks the size bound across inputs and limits.
func TestProcessor_Chunk_SizeBound(t *testing.T) {
	inputs := []string{
		strings.Repeat("Short sentence. ", 200),
		strings.Repeat("A paragraph with a few words.\n\n", 60),
		"# H\n\n" + strings.Repeat("word ", 400) + "\n\n## I\n\n" + strings.Repeat("Sentence here! ", 80),
		strings.Repeat("Mixed: one. Two? Three!\n", 50),
	}

	for _, size := range []int{25, 50, 100, 333, 1000} {
		for _, overlap := range []int{0, 5, size / 2} {
			p := New(WithChunkSize(size), WithOverlap(overlap))
			for _, in := range inputs {
				for _, c := range p.Chunk(in, "src", p.Options()) {
					if len(c.Content) <= size {
						continue
					}
					sentences := splitSentences(segment{text: c.Content})
					assert.Len(t, sentences, 1,
						"size %d overlap %d: oversized chunk is not a single sentence: %q", size, overlap, c.Content)
				}
			}
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := splitSentences(segment{text: `He said "stop." Then left! Pi is 3.14 exactly? Yes`, offset: 10})

	require.Len(t, got, 4)
	assert.Equal(t, `He said "stop."`, got[0].text)
	assert.Equal(t, 10, got[0].offset)
	assert.Equal(t, "Then left!", got[1].text)
	assert.Equal(t, "Pi is 3.14 exactly?", got[2].text)
	assert.Equal(t, "Yes", got[3].text)
}

func TestHeadingAt(t *testing.T) {
	headings := []heading{{text: "A", offset: 0}, {text: "B", offset: 50}}

	assert.Equal(t, "A", headingAt(headings, 0))
	assert.Equal(t, "A", headingAt(headings, 49))
	assert.Equal(t, "B", headingAt(headings, 50))
	assert.Equal(t, "B", headingAt(headings, 500))
	assert.Empty(t, headingAt([]heading{{text: "A", offset: 10}}, 5))
	assert.Empty(t, headingAt(nil, 5))
}

func TestScanHeadings(t *testing.T) {
	content := "# One\ntext\n###### Six ###\n####### seven is not a heading\n#NoSpace"
	hs := scanHeadings(content)

	require.Len(t, hs, 2)
	assert.Equal(t, "One", hs[0].text)
	assert.Equal(t, 0, hs[0].offset)
	assert.Equal(t, "Six", hs[1].text)
	assert.Equal(t, strings.Index(content, "######"), hs[1].offset)
}
