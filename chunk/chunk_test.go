package chunk

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sentences(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "Sentence number %d explains one more detail of the system. ", i)
	}
	return b.String()
}

func TestChunk_ShortText(t *testing.T) {
	assert.Empty(t, Chunk("short text"))

	sixty := strings.Repeat("a", 60)
	assert.Equal(t, []string{sixty}, Chunk(sixty))
	assert.Equal(t, []string{sixty}, Chunk("  "+sixty+"\n"))
}

func TestChunk_Whitespace(t *testing.T) {
	assert.Empty(t, Chunk(strings.Repeat(" \n\t", 500)))
	assert.Empty(t, Chunk(""))
}

func TestChunk_SizeBound(t *testing.T) {
	text := sentences(200)
	chunks := Chunk(text)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), DefaultSize)
		assert.GreaterOrEqual(t, len(c), DefaultMinLength)
	}
}

func TestChunk_CutsAtSentenceBoundary(t *testing.T) {
	chunks := Chunk(sentences(100))
	require.Greater(t, len(chunks), 1)
	// All but the last chunk end a sentence
	for _, c := range chunks[:len(chunks)-1] {
		assert.True(t, strings.HasSuffix(c, "."), "chunk should end at a sentence: %q", c[len(c)-20:])
	}
}

func TestChunk_FallsBackToSpace(t *testing.T) {
	words := strings.Repeat("word ", 400)
	chunks := Chunk(words)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.True(t, strings.HasSuffix(c, "word"), "chunk should not split a word: %q", c)
	}
}

func TestChunk_NoWhitespaceTerminates(t *testing.T) {
	text := strings.Repeat("x", 10000)
	chunks := Chunk(text)

	bound := len(text)/(DefaultSize-DefaultOverlap) + 2
	assert.LessOrEqual(t, len(chunks), bound)
	assert.Equal(t, strings.Repeat("x", DefaultSize), chunks[0])
}

func TestChunk_PathologicalOptionsTerminate(t *testing.T) {
	text := strings.Repeat("ab. ", 300)
	for _, opts := range [][]Option{
		{WithSize(10), WithOverlap(9), WithMinLength(0)},
		{WithSize(5), WithOverlap(50)},
		{WithSize(0), WithOverlap(-1), WithMinLength(-3)},
		{WithSize(1), WithOverlap(0), WithMinLength(1)},
	} {
		chunks := Chunk(text, opts...)
		assert.LessOrEqual(t, len(chunks), len(text))
	}
}

func TestChunk_Deterministic(t *testing.T) {
	text := sentences(150)
	assert.Equal(t, Chunk(text), Chunk(text))
}

// Consecutive windows must overlap or touch so that no text is lost.
func TestChunk_Coverage(t *testing.T) {
	inputs := []struct {
		name string
		text string
		opts []Option
	}{
		{name: "sentences", text: sentences(120)},
		{name: "repeated words", text: strings.Repeat("word ", 1000)},
		{name: "no whitespace", text: strings.Repeat("z", 5000)},
		{name: "repeated sentences", text: strings.Repeat("Mixed content! With questions? And more text here ", 80)},
		{name: "early cut with wide overlap", text: sentences(40), opts: []Option{WithSize(141), WithOverlap(58)}},
		{name: "overlap near size", text: strings.Repeat("a. bb cc ddd. ", 200), opts: []Option{WithSize(120), WithOverlap(110)}},
	}

	for _, in := range inputs {
		t.Run(in.name, func(t *testing.T) {
			spans := boundaries(in.text, newOptions(in.opts))
			require.NotEmpty(t, spans)
			assert.Equal(t, 0, spans[0][0])
			for i, s := range spans {
				assert.Less(t, s[0], s[1], "empty window %d", i)
				if i > 0 {
					assert.LessOrEqual(t, s[0], spans[i-1][1], "gap before window %d", i)
					assert.Greater(t, s[0], spans[i-1][0], "window %d does not advance", i)
				}
			}
			assert.Equal(t, len(in.text), spans[len(spans)-1][1], "tail not covered")
		})
	}
}

func TestChunk_ChunksComeFromWindows(t *testing.T) {
	text := sentences(120)
	o := newOptions(nil)
	spans := boundaries(text, o)
	chunks := Chunk(text)
	require.Len(t, chunks, len(spans))
	for i, s := range spans {
		assert.Equal(t, strings.TrimSpace(text[s[0]:s[1]]), chunks[i])
	}
}

func TestChunk_MultiByteSafe(t *testing.T) {
	text := strings.Repeat("日本語のテキスト", 200)
	chunks := Chunk(text)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.True(t, utf8.ValidString(c))
		assert.LessOrEqual(t, len(c), DefaultSize)
	}
}

func TestChunk_CustomOptions(t *testing.T) {
	text := strings.Repeat("abcdefghij ", 30)
	chunks := Chunk(text, WithSize(100), WithOverlap(20), WithMinLength(10))
	require.NotEmpty(t, chunks)
	for _, c := range chunks {
		assert.LessOrEqual(t, len(c), 100)
	}
}

func TestDeterministicID(t *testing.T) {
	id := DeterministicID("sitemap", "https://example.com/docs", 3)
	assert.Equal(t, id, DeterministicID("sitemap", "https://example.com/docs", 3))
	assert.True(t, strings.HasPrefix(id, "sitemap_"))
	assert.True(t, strings.HasSuffix(id, "_chunk_3"))
	assert.Len(t, id, len("sitemap_")+16+len("_chunk_3"))

	assert.NotEqual(t, id, DeterministicID("sitemap", "https://example.com/other", 3))
	assert.NotEqual(t, id, DeterministicID("url", "https://example.com/docs", 3))
	assert.NotEqual(t, id, DeterministicID("sitemap", "https://example.com/docs", 4))
}

func TestDocuments(t *testing.T) {
	text := sentences(60)
	spec := DocSpec{IDPrefix: "url", URL: "https://example.com/a", Source: "Example"}

	docs := Documents(text, spec)
	chunks := Chunk(text)
	require.Len(t, docs, len(chunks))
	for i, d := range docs {
		assert.Equal(t, DeterministicID("url", spec.URL, i), d.ID)
		assert.Equal(t, chunks[i], d.Text)
		assert.Equal(t, "Example", d.Source)
		assert.Equal(t, spec.URL, d.URL)
	}

	// Re-chunking identical text yields identical IDs
	assert.Equal(t, docs, Documents(text, spec))
	assert.Empty(t, Documents("tiny", spec))
}
