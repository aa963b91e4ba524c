// Package chunk splits long text into overlapping, sentence-aware segments
// and derives stable chunk document IDs from them.
//
// Chunk is a pure function: identical input always yields identical
// boundaries, which keeps IDs produced by DeterministicID stable across runs.
package chunk

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docingest/core"
)

const (
	DefaultSize      = 800
	DefaultOverlap   = 100
	DefaultMinLength = 50

	// sentenceWindow is how far back from the window end a sentence
	// boundary is searched for.
	sentenceWindow = 100
)

var sentenceEnd = regexp.MustCompile(`[.!?]\s`)

type options struct {
	size      int
	overlap   int
	minLength int
}

// Option configures Chunk.
type Option func(*options)

// WithSize sets the maximum chunk length in bytes. Default 800.
func WithSize(n int) Option {
	return func(o *options) {
		o.size = n
	}
}

// WithOverlap sets how many bytes consecutive chunks share. Default 100.
// Values outside [0, size) are treated as 0. When a cut lands within
// overlap bytes of the window start, the next window starts at the cut.
func WithOverlap(n int) Option {
	return func(o *options) {
		o.overlap = n
	}
}

// WithMinLength drops chunks shorter than n bytes after trimming. Default 50.
func WithMinLength(n int) Option {
	return func(o *options) {
		o.minLength = n
	}
}

func newOptions(opts []Option) options {
	o := options{size: DefaultSize, overlap: DefaultOverlap, minLength: DefaultMinLength}
	for _, opt := range opts {
		opt(&o)
	}
	if o.size < 1 {
		o.size = DefaultSize
	}
	// The window must always advance
	if o.overlap < 0 || o.overlap >= o.size {
		o.overlap = 0
	}
	if o.minLength < 0 {
		o.minLength = 0
	}
	return o
}

// Chunk splits text into segments of at most size bytes. A window is cut
// after the first sentence end (one of .!? followed by whitespace) within
// its last 100 bytes, else at the last space past start+overlap, else at the
// size boundary. The next window starts overlap bytes before the cut.
// Chunks shorter than minLength are dropped.
func Chunk(text string, opts ...Option) []string {
	o := newOptions(opts)

	if len(text) <= o.size {
		if t := strings.TrimSpace(text); len(t) >= o.minLength && t != "" {
			return []string{t}
		}
		return nil
	}

	var chunks []string
	for _, b := range boundaries(text, o) {
		if c := strings.TrimSpace(text[b[0]:b[1]]); c != "" && len(c) >= o.minLength {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// boundaries returns the [start, end) byte range of every window. Each
// window starts at or before the end of the previous one.
func boundaries(text string, o options) [][2]int {
	var spans [][2]int
	start := 0
	for start < len(text) {
		end := start + o.size
		if end < len(text) {
			end = runeFloor(text, end)
			if end <= start {
				end = runeCeil(text, start+1)
			}
			searchStart := runeCeil(text, max(end-sentenceWindow, start))
			if loc := sentenceEnd.FindStringIndex(text[searchStart:end]); loc != nil {
				end = searchStart + loc[1]
			} else if sp := strings.LastIndexByte(text[:min(end+1, len(text))], ' '); sp > start+o.overlap {
				end = sp
			}
		} else {
			end = len(text)
		}

		spans = append(spans, [2]int{start, end})
		if end >= len(text) {
			break
		}

		next := end - o.overlap
		if next <= start {
			// A cut close to start would otherwise stall the window; never
			// skip past the cut.
			next = min(end, start+o.size-o.overlap)
		}
		start = runeCeil(text, next)
	}
	return spans
}

// runeFloor moves i back to the start of the rune containing it.
func runeFloor(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// runeCeil moves i forward to the next rune start.
func runeCeil(s string, i int) int {
	for i < len(s) && !utf8.RuneStart(s[i]) {
		i++
	}
	return i
}

// DeterministicID returns prefix_<hash(url)>_chunk_<index>.
func DeterministicID(prefix, url string, index int) string {
	return prefix + "_" + core.ShortHash(url, 16) + "_chunk_" + strconv.Itoa(index)
}

// DocSpec describes where the chunks of one document come from.
type DocSpec struct {
	IDPrefix string
	URL      string
	Source   string
}

// Documents chunks text and wraps every chunk in a ChunkDocument.
func Documents(text string, spec DocSpec, opts ...Option) []core.ChunkDocument {
	chunks := Chunk(text, opts...)
	docs := make([]core.ChunkDocument, len(chunks))
	for i, c := range chunks {
		docs[i] = core.ChunkDocument{
			ID:     DeterministicID(spec.IDPrefix, spec.URL, i),
			Text:   c,
			Source: spec.Source,
			URL:    spec.URL,
		}
	}
	return docs
}
