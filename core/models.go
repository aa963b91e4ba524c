package core

import (
	"encoding/hex"
	"math"

	"github.com/go-crypt/x/blake2b"
)

// ContentHash returns a hex encoded 256-bit BLAKE2b digest of the content.
// It is used for change detection, not for security.
func ContentHash(content string) string {
	h, _ := blake2b.New(32, nil)
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

// ShortHash returns a hex digest of s truncated to n characters.
// The digest size is chosen so that n characters are always available,
// which keeps identifiers derived from it stable across runs.
func ShortHash(s string, n int) string {
	if n <= 0 {
		return ""
	}
	size := (n + 1) / 2
	if size > 64 {
		size = 64
		n = 128
	}
	h, _ := blake2b.New(size, nil)
	h.Write([]byte(s))
	return hex.EncodeToString(h.Sum(nil))[:n]
}

// ChunkDocument is a single unit handed to the index.
// The ID is reproducible from (source, url, chunk index) so re-ingesting
// unchanged content upserts identical IDs.
type ChunkDocument struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Source string `json:"source"`
	URL    string `json:"url"`
}

// DiscoveredItem is produced by a source's discovery phase.
type DiscoveredItem struct {
	Location     string // URL or filename
	ChangeSignal string // remote hash or last-modified date, if the source exposes one
	Label        string // human readable name, optional
}

func (d DiscoveredItem) String() string {
	return d.Location
}

// ShardRecord is one line of a shard file.
type ShardRecord struct {
	URL          string `json:"url"`
	Hash         string `json:"hash"`
	Text         string `json:"text"`
	LastModified string `json:"lastmod,omitempty"`
}

// QueryResult is a single hit returned by an index query.
type QueryResult struct {
	Text   string  `json:"text"`
	Source string  `json:"source,omitempty"`
	URL    string  `json:"url,omitempty"`
	Score  float32 `json:"score"`
}

// Stats describes the size of an index collection.
type Stats struct {
	Count int    `json:"count"`
	Name  string `json:"name"`
}

// NormalizeVector normalizes a vector to unit length.
// A zero vector is returned as a zero vector of the same length.
func NormalizeVector(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float32
	for _, val := range v {
		magnitude += val * val
	}
	magnitude = float32(math.Sqrt(float64(magnitude)))

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}
