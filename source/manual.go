package source

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/fetch"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// ManualSource turns each hand-written note into exactly one document.
// Notes are never cached.
type ManualSource struct {
	docs  map[string]core.ChunkDocument
	items []core.DiscoveredItem
}

// ManualID returns manual_<topic slug>_<index>.
func ManualID(topic string, index int) string {
	slug := whitespaceRun.ReplaceAllString(strings.ToLower(topic), "_")
	return "manual_" + slug + "_" + strconv.Itoa(index)
}

// NewManualSource creates a manual source. The notes are validated.
func NewManualSource(notes ManualConfig) (*ManualSource, error) {
	if err := notes.Validate(); err != nil {
		return nil, err
	}
	s := &ManualSource{docs: make(map[string]core.ChunkDocument, len(notes))}
	for i, n := range notes {
		id := ManualID(n.Topic, i)
		s.docs[id] = core.ChunkDocument{
			ID:     id,
			Text:   n.Topic + ": " + n.Text,
			Source: "Manual doc: " + n.Topic,
			URL:    n.URL,
		}
		s.items = append(s.items, core.DiscoveredItem{Location: id, Label: n.Topic})
	}
	return s, nil
}

// Name returns "manual".
func (s *ManualSource) Name() string {
	return string(KindManual)
}

// Limits disables pacing since nothing is fetched.
func (s *ManualSource) Limits() fetch.LimitOptions {
	return fetch.LimitOptions{Concurrency: 1, Delay: -1}
}

// Discover returns one item per note.
func (s *ManualSource) Discover(context.Context) ([]core.DiscoveredItem, error) {
	return append([]core.DiscoveredItem(nil), s.items...), nil
}

// ShouldSkip is always false.
func (s *ManualSource) ShouldSkip(core.DiscoveredItem, State) bool {
	return false
}

// Process returns the single document for the note.
func (s *ManualSource) Process(_ context.Context, item core.DiscoveredItem, _ State) ([]core.ChunkDocument, *ItemResult, error) {
	doc, ok := s.docs[item.Location]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownItem, item.Location)
	}
	return []core.ChunkDocument{doc}, nil, nil
}
