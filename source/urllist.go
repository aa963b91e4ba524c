package source

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/poiesic/docingest/cache"
	"github.com/poiesic/docingest/chunk"
	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/extract"
	"github.com/poiesic/docingest/fetch"
)

const (
	DefaultURLListConcurrency = 1
	DefaultURLListDelay       = 1500 * time.Millisecond
)

// URLListSource ingests a static list of pages. The only change signal is
// the page content itself, so the skip decision happens after the fetch.
type URLListSource struct {
	entries   URLListConfig
	byURL     map[string]URLEntry
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	opts      options
	logger    *slog.Logger
}

// NewURLListSource creates a URL list source. The list is validated.
func NewURLListSource(entries URLListConfig, f *fetch.Fetcher, e *extract.Extractor, opts ...Option) (*URLListSource, error) {
	if err := entries.Validate(); err != nil {
		return nil, err
	}
	byURL := make(map[string]URLEntry, len(entries))
	for _, entry := range entries {
		if _, dup := byURL[entry.URL]; !dup {
			byURL[entry.URL] = entry
		}
	}
	o := newOptions("url-source", opts)
	return &URLListSource{
		entries:   entries,
		byURL:     byURL,
		fetcher:   f,
		extractor: e,
		opts:      o,
		logger:    o.logger,
	}, nil
}

// Name returns "urls".
func (s *URLListSource) Name() string {
	return string(KindURLList)
}

// Limits fetches one page at a time with a pause after each.
func (s *URLListSource) Limits() fetch.LimitOptions {
	return fetch.LimitOptions{Concurrency: DefaultURLListConcurrency, Delay: DefaultURLListDelay}
}

// Discover returns one item per configured URL, in order, without duplicates.
func (s *URLListSource) Discover(context.Context) ([]core.DiscoveredItem, error) {
	items := make([]core.DiscoveredItem, 0, len(s.byURL))
	seen := make(map[string]bool, len(s.byURL))
	for _, e := range s.entries {
		if seen[e.URL] {
			continue
		}
		seen[e.URL] = true
		items = append(items, core.DiscoveredItem{Location: e.URL, Label: e.Name})
	}
	return items, nil
}

// ShouldSkip is always false: a page must be fetched before it can be
// compared with the cache.
func (s *URLListSource) ShouldSkip(core.DiscoveredItem, State) bool {
	return false
}

// Process fetches the page and compares its hash with the cache. An
// unchanged page within the TTL yields ErrUnchanged.
func (s *URLListSource) Process(ctx context.Context, item core.DiscoveredItem, st State) ([]core.ChunkDocument, *ItemResult, error) {
	entry, ok := s.byURL[item.Location]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownItem, item.Location)
	}

	html, err := s.fetcher.FetchOne(ctx, entry.URL)
	if err != nil {
		return nil, nil, err
	}

	hash := cache.Hash(html)
	if cache.ShouldUseCache(st.Cache, entry.URL, hash, st.TTL, st.Force) {
		return nil, nil, ErrUnchanged
	}

	text, err := s.extractor.Extract(html, entry.Selector...)
	if err != nil {
		return nil, nil, err
	}
	if len(text) < s.opts.minText {
		return nil, nil, fmt.Errorf("%w: %d chars from %s", core.ErrExtractionTooShort, len(text), entry.URL)
	}

	docs := chunk.Documents(text, chunk.DocSpec{IDPrefix: "url", URL: entry.URL, Source: entry.Name}, s.opts.chunkOpts...)
	s.logger.Debug("processed url", "url", entry.URL, "chars", len(text), "chunks", len(docs))
	return docs, &ItemResult{Key: entry.URL, Hash: hash}, nil
}
