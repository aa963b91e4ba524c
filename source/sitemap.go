// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package source

import (
	"context"
	"encoding/xml"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/poiesic/docingest/cache"
	"github.com/poiesic/docingest/chunk"
	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/extract"
	"github.com/poiesic/docingest/fetch"
)

const (
	DefaultSitemapConcurrency = 5
	DefaultSitemapDelay       = 300 * time.Millisecond
)

// SitemapSource crawls a sitemap, following sitemap indexes, and ingests
// every page whose path passes the include/exclude patterns.
type SitemapSource struct {
	cfg       SitemapConfig
	fetcher   *fetch.Fetcher
	extractor *extract.Extractor
	matcher   *PatternMatcher
	opts      options
	logger    *slog.Logger
}

// NewSitemapSource creates a sitemap source. The config is validated.
func NewSitemapSource(cfg SitemapConfig, f *fetch.Fetcher, e *extract.Extractor, opts ...Option) (*SitemapSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	matcher, err := NewPatternMatcher(cfg.Include, cfg.Exclude)
	if err != nil {
		return nil, err
	}
	o := newOptions("sitemap-source", opts)
	return &SitemapSource{
		cfg:       cfg,
		fetcher:   f,
		extractor: e,
		matcher:   matcher,
		opts:      o,
		logger:    o.logger.With("sitemap", cfg.Name),
	}, nil
}

// Name returns the configured sitemap name.
func (s *SitemapSource) Name() string {
	return s.cfg.Name
}

// Config returns the sitemap configuration.
func (s *SitemapSource) Config() SitemapConfig {
	return s.cfg
}

// Limits returns the pool limits configured for this sitemap.
func (s *SitemapSource) Limits() fetch.LimitOptions {
	l := fetch.LimitOptions{Concurrency: DefaultSitemapConcurrency, Delay: DefaultSitemapDelay}
	if s.cfg.Concurrency > 0 {
		l.Concurrency = s.cfg.Concurrency
	}
	if s.cfg.RateLimitMs > 0 {
		l.Delay = time.Duration(s.cfg.RateLimitMs) * time.Millisecond
	}
	return l
}

type sitemapDocument struct {
	XMLName  xml.Name
	Sitemaps []sitemapEntry `xml:"sitemap"`
	URLs     []sitemapEntry `xml:"url"`
}

type sitemapEntry struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod"`
}

// Discover fetches the sitemap and returns every page that passes the
// patterns. Failing to read the root sitemap is fatal; a broken child
// sitemap is logged and skipped.
func (s *SitemapSource) Discover(ctx context.Context) ([]core.DiscoveredItem, error) {
	visited := map[string]bool{}
	entries, err := s.crawl(ctx, s.cfg.URL, visited)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDiscovery, err)
	}

	seen := make(map[string]bool, len(entries))
	items := make([]core.DiscoveredItem, 0, len(entries))
	for _, e := range entries {
		if seen[e.Loc] {
			continue
		}
		seen[e.Loc] = true

		u, err := url.Parse(e.Loc)
		if err != nil || u.Host == "" {
			s.logger.Debug("skipping unparseable sitemap entry", "url", e.Loc)
			continue
		}
		if !s.matcher.Match(u.Path) {
			continue
		}
		items = append(items, core.DiscoveredItem{Location: e.Loc, ChangeSignal: e.LastMod, Label: u.Path})
	}

	s.logger.Info("discovered sitemap urls", "found", len(entries), "matched", len(items))
	return items, nil
}

func (s *SitemapSource) crawl(ctx context.Context, sitemapURL string, visited map[string]bool) ([]sitemapEntry, error) {
	if visited[sitemapURL] {
		s.logger.Warn("sitemap cycle detected", "url", sitemapURL)
		return nil, nil
	}
	visited[sitemapURL] = true

	body, err := s.fetcher.FetchOne(ctx, sitemapURL, fetch.WithAccept(fetch.XMLAccept))
	if err != nil {
		return nil, err
	}

	var doc sitemapDocument
	if err := xml.Unmarshal([]byte(body), &doc); err != nil {
		return nil, &core.ParseError{Source: sitemapURL, Err: err}
	}

	if doc.XMLName.Local == "sitemapindex" {
		s.logger.Debug("sitemap index found", "url", sitemapURL, "children", len(doc.Sitemaps))
		var all []sitemapEntry
		for _, child := range doc.Sitemaps {
			loc := strings.TrimSpace(child.Loc)
			if loc == "" {
				continue
			}
			entries, err := s.crawl(ctx, loc, visited)
			if err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				s.logger.Warn("failed to read child sitemap", "url", loc, "err", err)
				continue
			}
			all = append(all, entries...)
		}
		return all, nil
	}

	entries := make([]sitemapEntry, 0, len(doc.URLs))
	for _, u := range doc.URLs {
		loc := strings.TrimSpace(u.Loc)
		if loc == "" {
			continue
		}
		entries = append(entries, sitemapEntry{Loc: loc, LastMod: strings.TrimSpace(u.LastMod)})
	}
	return entries, nil
}

// ShouldSkip uses the last-modified strategy.
func (s *SitemapSource) ShouldSkip(item core.DiscoveredItem, st State) bool {
	return cache.ShouldSkipByLastModified(st.Cache, item.Location, item.ChangeSignal, st.Force)
}

// Extract fetches a page and returns its shard record. Text shorter than
// the minimum length yields core.ErrExtractionTooShort.
func (s *SitemapSource) Extract(ctx context.Context, item core.DiscoveredItem) (core.ShardRecord, error) {
	html, err := s.fetcher.FetchOne(ctx, item.Location)
	if err != nil {
		return core.ShardRecord{}, err
	}
	text, err := s.extractor.Extract(html, s.cfg.Selector...)
	if err != nil {
		return core.ShardRecord{}, err
	}
	if len(text) < s.opts.minText {
		return core.ShardRecord{}, fmt.Errorf("%w: %d chars from %s", core.ErrExtractionTooShort, len(text), item.Location)
	}
	return core.ShardRecord{
		URL:          item.Location,
		Hash:         cache.Hash(html),
		Text:         text,
		LastModified: item.ChangeSignal,
	}, nil
}

// Process fetches, extracts and chunks one page.
func (s *SitemapSource) Process(ctx context.Context, item core.DiscoveredItem, _ State) ([]core.ChunkDocument, *ItemResult, error) {
	rec, err := s.Extract(ctx, item)
	if err != nil {
		return nil, nil, err
	}
	docs := SitemapDocuments(s.cfg.Name, rec, s.opts.chunkOpts...)
	return docs, &ItemResult{Key: rec.URL, Hash: rec.Hash, LastModified: rec.LastModified}, nil
}

// SitemapDocuments chunks a shard record into documents whose source is
// "<name> - <path>".
func SitemapDocuments(name string, rec core.ShardRecord, opts ...chunk.Option) []core.ChunkDocument {
	label := rec.URL
	if u, err := url.Parse(rec.URL); err == nil && u.Path != "" {
		label = u.Path
	}
	return chunk.Documents(rec.Text, chunk.DocSpec{
		IDPrefix: "sitemap",
		URL:      rec.URL,
		Source:   name + " - " + label,
	}, opts...)
}
