package ingestion

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/docingest/cache"
	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/extract"
	"github.com/poiesic/docingest/fetch"
	"github.com/poiesic/docingest/source"
	"github.com/stretchr/testify/require"
)

func longText(word string) string {
	return strings.TrimSpace(strings.Repeat(word+" is documented here. ", 12))
}

func pageHTML(body string) string {
	return "<html><head><title>Page</title></head><body><nav>menu</nav><main>" + body + "</main></body></html>"
}

// docsSite serves a few documentation pages and a sitemap listing them.
type docsSite struct {
	*httptest.Server
	sitemapHits atomic.Int32
	pageHits    atomic.Int32
}

func newDocsSite(t *testing.T, pages ...string) *docsSite {
	t.Helper()
	site := &docsSite{}
	mux := http.NewServeMux()
	for _, page := range pages {
		body := pageHTML("<p>" + longText(page) + "</p>")
		mux.HandleFunc("/docs/"+page, func(w http.ResponseWriter, r *http.Request) {
			site.pageHits.Add(1)
			_, _ = w.Write([]byte(body))
		})
	}
	mux.HandleFunc("/docs/short", func(w http.ResponseWriter, r *http.Request) {
		site.pageHits.Add(1)
		_, _ = w.Write([]byte(pageHTML("<p>tiny</p>")))
	})
	mux.HandleFunc("/sitemap.xml", func(w http.ResponseWriter, r *http.Request) {
		site.sitemapHits.Add(1)
		var b strings.Builder
		b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">`)
		for _, page := range append(append([]string(nil), pages...), "short") {
			fmt.Fprintf(&b, "<url><loc>%s/docs/%s</loc><lastmod>2025-01-01</lastmod></url>", site.URL, page)
		}
		b.WriteString(`</urlset>`)
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(b.String()))
	})
	mux.HandleFunc("/", http.NotFound)
	site.Server = httptest.NewServer(mux)
	t.Cleanup(site.Close)
	return site
}

func newFetcher(t *testing.T) *fetch.Fetcher {
	t.Helper()
	f, err := fetch.New(fetch.WithRetries(0), fetch.WithRetryDelay(time.Millisecond))
	require.NoError(t, err)
	return f
}

func newExtractor(t *testing.T) *extract.Extractor {
	t.Helper()
	e, err := extract.New()
	require.NoError(t, err)
	return e
}

func newStore(t *testing.T) *cache.Store {
	t.Helper()
	store, err := cache.NewStore(filepath.Join(t.TempDir(), "cache.json"))
	require.NoError(t, err)
	return store
}

// staticSource is a source with canned discovery and processing. Every
// item yields one document and is cached under its location.
type staticSource struct {
	name     string
	items    []core.DiscoveredItem
	discover error
	fail     map[string]error
}

func newStaticSource(locations ...string) *staticSource {
	s := &staticSource{name: "static", fail: map[string]error{}}
	for _, loc := range locations {
		s.items = append(s.items, core.DiscoveredItem{Location: loc, ChangeSignal: "v1", Label: strings.ToUpper(loc)})
	}
	return s
}

func (s *staticSource) Limits() fetch.LimitOptions {
	return fetch.LimitOptions{Concurrency: 2, Delay: -1}
}

func (s *staticSource) ShouldSkip(item core.DiscoveredItem, st source.State) bool {
	return cache.ShouldSkipByRemoteHash(st.Cache, item.Location, item.ChangeSignal, st.Force)
}

func (s *staticSource) Process(_ context.Context, item core.DiscoveredItem, _ source.State) ([]core.ChunkDocument, *source.ItemResult, error) {
	if err := s.fail[item.Location]; err != nil {
		return nil, nil, err
	}
	doc := core.ChunkDocument{ID: "static_" + item.Location, Text: "text of " + item.Location, Source: item.Label, URL: "https://example.com/" + item.Location}
	return []core.ChunkDocument{doc}, &source.ItemResult{Key: item.Location, Hash: cache.Hash(doc.Text), RemoteHash: item.ChangeSignal}, nil
}

func (s *staticSource) Name() string { return s.name }

func (s *staticSource) Discover(context.Context) ([]core.DiscoveredItem, error) {
	return s.items, s.discover
}
