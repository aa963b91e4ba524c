package ingestion

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/poiesic/docingest/batch"
	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/index/mock"
	"github.com/poiesic/docingest/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSitemap(t *testing.T, site *docsSite) *source.SitemapSource {
	t.Helper()
	src, err := source.NewSitemapSource(source.SitemapConfig{
		URL:         site.URL + "/sitemap.xml",
		Name:        "Docs",
		Concurrency: 2,
		RateLimitMs: 1,
	}, newFetcher(t), newExtractor(t))
	require.NoError(t, err)
	return src
}

func inProcessRunner(t *testing.T, client *mock.MockClient) batch.Runner {
	t.Helper()
	proc, err := batch.NewShardProcessor(client)
	require.NoError(t, err)
	return &batch.InProcessRunner{Processor: proc}
}

func TestPipeline_SitemapRun(t *testing.T) {
	ctx := context.Background()
	site := newDocsSite(t, "alpha", "beta", "gamma")
	src := newSitemap(t, site)
	client := mock.NewMockClient()
	store := newStore(t)
	dir := filepath.Join(t.TempDir(), ".sitemap-temp")

	p, err := NewPipeline(client, store, WithShardSize(2))
	require.NoError(t, err)

	summary, err := p.SitemapRun(ctx, src, dir, inProcessRunner(t, client))
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Discovered)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Zero(t, summary.Errors)
	assert.Equal(t, 3, summary.ChunksAdded)
	assert.Equal(t, 3, summary.IndexCount)
	assert.Empty(t, summary.Unprocessed)
	assert.NoDirExists(t, dir)

	c, err := store.Load()
	require.NoError(t, err)
	require.Len(t, c, 3)
	assert.Equal(t, "2025-01-01", c[site.URL+"/docs/alpha"].LastModified)

	// A second run over an unchanged sitemap upserts nothing.
	upserts := len(client.Upserts())
	summary, err = p.SitemapRun(ctx, src, dir, inProcessRunner(t, client))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Cached)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, summary.ChunksAdded)
	assert.Len(t, client.Upserts(), upserts)
}

func TestPipeline_SitemapRun_ResumesExistingShards(t *testing.T) {
	ctx := context.Background()
	site := newDocsSite(t, "alpha")
	src := newSitemap(t, site)
	client := mock.NewMockClient()
	store := newStore(t)
	dir := t.TempDir()

	recs := []core.ShardRecord{
		{URL: "https://docs.example.com/guide/a", Hash: "h1", Text: longText("first"), LastModified: "2025-02-01"},
		{URL: "https://docs.example.com/guide/b", Hash: "h2", Text: longText("second")},
	}
	_, err := batch.Write(dir, 3, recs)
	require.NoError(t, err)

	p, err := NewPipeline(client, store)
	require.NoError(t, err)
	summary, err := p.SitemapRun(ctx, src, dir, inProcessRunner(t, client))
	require.NoError(t, err)

	assert.Equal(t, int32(0), site.sitemapHits.Load())
	assert.Equal(t, 2, summary.Processed)
	assert.Zero(t, summary.Discovered)

	c, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "2025-02-01", c["https://docs.example.com/guide/a"].LastModified)
	assert.NoDirExists(t, dir)
}

func TestPipeline_SitemapRun_FailedShardIsKept(t *testing.T) {
	ctx := context.Background()
	site := newDocsSite(t, "alpha", "beta")
	src := newSitemap(t, site)
	client := mock.NewMockClient()
	client.UpsertFunc = func(context.Context, []core.ChunkDocument) error {
		return assert.AnError
	}
	store := newStore(t)
	dir := filepath.Join(t.TempDir(), "shards")

	p, err := NewPipeline(client, store)
	require.NoError(t, err)
	summary, err := p.SitemapRun(ctx, src, dir, inProcessRunner(t, client))
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Errors)
	require.Len(t, summary.Unprocessed, 1)
	assert.FileExists(t, summary.Unprocessed[0])

	c, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, c)

	// The next run retries the kept shard without rediscovering.
	client.UpsertFunc = nil
	hits := site.sitemapHits.Load()
	summary, err = p.SitemapRun(ctx, src, dir, inProcessRunner(t, client))
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, hits, site.sitemapHits.Load())
	assert.NoDirExists(t, dir)
}

func TestPipeline_SitemapRun_ProcessOnly(t *testing.T) {
	site := newDocsSite(t, "alpha")
	client := mock.NewMockClient()
	p, err := NewPipeline(client, newStore(t), WithProcessOnly(true))
	require.NoError(t, err)

	summary, err := p.SitemapRun(context.Background(), newSitemap(t, site), filepath.Join(t.TempDir(), "none"), inProcessRunner(t, client))
	require.NoError(t, err)
	assert.Zero(t, summary.Processed)
	assert.Equal(t, int32(0), site.sitemapHits.Load())
}

func TestPipeline_SitemapRun_DryRun(t *testing.T) {
	site := newDocsSite(t, "alpha", "beta")
	client := mock.NewMockClient()
	dir := filepath.Join(t.TempDir(), "shards")
	p, err := NewPipeline(client, newStore(t), WithDryRun(true))
	require.NoError(t, err)

	summary, err := p.SitemapRun(context.Background(), newSitemap(t, site), dir, nil)
	require.NoError(t, err)
	assert.True(t, summary.DryRun)
	assert.Equal(t, 3, summary.Pending)
	assert.Equal(t, int32(0), site.pageHits.Load())
	assert.NoDirExists(t, dir)

	var buf bytes.Buffer
	_, err = summary.WriteTo(&buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Would process 3 items:")
	assert.Contains(t, buf.String(), site.URL+"/docs/beta")
}

func TestPipeline_SitemapRun_Validation(t *testing.T) {
	ctx := context.Background()
	site := newDocsSite(t, "alpha")
	client := mock.NewMockClient()

	p, err := NewPipeline(client, nil)
	require.NoError(t, err)
	_, err = p.SitemapRun(ctx, newSitemap(t, site), t.TempDir(), inProcessRunner(t, client))
	assert.Equal(t, ErrCacheStoreRequired, err)

	p, err = NewPipeline(client, newStore(t))
	require.NoError(t, err)
	_, err = p.SitemapRun(ctx, nil, t.TempDir(), inProcessRunner(t, client))
	assert.Equal(t, ErrSourceRequired, err)
	_, err = p.SitemapRun(ctx, newSitemap(t, site), t.TempDir(), nil)
	assert.Equal(t, ErrRunnerRequired, err)
}
