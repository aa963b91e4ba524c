package ingestion

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/index/mock"
	"github.com/poiesic/docingest/metrics"
	"github.com/poiesic/docingest/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPipeline(t *testing.T) {
	_, err := NewPipeline(nil, nil)
	assert.Equal(t, ErrIndexClientRequired, err)

	client := mock.NewMockClient()
	for name, opt := range map[string]Option{
		"concurrency": WithConcurrency(0),
		"batch size":  WithUpsertBatchSize(0),
		"parallelism": WithParallelism(-1),
		"shard size":  WithShardSize(0),
		"ttl":         WithTTL(0),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := NewPipeline(client, nil, opt)
			assert.Error(t, err)
		})
	}

	p, err := NewPipeline(client, nil, WithLogger(nil))
	require.NoError(t, err)
	assert.Equal(t, DefaultUpsertBatchSize, p.batchSize)
	assert.NotNil(t, p.logger)
}

func TestPipeline_Limits(t *testing.T) {
	client := mock.NewMockClient()
	src := newStaticSource()

	p, err := NewPipeline(client, nil)
	require.NoError(t, err)
	l := p.limits(src)
	assert.Equal(t, 2, l.Concurrency)
	assert.Equal(t, time.Duration(-1), l.Delay)

	p, err = NewPipeline(client, nil, WithConcurrency(7), WithDelay(50*time.Millisecond))
	require.NoError(t, err)
	l = p.limits(src)
	assert.Equal(t, 7, l.Concurrency)
	assert.Equal(t, 50*time.Millisecond, l.Delay)

	p, err = NewPipeline(client, nil, WithDelay(0))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(-1), p.limits(source.Source(&staticSource{})).Delay)
}

func TestPipeline_Run(t *testing.T) {
	ctx := context.Background()
	client := mock.NewMockClient()
	store := newStore(t)
	src := newStaticSource("a", "b", "c")

	p, err := NewPipeline(client, store)
	require.NoError(t, err)

	summary, err := p.Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, "static", summary.Source)
	assert.Equal(t, 3, summary.Discovered)
	assert.Equal(t, 3, summary.Processed)
	assert.Equal(t, 3, summary.ChunksAdded)
	assert.Equal(t, 3, summary.IndexCount)
	assert.Zero(t, summary.Errors)
	assert.Len(t, client.Upserts(), 1)

	c, err := store.Load()
	require.NoError(t, err)
	require.Len(t, c, 3)
	assert.Equal(t, "v1", c["b"].RemoteHash)

	// Nothing changed, so the second run writes nothing.
	summary, err = p.Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Cached)
	assert.Zero(t, summary.Processed)
	assert.Zero(t, summary.ChunksAdded)
	assert.Len(t, client.Upserts(), 1)

	forced, err := NewPipeline(client, store, WithForce(true))
	require.NoError(t, err)
	summary, err = forced.Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Processed)
	assert.Len(t, client.Upserts(), 2)
}

func TestPipeline_Run_ItemOutcomes(t *testing.T) {
	client := mock.NewMockClient()
	store := newStore(t)
	src := newStaticSource("ok", "broken", "short", "same")
	src.fail["broken"] = &core.FetchError{URL: "broken", Attempts: 3, Err: errors.New("status 500")}
	src.fail["short"] = fmt.Errorf("%w: 12 chars", core.ErrExtractionTooShort)
	src.fail["same"] = source.ErrUnchanged

	p, err := NewPipeline(client, store)
	require.NoError(t, err)
	summary, err := p.Run(context.Background(), src)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Cached)
	assert.Equal(t, []string{"broken"}, summary.Failed)
	assert.Equal(t, 4, summary.Total())

	c, err := store.Load()
	require.NoError(t, err)
	assert.Len(t, c, 1)
	assert.Contains(t, c, "ok")
}

func TestPipeline_Run_UpsertFailure(t *testing.T) {
	ctx := context.Background()
	client := mock.NewMockClient()
	client.UpsertFunc = func(_ context.Context, docs []core.ChunkDocument) error {
		for _, d := range docs {
			if d.ID == "static_b" {
				return errors.New("index unavailable")
			}
		}
		return nil
	}
	store := newStore(t)
	src := newStaticSource("a", "b", "c")

	p, err := NewPipeline(client, store, WithUpsertBatchSize(1))
	require.NoError(t, err)
	summary, err := p.Run(ctx, src)
	require.NoError(t, err)

	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Errors)
	assert.Equal(t, 2, summary.ChunksAdded)
	assert.Equal(t, []string{"b"}, summary.Failed)

	c, err := store.Load()
	require.NoError(t, err)
	assert.NotContains(t, c, "b")

	// The uncommitted item is retried on the next run.
	client.UpsertFunc = nil
	summary, err = p.Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Processed)
	assert.Equal(t, 2, summary.Cached)
}

func TestPipeline_Run_DryRun(t *testing.T) {
	client := mock.NewMockClient()
	store := newStore(t)
	var locations []string
	for i := range 25 {
		locations = append(locations, fmt.Sprintf("item-%02d", i))
	}
	src := newStaticSource(locations...)

	p, err := NewPipeline(client, store, WithDryRun(true))
	require.NoError(t, err)
	summary, err := p.Run(context.Background(), src)
	require.NoError(t, err)

	assert.True(t, summary.DryRun)
	assert.Equal(t, 25, summary.Pending)
	assert.Len(t, summary.Planned, MaxPlanned)
	assert.Equal(t, "item-00", summary.Planned[0])
	assert.Empty(t, client.Upserts())

	c, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, c)
}

func TestPipeline_Run_Filter(t *testing.T) {
	client := mock.NewMockClient()
	src := newStaticSource("alpha", "beta", "alphabet")

	p, err := NewPipeline(client, nil, WithFilter("  ALPHA "))
	require.NoError(t, err)
	summary, err := p.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Discovered)
	assert.Equal(t, 2, summary.Processed)
}

func TestPipeline_Run_FatalErrors(t *testing.T) {
	ctx := context.Background()
	client := mock.NewMockClient()

	t.Run("discovery", func(t *testing.T) {
		src := newStaticSource("a")
		src.discover = fmt.Errorf("%w: sitemap unreachable", source.ErrDiscovery)
		p, err := NewPipeline(client, nil)
		require.NoError(t, err)
		summary, err := p.Run(ctx, src)
		assert.ErrorIs(t, err, source.ErrDiscovery)
		assert.Nil(t, summary)
	})

	t.Run("corrupt cache", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, os.WriteFile(store.Path(), []byte("{broken"), 0o644))
		p, err := NewPipeline(client, store)
		require.NoError(t, err)
		_, err = p.Run(ctx, newStaticSource("a"))
		var corrupt *core.CacheCorruptError
		assert.ErrorAs(t, err, &corrupt)
	})

	t.Run("no source", func(t *testing.T) {
		p, err := NewPipeline(client, nil)
		require.NoError(t, err)
		_, err = p.Run(ctx, nil)
		assert.Equal(t, ErrSourceRequired, err)
	})
}

func TestPipeline_Run_Manual(t *testing.T) {
	client := mock.NewMockClient()
	src, err := source.NewManualSource(source.ManualConfig{
		{Topic: "Billing", Text: "Invoices are issued monthly."},
		{Topic: "Refunds", Text: "Refunds take five days.", URL: "https://example.com/refunds"},
	})
	require.NoError(t, err)

	p, err := NewPipeline(client, nil)
	require.NoError(t, err)
	summary, err := p.Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 2, summary.ChunksAdded)

	docs := client.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, source.ManualID("Billing", 0), docs[0].ID)
}

func TestPipeline_Run_URLList(t *testing.T) {
	ctx := context.Background()
	site := newDocsSite(t, "alpha", "beta")
	src, err := source.NewURLListSource(source.URLListConfig{
		{URL: site.URL + "/docs/alpha", Name: "Alpha"},
		{URL: site.URL + "/docs/beta", Name: "Beta"},
		{URL: site.URL + "/docs/short", Name: "Short"},
	}, newFetcher(t), newExtractor(t))
	require.NoError(t, err)

	client := mock.NewMockClient()
	store := newStore(t)
	p, err := NewPipeline(client, store, WithDelay(-1))
	require.NoError(t, err)

	summary, err := p.Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Processed)
	assert.Equal(t, 1, summary.Skipped)
	assert.Positive(t, summary.ChunksAdded)

	// URL lists are fetched every run and recognised as unchanged by hash.
	summary, err = p.Run(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Cached)
	assert.Zero(t, summary.Processed)
	assert.Equal(t, int32(6), site.pageHits.Load())
}

func TestPipeline_Run_RecordsMetrics(t *testing.T) {
	client := mock.NewMockClient()
	store := newStore(t)
	src := newStaticSource("a", "b", "c")
	src.fail["c"] = errors.New("boom")
	rec := metrics.NewRecorder()

	var mu sync.Mutex
	var progress []string
	p, err := NewPipeline(client, store, WithRecorder(rec), WithProgress(func(_, _ int, id string, _ bool) {
		mu.Lock()
		defer mu.Unlock()
		progress = append(progress, id)
	}))
	require.NoError(t, err)
	_, err = p.Run(context.Background(), src)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, progress)

	path := filepath.Join(t.TempDir(), "docingest.prom")
	require.NoError(t, rec.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, `docingest_items_total{outcome="processed",source="static"} 2`)
	assert.Contains(t, out, `docingest_items_total{outcome="error",source="static"} 1`)
	assert.Contains(t, out, `docingest_chunks_upserted_total{source="static"} 2`)
	assert.Contains(t, out, "docingest_index_documents 2")
}
