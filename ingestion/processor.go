package ingestion

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/docingest/cache"
	"github.com/poiesic/docingest/core"
	"github.com/poiesic/docingest/fetch"
	"github.com/poiesic/docingest/index"
	"github.com/poiesic/docingest/metrics"
	"github.com/poiesic/docingest/source"
)

// staged is an item whose documents are ready but not yet committed.
type staged struct {
	item   core.DiscoveredItem
	docs   []core.ChunkDocument
	result *source.ItemResult
}

// metricsLabel groups every sitemap under one label.
func metricsLabel(src source.Source) string {
	if _, ok := src.(*source.SitemapSource); ok {
		return string(source.KindSitemap)
	}
	return src.Name()
}

// filterItems drops items not matching the filter.
func (p *Pipeline) filterItems(items []core.DiscoveredItem) []core.DiscoveredItem {
	if p.filter == "" {
		return items
	}
	kept := make([]core.DiscoveredItem, 0, len(items))
	for _, item := range items {
		if p.matches(item.Label, item.Location) {
			kept = append(kept, item)
		}
	}
	return kept
}

// skipUnchanged removes the items the source reports as unchanged and
// counts them as cached.
func (p *Pipeline) skipUnchanged(src source.Source, items []core.DiscoveredItem, st source.State, s *Summary) []core.DiscoveredItem {
	pending := make([]core.DiscoveredItem, 0, len(items))
	for _, item := range items {
		if src.ShouldSkip(item, st) {
			s.Cached++
			continue
		}
		pending = append(pending, item)
	}
	p.recorder.Items(metricsLabel(src), metrics.OutcomeCached, s.Cached)
	return pending
}

// plan fills in the dry-run listing.
func (p *Pipeline) plan(logger *slog.Logger, s *Summary, pending []core.DiscoveredItem) {
	s.DryRun = true
	s.Pending = len(pending)
	s.Planned = make([]string, 0, min(len(pending), MaxPlanned))
	for _, item := range pending[:min(len(pending), MaxPlanned)] {
		s.Planned = append(s.Planned, item.Location)
	}
	logger.Info("dry run", "would_process", s.Pending, "cached", s.Cached)
}

// processItems runs src.Process over pending through the bounded pool and
// sorts the outcomes into the summary.
func (p *Pipeline) processItems(ctx context.Context, logger *slog.Logger, src source.Source, pending []core.DiscoveredItem, st source.State, s *Summary) []staged {
	outcomes := fetch.ProcessMany(ctx, pending, func(ctx context.Context, item core.DiscoveredItem, _ int) (staged, error) {
		docs, res, err := src.Process(ctx, item, st)
		return staged{item: item, docs: docs, result: res}, err
	}, p.limits(src))

	label := metricsLabel(src)
	ready := make([]staged, 0, len(outcomes))
	for i, o := range outcomes {
		item := pending[i]
		switch {
		case o.Err == nil:
			ready = append(ready, o.Value)
		case errors.Is(o.Err, source.ErrUnchanged):
			s.Cached++
			p.recorder.Items(label, metrics.OutcomeUnchanged, 1)
		case errors.Is(o.Err, core.ErrExtractionTooShort):
			s.Skipped++
			p.recorder.Items(label, metrics.OutcomeTooShort, 1)
			logger.Debug("skipping short page", "item", item.Location)
		default:
			s.Errors++
			s.Failed = append(s.Failed, item.Location)
			p.recorder.Items(label, metrics.OutcomeError, 1)
			logger.Warn("failed to process item", "item", item.Location, "error", o.Err)
		}
	}
	return ready
}

// commit upserts the documents of ready in batches and returns the cache
// entries of the items whose documents all committed. An item with a
// document in a failed batch is counted as an error and left uncached so
// the next run picks it up again.
func (p *Pipeline) commit(ctx context.Context, logger *slog.Logger, label string, ready []staged, s *Summary) cache.Cache {
	var docs []core.ChunkDocument
	var owners []int
	for i, st := range ready {
		for _, d := range st.docs {
			docs = append(docs, d)
			owners = append(owners, i)
		}
	}

	failed := make([]bool, len(ready))
	offset := 0
	for n, batch := range index.Batches(docs, p.batchSize) {
		written, err := p.client.Upsert(ctx, batch)
		if err != nil {
			logger.Error("failed to upsert batch", "batch", n+1, "documents", len(batch), "error", err)
			for _, o := range owners[offset : offset+len(batch)] {
				failed[o] = true
			}
		} else {
			s.ChunksAdded += written
			p.recorder.ChunksUpserted(label, written)
			logger.Debug("upserted batch", "batch", n+1, "documents", written)
		}
		offset += len(batch)
	}

	entries := cache.Cache{}
	for i, st := range ready {
		if failed[i] {
			s.Errors++
			s.Failed = append(s.Failed, st.item.Location)
			p.recorder.Items(label, metrics.OutcomeError, 1)
			continue
		}
		s.Processed++
		p.recorder.Items(label, metrics.OutcomeProcessed, 1)
		if st.result != nil {
			st.result.Apply(entries)
		}
	}
	return entries
}

// saveEntries merges entries into the cache file.
func (p *Pipeline) saveEntries(ctx context.Context, entries cache.Cache) error {
	if p.store == nil || len(entries) == 0 {
		return nil
	}
	_, err := p.store.Merge(ctx, entries)
	return err
}
