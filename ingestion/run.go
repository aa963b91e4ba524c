package ingestion

import (
	"context"

	"github.com/poiesic/docingest/source"
)

// Run ingests src. Discovery failures and a corrupt cache abort the run;
// failures of individual items are counted in the summary.
func (p *Pipeline) Run(ctx context.Context, src source.Source) (*Summary, error) {
	if src == nil {
		return nil, ErrSourceRequired
	}
	logger := p.logger.With("source", src.Name())
	summary := &Summary{Source: src.Name()}

	items, err := src.Discover(ctx)
	if err != nil {
		return nil, err
	}
	items = p.filterItems(items)
	summary.Discovered = len(items)

	c, err := p.loadCache()
	if err != nil {
		return nil, err
	}
	st := source.State{Cache: c, Force: p.force, TTL: p.ttl}

	pending := p.skipUnchanged(src, items, st, summary)
	if p.dryRun {
		p.plan(logger, summary, pending)
		return summary, nil
	}

	logger.Info("processing", "discovered", summary.Discovered, "pending", len(pending), "cached", summary.Cached)
	if len(pending) > 0 {
		ready := p.processItems(ctx, logger, src, pending, st, summary)
		entries := p.commit(ctx, logger, metricsLabel(src), ready, summary)
		if err := p.saveEntries(ctx, entries); err != nil {
			return summary, err
		}
	}

	p.indexCount(ctx, summary)
	logger.Info("run complete",
		"processed", summary.Processed,
		"cached", summary.Cached,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
		"chunks_added", summary.ChunksAdded)
	return summary, nil
}
