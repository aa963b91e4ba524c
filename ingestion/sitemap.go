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


package ingestion

import (
	"context"
	"log/slog"
	"os"

	"github.com/poiesic/docingest/batch"
	"github.com/poiesic/docingest/source"
)

// SitemapRun ingests a sitemap through shard files so that an interrupted
// run can resume. Shards left by an earlier run are processed first and no
// new discovery happens in that case; otherwise the sitemap is discovered,
// the changed pages are downloaded into shards under shardDir, and the
// shards are handed to runner. The shard directory is removed once empty.
func (p *Pipeline) SitemapRun(ctx context.Context, src *source.SitemapSource, shardDir string, runner batch.Runner) (*Summary, error) {
	if src == nil {
		return nil, ErrSourceRequired
	}
	if p.store == nil {
		return nil, ErrCacheStoreRequired
	}
	if runner == nil && !p.dryRun {
		return nil, ErrRunnerRequired
	}
	logger := p.logger.With("source", src.Name())
	summary := &Summary{Source: src.Name()}

	shards, err := batch.List(shardDir)
	if err != nil {
		return nil, err
	}

	switch {
	case len(shards) > 0:
		logger.Info("resuming from existing shards", "shards", len(shards), "dir", shardDir)
		if p.dryRun {
			summary.DryRun = true
			summary.Pending = len(shards)
			summary.Planned = append(summary.Planned, shards[:min(len(shards), MaxPlanned)]...)
			return summary, nil
		}
	case p.processOnly:
		logger.Info("no shards to process", "dir", shardDir)
	default:
		shards, err = p.download(ctx, logger, src, shardDir, summary)
		if err != nil || p.dryRun {
			return summary, err
		}
	}

	if len(shards) > 0 {
		coord, err := batch.NewCoordinator(runner, p.store, p.batchOptions()...)
		if err != nil {
			return summary, err
		}
		res := coord.ProcessShards(ctx, shards, src.Name())
		summary.Processed += res.Processed
		summary.ChunksAdded += res.ChunksAdded
		summary.Errors += res.Failed
		summary.Unprocessed = res.Unprocessed
	}

	removeIfEmpty(logger, shardDir)
	p.indexCount(ctx, summary)
	logger.Info("sitemap run complete",
		"processed", summary.Processed,
		"cached", summary.Cached,
		"skipped", summary.Skipped,
		"errors", summary.Errors,
		"chunks_added", summary.ChunksAdded,
		"unprocessed_shards", len(summary.Unprocessed))
	return summary, nil
}

// download discovers the sitemap and stages the changed pages in shards.
func (p *Pipeline) download(ctx context.Context, logger *slog.Logger, src *source.SitemapSource, dir string, s *Summary) ([]string, error) {
	items, err := src.Discover(ctx)
	if err != nil {
		return nil, err
	}
	items = p.filterItems(items)
	s.Discovered = len(items)

	c, err := p.store.Load()
	if err != nil {
		return nil, err
	}
	st := source.State{Cache: c, Force: p.force, TTL: p.ttl}
	pending := p.skipUnchanged(src, items, st, s)

	if p.dryRun {
		p.plan(logger, s, pending)
		return nil, nil
	}
	if len(pending) == 0 {
		logger.Info("sitemap unchanged", "cached", s.Cached)
		return nil, nil
	}

	dl, err := batch.NewDownloader(src, p.batchOptions()...)
	if err != nil {
		return nil, err
	}
	res, err := dl.Download(ctx, pending, dir)
	s.Skipped += res.TooShort
	s.Errors += res.Errors
	s.Failed = append(s.Failed, res.Failed...)
	logger.Info("download complete", "downloaded", res.Downloaded, "shards", len(res.Shards), "too_short", res.TooShort, "errors", res.Errors)
	return res.Shards, err
}

func (p *Pipeline) batchOptions() []batch.Option {
	opts := []batch.Option{
		batch.WithLogger(p.logger),
		batch.WithProgress(p.onProgress),
		batch.WithRecorder(p.recorder),
	}
	if p.parallelism > 0 {
		opts = append(opts, batch.WithParallelism(p.parallelism))
	}
	if p.shardSize > 0 {
		opts = append(opts, batch.WithShardSize(p.shardSize))
	}
	return opts
}

func removeIfEmpty(logger *slog.Logger, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	if err := os.Remove(dir); err != nil {
		logger.Debug("failed to remove shard directory", "dir", dir, "error", err)
	}
}
