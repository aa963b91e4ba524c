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


package batch

import (
	"context"
	"log/slog"

	"github.com/poiesic/docingest/cache"
	"github.com/poiesic/docingest/fetch"
	"github.com/poiesic/docingest/metrics"
	"github.com/poiesic/docingest/source"
)

// Summary totals the process phase.
type Summary struct {
	Shards      int
	Succeeded   int
	Failed      int
	Processed   int
	ChunksAdded int

	// MergeErrors counts shards whose chunks were committed but whose cache
	// entries could not be saved. Those URLs are downloaded again next run.
	MergeErrors int

	// Unprocessed lists the shard files left on disk for the next run.
	Unprocessed []string
}

// Coordinator hands shards to a Runner with bounded parallelism and merges
// the returned cache entries. It is the only writer of the cache file.
type Coordinator struct {
	runner Runner
	store  *cache.Store
	opts   options
	logger *slog.Logger
}

// NewCoordinator creates a coordinator.
func NewCoordinator(runner Runner, store *cache.Store, opts ...Option) (*Coordinator, error) {
	if runner == nil {
		return nil, ErrRunnerRequired
	}
	if store == nil {
		return nil, ErrStoreRequired
	}
	o := newOptions("shard-coordinator", opts)
	return &Coordinator{runner: runner, store: store, opts: o, logger: o.logger}, nil
}

// ProcessShards runs every shard in paths. A failed shard is counted and
// listed as unprocessed and never stops the others.
func (c *Coordinator) ProcessShards(ctx context.Context, paths []string, sourceName string) Summary {
	summary := Summary{Shards: len(paths)}
	if len(paths) == 0 {
		return summary
	}
	c.logger.Info("processing shards", "shards", len(paths), "parallel", c.opts.parallelism)

	outcomes := fetch.ProcessMany(ctx, paths, func(ctx context.Context, path string, _ int) (WorkerResult, error) {
		res, err := c.runner.Run(ctx, path, sourceName)
		if err != nil {
			return WorkerResult{}, err
		}
		if len(res.Entries) > 0 {
			if _, err := c.store.Merge(ctx, res.Entries); err != nil {
				c.logger.Error("failed to merge cache entries", "shard", path, "err", err)
				res.Entries = nil
			}
		}
		return res, nil
	}, fetch.LimitOptions{
		Concurrency: c.opts.parallelism,
		Delay:       -1,
		OnProgress:  c.opts.onProgress,
		Logger:      c.logger,
	})

	for i, o := range outcomes {
		if o.Err != nil {
			c.logger.Warn("shard failed, keeping it for the next run", "shard", paths[i], "err", o.Err)
			summary.Failed++
			summary.Unprocessed = append(summary.Unprocessed, paths[i])
			c.opts.recorder.Shard(false)
			continue
		}
		summary.Succeeded++
		summary.Processed += o.Value.Processed
		summary.ChunksAdded += o.Value.ChunksAdded
		if o.Value.Processed > 0 && o.Value.Entries == nil {
			summary.MergeErrors++
		}
		c.opts.recorder.Shard(true)
		c.opts.recorder.Items(string(source.KindSitemap), metrics.OutcomeProcessed, o.Value.Processed)
		c.opts.recorder.ChunksUpserted(string(source.KindSitemap), o.Value.ChunksAdded)
	}

	c.logger.Info("shards processed",
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"processed", summary.Processed,
		"chunks", summary.ChunksAdded)
	return summary
}
