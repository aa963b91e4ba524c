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
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/poiesic/docingest/cache"
	"github.com/poiesic/docingest/fetch"
	"github.com/poiesic/docingest/index"
	"github.com/poiesic/docingest/metrics"
	"github.com/poiesic/docingest/source"
)

const (
	// DefaultUpsertBatchSize is the number of documents sent per upsert.
	DefaultUpsertBatchSize = 100

	// MaxPlanned is how many items a dry run lists.
	MaxPlanned = 20
)

// Pipeline runs sources against an index and a cache.
type Pipeline struct {
	client      index.Client
	store       *cache.Store
	concurrency int
	delay       time.Duration
	batchSize   int
	parallelism int
	shardSize   int
	force       bool
	dryRun      bool
	processOnly bool
	filter      string
	ttl         time.Duration
	recorder    *metrics.Recorder
	onProgress  fetch.ProgressFunc
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithConcurrency overrides the source's default number of items processed
// at once.
func WithConcurrency(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("concurrency must be at least 1, got %d", n)
		}
		p.concurrency = n
		return nil
	}
}

// WithDelay overrides the source's default pause after each item.
// A negative delay disables pacing.
func WithDelay(d time.Duration) Option {
	return func(p *Pipeline) error {
		if d == 0 {
			d = -1
		}
		p.delay = d
		return nil
	}
}

// WithUpsertBatchSize sets how many documents are upserted at once.
// Default is 100.
func WithUpsertBatchSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("upsert batch size must be at least 1, got %d", n)
		}
		p.batchSize = n
		return nil
	}
}

// WithParallelism sets how many shards SitemapRun processes at once.
func WithParallelism(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("parallelism must be at least 1, got %d", n)
		}
		p.parallelism = n
		return nil
	}
}

// WithShardSize sets how many pages SitemapRun stages per shard.
func WithShardSize(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("shard size must be at least 1, got %d", n)
		}
		p.shardSize = n
		return nil
	}
}

// WithForce ignores the cache when deciding what to process.
func WithForce(force bool) Option {
	return func(p *Pipeline) error {
		p.force = force
		return nil
	}
}

// WithDryRun lists what would be processed without fetching or indexing.
func WithDryRun(dryRun bool) Option {
	return func(p *Pipeline) error {
		p.dryRun = dryRun
		return nil
	}
}

// WithProcessOnly makes SitemapRun index existing shards without
// discovering new pages.
func WithProcessOnly(processOnly bool) Option {
	return func(p *Pipeline) error {
		p.processOnly = processOnly
		return nil
	}
}

// WithFilter keeps only items whose location or label contains filter,
// ignoring case.
func WithFilter(filter string) Option {
	return func(p *Pipeline) error {
		p.filter = strings.ToLower(strings.TrimSpace(filter))
		return nil
	}
}

// WithTTL sets how long a content-hash cache entry stays fresh.
// Default is cache.DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(p *Pipeline) error {
		if ttl <= 0 {
			return fmt.Errorf("ttl must be positive, got %s", ttl)
		}
		p.ttl = ttl
		return nil
	}
}

// WithRecorder counts outcomes into r.
func WithRecorder(r *metrics.Recorder) Option {
	return func(p *Pipeline) error {
		p.recorder = r
		return nil
	}
}

// WithProgress is called after every processed item or shard.
func WithProgress(fn fetch.ProgressFunc) Option {
	return func(p *Pipeline) error {
		p.onProgress = fn
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a pipeline writing to client. A nil store disables
// caching, which is what manual notes want.
func NewPipeline(client index.Client, store *cache.Store, opts ...Option) (*Pipeline, error) {
	if client == nil {
		return nil, ErrIndexClientRequired
	}

	p := &Pipeline{
		client:    client,
		store:     store,
		batchSize: DefaultUpsertBatchSize,
		ttl:       cache.DefaultTTL,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion-pipeline")
	return p, nil
}

// limits merges the source's defaults with the pipeline overrides.
func (p *Pipeline) limits(src source.Source) fetch.LimitOptions {
	var l fetch.LimitOptions
	if lim, ok := src.(source.Limiter); ok {
		l = lim.Limits()
	}
	if p.concurrency > 0 {
		l.Concurrency = p.concurrency
	}
	if p.delay != 0 {
		l.Delay = p.delay
	}
	l.OnProgress = p.onProgress
	l.Logger = p.logger
	return l
}

func (p *Pipeline) loadCache() (cache.Cache, error) {
	if p.store == nil {
		return cache.Cache{}, nil
	}
	return p.store.Load()
}

func (p *Pipeline) matches(label, location string) bool {
	if p.filter == "" {
		return true
	}
	return strings.Contains(strings.ToLower(location), p.filter) ||
		strings.Contains(strings.ToLower(label), p.filter)
}

// indexCount asks the index for its size. Failure only costs the summary
// line.
func (p *Pipeline) indexCount(ctx context.Context, s *Summary) {
	stats, err := p.client.Stats(ctx)
	if err != nil {
		p.logger.Warn("failed to read index stats", "error", err)
		return
	}
	s.IndexCount = stats.Count
	p.recorder.IndexDocuments(stats.Count)
}
