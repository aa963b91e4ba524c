package batch

import (
	"log/slog"

	"github.com/poiesic/docingest/chunk"
	"github.com/poiesic/docingest/fetch"
	"github.com/poiesic/docingest/metrics"
)

const (
	// DefaultShardSize is the number of items fetched into one shard.
	DefaultShardSize = 50

	// DefaultSubBatchSize is the number of chunks per upsert in a worker.
	DefaultSubBatchSize = 20

	// DefaultParallelism is the number of shards processed at once.
	DefaultParallelism = 3

	// MinRecordLength is the shortest extracted text written to a shard.
	MinRecordLength = 100
)

type options struct {
	logger      *slog.Logger
	shardSize   int
	subBatch    int
	parallelism int
	chunkOpts   []chunk.Option
	onProgress  fetch.ProgressFunc
	recorder    *metrics.Recorder
}

// Option configures the components of this package. Options that do not
// apply to a component are ignored by it.
type Option func(*options)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithShardSize sets how many items go into one shard.
func WithShardSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.shardSize = n
		}
	}
}

// WithSubBatchSize sets how many chunks a worker upserts at once.
func WithSubBatchSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.subBatch = n
		}
	}
}

// WithParallelism sets how many shards are processed at once.
func WithParallelism(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.parallelism = n
		}
	}
}

// WithChunkOptions overrides the chunker settings used by workers.
func WithChunkOptions(opts ...chunk.Option) Option {
	return func(o *options) {
		o.chunkOpts = opts
	}
}

// WithProgress is called after every completed download or shard.
func WithProgress(fn fetch.ProgressFunc) Option {
	return func(o *options) {
		o.onProgress = fn
	}
}

// WithRecorder counts shard and item outcomes.
func WithRecorder(r *metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

func newOptions(component string, opts []Option) options {
	o := options{
		logger:      slog.Default(),
		shardSize:   DefaultShardSize,
		subBatch:    DefaultSubBatchSize,
		parallelism: DefaultParallelism,
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With("component", component)
	return o
}
