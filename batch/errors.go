package batch

import "errors"

var (
	// ErrRunnerRequired is returned when a Coordinator has no Runner.
	ErrRunnerRequired = errors.New("shard runner required")

	// ErrStoreRequired is returned when a Coordinator has no cache store.
	ErrStoreRequired = errors.New("cache store required")

	// ErrClientRequired is returned when a ShardProcessor has no index client.
	ErrClientRequired = errors.New("index client required")

	// ErrSourceRequired is returned when a Downloader has no sitemap source.
	ErrSourceRequired = errors.New("sitemap source required")

	// ErrInvalidShardName is returned for files not named batch-NNNN.jsonl.
	ErrInvalidShardName = errors.New("invalid shard file name")
)
