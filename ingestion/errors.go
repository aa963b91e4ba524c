package ingestion

import "errors"

var (
	// ErrIndexClientRequired is returned when an index client is not provided.
	ErrIndexClientRequired = errors.New("index client required")

	// ErrSourceRequired is returned when Run is called without a source.
	ErrSourceRequired = errors.New("source required")

	// ErrCacheStoreRequired is returned when the resumable sitemap path is
	// used without a cache store.
	ErrCacheStoreRequired = errors.New("cache store required")

	// ErrRunnerRequired is returned when SitemapRun has no shard runner.
	ErrRunnerRequired = errors.New("shard runner required")
)
