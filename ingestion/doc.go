// Package ingestion drives a source through discovery, change detection,
// fetching, chunking and indexing.
//
// A Pipeline runs one source at a time:
//   - items are discovered and filtered
//   - unchanged items are skipped using the cache loaded at start
//   - the rest are processed through a bounded, paced pool
//   - chunk documents are upserted in batches
//   - cache entries are recorded only for items whose documents committed
//
// Sitemaps large enough to need resuming go through SitemapRun instead,
// which stages pages in shard files and indexes them in worker processes.
// Item failures are counted and logged; they never fail the run.
package ingestion
