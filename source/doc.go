// Package source contains the per-kind drivers that discover items to
// ingest and turn each one into chunk documents.
//
// Every driver implements Source. Each one uses the cheapest change signal
// its upstream exposes:
//
//	sitemap   last-modified date from the sitemap entry
//	urls      content hash of the fetched page, with a TTL
//	openapi   blob SHA from the repository listing
//	manual    none, always re-upserted
//
// Configuration files decode into the typed variants of Config and are
// validated at load time.
package source
